package managers

import (
	"sync"
	"testing"
	"time"

	"github.com/udovin/duel/internal/events"
	"github.com/udovin/duel/internal/models"
)

func TestDuelScenario(t *testing.T) {
	env := newTestEnv(t)
	env.createProblem(models.EasyProblem)
	session, err := env.sessions.Create(env.ctx, 1, CreateSessionForm{
		Title:    "Duel",
		Capacity: 2,
	})
	if err != nil {
		t.Fatal("Error:", err)
	}
	sub := env.core.Events.Subscribe(session.ID)
	defer sub.Close()
	if err := env.sessions.Join(env.ctx, session.ID, 2, ""); err != nil {
		t.Fatal("Error:", err)
	}
	if state, err := env.sessions.MarkReady(env.ctx, session.ID, 1, true); err != nil {
		t.Fatal("Error:", err)
	} else if state != models.FormingSession {
		t.Fatalf("Expected: %v, got: %v", models.FormingSession, state)
	}
	if state, err := env.sessions.MarkReady(env.ctx, session.ID, 2, true); err != nil {
		t.Fatal("Error:", err)
	} else if state != models.ReadySession {
		t.Fatalf("Expected: %v, got: %v", models.ReadySession, state)
	}
	if err := env.sessions.Start(env.ctx, session.ID, 1); err != nil {
		t.Fatal("Error:", err)
	}
	session = env.getSession(session.ID)
	if session.State != models.ActiveSession {
		t.Fatalf("Expected: %v, got: %v", models.ActiveSession, session.State)
	}
	view, err := env.sessions.Observe(env.ctx, session.ID)
	if err != nil {
		t.Fatal("Error:", err)
	}
	if len(view.Problems) != 1 {
		t.Fatalf("Expected: %d, got: %d", 1, len(view.Problems))
	}
	env.clock.Add(10 * time.Second)
	result, err := env.submit(session.ID, 1, view.Problems[0], true)
	if err != nil {
		t.Fatal("Error:", err)
	}
	if !result.Credited || !result.Ended {
		t.Fatalf("Expected credited submission that ended session, got: %+v", result)
	}
	session = env.getSession(session.ID)
	if session.State != models.EndedSession || session.EndReason != models.SolvedEnd {
		t.Fatalf("Unexpected session: %+v", session)
	}
	if int64(session.EndTime)-int64(session.StartTime) != 10 {
		t.Fatalf("Unexpected session times: %+v", session)
	}
	winner := env.getParticipation(session.ID, 1)
	loser := env.getParticipation(session.ID, 2)
	if winner.ProblemsSolved != 1 || winner.TotalTime != 10 || winner.FinalRank != 1 {
		t.Fatalf("Unexpected winner participation: %+v", winner)
	}
	if loser.FinalRank != 2 {
		t.Fatalf("Unexpected loser participation: %+v", loser)
	}
	if winner.Score != 98 {
		t.Fatalf("Expected: %d, got: %d", 98, winner.Score)
	}
	if rating := env.getProfile(1).Rating; rating != 1516 {
		t.Fatalf("Expected: %d, got: %d", 1516, rating)
	}
	if rating := env.getProfile(2).Rating; rating != 1484 {
		t.Fatalf("Expected: %d, got: %d", 1484, rating)
	}
	if _, err := env.submit(session.ID, 2, view.Problems[0], true); err == nil {
		t.Fatal("Expected error")
	} else {
		expectCode(t, err, SessionNotActive)
	}
	if ended, err := env.sessions.End(env.ctx, session.ID, models.ManualEnd); err != nil {
		t.Fatal("Error:", err)
	} else if ended {
		t.Fatal("Expected session to be already ended")
	}
	list := drainEvents(sub)
	if count := countEvents(list, events.SessionEnd); count != 1 {
		t.Fatalf("Expected: %d, got: %d", 1, count)
	}
	if count := countEvents(list, events.SessionStarted); count != 1 {
		t.Fatalf("Expected: %d, got: %d", 1, count)
	}
	for i := 1; i < len(list); i++ {
		if list[i].Seq != list[i-1].Seq+1 {
			t.Fatalf("Unexpected event order: %v", list)
		}
	}
	// Result of submission is published before end of session.
	if list[len(list)-1].Type != events.SessionEnd {
		t.Fatalf("Expected: %v, got: %v", events.SessionEnd, list[len(list)-1].Type)
	}
	if list[len(list)-2].Type != events.SubmissionResult {
		t.Fatalf("Expected: %v, got: %v", events.SubmissionResult, list[len(list)-2].Type)
	}
}

func TestSessionEndConcurrent(t *testing.T) {
	env := newTestEnv(t)
	first := env.createProblem(models.EasyProblem)
	second := env.createProblem(models.HardProblem)
	session := env.createActiveSession(1, []int64{2}, first.ID, second.ID)
	sub := env.core.Events.Subscribe(session.ID)
	defer sub.Close()
	env.clock.Add(30 * time.Second)
	if _, err := env.submit(session.ID, 1, first.ID, true); err != nil {
		t.Fatal("Error:", err)
	}
	var wait sync.WaitGroup
	var mutex sync.Mutex
	ended := 0
	for i := 0; i < 8; i++ {
		wait.Add(1)
		go func(i int) {
			defer wait.Done()
			reason := models.ManualEnd
			if i%2 == 1 {
				reason = models.TimeoutEnd
			}
			ok, err := env.sessions.End(env.ctx, session.ID, reason)
			if err != nil {
				t.Error("Error:", err)
				return
			}
			if ok {
				mutex.Lock()
				ended++
				mutex.Unlock()
			}
		}(i)
	}
	wait.Wait()
	if ended != 1 {
		t.Fatalf("Expected: %d, got: %d", 1, ended)
	}
	if count := countEvents(drainEvents(sub), events.SessionEnd); count != 1 {
		t.Fatalf("Expected: %d, got: %d", 1, count)
	}
	session = env.getSession(session.ID)
	if session.State != models.EndedSession {
		t.Fatalf("Expected: %v, got: %v", models.EndedSession, session.State)
	}
	// Scoring was applied exactly once.
	if rating := env.getProfile(1).Rating; rating != 1516 {
		t.Fatalf("Expected: %d, got: %d", 1516, rating)
	}
	if rating := env.getProfile(2).Rating; rating != 1484 {
		t.Fatalf("Expected: %d, got: %d", 1484, rating)
	}
}

func TestSessionEndNotActive(t *testing.T) {
	env := newTestEnv(t)
	session, err := env.sessions.Create(env.ctx, 1, CreateSessionForm{Title: "Duel"})
	if err != nil {
		t.Fatal("Error:", err)
	}
	_, err = env.sessions.End(env.ctx, session.ID, models.ManualEnd)
	expectCode(t, err, SessionNotActive)
	_, err = env.sessions.End(env.ctx, "unknown", models.ManualEnd)
	expectCode(t, err, NotFound)
}

func TestSessionJoin(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.sessions.Create(env.ctx, 1, CreateSessionForm{Title: "Secret", Private: true})
	expectCode(t, err, AccessCodeRequired)
	_, err = env.sessions.Create(env.ctx, 1, CreateSessionForm{Title: " ", Capacity: -1})
	if e, ok := GetError(err); !ok || e.Code != InvalidForm || len(e.Fields) != 2 {
		t.Fatalf("Expected invalid form, got: %v", err)
	}
	session, err := env.sessions.Create(env.ctx, 1, CreateSessionForm{
		Title:      "Secret",
		Capacity:   2,
		Private:    true,
		AccessCode: "qwerty",
	})
	if err != nil {
		t.Fatal("Error:", err)
	}
	if session.AccessCodeHash == "" || session.AccessCodeHash == "qwerty" {
		t.Fatalf("Unexpected access code hash: %q", session.AccessCodeHash)
	}
	expectCode(t, env.sessions.Join(env.ctx, session.ID, 2, ""), AccessCodeRequired)
	expectCode(t, env.sessions.Join(env.ctx, session.ID, 2, "wrong"), AccessDenied)
	expectCode(t, env.sessions.Join(env.ctx, session.ID, 1, "qwerty"), AlreadyJoined)
	if err := env.sessions.Join(env.ctx, session.ID, 2, "qwerty"); err != nil {
		t.Fatal("Error:", err)
	}
	err = env.sessions.Join(env.ctx, session.ID, 3, "qwerty")
	expectCode(t, err, CapacityExceeded)
	if !IsKind(err, CapacityError) {
		t.Fatalf("Expected capacity error, got: %v", err)
	}
	expectCode(t, env.sessions.Join(env.ctx, "unknown", 3, ""), NotFound)
	if _, err := env.sessions.MarkReady(env.ctx, session.ID, 1, true); err != nil {
		t.Fatal("Error:", err)
	}
	if _, err := env.sessions.MarkReady(env.ctx, session.ID, 2, true); err != nil {
		t.Fatal("Error:", err)
	}
	if err := env.sessions.Leave(env.ctx, session.ID, 2); err != nil {
		t.Fatal("Error:", err)
	}
	// Roster with only ready participants stays ready.
	if state := env.getSession(session.ID).State; state != models.ReadySession {
		t.Fatalf("Expected: %v, got: %v", models.ReadySession, state)
	}
	// Join is accepted only while session is forming.
	expectCode(t, env.sessions.Join(env.ctx, session.ID, 3, "qwerty"), InvalidState)
	if _, err := env.sessions.MarkReady(env.ctx, session.ID, 1, false); err != nil {
		t.Fatal("Error:", err)
	}
	if state := env.getSession(session.ID).State; state != models.FormingSession {
		t.Fatalf("Expected: %v, got: %v", models.FormingSession, state)
	}
	if err := env.sessions.Join(env.ctx, session.ID, 3, "qwerty"); err != nil {
		t.Fatal("Error:", err)
	}
	_, err = env.sessions.MarkReady(env.ctx, session.ID, 4, true)
	expectCode(t, err, NotParticipant)
	expectCode(t, env.sessions.Leave(env.ctx, session.ID, 4), NotParticipant)
}

func TestSessionStart(t *testing.T) {
	env := newTestEnv(t)
	session, err := env.sessions.Create(env.ctx, 1, CreateSessionForm{Title: "Duel"})
	if err != nil {
		t.Fatal("Error:", err)
	}
	expectCode(t, env.sessions.Start(env.ctx, session.ID, 2), NotCreator)
	expectCode(t, env.sessions.Start(env.ctx, session.ID, 1), NotAllReady)
	if _, err := env.sessions.MarkReady(env.ctx, session.ID, 1, true); err != nil {
		t.Fatal("Error:", err)
	}
	expectCode(t, env.sessions.Start(env.ctx, session.ID, 1), InsufficientParticipants)
	if _, err := env.sessions.MarkReady(env.ctx, session.ID, 1, false); err != nil {
		t.Fatal("Error:", err)
	}
	if err := env.sessions.Join(env.ctx, session.ID, 2, ""); err != nil {
		t.Fatal("Error:", err)
	}
	for _, id := range []int64{1, 2} {
		if _, err := env.sessions.MarkReady(env.ctx, session.ID, id, true); err != nil {
			t.Fatal("Error:", err)
		}
	}
	expectCode(t, env.sessions.Start(env.ctx, session.ID, 1), NoProblemsAvailable)
	problem := env.createProblem(models.MediumProblem)
	if err := env.sessions.Start(env.ctx, session.ID, 1); err != nil {
		t.Fatal("Error:", err)
	}
	view, err := env.sessions.Observe(env.ctx, session.ID)
	if err != nil {
		t.Fatal("Error:", err)
	}
	if len(view.Problems) != 1 || view.Problems[0] != problem.ID {
		t.Fatalf("Unexpected problems: %v", view.Problems)
	}
	if err := view.Session.Validate(); err != nil {
		t.Fatal("Error:", err)
	}
	expectCode(t, env.sessions.Start(env.ctx, session.ID, 1), InvalidState)
	expectCode(t, env.sessions.Cancel(env.ctx, session.ID, 1), InvalidState)
	expectCode(t, env.sessions.AddProblem(env.ctx, session.ID, 1, problem.ID), InvalidState)
}

func TestSessionProblems(t *testing.T) {
	env := newTestEnv(t)
	first := env.createProblem(models.EasyProblem)
	second := env.createProblem(models.HardProblem)
	session, err := env.sessions.Create(env.ctx, 1, CreateSessionForm{Title: "Duel"})
	if err != nil {
		t.Fatal("Error:", err)
	}
	expectCode(t, env.sessions.AddProblem(env.ctx, session.ID, 2, first.ID), NotCreator)
	expectCode(t, env.sessions.AddProblem(env.ctx, session.ID, 1, 100), NotFound)
	for _, id := range []int64{second.ID, first.ID} {
		if err := env.sessions.AddProblem(env.ctx, session.ID, 1, id); err != nil {
			t.Fatal("Error:", err)
		}
	}
	expectCode(t, env.sessions.AddProblem(env.ctx, session.ID, 1, first.ID), InvalidForm)
	if err := env.sessions.RemoveProblem(env.ctx, session.ID, 1, second.ID); err != nil {
		t.Fatal("Error:", err)
	}
	expectCode(t, env.sessions.RemoveProblem(env.ctx, session.ID, 1, second.ID), NotFound)
	view, err := env.sessions.Observe(env.ctx, session.ID)
	if err != nil {
		t.Fatal("Error:", err)
	}
	if len(view.Problems) != 1 || view.Problems[0] != first.ID {
		t.Fatalf("Unexpected problems: %v", view.Problems)
	}
}

func TestSessionCancel(t *testing.T) {
	env := newTestEnv(t)
	session, err := env.sessions.Create(env.ctx, 1, CreateSessionForm{Title: "Duel"})
	if err != nil {
		t.Fatal("Error:", err)
	}
	sub := env.core.Events.Subscribe(session.ID)
	defer sub.Close()
	expectCode(t, env.sessions.Cancel(env.ctx, session.ID, 2), NotCreator)
	if err := env.sessions.Cancel(env.ctx, session.ID, 1); err != nil {
		t.Fatal("Error:", err)
	}
	if state := env.getSession(session.ID).State; state != models.CancelledSession {
		t.Fatalf("Expected: %v, got: %v", models.CancelledSession, state)
	}
	if count := countEvents(drainEvents(sub), events.SessionCancelled); count != 1 {
		t.Fatalf("Expected: %d, got: %d", 1, count)
	}
	expectCode(t, env.sessions.Join(env.ctx, session.ID, 2, ""), InvalidState)
	sessions, err := env.sessions.FindOpen(env.ctx, 10)
	if err != nil {
		t.Fatal("Error:", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("Expected no open sessions, got: %v", sessions)
	}
}

func TestExpireSessions(t *testing.T) {
	env := newTestEnv(t)
	problem := env.createProblem(models.EasyProblem)
	session := env.createActiveSession(1, []int64{2}, problem.ID)
	if session.Duration != env.core.Config.Session.GetDuration() {
		t.Fatalf("Expected: %d, got: %d", env.core.Config.Session.GetDuration(), session.Duration)
	}
	if ended, err := env.sessions.ExpireSessions(env.ctx); err != nil {
		t.Fatal("Error:", err)
	} else if ended != 0 {
		t.Fatalf("Expected: %d, got: %d", 0, ended)
	}
	env.clock.Add(time.Duration(session.Duration) * time.Second)
	if ended, err := env.sessions.ExpireSessions(env.ctx); err != nil {
		t.Fatal("Error:", err)
	} else if ended != 1 {
		t.Fatalf("Expected: %d, got: %d", 1, ended)
	}
	session = env.getSession(session.ID)
	if session.State != models.EndedSession || session.EndReason != models.TimeoutEnd {
		t.Fatalf("Unexpected session: %+v", session)
	}
	// Draw without solved problems does not change ratings.
	if rating := env.getProfile(1).Rating; rating != models.InitialRating {
		t.Fatalf("Expected: %d, got: %d", models.InitialRating, rating)
	}
	first := env.getParticipation(session.ID, 1)
	second := env.getParticipation(session.ID, 2)
	if first.FinalRank != 1 || second.FinalRank != 2 {
		t.Fatalf("Unexpected ranks: %d, %d", first.FinalRank, second.FinalRank)
	}
}

func TestSessionStop(t *testing.T) {
	env := newTestEnv(t)
	problem := env.createProblem(models.EasyProblem)
	session := env.createActiveSession(1, []int64{2}, problem.ID)
	sub := env.core.Events.Subscribe(session.ID)
	defer sub.Close()
	if _, err := env.sessions.Stop(env.ctx, session.ID, 2); !IsCode(err, NotCreator) {
		t.Fatalf("Expected: %v, got: %v", NotCreator, err)
	}
	ended, err := env.sessions.Stop(env.ctx, session.ID, 1)
	if err != nil {
		t.Fatal("Error:", err)
	}
	if !ended {
		t.Fatal("Expected session to be ended")
	}
	if reason := env.getSession(session.ID).EndReason; reason != models.ManualEnd {
		t.Fatalf("Expected: %v, got: %v", models.ManualEnd, reason)
	}
	if ended, err := env.sessions.Stop(env.ctx, session.ID, 1); err != nil {
		t.Fatal("Error:", err)
	} else if ended {
		t.Fatal("Expected repeated stop to be no-op")
	}
	if count := countEvents(drainEvents(sub), events.SessionEnd); count != 1 {
		t.Fatalf("Expected: %d, got: %d", 1, count)
	}
}

func TestSessionStreamsReleased(t *testing.T) {
	env := newTestEnv(t)
	problem := env.createProblem(models.EasyProblem)
	for i := 0; i < 5; i++ {
		session := env.createActiveSession(1, []int64{2}, problem.ID)
		if _, err := env.sessions.End(env.ctx, session.ID, models.ManualEnd); err != nil {
			t.Fatal("Error:", err)
		}
	}
	if topics := env.core.Events.Topics(); topics != 0 {
		t.Fatalf("Expected: %d, got: %d", 0, topics)
	}
	session, err := env.sessions.Create(env.ctx, 1, CreateSessionForm{Title: "Duel"})
	if err != nil {
		t.Fatal("Error:", err)
	}
	sub := env.core.Events.Subscribe(session.ID)
	defer sub.Close()
	if err := env.sessions.Join(env.ctx, session.ID, 2, ""); err != nil {
		t.Fatal("Error:", err)
	}
	if topics := env.core.Events.Topics(); topics != 1 {
		t.Fatalf("Expected: %d, got: %d", 1, topics)
	}
	if err := env.sessions.Cancel(env.ctx, session.ID, 1); err != nil {
		t.Fatal("Error:", err)
	}
	list := drainEvents(sub)
	if len(list) != 2 || list[1].Type != events.SessionCancelled {
		t.Fatalf("Unexpected events: %+v", list)
	}
	if _, ok := <-sub.Events(); ok {
		t.Fatal("Expected closed subscription")
	}
	if topics := env.core.Events.Topics(); topics != 0 {
		t.Fatalf("Expected: %d, got: %d", 0, topics)
	}
}
