package managers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/udovin/duel/internal/config"
	"github.com/udovin/duel/internal/core"
	"github.com/udovin/duel/internal/db"
	"github.com/udovin/duel/internal/events"
	"github.com/udovin/duel/internal/migrations"
	"github.com/udovin/duel/internal/models"
	"github.com/udovin/duel/internal/pkg/random"
)

type testClock struct {
	mutex sync.Mutex
	now   time.Time
}

func (c *testClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *testClock) Add(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	t           testing.TB
	ctx         context.Context
	core        *core.Core
	clock       *testClock
	sessions    *SessionManager
	submissions *SubmissionManager
	tournaments *TournamentManager
	leaderboard *LeaderboardManager
}

func newTestEnv(t testing.TB) *testEnv {
	cfg := config.Config{
		DB: config.DB{
			Options: config.SQLiteOptions{Path: ":memory:"},
		},
	}
	c, err := core.NewCore(cfg)
	if err != nil {
		t.Fatal("Error:", err)
	}
	c.SetupAllStores()
	ctx := context.Background()
	if err := db.ApplyMigrations(ctx, c.DB, "duel", migrations.Schema); err != nil {
		t.Fatal("Error:", err)
	}
	clock := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c.Now = clock.Now
	c.Random = random.NewSource(42)
	c.Events.SetClock(clock.Now)
	sessions := NewSessionManager(c)
	env := testEnv{
		t:           t,
		ctx:         ctx,
		core:        c,
		clock:       clock,
		sessions:    sessions,
		submissions: NewSubmissionManager(c, sessions),
		tournaments: NewTournamentManager(c, sessions),
		leaderboard: NewLeaderboardManager(c),
	}
	t.Cleanup(func() { _ = c.Close() })
	return &env
}

func (e *testEnv) createProblem(difficulty models.Difficulty) models.Problem {
	problem := models.Problem{
		Title:       "A + B",
		Difficulty:  difficulty,
		TimeLimit:   1000,
		MemoryLimit: 65536,
	}
	if err := problem.SetTestCases([]models.TestCase{
		{Input: "1 2", Expected: "3"},
		{Input: "2 2", Expected: "4"},
	}); err != nil {
		e.t.Fatal("Error:", err)
	}
	if err := e.core.Problems.Create(e.ctx, &problem); err != nil {
		e.t.Fatal("Error:", err)
	}
	return problem
}

// createActiveSession creates started session of creator and other
// participants with specified problems attached.
func (e *testEnv) createActiveSession(creatorID int64, others []int64, problems ...int64) models.Session {
	session, err := e.sessions.Create(e.ctx, creatorID, CreateSessionForm{
		Title: "Duel",
	})
	if err != nil {
		e.t.Fatal("Error:", err)
	}
	for _, id := range others {
		if err := e.sessions.Join(e.ctx, session.ID, id, ""); err != nil {
			e.t.Fatal("Error:", err)
		}
	}
	for _, id := range problems {
		if err := e.sessions.AddProblem(e.ctx, session.ID, creatorID, id); err != nil {
			e.t.Fatal("Error:", err)
		}
	}
	for _, id := range append([]int64{creatorID}, others...) {
		if _, err := e.sessions.MarkReady(e.ctx, session.ID, id, true); err != nil {
			e.t.Fatal("Error:", err)
		}
	}
	if err := e.sessions.Start(e.ctx, session.ID, creatorID); err != nil {
		e.t.Fatal("Error:", err)
	}
	return e.getSession(session.ID)
}

func (e *testEnv) getSession(id string) models.Session {
	session, err := e.core.Sessions.Get(e.ctx, id)
	if err != nil {
		e.t.Fatal("Error:", err)
	}
	return session
}

func (e *testEnv) getParticipation(sessionID string, participantID int64) models.Participation {
	participation, err := e.core.Participations.Get(e.ctx, sessionID, participantID)
	if err != nil {
		e.t.Fatal("Error:", err)
	}
	return participation
}

func (e *testEnv) getProfile(id int64) models.Profile {
	profile, err := e.core.Profiles.Get(e.ctx, id)
	if err != nil {
		e.t.Fatal("Error:", err)
	}
	return profile
}

func (e *testEnv) submit(sessionID string, participantID, problemID int64, passed bool) (SubmitResult, error) {
	return e.submissions.Submit(e.ctx, participantID, SubmitForm{
		SessionID: sessionID,
		ProblemID: problemID,
		Code:      "print(sum(map(int, input().split())))",
		Language:  "python3",
		Tests: []models.TestResult{
			{Output: "3", Expected: "3", Match: true},
			{Output: "4", Expected: "4", Match: passed},
		},
	})
}

func expectCode(t testing.TB, err error, code ErrorCode) {
	t.Helper()
	if !IsCode(err, code) {
		t.Fatalf("Expected error with code %q, got: %v", code, err)
	}
}

// drainEvents returns all events buffered in subscription.
func drainEvents(sub *events.Subscription) []events.Event {
	var result []events.Event
	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				return result
			}
			result = append(result, event)
		default:
			return result
		}
	}
}

func countEvents(list []events.Event, kind events.EventType) int {
	count := 0
	for _, event := range list {
		if event.Type == kind {
			count++
		}
	}
	return count
}
