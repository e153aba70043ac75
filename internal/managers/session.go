package managers

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/udovin/duel/internal/core"
	"github.com/udovin/duel/internal/events"
	"github.com/udovin/duel/internal/models"
	"github.com/udovin/duel/internal/pkg/logs"
	"github.com/udovin/duel/internal/pkg/random"
)

const (
	maxTitleLength  = 256
	maxDuration     = 24 * 60 * 60
	systemCreatorID = 0
)

// EndHook is called in transaction that ended session.
type EndHook func(ctx context.Context, session models.Session, results []models.Participation) error

// SessionManager drives sessions through their lifecycle.
type SessionManager struct {
	core     *core.Core
	scoring  *ScoringEngine
	endHooks []EndHook
}

// NewSessionManager creates a new instance of SessionManager.
func NewSessionManager(core *core.Core) *SessionManager {
	return &SessionManager{
		core:    core,
		scoring: NewScoringEngine(core),
	}
}

// AddEndHook registers hook called for every ended session.
func (m *SessionManager) AddEndHook(hook EndHook) {
	m.endHooks = append(m.endHooks, hook)
}

// CreateSessionForm represents form for creating session.
type CreateSessionForm struct {
	Title      string `json:"title"`
	Capacity   int64  `json:"capacity"`
	Private    bool   `json:"private"`
	AccessCode string `json:"access_code"`
	// Duration contains duration in seconds, zero means default.
	Duration int64 `json:"duration"`
}

func (f *CreateSessionForm) validate() error {
	fields := map[string]string{}
	f.Title = strings.TrimSpace(f.Title)
	if len(f.Title) == 0 {
		fields["title"] = "Title is empty."
	} else if len(f.Title) > maxTitleLength {
		fields["title"] = "Title is too long."
	}
	if f.Capacity < 0 {
		fields["capacity"] = "Capacity cannot be negative."
	}
	if f.Duration < 0 || f.Duration > maxDuration {
		fields["duration"] = "Duration is out of range."
	}
	if len(fields) > 0 {
		return invalidFormError(fields)
	}
	if f.Private && f.AccessCode == "" {
		return validationError(AccessCodeRequired, "Private session requires access code.")
	}
	return nil
}

func hashAccessCode(code string) string {
	hash := sha3.Sum512([]byte(code))
	return hex.EncodeToString(hash[:])
}

func checkAccessCode(session models.Session, code string) error {
	if !session.Private {
		return nil
	}
	if code == "" {
		return validationError(AccessCodeRequired, "Access code is required.")
	}
	hash := hashAccessCode(code)
	if subtle.ConstantTimeCompare([]byte(hash), []byte(session.AccessCodeHash)) != 1 {
		return permissionError(AccessDenied, "Access code is invalid.")
	}
	return nil
}

// ParticipantPayload represents payload of roster events.
type ParticipantPayload struct {
	ParticipantID int64 `json:"participant_id"`
	Participants  int64 `json:"participants"`
}

// ReadyPayload represents payload of ready_status event.
type ReadyPayload struct {
	ParticipantID int64               `json:"participant_id"`
	Ready         bool                `json:"ready"`
	AllReady      bool                `json:"all_ready"`
	State         models.SessionState `json:"state"`
}

// StartedPayload represents payload of session_started event.
type StartedPayload struct {
	StartTime int64   `json:"start_time"`
	Duration  int64   `json:"duration"`
	Problems  []int64 `json:"problems"`
}

// ResultPayload represents final result of participation.
type ResultPayload struct {
	ParticipantID  int64 `json:"participant_id"`
	ProblemsSolved int64 `json:"problems_solved"`
	TotalTime      int64 `json:"total_time"`
	Score          int64 `json:"score"`
	RatingChange   int64 `json:"rating_change"`
	FinalRank      int64 `json:"final_rank"`
}

// EndPayload represents payload of session_end event.
type EndPayload struct {
	Reason  models.EndReason `json:"reason"`
	EndTime int64            `json:"end_time"`
	Results []ResultPayload  `json:"results"`
}

func (m *SessionManager) getSession(ctx context.Context, id string, forUpdate bool) (models.Session, error) {
	get := m.core.Sessions.Get
	if forUpdate {
		get = m.core.Sessions.GetForUpdate
	}
	session, err := get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Session{}, notFoundError("Session not found.")
		}
		return models.Session{}, err
	}
	return session, nil
}

func (m *SessionManager) getParticipation(
	ctx context.Context, sessionID string, participantID int64,
) (models.Participation, error) {
	participation, err := m.core.Participations.Get(ctx, sessionID, participantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Participation{}, permissionError(NotParticipant, "Participant has not joined session.")
		}
		return models.Participation{}, err
	}
	return participation, nil
}

func requireCreator(session models.Session, initiatorID int64) error {
	if session.CreatorID == systemCreatorID || session.CreatorID != initiatorID {
		return permissionError(NotCreator, "Only creator can manage session.")
	}
	return nil
}

func requireNotStarted(session models.Session) error {
	if session.State != models.FormingSession && session.State != models.ReadySession {
		return stateConflictError(InvalidState, "Session has already started.")
	}
	return nil
}

// Create creates session and joins its creator.
func (m *SessionManager) Create(
	ctx context.Context, creatorID int64, form CreateSessionForm,
) (models.Session, error) {
	if err := form.validate(); err != nil {
		return models.Session{}, err
	}
	duration := form.Duration
	if duration == 0 {
		duration = m.core.Config.Session.GetDuration()
	}
	var session models.Session
	if err := runTx(m.core, ctx, func(ctx context.Context, queue *eventQueue) error {
		session = models.Session{
			Title:      form.Title,
			CreatorID:  creatorID,
			Capacity:   form.Capacity,
			Private:    form.Private,
			Duration:   duration,
			State:      models.FormingSession,
			CreateTime: m.core.Now().Unix(),
		}
		if form.Private {
			session.AccessCodeHash = hashAccessCode(form.AccessCode)
		}
		if err := m.core.Sessions.Create(ctx, &session); err != nil {
			return err
		}
		return m.join(ctx, session, creatorID, false, queue)
	}); err != nil {
		return models.Session{}, err
	}
	m.core.Logger().Info(
		"Session created",
		logs.Any("session_id", session.ID),
		logs.Any("creator_id", creatorID),
	)
	return session, nil
}

func (m *SessionManager) join(
	ctx context.Context, session models.Session, participantID int64, ready bool, queue *eventQueue,
) error {
	if err := m.core.Profiles.Ensure(ctx, participantID); err != nil {
		return err
	}
	participation := models.Participation{
		SessionID:     session.ID,
		ParticipantID: participantID,
		JoinTime:      m.core.Now().Unix(),
		IsReady:       ready,
	}
	if err := m.core.Participations.Create(ctx, &participation); err != nil {
		return err
	}
	count, err := m.core.Participations.Count(ctx, session.ID)
	if err != nil {
		return err
	}
	queue.add(session.ID, events.ParticipantJoined, ParticipantPayload{
		ParticipantID: participantID,
		Participants:  count,
	})
	return nil
}

// Join adds participant to roster of forming session.
func (m *SessionManager) Join(
	ctx context.Context, sessionID string, participantID int64, accessCode string,
) error {
	return runTx(m.core, ctx, func(ctx context.Context, queue *eventQueue) error {
		session, err := m.getSession(ctx, sessionID, true)
		if err != nil {
			return err
		}
		if session.State != models.FormingSession {
			return stateConflictError(InvalidState, "Session is not accepting participants.")
		}
		if _, err := m.core.Participations.Get(ctx, sessionID, participantID); err == nil {
			return stateConflictError(AlreadyJoined, "Participant has already joined session.")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err := checkAccessCode(session, accessCode); err != nil {
			return err
		}
		count, err := m.core.Participations.Count(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.IsFull(count) {
			return newError(CapacityError, CapacityExceeded, "Session roster is full.")
		}
		return m.join(ctx, session, participantID, false, queue)
	})
}

// Leave removes participant from roster of session that has not started.
func (m *SessionManager) Leave(ctx context.Context, sessionID string, participantID int64) error {
	return runTx(m.core, ctx, func(ctx context.Context, queue *eventQueue) error {
		session, err := m.getSession(ctx, sessionID, true)
		if err != nil {
			return err
		}
		if err := requireNotStarted(session); err != nil {
			return err
		}
		participation, err := m.getParticipation(ctx, sessionID, participantID)
		if err != nil {
			return err
		}
		if err := m.core.Participations.Delete(ctx, participation.ID); err != nil {
			return err
		}
		count, err := m.core.Participations.Count(ctx, sessionID)
		if err != nil {
			return err
		}
		queue.add(sessionID, events.ParticipantLeft, ParticipantPayload{
			ParticipantID: participantID,
			Participants:  count,
		})
		_, _, err = m.syncReadyState(ctx, session)
		return err
	})
}

// syncReadyState moves session between forming and ready_check_passed
// according to ready flags of roster.
func (m *SessionManager) syncReadyState(
	ctx context.Context, session models.Session,
) (models.SessionState, bool, error) {
	count, err := m.core.Participations.Count(ctx, session.ID)
	if err != nil {
		return 0, false, err
	}
	notReady, err := m.core.Participations.CountNotReady(ctx, session.ID)
	if err != nil {
		return 0, false, err
	}
	allReady := count > 0 && notReady == 0
	state := session.State
	switch {
	case state == models.FormingSession && allReady:
		state = models.ReadySession
	case state == models.ReadySession && !allReady:
		state = models.FormingSession
	default:
		return state, allReady, nil
	}
	ok, err := m.core.Sessions.SetState(ctx, session.ID, session.State, state)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, newError(RaceLostError, raceLost, "Session state changed concurrently.")
	}
	return state, allReady, nil
}

// MarkReady sets ready flag of participant.
func (m *SessionManager) MarkReady(
	ctx context.Context, sessionID string, participantID int64, ready bool,
) (models.SessionState, error) {
	var state models.SessionState
	err := runTx(m.core, ctx, func(ctx context.Context, queue *eventQueue) error {
		session, err := m.getSession(ctx, sessionID, true)
		if err != nil {
			return err
		}
		if err := requireNotStarted(session); err != nil {
			return err
		}
		participation, err := m.getParticipation(ctx, sessionID, participantID)
		if err != nil {
			return err
		}
		if err := m.core.Participations.SetReady(ctx, participation.ID, ready); err != nil {
			return err
		}
		var allReady bool
		state, allReady, err = m.syncReadyState(ctx, session)
		if err != nil {
			return err
		}
		queue.add(sessionID, events.ReadyStatus, ReadyPayload{
			ParticipantID: participantID,
			Ready:         ready,
			AllReady:      allReady,
			State:         state,
		})
		return nil
	})
	return state, err
}

// Start assigns problems and starts clock of session.
func (m *SessionManager) Start(ctx context.Context, sessionID string, initiatorID int64) error {
	return runTx(m.core, ctx, func(ctx context.Context, queue *eventQueue) error {
		session, err := m.getSession(ctx, sessionID, true)
		if err != nil {
			return err
		}
		if err := requireCreator(session, initiatorID); err != nil {
			return err
		}
		return m.start(ctx, session, queue)
	})
}

func (m *SessionManager) start(ctx context.Context, session models.Session, queue *eventQueue) error {
	switch session.State {
	case models.ReadySession:
	case models.FormingSession:
		return stateConflictError(NotAllReady, "Not all participants are ready.")
	default:
		return stateConflictError(InvalidState, "Session cannot be started.")
	}
	count, err := m.core.Participations.Count(ctx, session.ID)
	if err != nil {
		return err
	}
	minParticipants := int64(m.core.Config.Session.GetMinParticipants())
	if session.TournamentID != "" {
		minParticipants = 2
	}
	if count < minParticipants {
		return stateConflictError(InsufficientParticipants, "Not enough participants.")
	}
	notReady, err := m.core.Participations.CountNotReady(ctx, session.ID)
	if err != nil {
		return err
	}
	if notReady > 0 {
		return stateConflictError(NotAllReady, "Not all participants are ready.")
	}
	problems, err := m.assignProblems(ctx, session.ID)
	if err != nil {
		return err
	}
	now := m.core.Now().Unix()
	ok, err := m.core.Sessions.Start(ctx, session.ID, now)
	if err != nil {
		return err
	}
	if !ok {
		return stateConflictError(InvalidState, "Session cannot be started.")
	}
	queue.add(session.ID, events.SessionStarted, StartedPayload{
		StartTime: now,
		Duration:  session.Duration,
		Problems:  problems,
	})
	return nil
}

// assignProblems returns problems attached to session or attaches
// random problems from catalog.
func (m *SessionManager) assignProblems(ctx context.Context, sessionID string) ([]int64, error) {
	attached, err := m.core.SessionProblems.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var problems []int64
	for _, problem := range attached {
		problems = append(problems, problem.ProblemID)
	}
	if len(problems) > 0 {
		return problems, nil
	}
	ids, err := m.core.Problems.FindIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, stateConflictError(NoProblemsAvailable, "There are no problems available.")
	}
	problems = random.Shuffled(m.core.Random, ids)
	problems = problems[:minOf(len(problems), m.core.Config.Session.GetProblemsPerSession())]
	for i, id := range problems {
		problem := models.SessionProblem{
			SessionID: sessionID,
			ProblemID: id,
			Position:  int64(i + 1),
		}
		if err := m.core.SessionProblems.Create(ctx, &problem); err != nil {
			return nil, err
		}
	}
	return problems, nil
}

// createMatchSession creates private session of tournament match with
// ready participants and starts it.
func (m *SessionManager) createMatchSession(
	ctx context.Context, title string, tournamentID string,
	participants []int64, problems []int64, queue *eventQueue,
) (models.Session, error) {
	session := models.Session{
		Title:        title,
		CreatorID:    systemCreatorID,
		Capacity:     int64(len(participants)),
		Private:      true,
		Duration:     m.core.Config.Session.GetDuration(),
		TournamentID: models.NString(tournamentID),
		State:        models.FormingSession,
		CreateTime:   m.core.Now().Unix(),
	}
	if err := m.core.Sessions.Create(ctx, &session); err != nil {
		return models.Session{}, err
	}
	for i, id := range problems {
		problem := models.SessionProblem{
			SessionID: session.ID,
			ProblemID: id,
			Position:  int64(i + 1),
		}
		if err := m.core.SessionProblems.Create(ctx, &problem); err != nil {
			return models.Session{}, err
		}
	}
	for _, id := range participants {
		if err := m.join(ctx, session, id, true, queue); err != nil {
			return models.Session{}, err
		}
	}
	state, _, err := m.syncReadyState(ctx, session)
	if err != nil {
		return models.Session{}, err
	}
	session.State = state
	if err := m.start(ctx, session, queue); err != nil {
		return models.Session{}, err
	}
	return m.getSession(ctx, session.ID, false)
}

// End ends active session and computes its results.
//
// Ending already ended session is no-op. Returns true only for the call
// that actually ended session.
func (m *SessionManager) End(ctx context.Context, sessionID string, reason models.EndReason) (bool, error) {
	var ended bool
	err := runTx(m.core, ctx, func(ctx context.Context, queue *eventQueue) error {
		ended = false
		session, err := m.getSession(ctx, sessionID, false)
		if err != nil {
			return err
		}
		if session.State == models.EndedSession {
			return nil
		}
		if session.State != models.ActiveSession {
			return stateConflictError(SessionNotActive, "Session is not active.")
		}
		now := m.core.Now().Unix()
		ok, err := m.core.Sessions.End(ctx, sessionID, now, reason)
		if err != nil {
			return err
		}
		if !ok {
			// Session was ended concurrently.
			return nil
		}
		session.State = models.EndedSession
		session.EndTime = models.NInt64(now)
		session.EndReason = reason
		results, err := m.scoring.Score(ctx, session)
		if err != nil {
			return err
		}
		for _, hook := range m.endHooks {
			if err := hook(ctx, session, results); err != nil {
				return err
			}
		}
		payload := EndPayload{Reason: reason, EndTime: now}
		for _, result := range results {
			payload.Results = append(payload.Results, ResultPayload{
				ParticipantID:  result.ParticipantID,
				ProblemsSolved: result.ProblemsSolved,
				TotalTime:      result.TotalTime,
				Score:          result.Score,
				RatingChange:   result.RatingChange,
				FinalRank:      int64(result.FinalRank),
			})
		}
		queue.add(sessionID, events.SessionEnd, payload)
		ended = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if ended {
		m.core.Logger().Info(
			"Session ended",
			logs.Any("session_id", sessionID),
			logs.Any("reason", reason),
		)
	}
	return ended, nil
}

// Cancel cancels session that has not started.
func (m *SessionManager) Cancel(ctx context.Context, sessionID string, initiatorID int64) error {
	return runTx(m.core, ctx, func(ctx context.Context, queue *eventQueue) error {
		session, err := m.getSession(ctx, sessionID, true)
		if err != nil {
			return err
		}
		if err := requireCreator(session, initiatorID); err != nil {
			return err
		}
		if err := requireNotStarted(session); err != nil {
			return err
		}
		ok, err := m.core.Sessions.SetState(ctx, sessionID, session.State, models.CancelledSession)
		if err != nil {
			return err
		}
		if !ok {
			return newError(RaceLostError, raceLost, "Session state changed concurrently.")
		}
		queue.add(sessionID, events.SessionCancelled, nil)
		return nil
	})
}

// abort cancels active session without scoring it.
//
// Sessions in other states are left as is.
func (m *SessionManager) abort(ctx context.Context, queue *eventQueue, sessionID string) error {
	session, err := m.getSession(ctx, sessionID, true)
	if err != nil {
		return err
	}
	if session.State != models.ActiveSession {
		return nil
	}
	ok, err := m.core.Sessions.SetState(ctx, sessionID, models.ActiveSession, models.CancelledSession)
	if err != nil {
		return err
	}
	if !ok {
		return newError(RaceLostError, raceLost, "Session state changed concurrently.")
	}
	queue.add(sessionID, events.SessionCancelled, nil)
	return nil
}

// Stop ends active session on request of its creator.
func (m *SessionManager) Stop(ctx context.Context, sessionID string, initiatorID int64) (bool, error) {
	var ended bool
	err := runTx(m.core, ctx, func(ctx context.Context, queue *eventQueue) error {
		session, err := m.getSession(ctx, sessionID, false)
		if err != nil {
			return err
		}
		if err := requireCreator(session, initiatorID); err != nil {
			return err
		}
		ended, err = m.End(ctx, sessionID, models.ManualEnd)
		return err
	})
	return ended, err
}

// AddProblem attaches problem to session that has not started.
func (m *SessionManager) AddProblem(
	ctx context.Context, sessionID string, initiatorID int64, problemID int64,
) error {
	return runTx(m.core, ctx, func(ctx context.Context, queue *eventQueue) error {
		session, err := m.getSession(ctx, sessionID, true)
		if err != nil {
			return err
		}
		if err := requireCreator(session, initiatorID); err != nil {
			return err
		}
		if err := requireNotStarted(session); err != nil {
			return err
		}
		if _, err := m.core.Problems.Get(ctx, problemID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFoundError("Problem not found.")
			}
			return err
		}
		attached, err := m.core.SessionProblems.FindBySession(ctx, sessionID)
		if err != nil {
			return err
		}
		var position int64
		for _, problem := range attached {
			if problem.ProblemID == problemID {
				return invalidFormError(map[string]string{
					"problem_id": "Problem is already attached.",
				})
			}
			position = maxOf(position, problem.Position)
		}
		problem := models.SessionProblem{
			SessionID: sessionID,
			ProblemID: problemID,
			Position:  position + 1,
		}
		return m.core.SessionProblems.Create(ctx, &problem)
	})
}

// RemoveProblem detaches problem from session that has not started.
func (m *SessionManager) RemoveProblem(
	ctx context.Context, sessionID string, initiatorID int64, problemID int64,
) error {
	return runTx(m.core, ctx, func(ctx context.Context, queue *eventQueue) error {
		session, err := m.getSession(ctx, sessionID, true)
		if err != nil {
			return err
		}
		if err := requireCreator(session, initiatorID); err != nil {
			return err
		}
		if err := requireNotStarted(session); err != nil {
			return err
		}
		ok, err := m.core.SessionProblems.Delete(ctx, sessionID, problemID)
		if err != nil {
			return err
		}
		if !ok {
			return notFoundError("Problem is not attached to session.")
		}
		return nil
	})
}

// ExpireSessions ends all active sessions with elapsed duration.
func (m *SessionManager) ExpireSessions(ctx context.Context) (int, error) {
	sessions, err := m.core.Sessions.FindExpired(ctx, m.core.Now().Unix())
	if err != nil {
		return 0, err
	}
	var ended int
	for _, session := range sessions {
		ok, err := m.End(ctx, session.ID, models.TimeoutEnd)
		if err != nil {
			m.core.Logger().Warn(
				"Cannot end expired session",
				logs.Any("session_id", session.ID),
				err,
			)
			continue
		}
		if ok {
			ended++
		}
	}
	return ended, nil
}

// SessionView represents current state of session for observers.
type SessionView struct {
	Session        models.Session
	Participations []models.Participation
	Problems       []int64
}

// Observe returns current state of session.
func (m *SessionManager) Observe(ctx context.Context, sessionID string) (SessionView, error) {
	var view SessionView
	err := m.core.WrapTx(ctx, func(ctx context.Context) error {
		session, err := m.getSession(ctx, sessionID, false)
		if err != nil {
			return err
		}
		participations, err := m.core.Participations.FindBySession(ctx, sessionID)
		if err != nil {
			return err
		}
		problems, err := m.core.SessionProblems.FindBySession(ctx, sessionID)
		if err != nil {
			return err
		}
		view = SessionView{Session: session, Participations: participations}
		for _, problem := range problems {
			view.Problems = append(view.Problems, problem.ProblemID)
		}
		return nil
	})
	return view, err
}

// FindOpen returns sessions that accept participants.
func (m *SessionManager) FindOpen(ctx context.Context, limit int) ([]models.Session, error) {
	return m.core.Sessions.FindByState(ctx, models.FormingSession, limit)
}
