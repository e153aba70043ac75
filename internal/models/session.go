package models

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/udovin/duel/internal/db"
)

// SessionState represents lifecycle state of session.
type SessionState int

const (
	// FormingSession means that roster is open and not all participants are ready.
	FormingSession SessionState = 1
	// ReadySession means that all current participants are ready.
	ReadySession SessionState = 2
	// ActiveSession means that problems are assigned and clock is running.
	ActiveSession SessionState = 3
	// EndedSession is terminal state of started session.
	EndedSession SessionState = 4
	// CancelledSession is terminal state of session that was never started.
	CancelledSession SessionState = 5
)

// String returns string representation.
func (s SessionState) String() string {
	switch s {
	case FormingSession:
		return "forming"
	case ReadySession:
		return "ready_check_passed"
	case ActiveSession:
		return "active"
	case EndedSession:
		return "ended"
	case CancelledSession:
		return "cancelled"
	default:
		return fmt.Sprintf("SessionState(%d)", s)
	}
}

func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SessionState) UnmarshalText(data []byte) error {
	switch v := string(data); v {
	case "forming":
		*s = FormingSession
	case "ready_check_passed":
		*s = ReadySession
	case "active":
		*s = ActiveSession
	case "ended":
		*s = EndedSession
	case "cancelled":
		*s = CancelledSession
	default:
		return fmt.Errorf("unsupported state: %q", v)
	}
	return nil
}

// EndReason represents reason of session end.
type EndReason string

const (
	SolvedEnd  EndReason = "solved"
	TimeoutEnd EndReason = "timeout"
	ManualEnd  EndReason = "manual"
)

// Session represents one timed competitive match between participants.
type Session struct {
	ID    string `db:"id"`
	Title string `db:"title"`
	// CreatorID contains ID of participant that created session.
	//
	// Tournament sessions are created by system with zero ID.
	CreatorID int64 `db:"creator_id"`
	// Capacity contains roster capacity, zero means unlimited.
	Capacity       int64  `db:"capacity"`
	Private        bool   `db:"private"`
	AccessCodeHash string `db:"access_code_hash"`
	// Duration contains session duration in seconds.
	Duration     int64        `db:"duration"`
	TournamentID NString      `db:"tournament_id"`
	State        SessionState `db:"state"`
	EndReason    EndReason    `db:"end_reason"`
	StartTime    NInt64       `db:"start_time"`
	EndTime      NInt64       `db:"end_time"`
	CreateTime   int64        `db:"create_time"`
}

// IsFull returns true when roster is at capacity.
func (o Session) IsFull(participants int64) bool {
	return o.Capacity > 0 && participants >= o.Capacity
}

// Validate checks that timestamps are consistent with state.
func (o Session) Validate() error {
	started := o.State == ActiveSession || o.State == EndedSession
	if (o.StartTime != 0) != started {
		return fmt.Errorf("start time is inconsistent with state %q", o.State)
	}
	if (o.EndTime != 0) != (o.State == EndedSession) {
		return fmt.Errorf("end time is inconsistent with state %q", o.State)
	}
	return nil
}

// SessionStore represents store for sessions.
type SessionStore struct {
	baseStore[Session]
}

// NewSessionStore creates a new instance of SessionStore.
func NewSessionStore(conn *db.DB, table string) *SessionStore {
	return &SessionStore{baseStore[Session]{db: conn, table: table}}
}

// Create creates a new session and generates its ID.
func (s *SessionStore) Create(ctx context.Context, session *Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if err := session.Validate(); err != nil {
		return err
	}
	return db.InsertRowWithID(ctx, s.db, *session, s.table)
}

// Get returns session by ID.
func (s *SessionStore) Get(ctx context.Context, id string) (Session, error) {
	return s.findOne(ctx, `"id" = ?`, id)
}

// GetForUpdate returns session by ID and locks its row.
func (s *SessionStore) GetForUpdate(ctx context.Context, id string) (Session, error) {
	return s.findOneForUpdate(ctx, `"id" = ?`, id)
}

// FindByState returns sessions in specified state ordered by creation.
func (s *SessionStore) FindByState(ctx context.Context, state SessionState, limit int) ([]Session, error) {
	return s.findAll(ctx, `"state" = ? ORDER BY "create_time" DESC, "id" LIMIT ?`, state, limit)
}

// FindExpired returns active sessions with elapsed duration.
func (s *SessionStore) FindExpired(ctx context.Context, now int64) ([]Session, error) {
	return s.findAll(
		ctx, `"state" = ? AND "start_time" + "duration" <= ? ORDER BY "start_time"`,
		ActiveSession, now,
	)
}

// SetState atomically changes state of session if it is in one of
// expected states. Returns false when state was not changed.
func (s *SessionStore) SetState(
	ctx context.Context, id string, from SessionState, to SessionState,
) (bool, error) {
	count, err := s.db.Exec(
		ctx,
		fmt.Sprintf(`UPDATE %q SET "state" = ? WHERE "id" = ? AND "state" = ?`, s.table),
		to, id, from,
	)
	if err != nil {
		return false, err
	}
	return count == 1, nil
}

// Start atomically transitions session from ready_check_passed to active.
func (s *SessionStore) Start(ctx context.Context, id string, now int64) (bool, error) {
	count, err := s.db.Exec(
		ctx,
		fmt.Sprintf(
			`UPDATE %q SET "state" = ?, "start_time" = ? WHERE "id" = ? AND "state" = ?`,
			s.table,
		),
		ActiveSession, now, id, ReadySession,
	)
	if err != nil {
		return false, err
	}
	return count == 1, nil
}

// End atomically transitions session from active to ended.
//
// Only one of concurrent callers receives true.
func (s *SessionStore) End(
	ctx context.Context, id string, now int64, reason EndReason,
) (bool, error) {
	count, err := s.db.Exec(
		ctx,
		fmt.Sprintf(
			`UPDATE %q SET "state" = ?, "end_time" = ?, "end_reason" = ? WHERE "id" = ? AND "state" = ?`,
			s.table,
		),
		EndedSession, now, reason, id, ActiveSession,
	)
	if err != nil {
		return false, err
	}
	return count == 1, nil
}

// SessionProblem represents problem assigned to session.
type SessionProblem struct {
	ID        int64  `db:"id"`
	SessionID string `db:"session_id"`
	ProblemID int64  `db:"problem_id"`
	Position  int64  `db:"position"`
}

// SessionProblemStore represents store for session problems.
type SessionProblemStore struct {
	baseStore[SessionProblem]
}

// NewSessionProblemStore creates a new instance of SessionProblemStore.
func NewSessionProblemStore(conn *db.DB, table string) *SessionProblemStore {
	return &SessionProblemStore{baseStore[SessionProblem]{db: conn, table: table}}
}

// Create attaches problem to session.
func (s *SessionProblemStore) Create(ctx context.Context, problem *SessionProblem) error {
	return db.InsertRow(ctx, s.db, *problem, &problem.ID, "id", s.table)
}

// FindBySession returns problems of session ordered by position.
func (s *SessionProblemStore) FindBySession(ctx context.Context, sessionID string) ([]SessionProblem, error) {
	return s.findAll(ctx, `"session_id" = ? ORDER BY "position", "id"`, sessionID)
}

// Delete detaches problem from session.
func (s *SessionProblemStore) Delete(ctx context.Context, sessionID string, problemID int64) (bool, error) {
	count, err := s.db.Exec(
		ctx,
		fmt.Sprintf(`DELETE FROM %q WHERE "session_id" = ? AND "problem_id" = ?`, s.table),
		sessionID, problemID,
	)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
