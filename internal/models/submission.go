package models

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/udovin/duel/internal/db"
)

// Verdict represents overall outcome of submission.
//
// Lower values have higher precedence.
type Verdict int

const (
	CompilationError    Verdict = 1
	RuntimeError        Verdict = 2
	TimeLimitExceeded   Verdict = 3
	MemoryLimitExceeded Verdict = 4
	WrongAnswer         Verdict = 5
	Accepted            Verdict = 6
)

// String returns string representation.
func (v Verdict) String() string {
	switch v {
	case CompilationError:
		return "compilation_error"
	case RuntimeError:
		return "runtime_error"
	case TimeLimitExceeded:
		return "time_limit_exceeded"
	case MemoryLimitExceeded:
		return "memory_limit_exceeded"
	case WrongAnswer:
		return "wrong_answer"
	case Accepted:
		return "accepted"
	default:
		return fmt.Sprintf("Verdict(%d)", v)
	}
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Verdict) UnmarshalText(data []byte) error {
	switch s := string(data); s {
	case "compilation_error":
		*v = CompilationError
	case "runtime_error":
		*v = RuntimeError
	case "time_limit_exceeded":
		*v = TimeLimitExceeded
	case "memory_limit_exceeded":
		*v = MemoryLimitExceeded
	case "wrong_answer":
		*v = WrongAnswer
	case "accepted":
		*v = Accepted
	default:
		return fmt.Errorf("unsupported verdict: %q", s)
	}
	return nil
}

// TestResult represents result of single test case reported by judge.
type TestResult struct {
	Output   string `json:"output,omitempty"`
	Expected string `json:"expected,omitempty"`
	Match    bool   `json:"match"`
	// Status contains verdict of test case, empty status means
	// that solution finished successfully.
	Status Verdict `json:"status,omitempty"`
	// Time contains execution time in milliseconds.
	Time int64 `json:"time,omitempty"`
	// Memory contains used memory in kibibytes.
	Memory int64 `json:"memory,omitempty"`
}

// Verdict returns verdict of single test case.
func (r TestResult) Verdict() Verdict {
	if r.Status != 0 && r.Status != Accepted {
		return r.Status
	}
	if !r.Match {
		return WrongAnswer
	}
	return Accepted
}

// DeriveVerdict returns verdict with highest precedence across tests.
//
// Submission without tests is never accepted.
func DeriveVerdict(tests []TestResult) Verdict {
	if len(tests) == 0 {
		return WrongAnswer
	}
	verdict := Accepted
	for _, test := range tests {
		if v := test.Verdict(); v < verdict {
			verdict = v
		}
	}
	return verdict
}

// Submission represents immutable audit record of judged submission.
type Submission struct {
	ID            int64   `db:"id"`
	SessionID     string  `db:"session_id"`
	ParticipantID int64   `db:"participant_id"`
	ProblemID     int64   `db:"problem_id"`
	Language      string  `db:"language"`
	CodeKey       string  `db:"code_key"`
	Verdict       Verdict `db:"verdict"`
	Tests         JSON    `db:"tests"`
	CreateTime    int64   `db:"create_time"`
}

// ScanTests returns per-test results of submission.
func (o Submission) ScanTests() ([]TestResult, error) {
	var tests []TestResult
	if len(o.Tests) == 0 {
		return nil, nil
	}
	err := json.Unmarshal(o.Tests, &tests)
	return tests, err
}

// SetTests sets per-test results of submission.
func (o *Submission) SetTests(tests []TestResult) error {
	raw, err := json.Marshal(tests)
	if err != nil {
		return err
	}
	o.Tests = raw
	return nil
}

// SubmissionStore represents append-only store of submissions.
type SubmissionStore struct {
	baseStore[Submission]
}

// NewSubmissionStore creates a new instance of SubmissionStore.
func NewSubmissionStore(conn *db.DB, table string) *SubmissionStore {
	return &SubmissionStore{baseStore[Submission]{db: conn, table: table}}
}

// Create appends submission.
func (s *SubmissionStore) Create(ctx context.Context, submission *Submission) error {
	return db.InsertRow(ctx, s.db, *submission, &submission.ID, "id", s.table)
}

// Get returns submission by ID.
func (s *SubmissionStore) Get(ctx context.Context, id int64) (Submission, error) {
	return s.findOne(ctx, `"id" = ?`, id)
}

// FindBySession returns submissions of session in order of arrival.
func (s *SubmissionStore) FindBySession(ctx context.Context, sessionID string) ([]Submission, error) {
	return s.findAll(ctx, `"session_id" = ? ORDER BY "id"`, sessionID)
}

// SubmissionStats contains amounts of submissions of participant.
type SubmissionStats struct {
	Total     int64
	Incorrect int64
}

// Accuracy returns share of correct submissions, 1 without submissions.
func (s SubmissionStats) Accuracy() float64 {
	if s.Total == 0 {
		return 1
	}
	accuracy := 1 - float64(s.Incorrect)/float64(s.Total)
	if accuracy < 0 {
		return 0
	}
	return accuracy
}

// GetStats returns submission stats of participant in session.
func (s *SubmissionStore) GetStats(
	ctx context.Context, sessionID string, participantID int64,
) (SubmissionStats, error) {
	total, err := s.count(ctx, `"session_id" = ? AND "participant_id" = ?`, sessionID, participantID)
	if err != nil {
		return SubmissionStats{}, err
	}
	incorrect, err := s.count(
		ctx, `"session_id" = ? AND "participant_id" = ? AND "verdict" <> ?`,
		sessionID, participantID, Accepted,
	)
	if err != nil {
		return SubmissionStats{}, err
	}
	return SubmissionStats{Total: total, Incorrect: incorrect}, nil
}

// Accept represents first accepted submission of problem by participant.
type Accept struct {
	SessionID     string `db:"session_id"`
	ParticipantID int64  `db:"participant_id"`
	ProblemID     int64  `db:"problem_id"`
	SubmissionID  int64  `db:"submission_id"`
	CreateTime    int64  `db:"create_time"`
}

// AcceptStore represents store of first accepts.
//
// Table has unique key on (session_id, participant_id, problem_id).
type AcceptStore struct {
	baseStore[Accept]
}

// NewAcceptStore creates a new instance of AcceptStore.
func NewAcceptStore(conn *db.DB, table string) *AcceptStore {
	return &AcceptStore{baseStore[Accept]{db: conn, table: table}}
}

// Create records accept and returns false if it was already recorded.
func (s *AcceptStore) Create(ctx context.Context, accept Accept) (bool, error) {
	return s.insertIgnore(
		ctx, db.Columns[Accept](),
		accept.SessionID, accept.ParticipantID, accept.ProblemID,
		accept.SubmissionID, accept.CreateTime,
	)
}

// CountByProblem returns amount of participants that accepted problem.
func (s *AcceptStore) CountByProblem(ctx context.Context, sessionID string, problemID int64) (int64, error) {
	return s.count(ctx, `"session_id" = ? AND "problem_id" = ?`, sessionID, problemID)
}

// CountByParticipant returns amount of problems accepted by participant.
func (s *AcceptStore) CountByParticipant(ctx context.Context, sessionID string, participantID int64) (int64, error) {
	return s.count(ctx, `"session_id" = ? AND "participant_id" = ?`, sessionID, participantID)
}
