package managers

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/udovin/duel/internal/core"
	"github.com/udovin/duel/internal/events"
	"github.com/udovin/duel/internal/judge"
	"github.com/udovin/duel/internal/models"
	"github.com/udovin/duel/internal/pkg/cache"
	"github.com/udovin/duel/internal/pkg/logs"
	"github.com/udovin/duel/internal/storage"
)

// SubmissionManager accepts judged submissions and credits first accepts.
type SubmissionManager struct {
	core     *core.Core
	sessions *SessionManager
	problems *cache.Manager[int64, judgeProblem]
}

// problemCacheLimit limits amount of problems cached for judging.
const problemCacheLimit = 256

// judgeProblem represents problem with decoded test cases.
type judgeProblem struct {
	Problem   models.Problem
	TestCases []models.TestCase
}

// NewSubmissionManager creates a new instance of SubmissionManager.
func NewSubmissionManager(core *core.Core, sessions *SessionManager) *SubmissionManager {
	m := SubmissionManager{core: core, sessions: sessions}
	m.problems = cache.NewManager[int64, judgeProblem](
		cache.StorageFunc[int64, judgeProblem](m.loadProblem), problemCacheLimit,
	)
	return &m
}

// loadProblem loads problem and its test cases.
//
// Problems are never updated so they can be cached.
func (m *SubmissionManager) loadProblem(ctx context.Context, id int64) (judgeProblem, error) {
	problem, err := m.core.Problems.Get(ctx, id)
	if err != nil {
		return judgeProblem{}, err
	}
	testCases, err := problem.ScanTestCases()
	if err != nil {
		return judgeProblem{}, err
	}
	return judgeProblem{Problem: problem, TestCases: testCases}, nil
}

// SubmitForm represents judged submission of participant.
type SubmitForm struct {
	SessionID string              `json:"session_id"`
	ProblemID int64               `json:"problem_id"`
	Code      string              `json:"code"`
	Language  string              `json:"language"`
	Tests     []models.TestResult `json:"tests"`
}

func (f SubmitForm) validate() error {
	fields := map[string]string{}
	if f.SessionID == "" {
		fields["session_id"] = "Session is not specified."
	}
	if f.ProblemID <= 0 {
		fields["problem_id"] = "Problem is not specified."
	}
	if f.Language == "" {
		fields["language"] = "Language is not specified."
	}
	if len(fields) > 0 {
		return invalidFormError(fields)
	}
	return nil
}

// SubmitResult represents outcome of submission.
type SubmitResult struct {
	Submission models.Submission
	// Credited is true when submission was first accept of problem.
	Credited bool
	// Ended is true when submission ended session.
	Ended          bool
	ProblemsSolved int64
}

// SubmissionPayload represents payload of submission_result event.
type SubmissionPayload struct {
	SubmissionID   int64          `json:"submission_id"`
	ParticipantID  int64          `json:"participant_id"`
	ProblemID      int64          `json:"problem_id"`
	Verdict        models.Verdict `json:"verdict"`
	Credited       bool           `json:"credited"`
	ProblemsSolved int64          `json:"problems_solved"`
}

// checkActive checks that participant can submit into session.
//
// Locked session row serializes credit with concurrent end of session.
func (m *SubmissionManager) checkActive(
	ctx context.Context, sessionID string, participantID int64, lock bool,
) (models.Session, models.Participation, error) {
	session, err := m.sessions.getSession(ctx, sessionID, lock)
	if err != nil {
		return models.Session{}, models.Participation{}, err
	}
	participation, err := m.sessions.getParticipation(ctx, sessionID, participantID)
	if err != nil {
		return models.Session{}, models.Participation{}, err
	}
	if session.State != models.ActiveSession {
		return models.Session{}, models.Participation{}, stateConflictError(SessionNotActive, "Session is not active.")
	}
	return session, participation, nil
}

// Submit records submission and credits first accept of problem.
func (m *SubmissionManager) Submit(
	ctx context.Context, participantID int64, form SubmitForm,
) (SubmitResult, error) {
	if err := form.validate(); err != nil {
		return SubmitResult{}, err
	}
	if _, _, err := m.checkActive(ctx, form.SessionID, participantID, false); err != nil {
		return SubmitResult{}, err
	}
	codeKey, err := m.archiveCode(ctx, participantID, form)
	if err != nil {
		return SubmitResult{}, err
	}
	var result SubmitResult
	if err := runTx(m.core, ctx, func(ctx context.Context, queue *eventQueue) error {
		result = SubmitResult{}
		session, participation, err := m.checkActive(ctx, form.SessionID, participantID, true)
		if err != nil {
			return err
		}
		problems, err := m.core.SessionProblems.FindBySession(ctx, session.ID)
		if err != nil {
			return err
		}
		if !hasProblem(problems, form.ProblemID) {
			return invalidFormError(map[string]string{
				"problem_id": "Problem is not assigned to session.",
			})
		}
		now := m.core.Now()
		submission := models.Submission{
			SessionID:     session.ID,
			ParticipantID: participantID,
			ProblemID:     form.ProblemID,
			Language:      form.Language,
			CodeKey:       codeKey,
			Verdict:       models.DeriveVerdict(form.Tests),
			CreateTime:    now.Unix(),
		}
		if err := submission.SetTests(form.Tests); err != nil {
			return err
		}
		if err := m.core.Submissions.Create(ctx, &submission); err != nil {
			return err
		}
		if err := m.updateStreak(ctx, participantID, now); err != nil {
			return err
		}
		result.Submission = submission
		result.ProblemsSolved = participation.ProblemsSolved
		solved := false
		if submission.Verdict == models.Accepted {
			result.Credited, solved, err = m.credit(ctx, session, participation, submission, len(problems))
			if err != nil {
				return err
			}
			if result.Credited {
				result.ProblemsSolved++
			}
		}
		queue.add(session.ID, events.SubmissionResult, SubmissionPayload{
			SubmissionID:   submission.ID,
			ParticipantID:  participantID,
			ProblemID:      submission.ProblemID,
			Verdict:        submission.Verdict,
			Credited:       result.Credited,
			ProblemsSolved: result.ProblemsSolved,
		})
		if solved {
			result.Ended, err = m.sessions.End(ctx, session.ID, models.SolvedEnd)
			if err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return SubmitResult{}, err
	}
	return result, nil
}

// credit records first accept and returns true when participant
// satisfied win condition of session.
func (m *SubmissionManager) credit(
	ctx context.Context, session models.Session, participation models.Participation,
	submission models.Submission, problems int,
) (bool, bool, error) {
	ok, err := m.core.Accepts.Create(ctx, models.Accept{
		SessionID:     session.ID,
		ParticipantID: participation.ParticipantID,
		ProblemID:     submission.ProblemID,
		SubmissionID:  submission.ID,
		CreateTime:    submission.CreateTime,
	})
	if err != nil || !ok {
		return false, false, err
	}
	elapsed := submission.CreateTime - int64(session.StartTime)
	if err := m.core.Participations.Credit(ctx, participation.ID, elapsed); err != nil {
		return false, false, err
	}
	if err := m.core.Profiles.AddSolved(ctx, participation.ParticipantID); err != nil {
		return false, false, err
	}
	if problems == 1 {
		accepts, err := m.core.Accepts.CountByProblem(ctx, session.ID, submission.ProblemID)
		if err != nil {
			return false, false, err
		}
		return true, accepts == 1, nil
	}
	accepted, err := m.core.Accepts.CountByParticipant(ctx, session.ID, participation.ParticipantID)
	if err != nil {
		return false, false, err
	}
	return true, accepted >= int64(problems), nil
}

func hasProblem(problems []models.SessionProblem, problemID int64) bool {
	for _, problem := range problems {
		if problem.ProblemID == problemID {
			return true
		}
	}
	return false
}

func utcDay(t int64) int64 {
	return time.Unix(t, 0).UTC().Truncate(24*time.Hour).Unix() / (24 * 60 * 60)
}

// nextStreak returns streak after submission at specified time.
func nextStreak(streak, lastSubmitTime int64, now time.Time) int64 {
	if lastSubmitTime == 0 || streak == 0 {
		return 1
	}
	switch utcDay(now.Unix()) - utcDay(lastSubmitTime) {
	case 0:
		return streak
	case 1:
		return streak + 1
	default:
		return 1
	}
}

func (m *SubmissionManager) updateStreak(ctx context.Context, participantID int64, now time.Time) error {
	if err := m.core.Profiles.Ensure(ctx, participantID); err != nil {
		return err
	}
	profile, err := m.core.Profiles.Get(ctx, participantID)
	if err != nil {
		return err
	}
	streak := nextStreak(profile.Streak, profile.LastSubmitTime, now)
	return m.core.Profiles.SetStreak(ctx, participantID, streak, now.Unix())
}

func (m *SubmissionManager) archiveCode(
	ctx context.Context, participantID int64, form SubmitForm,
) (string, error) {
	if m.core.CodeStorage == nil || form.Code == "" {
		return "", nil
	}
	key := storage.SubmissionKey(form.SessionID, participantID, uuid.NewString())
	if err := m.core.CodeStorage.Put(ctx, key, []byte(form.Code)); err != nil {
		return "", externalServiceError(StorageUnavailable, "Cannot archive code.", err)
	}
	return key, nil
}

// JudgeForm represents submission of code that should be judged.
type JudgeForm struct {
	SessionID string `json:"session_id"`
	ProblemID int64  `json:"problem_id"`
	Code      string `json:"code"`
	Language  string `json:"language"`
}

// Judge runs code through judge service and submits result.
func (m *SubmissionManager) Judge(
	ctx context.Context, participantID int64, form JudgeForm,
) (SubmitResult, error) {
	submitForm := SubmitForm{
		SessionID: form.SessionID,
		ProblemID: form.ProblemID,
		Code:      form.Code,
		Language:  form.Language,
	}
	if err := submitForm.validate(); err != nil {
		return SubmitResult{}, err
	}
	if m.core.Judge == nil {
		return SubmitResult{}, externalServiceError(JudgeUnavailable, "Judge is not configured.", nil)
	}
	if _, _, err := m.checkActive(ctx, form.SessionID, participantID, false); err != nil {
		return SubmitResult{}, err
	}
	problems, err := m.core.SessionProblems.FindBySession(ctx, form.SessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	if !hasProblem(problems, form.ProblemID) {
		return SubmitResult{}, invalidFormError(map[string]string{
			"problem_id": "Problem is not assigned to session.",
		})
	}
	problem, err := m.problems.Load(ctx, form.ProblemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SubmitResult{}, notFoundError("Problem not found.")
		}
		return SubmitResult{}, err
	}
	tests, err := m.core.Judge.Judge(ctx, judge.Request{
		Code:        form.Code,
		Language:    form.Language,
		TestCases:   problem.TestCases,
		TimeLimit:   problem.Problem.TimeLimit,
		MemoryLimit: problem.Problem.MemoryLimit,
	})
	if err != nil {
		m.core.Logger().Warn(
			"Cannot judge submission",
			logs.Any("session_id", form.SessionID),
			logs.Any("problem_id", form.ProblemID),
			err,
		)
		return SubmitResult{}, externalServiceError(JudgeUnavailable, "Judge is unavailable.", err)
	}
	submitForm.Tests = tests
	return m.Submit(ctx, participantID, submitForm)
}

// SubmissionCode returns archived code of submission.
//
// Author can always read own code. Other participants of session can
// read it only after session is finished.
func (m *SubmissionManager) SubmissionCode(
	ctx context.Context, sessionID string, submissionID int64, participantID int64,
) ([]byte, error) {
	session, err := m.sessions.getSession(ctx, sessionID, false)
	if err != nil {
		return nil, err
	}
	submission, err := m.core.Submissions.Get(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundError("Submission not found.")
		}
		return nil, err
	}
	if submission.SessionID != sessionID {
		return nil, notFoundError("Submission not found.")
	}
	if submission.ParticipantID != participantID {
		if _, err := m.sessions.getParticipation(ctx, sessionID, participantID); err != nil {
			return nil, err
		}
		if session.State != models.EndedSession && session.State != models.CancelledSession {
			return nil, permissionError(AccessDenied, "Code is hidden until session is finished.")
		}
	}
	if submission.CodeKey == "" {
		return nil, notFoundError("Submission has no archived code.")
	}
	if m.core.CodeStorage == nil {
		return nil, externalServiceError(StorageUnavailable, "Code storage is not configured.", nil)
	}
	code, err := m.core.CodeStorage.Get(ctx, submission.CodeKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFoundError("Submission has no archived code.")
		}
		return nil, externalServiceError(StorageUnavailable, "Cannot read code.", err)
	}
	return code, nil
}

// FindSubmissions returns submissions of session.
func (m *SubmissionManager) FindSubmissions(ctx context.Context, sessionID string) ([]models.Submission, error) {
	if _, err := m.sessions.getSession(ctx, sessionID, false); err != nil {
		return nil, err
	}
	return m.core.Submissions.FindBySession(ctx, sessionID)
}
