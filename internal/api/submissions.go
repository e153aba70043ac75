package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/udovin/duel/internal/managers"
	"github.com/udovin/duel/internal/models"
)

// registerSubmissionHandlers registers handlers for submissions.
func (v *View) registerSubmissionHandlers(g *echo.Group) {
	g.GET("/v0/sessions/:session/submissions", v.observeSubmissions)
	g.POST(
		"/v0/sessions/:session/submissions", v.submitSolution,
		v.extractAuth(v.participantAuth),
	)
	g.POST(
		"/v0/sessions/:session/judge", v.judgeSolution,
		v.extractAuth(v.participantAuth),
	)
	g.GET(
		"/v0/sessions/:session/submissions/:submission/code", v.observeSubmissionCode,
		v.extractAuth(v.participantAuth),
	)
}

// Submission represents judged submission.
type Submission struct {
	ID            int64               `json:"id"`
	SessionID     string              `json:"session_id"`
	ParticipantID int64               `json:"participant_id"`
	ProblemID     int64               `json:"problem_id"`
	Language      string              `json:"language"`
	Verdict       models.Verdict      `json:"verdict"`
	Tests         []models.TestResult `json:"tests,omitempty"`
	CreateTime    int64               `json:"create_time"`
}

// Submissions represents submissions response.
type Submissions struct {
	Submissions []Submission `json:"submissions"`
}

// SubmitResult represents outcome of submission.
type SubmitResult struct {
	Submission     Submission `json:"submission"`
	Credited       bool       `json:"credited"`
	Ended          bool       `json:"ended"`
	ProblemsSolved int64      `json:"problems_solved"`
}

func makeSubmission(c echo.Context, submission models.Submission, withTests bool) Submission {
	resp := Submission{
		ID:            submission.ID,
		SessionID:     submission.SessionID,
		ParticipantID: submission.ParticipantID,
		ProblemID:     submission.ProblemID,
		Language:      submission.Language,
		Verdict:       submission.Verdict,
		CreateTime:    submission.CreateTime,
	}
	if withTests {
		tests, err := submission.ScanTests()
		if err != nil {
			c.Logger().Warn("Cannot scan tests of submission", err)
		}
		resp.Tests = tests
	}
	return resp
}

func makeSubmitResult(c echo.Context, result managers.SubmitResult) SubmitResult {
	return SubmitResult{
		Submission:     makeSubmission(c, result.Submission, true),
		Credited:       result.Credited,
		Ended:          result.Ended,
		ProblemsSolved: result.ProblemsSolved,
	}
}

func (v *View) observeSubmissions(c echo.Context) error {
	submissions, err := v.submissions.FindSubmissions(getContext(c), c.Param("session"))
	if err != nil {
		return err
	}
	resp := Submissions{Submissions: []Submission{}}
	for _, submission := range submissions {
		resp.Submissions = append(resp.Submissions, makeSubmission(c, submission, false))
	}
	return c.JSON(http.StatusOK, resp)
}

func (v *View) submitSolution(c echo.Context) error {
	participantID, err := getParticipantID(c)
	if err != nil {
		return err
	}
	var form managers.SubmitForm
	if err := bindForm(c, &form); err != nil {
		return err
	}
	form.SessionID = c.Param("session")
	result, err := v.submissions.Submit(getContext(c), participantID, form)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, makeSubmitResult(c, result))
}

func (v *View) judgeSolution(c echo.Context) error {
	participantID, err := getParticipantID(c)
	if err != nil {
		return err
	}
	var form managers.JudgeForm
	if err := bindForm(c, &form); err != nil {
		return err
	}
	form.SessionID = c.Param("session")
	result, err := v.submissions.Judge(getContext(c), participantID, form)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, makeSubmitResult(c, result))
}

func (v *View) observeSubmissionCode(c echo.Context) error {
	participantID, err := getParticipantID(c)
	if err != nil {
		return err
	}
	submissionID, err := parseIDParam(c, "submission")
	if err != nil {
		return err
	}
	code, err := v.submissions.SubmissionCode(
		getContext(c), c.Param("session"), submissionID, participantID,
	)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, echo.MIMETextPlainCharsetUTF8, code)
}
