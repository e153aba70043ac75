package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/udovin/duel/internal/managers"
	"github.com/udovin/duel/internal/models"
)

// registerSessionHandlers registers handlers for session management.
func (v *View) registerSessionHandlers(g *echo.Group) {
	g.GET("/v0/sessions", v.observeSessions)
	g.POST(
		"/v0/sessions", v.createSession,
		v.extractAuth(v.participantAuth),
	)
	g.GET("/v0/sessions/:session", v.observeSession)
	g.POST(
		"/v0/sessions/:session/join", v.joinSession,
		v.extractAuth(v.participantAuth),
	)
	g.POST(
		"/v0/sessions/:session/leave", v.leaveSession,
		v.extractAuth(v.participantAuth),
	)
	g.POST(
		"/v0/sessions/:session/ready", v.readySession,
		v.extractAuth(v.participantAuth),
	)
	g.POST(
		"/v0/sessions/:session/start", v.startSession,
		v.extractAuth(v.participantAuth),
	)
	g.POST(
		"/v0/sessions/:session/end", v.endSession,
		v.extractAuth(v.participantAuth),
	)
	g.POST(
		"/v0/sessions/:session/cancel", v.cancelSession,
		v.extractAuth(v.participantAuth),
	)
	g.POST(
		"/v0/sessions/:session/problems", v.createSessionProblem,
		v.extractAuth(v.participantAuth),
	)
	g.DELETE(
		"/v0/sessions/:session/problems/:problem", v.deleteSessionProblem,
		v.extractAuth(v.participantAuth),
	)
}

// Participation represents participant of session.
type Participation struct {
	ParticipantID  int64 `json:"participant_id"`
	IsReady        bool  `json:"is_ready"`
	ProblemsSolved int64 `json:"problems_solved"`
	TotalTime      int64 `json:"total_time"`
	Score          int64 `json:"score,omitempty"`
	RatingChange   int64 `json:"rating_change,omitempty"`
	FinalRank      int64 `json:"final_rank,omitempty"`
}

// Session represents session.
type Session struct {
	ID             string              `json:"id"`
	Title          string              `json:"title"`
	CreatorID      int64               `json:"creator_id,omitempty"`
	Capacity       int64               `json:"capacity,omitempty"`
	Private        bool                `json:"private,omitempty"`
	Duration       int64               `json:"duration"`
	TournamentID   string              `json:"tournament_id,omitempty"`
	State          models.SessionState `json:"state"`
	EndReason      models.EndReason    `json:"end_reason,omitempty"`
	StartTime      int64               `json:"start_time,omitempty"`
	EndTime        int64               `json:"end_time,omitempty"`
	CreateTime     int64               `json:"create_time"`
	Participations []Participation     `json:"participations,omitempty"`
	Problems       []int64             `json:"problems,omitempty"`
}

// Sessions represents sessions response.
type Sessions struct {
	Sessions []Session `json:"sessions"`
}

func makeSession(session models.Session) Session {
	return Session{
		ID:           session.ID,
		Title:        session.Title,
		CreatorID:    session.CreatorID,
		Capacity:     session.Capacity,
		Private:      session.Private,
		Duration:     session.Duration,
		TournamentID: string(session.TournamentID),
		State:        session.State,
		EndReason:    session.EndReason,
		StartTime:    int64(session.StartTime),
		EndTime:      int64(session.EndTime),
		CreateTime:   session.CreateTime,
	}
}

func makeSessionView(view managers.SessionView) Session {
	resp := makeSession(view.Session)
	for _, participation := range view.Participations {
		resp.Participations = append(resp.Participations, Participation{
			ParticipantID:  participation.ParticipantID,
			IsReady:        participation.IsReady,
			ProblemsSolved: participation.ProblemsSolved,
			TotalTime:      participation.TotalTime,
			Score:          participation.Score,
			RatingChange:   participation.RatingChange,
			FinalRank:      int64(participation.FinalRank),
		})
	}
	// Problems are hidden until session is started.
	if view.Session.StartTime != 0 {
		resp.Problems = view.Problems
	}
	return resp
}

func (v *View) observeSessions(c echo.Context) error {
	var filter listFilter
	if err := filter.Parse(c); err != nil {
		c.Logger().Warn(err)
		return err
	}
	sessions, err := v.sessions.FindOpen(getContext(c), filter.Limit)
	if err != nil {
		return err
	}
	resp := Sessions{Sessions: []Session{}}
	for _, session := range sessions {
		if session.Private {
			continue
		}
		resp.Sessions = append(resp.Sessions, makeSession(session))
	}
	return c.JSON(http.StatusOK, resp)
}

func (v *View) observeSession(c echo.Context) error {
	view, err := v.sessions.Observe(getContext(c), c.Param("session"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, makeSessionView(view))
}

func (v *View) createSession(c echo.Context) error {
	participantID, err := getParticipantID(c)
	if err != nil {
		return err
	}
	var form managers.CreateSessionForm
	if err := bindForm(c, &form); err != nil {
		return err
	}
	session, err := v.sessions.Create(getContext(c), participantID, form)
	if err != nil {
		return err
	}
	return v.respondSession(c, http.StatusCreated, session.ID)
}

// respondSession writes current state of session.
func (v *View) respondSession(c echo.Context, status int, sessionID string) error {
	view, err := v.sessions.Observe(getContext(c), sessionID)
	if err != nil {
		return err
	}
	return c.JSON(status, makeSessionView(view))
}

type joinSessionForm struct {
	AccessCode string `json:"access_code"`
}

func (v *View) joinSession(c echo.Context) error {
	participantID, err := getParticipantID(c)
	if err != nil {
		return err
	}
	var form joinSessionForm
	if err := bindForm(c, &form); err != nil {
		return err
	}
	sessionID := c.Param("session")
	if err := v.sessions.Join(getContext(c), sessionID, participantID, form.AccessCode); err != nil {
		return err
	}
	return v.respondSession(c, http.StatusOK, sessionID)
}

func (v *View) leaveSession(c echo.Context) error {
	participantID, err := getParticipantID(c)
	if err != nil {
		return err
	}
	sessionID := c.Param("session")
	if err := v.sessions.Leave(getContext(c), sessionID, participantID); err != nil {
		return err
	}
	return v.respondSession(c, http.StatusOK, sessionID)
}

type readySessionForm struct {
	Ready *bool `json:"ready"`
}

func (v *View) readySession(c echo.Context) error {
	participantID, err := getParticipantID(c)
	if err != nil {
		return err
	}
	var form readySessionForm
	if err := bindForm(c, &form); err != nil {
		return err
	}
	ready := form.Ready == nil || *form.Ready
	sessionID := c.Param("session")
	if _, err := v.sessions.MarkReady(getContext(c), sessionID, participantID, ready); err != nil {
		return err
	}
	return v.respondSession(c, http.StatusOK, sessionID)
}

func (v *View) startSession(c echo.Context) error {
	participantID, err := getParticipantID(c)
	if err != nil {
		return err
	}
	sessionID := c.Param("session")
	if err := v.sessions.Start(getContext(c), sessionID, participantID); err != nil {
		return err
	}
	return v.respondSession(c, http.StatusOK, sessionID)
}

func (v *View) endSession(c echo.Context) error {
	participantID, err := getParticipantID(c)
	if err != nil {
		return err
	}
	sessionID := c.Param("session")
	if _, err := v.sessions.Stop(getContext(c), sessionID, participantID); err != nil {
		return err
	}
	return v.respondSession(c, http.StatusOK, sessionID)
}

func (v *View) cancelSession(c echo.Context) error {
	participantID, err := getParticipantID(c)
	if err != nil {
		return err
	}
	sessionID := c.Param("session")
	if err := v.sessions.Cancel(getContext(c), sessionID, participantID); err != nil {
		return err
	}
	return v.respondSession(c, http.StatusOK, sessionID)
}

type sessionProblemForm struct {
	ProblemID int64 `json:"problem_id"`
}

func (v *View) createSessionProblem(c echo.Context) error {
	participantID, err := getParticipantID(c)
	if err != nil {
		return err
	}
	var form sessionProblemForm
	if err := bindForm(c, &form); err != nil {
		return err
	}
	if form.ProblemID <= 0 {
		return errorResponse{
			Code:    http.StatusBadRequest,
			Message: "Form has invalid fields.",
			InvalidFields: errorFields{
				"problem_id": {Message: "Problem is not specified."},
			},
		}
	}
	sessionID := c.Param("session")
	if err := v.sessions.AddProblem(
		getContext(c), sessionID, participantID, form.ProblemID,
	); err != nil {
		return err
	}
	return c.NoContent(http.StatusCreated)
}

func (v *View) deleteSessionProblem(c echo.Context) error {
	participantID, err := getParticipantID(c)
	if err != nil {
		return err
	}
	problemID, err := parseIDParam(c, "problem")
	if err != nil {
		return err
	}
	if err := v.sessions.RemoveProblem(
		getContext(c), c.Param("session"), participantID, problemID,
	); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
