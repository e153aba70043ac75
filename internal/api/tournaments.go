package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/udovin/duel/internal/managers"
	"github.com/udovin/duel/internal/models"
)

// registerTournamentHandlers registers handlers for tournament management.
func (v *View) registerTournamentHandlers(g *echo.Group) {
	g.GET("/v0/tournaments", v.observeTournaments)
	g.POST(
		"/v0/tournaments", v.createTournament,
		v.extractAuth(v.participantAuth),
	)
	g.GET("/v0/tournaments/:tournament", v.observeTournament)
	g.POST(
		"/v0/tournaments/:tournament/register", v.registerTournament,
		v.extractAuth(v.participantAuth),
	)
	g.POST(
		"/v0/tournaments/:tournament/unregister", v.unregisterTournament,
		v.extractAuth(v.participantAuth),
	)
	g.POST(
		"/v0/tournaments/:tournament/problems", v.createTournamentProblem,
		v.extractAuth(v.participantAuth),
	)
	g.DELETE(
		"/v0/tournaments/:tournament/problems/:problem", v.deleteTournamentProblem,
		v.extractAuth(v.participantAuth),
	)
	g.POST(
		"/v0/tournaments/:tournament/start", v.startTournament,
		v.extractAuth(v.participantAuth),
	)
	g.POST(
		"/v0/tournaments/:tournament/advance", v.advanceTournament,
		v.extractAuth(v.participantAuth),
	)
	g.POST(
		"/v0/tournaments/:tournament/finalize", v.finalizeTournament,
		v.extractAuth(v.participantAuth),
	)
	g.POST(
		"/v0/tournaments/:tournament/cancel", v.cancelTournament,
		v.extractAuth(v.participantAuth),
	)
	g.GET(
		"/v0/tournaments/:tournament/matches/:match/session",
		v.observeMatchSession,
	)
	g.POST(
		"/v0/tournaments/:tournament/matches/:match/outcome",
		v.recordMatchOutcome,
		v.extractAuth(v.participantAuth),
	)
	g.POST(
		"/v0/tournaments/:tournament/matches/:match/winner",
		v.setMatchWinner,
		v.extractAuth(v.participantAuth),
	)
}

// TournamentParticipant represents registered participant of tournament.
type TournamentParticipant struct {
	ParticipantID int64 `json:"participant_id"`
	FinalRank     int64 `json:"final_rank,omitempty"`
	RatingChange  int64 `json:"rating_change,omitempty"`
}

// Tournament represents tournament.
type Tournament struct {
	ID           string                  `json:"id"`
	Title        string                  `json:"title"`
	CreatorID    int64                   `json:"creator_id"`
	Capacity     int64                   `json:"capacity,omitempty"`
	Format       models.TournamentFormat `json:"format"`
	Status       models.TournamentStatus `json:"status"`
	CurrentRound int64                   `json:"current_round,omitempty"`
	TotalRounds  int64                   `json:"total_rounds,omitempty"`
	CreateTime   int64                   `json:"create_time"`
	StartTime    int64                   `json:"start_time,omitempty"`
	EndTime      int64                   `json:"end_time,omitempty"`
	Participants []TournamentParticipant `json:"participants,omitempty"`
	Matches      []models.Match          `json:"matches,omitempty"`
	Problems     []int64                 `json:"problems,omitempty"`
}

// Tournaments represents tournaments response.
type Tournaments struct {
	Tournaments []Tournament `json:"tournaments"`
}

func makeTournament(tournament models.Tournament) Tournament {
	return Tournament{
		ID:           tournament.ID,
		Title:        tournament.Title,
		CreatorID:    tournament.CreatorID,
		Capacity:     tournament.Capacity,
		Format:       tournament.Format,
		Status:       tournament.Status,
		CurrentRound: tournament.CurrentRound,
		TotalRounds:  tournament.TotalRounds,
		CreateTime:   tournament.CreateTime,
		StartTime:    int64(tournament.StartTime),
		EndTime:      int64(tournament.EndTime),
	}
}

func makeTournamentView(view managers.TournamentView) Tournament {
	resp := makeTournament(view.Tournament)
	for _, participant := range view.Participants {
		resp.Participants = append(resp.Participants, TournamentParticipant{
			ParticipantID: participant.ParticipantID,
			FinalRank:     int64(participant.FinalRank),
			RatingChange:  participant.RatingChange,
		})
	}
	resp.Matches = view.Matches
	resp.Problems = view.Problems
	return resp
}

func (v *View) observeTournaments(c echo.Context) error {
	var filter listFilter
	if err := filter.Parse(c); err != nil {
		c.Logger().Warn(err)
		return err
	}
	tournaments, err := v.tournaments.FindOpen(getContext(c), filter.Limit)
	if err != nil {
		return err
	}
	resp := Tournaments{Tournaments: []Tournament{}}
	for _, tournament := range tournaments {
		resp.Tournaments = append(resp.Tournaments, makeTournament(tournament))
	}
	return c.JSON(http.StatusOK, resp)
}

// respondTournament writes current state of tournament.
func (v *View) respondTournament(c echo.Context, status int, tournamentID string) error {
	view, err := v.tournaments.Observe(getContext(c), tournamentID)
	if err != nil {
		return err
	}
	return c.JSON(status, makeTournamentView(view))
}

func (v *View) observeTournament(c echo.Context) error {
	return v.respondTournament(c, http.StatusOK, c.Param("tournament"))
}

func (v *View) createTournament(c echo.Context) error {
	participantID, err := getParticipantID(c)
	if err != nil {
		return err
	}
	var form managers.CreateTournamentForm
	if err := bindForm(c, &form); err != nil {
		return err
	}
	tournament, err := v.tournaments.Create(getContext(c), participantID, form)
	if err != nil {
		return err
	}
	return v.respondTournament(c, http.StatusCreated, tournament.ID)
}

// tournamentAction represents operation of participant on tournament.
type tournamentAction func(v *View, c echo.Context, tournamentID string, participantID int64) error

func (v *View) runTournamentAction(c echo.Context, action tournamentAction) error {
	participantID, err := getParticipantID(c)
	if err != nil {
		return err
	}
	tournamentID := c.Param("tournament")
	if err := action(v, c, tournamentID, participantID); err != nil {
		return err
	}
	return v.respondTournament(c, http.StatusOK, tournamentID)
}

func (v *View) registerTournament(c echo.Context) error {
	return v.runTournamentAction(c, func(v *View, c echo.Context, id string, participantID int64) error {
		return v.tournaments.Register(getContext(c), id, participantID)
	})
}

func (v *View) unregisterTournament(c echo.Context) error {
	return v.runTournamentAction(c, func(v *View, c echo.Context, id string, participantID int64) error {
		return v.tournaments.Unregister(getContext(c), id, participantID)
	})
}

func (v *View) startTournament(c echo.Context) error {
	return v.runTournamentAction(c, func(v *View, c echo.Context, id string, participantID int64) error {
		return v.tournaments.Start(getContext(c), id, participantID)
	})
}

func (v *View) advanceTournament(c echo.Context) error {
	return v.runTournamentAction(c, func(v *View, c echo.Context, id string, participantID int64) error {
		return v.tournaments.AdvanceRound(getContext(c), id, participantID)
	})
}

func (v *View) finalizeTournament(c echo.Context) error {
	return v.runTournamentAction(c, func(v *View, c echo.Context, id string, participantID int64) error {
		return v.tournaments.Finalize(getContext(c), id, participantID)
	})
}

func (v *View) cancelTournament(c echo.Context) error {
	return v.runTournamentAction(c, func(v *View, c echo.Context, id string, participantID int64) error {
		return v.tournaments.Cancel(getContext(c), id, participantID)
	})
}

type tournamentProblemForm struct {
	ProblemID int64 `json:"problem_id"`
}

func (v *View) createTournamentProblem(c echo.Context) error {
	var form tournamentProblemForm
	if err := bindForm(c, &form); err != nil {
		return err
	}
	return v.runTournamentAction(c, func(v *View, c echo.Context, id string, participantID int64) error {
		return v.tournaments.AddProblem(getContext(c), id, participantID, form.ProblemID)
	})
}

func (v *View) deleteTournamentProblem(c echo.Context) error {
	problemID, err := parseIDParam(c, "problem")
	if err != nil {
		return err
	}
	return v.runTournamentAction(c, func(v *View, c echo.Context, id string, participantID int64) error {
		return v.tournaments.RemoveProblem(getContext(c), id, participantID, problemID)
	})
}

func (v *View) observeMatchSession(c echo.Context) error {
	matchID, err := parseIDParam(c, "match")
	if err != nil {
		return err
	}
	session, err := v.tournaments.MatchSession(getContext(c), c.Param("tournament"), matchID)
	if err != nil {
		return err
	}
	return v.respondSession(c, http.StatusOK, session.ID)
}

func (v *View) recordMatchOutcome(c echo.Context) error {
	if _, err := getParticipantID(c); err != nil {
		return err
	}
	matchID, err := parseIDParam(c, "match")
	if err != nil {
		return err
	}
	match, err := v.tournaments.RecordMatchOutcome(getContext(c), c.Param("tournament"), matchID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, match)
}

type matchWinnerForm struct {
	WinnerID int64 `json:"winner_id"`
}

func (v *View) setMatchWinner(c echo.Context) error {
	participantID, err := getParticipantID(c)
	if err != nil {
		return err
	}
	matchID, err := parseIDParam(c, "match")
	if err != nil {
		return err
	}
	var form matchWinnerForm
	if err := bindForm(c, &form); err != nil {
		return err
	}
	tournamentID := c.Param("tournament")
	if err := v.tournaments.SetWinner(
		getContext(c), tournamentID, matchID, participantID, form.WinnerID,
	); err != nil {
		return err
	}
	return v.respondTournament(c, http.StatusOK, tournamentID)
}
