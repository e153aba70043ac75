package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/udovin/duel/internal/models"
)

// registerLeaderboardHandlers registers handlers for leaderboard.
func (v *View) registerLeaderboardHandlers(g *echo.Group) {
	g.GET("/v0/leaderboard", v.observeLeaderboard)
	g.GET("/v0/profiles/:participant", v.observeProfile)
}

// Profile represents rating profile of participant.
type Profile struct {
	ParticipantID       int64 `json:"participant_id"`
	Rating              int64 `json:"rating"`
	ProblemsSolvedTotal int64 `json:"problems_solved_total"`
	Streak              int64 `json:"streak"`
	Rank                int64 `json:"rank,omitempty"`
}

// Leaderboard represents leaderboard response.
type Leaderboard struct {
	Profiles []Profile `json:"profiles"`
}

func makeProfile(profile models.Profile) Profile {
	return Profile{
		ParticipantID:       profile.ID,
		Rating:              profile.Rating,
		ProblemsSolvedTotal: profile.ProblemsSolvedTotal,
		Streak:              profile.Streak,
		Rank:                profile.Rank,
	}
}

func (v *View) observeLeaderboard(c echo.Context) error {
	var filter listFilter
	if err := filter.Parse(c); err != nil {
		c.Logger().Warn(err)
		return err
	}
	profiles, err := v.leaderboard.Top(getContext(c), filter.Limit, filter.Offset)
	if err != nil {
		return err
	}
	resp := Leaderboard{Profiles: []Profile{}}
	for _, profile := range profiles {
		resp.Profiles = append(resp.Profiles, makeProfile(profile))
	}
	return c.JSON(http.StatusOK, resp)
}

func (v *View) observeProfile(c echo.Context) error {
	participantID, err := parseIDParam(c, "participant")
	if err != nil {
		return err
	}
	profile, err := v.leaderboard.Profile(getContext(c), participantID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, makeProfile(profile))
}
