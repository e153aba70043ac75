package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/udovin/duel/internal/models"
)

func TestTournamentSimpleScenario(t *testing.T) {
	e := NewTestEnv(t)
	defer e.Close()
	problem := e.CreateProblem(models.MediumProblem)
	rec := e.Request(http.MethodPost, "/api/v0/tournaments", 1, map[string]any{
		"title": "Cup",
	})
	e.Check(rec, http.StatusCreated, `{
		"title": "Cup",
		"creator_id": 1,
		"format": "single_elimination",
		"status": "registration"
	}`)
	var tournament Tournament
	e.Decode(rec, &tournament)
	tournamentPath := "/api/v0/tournaments/" + tournament.ID
	e.Check(
		e.Request(http.MethodGet, "/api/v0/tournaments", 0, nil),
		http.StatusOK, fmt.Sprintf(`{"tournaments": [{"id": %q}]}`, tournament.ID),
	)
	e.Check(
		e.Request(http.MethodPost, tournamentPath+"/register", 2, nil),
		http.StatusOK, `{"participants": [{"participant_id": 2}]}`,
	)
	e.Check(
		e.Request(http.MethodPost, tournamentPath+"/start", 1, nil),
		http.StatusConflict, `{"code": "INSUFFICIENT_PARTICIPANTS"}`,
	)
	e.Check(
		e.Request(http.MethodPost, tournamentPath+"/register", 3, nil),
		http.StatusOK, "",
	)
	e.Check(
		e.Request(http.MethodPost, tournamentPath+"/start", 1, nil),
		http.StatusConflict, `{"code": "NO_PROBLEMS_AVAILABLE"}`,
	)
	e.Check(
		e.Request(http.MethodPost, tournamentPath+"/problems", 1, map[string]any{
			"problem_id": problem.ID,
		}),
		http.StatusOK, fmt.Sprintf(`{"problems": [%d]}`, problem.ID),
	)
	e.Check(
		e.Request(http.MethodPost, tournamentPath+"/start", 2, nil),
		http.StatusForbidden, `{"code": "NOT_CREATOR"}`,
	)
	rec = e.Request(http.MethodPost, tournamentPath+"/start", 1, nil)
	e.Check(rec, http.StatusOK, `{
		"status": "in_progress",
		"current_round": 1,
		"total_rounds": 1,
		"matches": [{"round": 1, "number": 1, "status": "in_progress"}]
	}`)
	e.Decode(rec, &tournament)
	match := tournament.Matches[0]
	matchPath := fmt.Sprintf("%s/matches/%d", tournamentPath, match.ID)
	e.Check(
		e.Request(http.MethodGet, matchPath+"/session", 0, nil),
		http.StatusOK, fmt.Sprintf(`{
			"id": %q,
			"tournament_id": %q,
			"state": "active",
			"problems": [%d]
		}`, match.SessionID, tournament.ID, problem.ID),
	)
	e.Check(
		e.Request(http.MethodPost, tournamentPath+"/advance", 1, nil),
		http.StatusConflict, `{"code": "ROUND_NOT_COMPLETE"}`,
	)
	winnerID := match.Participant1ID
	e.Check(
		e.Request(http.MethodPost, fmt.Sprintf("/api/v0/sessions/%s/submissions", match.SessionID), winnerID, map[string]any{
			"problem_id": problem.ID,
			"language":   "cpp",
			"tests":      []map[string]any{{"match": true}, {"match": true}},
		}),
		http.StatusCreated, `{"credited": true, "ended": true}`,
	)
	e.Check(
		e.Request(http.MethodGet, tournamentPath, 0, nil),
		http.StatusOK, fmt.Sprintf(`{
			"matches": [{"winner_id": %d, "status": "completed"}]
		}`, winnerID),
	)
	e.Check(
		e.Request(http.MethodPost, matchPath+"/outcome", 1, nil),
		http.StatusOK, fmt.Sprintf(`{"winner_id": %d}`, winnerID),
	)
	e.Check(
		e.Request(http.MethodPost, tournamentPath+"/advance", 1, nil),
		http.StatusOK, `{"status": "completed"}`,
	)
	rec = e.Request(http.MethodGet, tournamentPath, 0, nil)
	e.Check(rec, http.StatusOK, "")
	e.Decode(rec, &tournament)
	for _, participant := range tournament.Participants {
		expected := int64(2)
		if participant.ParticipantID == winnerID {
			expected = 1
		}
		if participant.FinalRank != expected {
			t.Fatalf("Expected: %d, got: %d", expected, participant.FinalRank)
		}
	}
	e.Check(
		e.Request(http.MethodPost, tournamentPath+"/cancel", 1, nil),
		http.StatusConflict, `{"code": "INVALID_STATE"}`,
	)
}

func TestTournamentUnregister(t *testing.T) {
	e := NewTestEnv(t)
	defer e.Close()
	rec := e.Request(http.MethodPost, "/api/v0/tournaments", 1, map[string]any{
		"title": "Cup",
	})
	e.Check(rec, http.StatusCreated, "")
	var tournament Tournament
	e.Decode(rec, &tournament)
	tournamentPath := "/api/v0/tournaments/" + tournament.ID
	e.Check(
		e.Request(http.MethodPost, tournamentPath+"/register", 2, nil),
		http.StatusOK, "",
	)
	rec = e.Request(http.MethodPost, tournamentPath+"/unregister", 2, nil)
	e.Check(rec, http.StatusOK, "")
	e.Decode(rec, &tournament)
	if len(tournament.Participants) != 0 {
		t.Fatalf("Expected no participants, got: %v", tournament.Participants)
	}
	problem := e.CreateProblem(models.EasyProblem)
	problemPath := fmt.Sprintf("%s/problems/%d", tournamentPath, problem.ID)
	e.Check(
		e.Request(http.MethodPost, tournamentPath+"/problems", 1, map[string]any{
			"problem_id": problem.ID,
		}),
		http.StatusOK, fmt.Sprintf(`{"problems": [%d]}`, problem.ID),
	)
	e.Check(
		e.Request(http.MethodDelete, problemPath, 2, nil),
		http.StatusForbidden, `{"code": "NOT_CREATOR"}`,
	)
	rec = e.Request(http.MethodDelete, problemPath, 1, nil)
	e.Check(rec, http.StatusOK, "")
	var removed Tournament
	e.Decode(rec, &removed)
	if len(removed.Problems) != 0 {
		t.Fatalf("Expected no problems, got: %v", removed.Problems)
	}
	e.Check(
		e.Request(http.MethodDelete, problemPath, 1, nil),
		http.StatusNotFound, `{"code": "NOT_FOUND"}`,
	)
	e.Check(
		e.Request(http.MethodPost, tournamentPath+"/cancel", 2, nil),
		http.StatusForbidden, `{"code": "NOT_CREATOR"}`,
	)
	e.Check(
		e.Request(http.MethodPost, tournamentPath+"/cancel", 1, nil),
		http.StatusOK, `{"status": "cancelled"}`,
	)
	e.Check(
		e.Request(http.MethodGet, "/api/v0/tournaments/unknown", 0, nil),
		http.StatusNotFound, `{"code": "NOT_FOUND"}`,
	)
}
