package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/udovin/duel/internal/models"
)

func TestSessionSimpleScenario(t *testing.T) {
	e := NewTestEnv(t)
	defer e.Close()
	problem := e.CreateProblem(models.EasyProblem)
	rec := e.Request(http.MethodPost, "/api/v0/sessions", 1, map[string]any{
		"title":    "Duel",
		"capacity": 2,
	})
	e.Check(rec, http.StatusCreated, `{
		"title": "Duel",
		"creator_id": 1,
		"capacity": 2,
		"state": "forming",
		"duration": 900,
		"participations": [{"participant_id": 1, "is_ready": false}]
	}`)
	var session Session
	e.Decode(rec, &session)
	sessionPath := "/api/v0/sessions/" + session.ID
	e.Check(
		e.Request(http.MethodGet, "/api/v0/sessions", 0, nil),
		http.StatusOK, fmt.Sprintf(`{"sessions": [{"id": %q}]}`, session.ID),
	)
	e.Check(
		e.Request(http.MethodPost, sessionPath+"/problems", 2, map[string]any{
			"problem_id": problem.ID,
		}),
		http.StatusForbidden, `{"code": "NOT_CREATOR"}`,
	)
	e.Check(
		e.Request(http.MethodPost, sessionPath+"/problems", 1, map[string]any{
			"problem_id": problem.ID,
		}),
		http.StatusCreated, "",
	)
	e.Check(
		e.Request(http.MethodPost, sessionPath+"/join", 2, map[string]any{}),
		http.StatusOK, `{"participations": [{"participant_id": 1}, {"participant_id": 2}]}`,
	)
	e.Check(
		e.Request(http.MethodPost, sessionPath+"/join", 3, map[string]any{}),
		http.StatusConflict, `{"code": "CAPACITY_EXCEEDED"}`,
	)
	e.Check(
		e.Request(http.MethodPost, sessionPath+"/start", 1, nil),
		http.StatusConflict, `{"code": "NOT_ALL_READY"}`,
	)
	e.Check(
		e.Request(http.MethodPost, sessionPath+"/ready", 1, map[string]any{}),
		http.StatusOK, `{"state": "forming"}`,
	)
	e.Check(
		e.Request(http.MethodPost, sessionPath+"/ready", 2, map[string]any{"ready": true}),
		http.StatusOK, `{"state": "ready_check_passed"}`,
	)
	e.Check(
		e.Request(http.MethodPost, sessionPath+"/start", 2, nil),
		http.StatusForbidden, `{"code": "NOT_CREATOR"}`,
	)
	e.Check(
		e.Request(http.MethodPost, sessionPath+"/start", 1, nil),
		http.StatusOK, fmt.Sprintf(`{"state": "active", "problems": [%d]}`, problem.ID),
	)
	e.Check(
		e.Request(http.MethodPost, sessionPath+"/submissions", 3, map[string]any{
			"problem_id": problem.ID,
			"language":   "go",
			"tests":      []map[string]any{{"match": true}},
		}),
		http.StatusForbidden, `{"code": "NOT_PARTICIPANT"}`,
	)
	e.Check(
		e.Request(http.MethodPost, sessionPath+"/submissions", 2, map[string]any{
			"problem_id": problem.ID,
			"language":   "go",
			"tests":      []map[string]any{{"match": false}},
		}),
		http.StatusCreated, `{
			"submission": {"participant_id": 2, "verdict": "wrong_answer"},
			"credited": false,
			"ended": false
		}`,
	)
	e.Check(
		e.Request(http.MethodPost, sessionPath+"/submissions", 1, map[string]any{
			"problem_id": problem.ID,
			"language":   "go",
			"tests":      []map[string]any{{"match": true}},
		}),
		http.StatusCreated, `{
			"submission": {"participant_id": 1, "verdict": "accepted"},
			"credited": true,
			"ended": true,
			"problems_solved": 1
		}`,
	)
	e.Check(
		e.Request(http.MethodGet, sessionPath, 0, nil),
		http.StatusOK, `{
			"state": "ended",
			"end_reason": "solved",
			"participations": [
				{"participant_id": 1, "problems_solved": 1, "final_rank": 1, "rating_change": 16},
				{"participant_id": 2, "problems_solved": 0, "final_rank": 2, "rating_change": -16}
			]
		}`,
	)
	rec = e.Request(http.MethodGet, sessionPath+"/submissions", 0, nil)
	e.Check(rec, http.StatusOK, "")
	var submissions Submissions
	e.Decode(rec, &submissions)
	if len(submissions.Submissions) != 2 {
		t.Fatalf("Expected: %d, got: %d", 2, len(submissions.Submissions))
	}
	e.Check(
		e.Request(http.MethodGet, "/api/v0/profiles/1", 0, nil),
		http.StatusOK, `{"participant_id": 1, "rating": 1516, "problems_solved_total": 1}`,
	)
	e.Check(
		e.Request(http.MethodGet, "/api/v0/profiles/2", 0, nil),
		http.StatusOK, `{"participant_id": 2, "rating": 1484}`,
	)
	e.Check(
		e.Request(http.MethodPost, sessionPath+"/end", 1, nil),
		http.StatusOK, `{"state": "ended", "end_reason": "solved"}`,
	)
}

func TestSessionNotFound(t *testing.T) {
	e := NewTestEnv(t)
	defer e.Close()
	e.Check(
		e.Request(http.MethodGet, "/api/v0/sessions/unknown", 0, nil),
		http.StatusNotFound, `{"code": "NOT_FOUND", "message": "Session not found."}`,
	)
	e.Check(
		e.Request(http.MethodPost, "/api/v0/sessions/unknown/join", 1, map[string]any{}),
		http.StatusNotFound, `{"code": "NOT_FOUND"}`,
	)
	e.Check(
		e.Request(http.MethodGet, "/api/v0/profiles/100", 0, nil),
		http.StatusNotFound, `{"code": "NOT_FOUND"}`,
	)
	e.Check(
		e.Request(http.MethodGet, "/api/v0/profiles/abc", 0, nil),
		http.StatusBadRequest, "",
	)
}

func TestSessionInvalidForm(t *testing.T) {
	e := NewTestEnv(t)
	defer e.Close()
	e.Check(
		e.Request(http.MethodPost, "/api/v0/sessions", 1, map[string]any{
			"title":    "",
			"capacity": -1,
		}),
		http.StatusBadRequest, `{
			"code": "INVALID_FORM",
			"invalid_fields": {
				"title": {"message": "Title is empty."},
				"capacity": {"message": "Capacity cannot be negative."}
			}
		}`,
	)
	e.Check(
		e.Request(http.MethodPost, "/api/v0/sessions", 1, map[string]any{
			"title":   "Private",
			"private": true,
		}),
		http.StatusBadRequest, `{"code": "ACCESS_CODE_REQUIRED"}`,
	)
}

func TestPrivateSession(t *testing.T) {
	e := NewTestEnv(t)
	defer e.Close()
	rec := e.Request(http.MethodPost, "/api/v0/sessions", 1, map[string]any{
		"title":       "Private",
		"private":     true,
		"access_code": "secret",
	})
	e.Check(rec, http.StatusCreated, `{"private": true}`)
	var session Session
	e.Decode(rec, &session)
	sessionPath := "/api/v0/sessions/" + session.ID
	e.Check(
		e.Request(http.MethodGet, "/api/v0/sessions", 0, nil),
		http.StatusOK, `{"sessions": []}`,
	)
	e.Check(
		e.Request(http.MethodPost, sessionPath+"/join", 2, map[string]any{
			"access_code": "wrong",
		}),
		http.StatusForbidden, `{"code": "ACCESS_DENIED"}`,
	)
	e.Check(
		e.Request(http.MethodPost, sessionPath+"/join", 2, map[string]any{
			"access_code": "secret",
		}),
		http.StatusOK, "",
	)
	e.Check(
		e.Request(http.MethodPost, sessionPath+"/leave", 2, nil),
		http.StatusOK, `{"participations": [{"participant_id": 1}]}`,
	)
	e.Check(
		e.Request(http.MethodPost, sessionPath+"/cancel", 1, nil),
		http.StatusOK, `{"state": "cancelled"}`,
	)
}
