package judge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/udovin/duel/internal/models"
)

func newTestJudge(t *testing.T, calls *int64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		if r.URL.Path != "/judge" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Language == "broken" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("internal error"))
			return
		}
		var resp response
		for _, test := range req.TestCases {
			output := test.Input
			report := TestReport{
				Output:   output,
				Expected: test.Expected,
				Match:    output == test.Expected,
				Status:   "ok",
			}
			if req.Language == "tle" {
				report.Status = "time_limit_exceeded"
			}
			resp.Tests = append(resp.Tests, report)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestClientJudge(t *testing.T) {
	var calls int64
	server := newTestJudge(t, &calls)
	defer server.Close()
	client := NewClient(server.URL+"/", WithBatchSize(2))
	tests := []models.TestCase{
		{Input: "1", Expected: "1"},
		{Input: "2", Expected: "2"},
		{Input: "3", Expected: "4"},
	}
	results, err := client.Judge(context.Background(), Request{
		Code: "echo", Language: "cat", TestCases: tests,
	})
	if err != nil {
		t.Fatal("Error:", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected: %d, got: %d", 3, len(results))
	}
	if calls != 2 {
		t.Fatalf("Expected: %d, got: %d", 2, calls)
	}
	if v := models.DeriveVerdict(results); v != models.WrongAnswer {
		t.Fatalf("Expected: %v, got: %v", models.WrongAnswer, v)
	}
	if v := models.DeriveVerdict(results[:2]); v != models.Accepted {
		t.Fatalf("Expected: %v, got: %v", models.Accepted, v)
	}
	results, err = client.Judge(context.Background(), Request{
		Code: "sleep", Language: "tle", TestCases: tests,
	})
	if err != nil {
		t.Fatal("Error:", err)
	}
	if v := models.DeriveVerdict(results); v != models.TimeLimitExceeded {
		t.Fatalf("Expected: %v, got: %v", models.TimeLimitExceeded, v)
	}
}

func TestClientJudgeFailure(t *testing.T) {
	var calls int64
	server := newTestJudge(t, &calls)
	client := NewClient(server.URL)
	_, err := client.Judge(context.Background(), Request{Language: "broken"})
	var judgeErr *Error
	if !errors.As(err, &judgeErr) {
		t.Fatalf("Expected judge error, got: %v", err)
	}
	if judgeErr.Code != http.StatusInternalServerError {
		t.Fatalf("Expected: %d, got: %d", http.StatusInternalServerError, judgeErr.Code)
	}
	server.Close()
	_, err = client.Judge(context.Background(), Request{Language: "cat"})
	if !errors.As(err, &judgeErr) || judgeErr.Code != 0 {
		t.Fatalf("Expected transport error, got: %v", err)
	}
}
