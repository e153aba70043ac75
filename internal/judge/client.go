// Package judge provides client of external judge service.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/udovin/algo/futures"

	"github.com/udovin/duel/internal/models"
)

// Request represents request of judging code on test cases.
type Request struct {
	Code      string            `json:"code"`
	Language  string            `json:"language"`
	TestCases []models.TestCase `json:"test_cases"`
	// TimeLimit contains time limit in milliseconds.
	TimeLimit int64 `json:"time_limit"`
	// MemoryLimit contains memory limit in kibibytes.
	MemoryLimit int64 `json:"memory_limit"`
}

// TestReport represents result of single test case.
type TestReport struct {
	Output   string `json:"output"`
	Expected string `json:"expected"`
	Match    bool   `json:"match"`
	Status   string `json:"status"`
	Time     int64  `json:"time"`
	Memory   int64  `json:"memory"`
}

// Result converts report to test result.
func (r TestReport) Result() models.TestResult {
	result := models.TestResult{
		Output:   r.Output,
		Expected: r.Expected,
		Match:    r.Match,
		Time:     r.Time,
		Memory:   r.Memory,
	}
	switch strings.ToLower(r.Status) {
	case "compilation_error", "ce":
		result.Status = models.CompilationError
	case "runtime_error", "re":
		result.Status = models.RuntimeError
	case "time_limit_exceeded", "tle":
		result.Status = models.TimeLimitExceeded
	case "memory_limit_exceeded", "mle":
		result.Status = models.MemoryLimitExceeded
	case "wrong_answer", "wa":
		result.Status = models.WrongAnswer
	}
	return result
}

type response struct {
	Tests []TestReport `json:"tests"`
}

// Error represents failure of judge service.
type Error struct {
	// Code contains HTTP status code, zero for transport errors.
	Code int
	Err  error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("judge responded with status %d: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("judge is unavailable: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client represents client of judge service.
type Client struct {
	endpoint  string
	client    http.Client
	batchSize int
}

type ClientOption func(*Client)

// WithTimeout sets timeout of single request.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = timeout
	}
}

// WithBatchSize splits test cases into batches judged concurrently.
func WithBatchSize(size int) ClientOption {
	return func(c *Client) {
		c.batchSize = size
	}
}

// WithTransport sets HTTP transport of client.
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.client.Transport = transport
	}
}

// NewClient returns a new judge client.
func NewClient(endpoint string, options ...ClientOption) *Client {
	c := Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		client: http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, option := range options {
		option(&c)
	}
	return &c
}

// Judge runs code on all test cases and returns results in order of tests.
func (c *Client) Judge(ctx context.Context, req Request) ([]models.TestResult, error) {
	batches := c.splitBatches(req.TestCases)
	results := make([]futures.Future[[]TestReport], len(batches))
	for i, batch := range batches {
		batchReq := req
		batchReq.TestCases = batch
		results[i] = futures.Call(func() ([]TestReport, error) {
			return c.judgeBatch(ctx, batchReq)
		})
	}
	var tests []models.TestResult
	for i, result := range results {
		reports, err := result.Get(ctx)
		if err != nil {
			return nil, err
		}
		if len(reports) != len(batches[i]) {
			return nil, &Error{
				Err: fmt.Errorf("expected %d reports, got %d", len(batches[i]), len(reports)),
			}
		}
		for _, report := range reports {
			tests = append(tests, report.Result())
		}
	}
	return tests, nil
}

func (c *Client) splitBatches(tests []models.TestCase) [][]models.TestCase {
	if c.batchSize <= 0 || len(tests) <= c.batchSize {
		return [][]models.TestCase{tests}
	}
	var batches [][]models.TestCase
	for len(tests) > 0 {
		size := c.batchSize
		if size > len(tests) {
			size = len(tests)
		}
		batches = append(batches, tests[:size])
		tests = tests[size:]
	}
	return batches
}

func (c *Client) judgeBatch(ctx context.Context, req Request) ([]TestReport, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.endpoint+"/judge", bytes.NewReader(data),
	)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &Error{
			Code: resp.StatusCode,
			Err:  fmt.Errorf("%s", strings.TrimSpace(string(body))),
		}
	}
	var respData response
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, &Error{Code: resp.StatusCode, Err: err}
	}
	return respData.Tests, nil
}
