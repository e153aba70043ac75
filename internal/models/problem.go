package models

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/udovin/duel/internal/db"
)

// Difficulty represents problem difficulty.
type Difficulty int64

const (
	EasyProblem   Difficulty = 1
	MediumProblem Difficulty = 2
	HardProblem   Difficulty = 3
)

// TestCase represents input of problem with expected output.
type TestCase struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
}

// Problem represents problem of catalog.
type Problem struct {
	ID         int64      `db:"id"`
	Title      string     `db:"title"`
	Difficulty Difficulty `db:"difficulty"`
	// TimeLimit contains time limit in milliseconds.
	TimeLimit int64 `db:"time_limit"`
	// MemoryLimit contains memory limit in kibibytes.
	MemoryLimit int64 `db:"memory_limit"`
	TestCases   JSON  `db:"test_cases"`
}

// ScanTestCases returns test cases of problem.
func (o Problem) ScanTestCases() ([]TestCase, error) {
	var tests []TestCase
	if len(o.TestCases) == 0 {
		return nil, nil
	}
	err := json.Unmarshal(o.TestCases, &tests)
	return tests, err
}

// SetTestCases sets test cases of problem.
func (o *Problem) SetTestCases(tests []TestCase) error {
	raw, err := json.Marshal(tests)
	if err != nil {
		return err
	}
	o.TestCases = raw
	return nil
}

// ProblemStore represents read mostly problem catalog.
type ProblemStore struct {
	baseStore[Problem]
}

// NewProblemStore creates a new instance of ProblemStore.
func NewProblemStore(conn *db.DB, table string) *ProblemStore {
	return &ProblemStore{baseStore[Problem]{db: conn, table: table}}
}

// Create creates problem.
func (s *ProblemStore) Create(ctx context.Context, problem *Problem) error {
	return db.InsertRow(ctx, s.db, *problem, &problem.ID, "id", s.table)
}

// Get returns problem by ID.
func (s *ProblemStore) Get(ctx context.Context, id int64) (Problem, error) {
	return s.findOne(ctx, `"id" = ?`, id)
}

// FindByIDs returns problems with specified IDs ordered by ID.
func (s *ProblemStore) FindByIDs(ctx context.Context, ids ...int64) ([]Problem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	where := fmt.Sprintf(
		`"id" IN (%s) ORDER BY "id"`,
		strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "),
	)
	return s.findAll(ctx, where, args...)
}

// FindIDs returns IDs of all problems.
func (s *ProblemStore) FindIDs(ctx context.Context) ([]int64, error) {
	type idRow struct {
		ID int64 `db:"id"`
	}
	rows, err := db.QueryAll[idRow](ctx, s.db, fmt.Sprintf(`SELECT "id" FROM %q ORDER BY "id"`, s.table))
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	return ids, nil
}
