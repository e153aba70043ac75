package managers

import (
	"testing"

	"github.com/udovin/duel/internal/models"
)

func TestTotalRounds(t *testing.T) {
	for n, expected := range map[int]int64{
		1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4, 16: 4, 17: 5,
	} {
		if rounds := TotalRounds(n); rounds != expected {
			t.Fatalf("Expected %d rounds for %d participants, got: %d", expected, n, rounds)
		}
	}
}

func TestDuelScore(t *testing.T) {
	tests := []struct {
		Hardest   models.Difficulty
		TotalTime int64
		Accuracy  float64
		Score     int64
	}{
		{models.EasyProblem, 0, 1, 100},
		{models.MediumProblem, 450, 0.5, 50},
		{models.HardProblem, 90, 1, 270},
		{models.HardProblem, 900, 1, 0},
		{models.HardProblem, 1800, 1, 0},
		{models.HardProblem, 0, 0, 0},
	}
	for _, test := range tests {
		score := DuelScore(test.Hardest, test.TotalTime, test.Accuracy)
		if score != test.Score {
			t.Fatalf("Expected: %d, got: %d", test.Score, score)
		}
	}
}

func TestDuelRatingChange(t *testing.T) {
	if change := DuelRatingChange(1500, 1500, 1); change != 16 {
		t.Fatalf("Expected: %d, got: %d", 16, change)
	}
	if change := DuelRatingChange(1500, 1500, 0); change != -16 {
		t.Fatalf("Expected: %d, got: %d", -16, change)
	}
	if change := DuelRatingChange(1500, 1500, 0.5); change != 0 {
		t.Fatalf("Expected: %d, got: %d", 0, change)
	}
	// Stronger player gains less for expected win.
	if change := DuelRatingChange(1900, 1500, 1); change != 3 {
		t.Fatalf("Expected: %d, got: %d", 3, change)
	}
	if change := DuelRatingChange(1500, 1900, 1); change != 29 {
		t.Fatalf("Expected: %d, got: %d", 29, change)
	}
}

func TestMultiScoring(t *testing.T) {
	if score := MultiScore(1, 2); score != 200 {
		t.Fatalf("Expected: %d, got: %d", 200, score)
	}
	if score := MultiScore(3, 2); score != 160 {
		t.Fatalf("Expected: %d, got: %d", 160, score)
	}
	if score := MultiScore(12, 5); score != 0 {
		t.Fatalf("Expected: %d, got: %d", 0, score)
	}
	if change := MultiRatingChange(1500, 1500, 1, 3); change != 12 {
		t.Fatalf("Expected: %d, got: %d", 12, change)
	}
	if change := MultiRatingChange(1500, 1500, 2, 3); change != 0 {
		t.Fatalf("Expected: %d, got: %d", 0, change)
	}
	if change := MultiRatingChange(1500, 1500, 3, 3); change != -12 {
		t.Fatalf("Expected: %d, got: %d", -12, change)
	}
}

func TestTournamentRatingChange(t *testing.T) {
	tests := []struct {
		Rank, N, Change int64
	}{
		{1, 4, 8},
		{2, 4, 3},
		{3, 4, -3},
		{1, 16, 150},
		{16, 16, -150},
		{1, 2, 1},
		{2, 2, -1},
	}
	for _, test := range tests {
		if change := TournamentRatingChange(test.Rank, test.N); change != test.Change {
			t.Fatalf("Expected %d for rank %d of %d, got: %d", test.Change, test.Rank, test.N, change)
		}
	}
}

func TestEliminationRank(t *testing.T) {
	if rank := eliminationRank(3, 3); rank != 2 {
		t.Fatalf("Expected: %d, got: %d", 2, rank)
	}
	if rank := eliminationRank(2, 3); rank != 3 {
		t.Fatalf("Expected: %d, got: %d", 3, rank)
	}
	if rank := eliminationRank(1, 3); rank != 5 {
		t.Fatalf("Expected: %d, got: %d", 5, rank)
	}
}

func TestSortStandings(t *testing.T) {
	participations := []models.Participation{
		{ID: 1, ProblemsSolved: 1, TotalTime: 30},
		{ID: 2, ProblemsSolved: 2, TotalTime: 100},
		{ID: 3, ProblemsSolved: 1, TotalTime: 20},
		{ID: 4, ProblemsSolved: 1, TotalTime: 20},
	}
	sortStandings(participations)
	for i, id := range []int64{2, 3, 4, 1} {
		if participations[i].ID != id {
			t.Fatalf("Expected: %d, got: %d", id, participations[i].ID)
		}
	}
}
