package managers

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/constraints"

	"github.com/udovin/duel/internal/core"
	"github.com/udovin/duel/internal/models"
)

const (
	// duelTimeNorm contains normalization of duel time factor in seconds.
	duelTimeNorm = 900
	duelFactor   = 32
	multiFactor  = 24
	// tournamentFactor contains base of tournament rating change.
	tournamentFactor = 10
)

type number interface {
	constraints.Integer | constraints.Float
}

func maxOf[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

func minOf[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func mean[T number](values []T) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, value := range values {
		sum += float64(value)
	}
	return sum / float64(len(values))
}

// roundHalfAway rounds value to nearest integer with halves away from zero.
func roundHalfAway[T constraints.Signed](value float64) T {
	return T(math.Round(value))
}

// ExpectedScore returns probability of win for player with own rating.
func ExpectedScore(own, opponent float64) float64 {
	return 1 / (1 + math.Pow(10, (opponent-own)/400))
}

// DuelScore returns score of duel participation.
func DuelScore(hardest models.Difficulty, totalTime int64, accuracy float64) int64 {
	base := float64(hardest) * 100
	timeFactor := maxOf(0, 1-float64(totalTime)/duelTimeNorm)
	return int64(math.Floor(base * timeFactor * accuracy))
}

// DuelRatingChange returns rating change of duel participant.
//
// Outcome is 1 for win, 0 for loss and 0.5 for draw.
func DuelRatingChange(own, opponent int64, outcome float64) int64 {
	expected := ExpectedScore(float64(own), float64(opponent))
	return roundHalfAway[int64](duelFactor * (outcome - expected))
}

// MultiScore returns score of participation in session with more than
// two participants.
func MultiScore(rank, solved int64) int64 {
	return maxOf(0, 100-(rank-1)*10) * solved
}

// MultiRatingChange returns rating change of participant ranked among n.
func MultiRatingChange(own int64, opponentAverage float64, rank, n int64) int64 {
	expected := ExpectedScore(float64(own), opponentAverage)
	normalized := float64(rank-1) / float64(n-1)
	return roundHalfAway[int64](multiFactor * (expected - normalized))
}

// TournamentRatingChange returns rating change of tournament participant.
func TournamentRatingChange(rank, n int64) int64 {
	expectedMid := float64(n+1) / 2
	scaling := minOf(2, float64(n)/8)
	return roundHalfAway[int64](tournamentFactor * (expectedMid - float64(rank)) * scaling)
}

// TotalRounds returns amount of single elimination rounds for n participants.
func TotalRounds(n int) int64 {
	var rounds int64
	for size := 1; size < n; size *= 2 {
		rounds++
	}
	return rounds
}

// sortStandings sorts participations from best to worst.
//
// Tied participations keep order of joining.
func sortStandings(participations []models.Participation) {
	sort.SliceStable(participations, func(i, j int) bool {
		return participations[i].Better(participations[j])
	})
}

// ScoringEngine computes results of ended sessions.
type ScoringEngine struct {
	core *core.Core
}

// NewScoringEngine creates a new instance of ScoringEngine.
func NewScoringEngine(core *core.Core) *ScoringEngine {
	return &ScoringEngine{core: core}
}

// Score computes score, rating change and final rank of every participation
// of ended session and writes them back.
//
// Should be called in transaction that ended session.
func (e *ScoringEngine) Score(ctx context.Context, session models.Session) ([]models.Participation, error) {
	participations, err := e.core.Participations.FindBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	sortStandings(participations)
	switch len(participations) {
	case 0:
		return nil, nil
	case 1:
		participation := &participations[0]
		participation.FinalRank = 1
		if err := e.core.Participations.SetResult(
			ctx, participation.ID, participation.Score, 0, 1,
		); err != nil {
			return nil, err
		}
	case 2:
		if err := e.scoreDuel(ctx, session, participations); err != nil {
			return nil, err
		}
	default:
		if err := e.scoreMulti(ctx, participations); err != nil {
			return nil, err
		}
	}
	return participations, nil
}

func (e *ScoringEngine) hardestDifficulty(ctx context.Context, sessionID string) (models.Difficulty, error) {
	sessionProblems, err := e.core.SessionProblems.FindBySession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	var ids []int64
	for _, problem := range sessionProblems {
		ids = append(ids, problem.ProblemID)
	}
	problems, err := e.core.Problems.FindByIDs(ctx, ids...)
	if err != nil {
		return 0, err
	}
	var hardest models.Difficulty
	for _, problem := range problems {
		hardest = maxOf(hardest, problem.Difficulty)
	}
	return hardest, nil
}

func (e *ScoringEngine) getRatings(ctx context.Context, participations []models.Participation) ([]int64, error) {
	ratings := make([]int64, len(participations))
	for i, participation := range participations {
		profile, err := e.core.Profiles.GetForUpdate(ctx, participation.ParticipantID)
		if err != nil {
			return nil, fmt.Errorf("cannot get profile %d: %w", participation.ParticipantID, err)
		}
		ratings[i] = profile.Rating
	}
	return ratings, nil
}

func (e *ScoringEngine) applyResult(
	ctx context.Context, participation *models.Participation, score, ratingChange, rank int64,
) error {
	if err := e.core.Profiles.AddRating(ctx, participation.ParticipantID, ratingChange); err != nil {
		return err
	}
	if err := e.core.Participations.SetResult(ctx, participation.ID, score, ratingChange, rank); err != nil {
		return err
	}
	participation.Score = score
	participation.RatingChange = ratingChange
	participation.FinalRank = models.NInt64(rank)
	return nil
}

func (e *ScoringEngine) scoreDuel(
	ctx context.Context, session models.Session, participations []models.Participation,
) error {
	hardest, err := e.hardestDifficulty(ctx, session.ID)
	if err != nil {
		return err
	}
	ratings, err := e.getRatings(ctx, participations)
	if err != nil {
		return err
	}
	draw := participations[0].Tied(participations[1])
	for i := range participations {
		participation := &participations[i]
		stats, err := e.core.Submissions.GetStats(ctx, session.ID, participation.ParticipantID)
		if err != nil {
			return err
		}
		score := maxOf(
			participation.Score,
			DuelScore(hardest, participation.TotalTime, stats.Accuracy()),
		)
		outcome := 1.0 - float64(i)
		if draw {
			outcome = 0.5
		}
		change := DuelRatingChange(ratings[i], ratings[1-i], outcome)
		if err := e.applyResult(ctx, participation, score, change, int64(i+1)); err != nil {
			return err
		}
	}
	return nil
}

func (e *ScoringEngine) scoreMulti(ctx context.Context, participations []models.Participation) error {
	ratings, err := e.getRatings(ctx, participations)
	if err != nil {
		return err
	}
	n := int64(len(participations))
	for i := range participations {
		participation := &participations[i]
		rank := int64(i + 1)
		opponents := make([]int64, 0, n-1)
		opponents = append(opponents, ratings[:i]...)
		opponents = append(opponents, ratings[i+1:]...)
		change := MultiRatingChange(ratings[i], mean(opponents), rank, n)
		score := MultiScore(rank, participation.ProblemsSolved)
		if err := e.applyResult(ctx, participation, score, change, rank); err != nil {
			return err
		}
	}
	return nil
}
