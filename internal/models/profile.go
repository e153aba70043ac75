package models

import (
	"context"
	"fmt"

	"github.com/udovin/duel/internal/db"
)

const (
	// InitialRating contains rating of new participant.
	InitialRating = 1500
	// MinRating contains lowest possible rating.
	MinRating = 100
)

// Profile represents competitive profile of participant.
type Profile struct {
	ID                  int64 `db:"id"`
	Rating              int64 `db:"rating"`
	ProblemsSolvedTotal int64 `db:"problems_solved_total"`
	Streak              int64 `db:"streak"`
	LastSubmitTime      int64 `db:"last_submit_time"`
	// Rank contains leaderboard position computed by periodic job.
	Rank int64 `db:"rank"`
}

// ProfileStore represents store of profiles.
type ProfileStore struct {
	baseStore[Profile]
}

// NewProfileStore creates a new instance of ProfileStore.
func NewProfileStore(conn *db.DB, table string) *ProfileStore {
	return &ProfileStore{baseStore[Profile]{db: conn, table: table}}
}

// Ensure creates profile with initial rating if it does not exist.
func (s *ProfileStore) Ensure(ctx context.Context, id int64) error {
	_, err := s.insertIgnore(
		ctx, db.Columns[Profile](),
		id, InitialRating, 0, 0, 0, 0,
	)
	return err
}

// Get returns profile by ID.
func (s *ProfileStore) Get(ctx context.Context, id int64) (Profile, error) {
	return s.findOne(ctx, `"id" = ?`, id)
}

// GetForUpdate returns profile by ID and locks its row.
func (s *ProfileStore) GetForUpdate(ctx context.Context, id int64) (Profile, error) {
	return s.findOneForUpdate(ctx, `"id" = ?`, id)
}

// AddRating adds change to current rating keeping it not lower than MinRating.
func (s *ProfileStore) AddRating(ctx context.Context, id int64, change int64) error {
	count, err := s.db.Exec(
		ctx,
		fmt.Sprintf(
			`UPDATE %q SET "rating" = CASE WHEN "rating" + ? < ? THEN ? ELSE "rating" + ? END WHERE "id" = ?`,
			s.table,
		),
		change, MinRating, MinRating, change, id,
	)
	if err != nil {
		return err
	}
	if count != 1 {
		return fmt.Errorf("profile %d does not exist", id)
	}
	return nil
}

// AddSolved increments total amount of solved problems.
func (s *ProfileStore) AddSolved(ctx context.Context, id int64) error {
	_, err := s.db.Exec(
		ctx,
		fmt.Sprintf(
			`UPDATE %q SET "problems_solved_total" = "problems_solved_total" + 1 WHERE "id" = ?`,
			s.table,
		),
		id,
	)
	return err
}

// SetStreak updates streak of profile.
func (s *ProfileStore) SetStreak(ctx context.Context, id int64, streak, lastSubmitTime int64) error {
	_, err := s.db.Exec(
		ctx,
		fmt.Sprintf(`UPDATE %q SET "streak" = ?, "last_submit_time" = ? WHERE "id" = ?`, s.table),
		streak, lastSubmitTime, id,
	)
	return err
}

// FindTop returns profiles ordered by rating.
func (s *ProfileStore) FindTop(ctx context.Context, limit, offset int) ([]Profile, error) {
	return s.findAll(ctx, `1 = 1 ORDER BY "rating" DESC, "id" LIMIT ? OFFSET ?`, limit, offset)
}

// RecomputeRanks assigns leaderboard positions to all profiles.
//
// Profiles with equal rating share position.
func (s *ProfileStore) RecomputeRanks(ctx context.Context) error {
	profiles, err := s.findAll(ctx, `1 = 1 ORDER BY "rating" DESC, "id"`)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %q SET "rank" = ? WHERE "id" = ? AND "rank" <> ?`, s.table)
	var rank int64
	for i, profile := range profiles {
		if i == 0 || profiles[i-1].Rating != profile.Rating {
			rank = int64(i + 1)
		}
		if _, err := s.db.Exec(ctx, query, rank, profile.ID, rank); err != nil {
			return err
		}
	}
	return nil
}
