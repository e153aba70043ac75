package models

import (
	"context"
	"fmt"

	"github.com/udovin/duel/internal/db"
)

// Participation represents progress of participant within one session.
type Participation struct {
	ID            int64  `db:"id"`
	SessionID     string `db:"session_id"`
	ParticipantID int64  `db:"participant_id"`
	JoinTime      int64  `db:"join_time"`
	// ProblemsSolved never decreases while session is active.
	ProblemsSolved int64 `db:"problems_solved"`
	// TotalTime contains sum of seconds from start to each first accept.
	TotalTime    int64  `db:"total_time"`
	IsReady      bool   `db:"is_ready"`
	Score        int64  `db:"score"`
	RatingChange int64  `db:"rating_change"`
	FinalRank    NInt64 `db:"final_rank"`
}

// Better returns true when participation outranks other one.
//
// More solved problems are better, on equal amount lower total time wins.
func (o Participation) Better(other Participation) bool {
	if o.ProblemsSolved != other.ProblemsSolved {
		return o.ProblemsSolved > other.ProblemsSolved
	}
	return o.TotalTime < other.TotalTime
}

// Tied returns true when neither participation outranks other one.
func (o Participation) Tied(other Participation) bool {
	return o.ProblemsSolved == other.ProblemsSolved && o.TotalTime == other.TotalTime
}

// ParticipationStore represents ledger of participations.
type ParticipationStore struct {
	baseStore[Participation]
}

// NewParticipationStore creates a new instance of ParticipationStore.
func NewParticipationStore(conn *db.DB, table string) *ParticipationStore {
	return &ParticipationStore{baseStore[Participation]{db: conn, table: table}}
}

// Create creates participation.
func (s *ParticipationStore) Create(ctx context.Context, participation *Participation) error {
	if participation.ProblemsSolved < 0 || participation.TotalTime < 0 {
		return fmt.Errorf("participation counters should be non-negative")
	}
	return db.InsertRow(ctx, s.db, *participation, &participation.ID, "id", s.table)
}

// Get returns participation of participant in session.
func (s *ParticipationStore) Get(
	ctx context.Context, sessionID string, participantID int64,
) (Participation, error) {
	return s.findOne(ctx, `"session_id" = ? AND "participant_id" = ?`, sessionID, participantID)
}

// FindBySession returns participations of session ordered by join.
func (s *ParticipationStore) FindBySession(ctx context.Context, sessionID string) ([]Participation, error) {
	return s.findAll(ctx, `"session_id" = ? ORDER BY "id"`, sessionID)
}

// FindByParticipant returns participations of participant.
func (s *ParticipationStore) FindByParticipant(ctx context.Context, participantID int64) ([]Participation, error) {
	return s.findAll(ctx, `"participant_id" = ? ORDER BY "id" DESC`, participantID)
}

// Count returns amount of participations in session.
func (s *ParticipationStore) Count(ctx context.Context, sessionID string) (int64, error) {
	return s.count(ctx, `"session_id" = ?`, sessionID)
}

// CountNotReady returns amount of participations that are not ready.
func (s *ParticipationStore) CountNotReady(ctx context.Context, sessionID string) (int64, error) {
	return s.count(ctx, `"session_id" = ? AND "is_ready" = ?`, sessionID, false)
}

// Delete deletes participation.
func (s *ParticipationStore) Delete(ctx context.Context, id int64) error {
	return db.DeleteRow(ctx, s.db, id, "id", s.table)
}

// SetReady updates ready flag of participation.
func (s *ParticipationStore) SetReady(ctx context.Context, id int64, ready bool) error {
	count, err := s.db.Exec(
		ctx, fmt.Sprintf(`UPDATE %q SET "is_ready" = ? WHERE "id" = ?`, s.table),
		ready, id,
	)
	if err != nil {
		return err
	}
	if count != 1 {
		return fmt.Errorf("participation %d does not exist", id)
	}
	return nil
}

// Credit increments solved problems and adds elapsed seconds to total time.
//
// Update is applied relative to current row values.
func (s *ParticipationStore) Credit(ctx context.Context, id int64, elapsed int64) error {
	if elapsed < 0 {
		elapsed = 0
	}
	count, err := s.db.Exec(
		ctx,
		fmt.Sprintf(
			`UPDATE %q SET "problems_solved" = "problems_solved" + 1, "total_time" = "total_time" + ? WHERE "id" = ?`,
			s.table,
		),
		elapsed, id,
	)
	if err != nil {
		return err
	}
	if count != 1 {
		return fmt.Errorf("participation %d does not exist", id)
	}
	return nil
}

// SetResult stores final result of participation.
func (s *ParticipationStore) SetResult(
	ctx context.Context, id int64, score, ratingChange, finalRank int64,
) error {
	count, err := s.db.Exec(
		ctx,
		fmt.Sprintf(
			`UPDATE %q SET "score" = ?, "rating_change" = ?, "final_rank" = ? WHERE "id" = ?`,
			s.table,
		),
		score, ratingChange, finalRank, id,
	)
	if err != nil {
		return err
	}
	if count != 1 {
		return fmt.Errorf("participation %d does not exist", id)
	}
	return nil
}
