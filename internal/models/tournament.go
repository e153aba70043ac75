package models

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/udovin/duel/internal/db"
)

// TournamentStatus represents status of tournament.
type TournamentStatus int

const (
	RegistrationTournament TournamentStatus = 1
	InProgressTournament   TournamentStatus = 2
	CompletedTournament    TournamentStatus = 3
	CancelledTournament    TournamentStatus = 4
)

// String returns string representation.
func (s TournamentStatus) String() string {
	switch s {
	case RegistrationTournament:
		return "registration"
	case InProgressTournament:
		return "in_progress"
	case CompletedTournament:
		return "completed"
	case CancelledTournament:
		return "cancelled"
	default:
		return fmt.Sprintf("TournamentStatus(%d)", s)
	}
}

func (s TournamentStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *TournamentStatus) UnmarshalText(data []byte) error {
	switch v := string(data); v {
	case "registration":
		*s = RegistrationTournament
	case "in_progress":
		*s = InProgressTournament
	case "completed":
		*s = CompletedTournament
	case "cancelled":
		*s = CancelledTournament
	default:
		return fmt.Errorf("unsupported status: %q", v)
	}
	return nil
}

// TournamentFormat represents format of tournament bracket.
type TournamentFormat string

const (
	SingleElimination TournamentFormat = "single_elimination"
)

// Tournament represents bracketed sequence of sessions.
type Tournament struct {
	ID        string `db:"id"`
	Title     string `db:"title"`
	CreatorID int64  `db:"creator_id"`
	// Capacity contains roster capacity, zero means unlimited.
	Capacity     int64            `db:"capacity"`
	Format       TournamentFormat `db:"format"`
	CurrentRound int64            `db:"current_round"`
	TotalRounds  int64            `db:"total_rounds"`
	Status       TournamentStatus `db:"status"`
	CreateTime   int64            `db:"create_time"`
	StartTime    NInt64           `db:"start_time"`
	EndTime      NInt64           `db:"end_time"`
}

// TournamentStore represents store of tournaments.
type TournamentStore struct {
	baseStore[Tournament]
}

// NewTournamentStore creates a new instance of TournamentStore.
func NewTournamentStore(conn *db.DB, table string) *TournamentStore {
	return &TournamentStore{baseStore[Tournament]{db: conn, table: table}}
}

// Create creates tournament and generates its ID.
func (s *TournamentStore) Create(ctx context.Context, tournament *Tournament) error {
	if tournament.ID == "" {
		tournament.ID = uuid.NewString()
	}
	return db.InsertRowWithID(ctx, s.db, *tournament, s.table)
}

// Get returns tournament by ID.
func (s *TournamentStore) Get(ctx context.Context, id string) (Tournament, error) {
	return s.findOne(ctx, `"id" = ?`, id)
}

// GetForUpdate returns tournament by ID and locks its row.
func (s *TournamentStore) GetForUpdate(ctx context.Context, id string) (Tournament, error) {
	return s.findOneForUpdate(ctx, `"id" = ?`, id)
}

// Update updates tournament.
func (s *TournamentStore) Update(ctx context.Context, tournament Tournament) error {
	return db.UpdateRow(ctx, s.db, tournament, tournament.ID, "id", s.table)
}

// FindByStatus returns tournaments with specified status.
func (s *TournamentStore) FindByStatus(ctx context.Context, status TournamentStatus, limit int) ([]Tournament, error) {
	return s.findAll(ctx, `"status" = ? ORDER BY "create_time" DESC, "id" LIMIT ?`, status, limit)
}

// TournamentParticipant represents registration of participant in tournament.
type TournamentParticipant struct {
	ID            int64  `db:"id"`
	TournamentID  string `db:"tournament_id"`
	ParticipantID int64  `db:"participant_id"`
	FinalRank     NInt64 `db:"final_rank"`
	RatingChange  int64  `db:"rating_change"`
	CreateTime    int64  `db:"create_time"`
}

// TournamentParticipantStore represents store of tournament registrations.
type TournamentParticipantStore struct {
	baseStore[TournamentParticipant]
}

// NewTournamentParticipantStore creates a new instance of TournamentParticipantStore.
func NewTournamentParticipantStore(conn *db.DB, table string) *TournamentParticipantStore {
	return &TournamentParticipantStore{baseStore[TournamentParticipant]{db: conn, table: table}}
}

// Create registers participant.
func (s *TournamentParticipantStore) Create(ctx context.Context, participant *TournamentParticipant) error {
	return db.InsertRow(ctx, s.db, *participant, &participant.ID, "id", s.table)
}

// Get returns registration of participant.
func (s *TournamentParticipantStore) Get(
	ctx context.Context, tournamentID string, participantID int64,
) (TournamentParticipant, error) {
	return s.findOne(ctx, `"tournament_id" = ? AND "participant_id" = ?`, tournamentID, participantID)
}

// FindByTournament returns registrations ordered by creation.
func (s *TournamentParticipantStore) FindByTournament(
	ctx context.Context, tournamentID string,
) ([]TournamentParticipant, error) {
	return s.findAll(ctx, `"tournament_id" = ? ORDER BY "id"`, tournamentID)
}

// Count returns amount of registered participants.
func (s *TournamentParticipantStore) Count(ctx context.Context, tournamentID string) (int64, error) {
	return s.count(ctx, `"tournament_id" = ?`, tournamentID)
}

// Delete deletes registration.
func (s *TournamentParticipantStore) Delete(ctx context.Context, id int64) error {
	return db.DeleteRow(ctx, s.db, id, "id", s.table)
}

// SetRank sets final rank if it was not set before.
//
// Returns false when participant was already ranked.
func (s *TournamentParticipantStore) SetRank(
	ctx context.Context, tournamentID string, participantID, rank int64,
) (bool, error) {
	count, err := s.db.Exec(
		ctx,
		fmt.Sprintf(
			`UPDATE %q SET "final_rank" = ? WHERE "tournament_id" = ? AND "participant_id" = ? AND "final_rank" IS NULL`,
			s.table,
		),
		rank, tournamentID, participantID,
	)
	if err != nil {
		return false, err
	}
	return count == 1, nil
}

// SetRatingChange stores rating change of participant.
func (s *TournamentParticipantStore) SetRatingChange(ctx context.Context, id, change int64) error {
	_, err := s.db.Exec(
		ctx, fmt.Sprintf(`UPDATE %q SET "rating_change" = ? WHERE "id" = ?`, s.table),
		change, id,
	)
	return err
}

// TournamentProblem represents problem of tournament pool.
type TournamentProblem struct {
	ID           int64  `db:"id"`
	TournamentID string `db:"tournament_id"`
	ProblemID    int64  `db:"problem_id"`
}

// TournamentProblemStore represents store of tournament problem pools.
type TournamentProblemStore struct {
	baseStore[TournamentProblem]
}

// NewTournamentProblemStore creates a new instance of TournamentProblemStore.
func NewTournamentProblemStore(conn *db.DB, table string) *TournamentProblemStore {
	return &TournamentProblemStore{baseStore[TournamentProblem]{db: conn, table: table}}
}

// Create adds problem to pool.
func (s *TournamentProblemStore) Create(ctx context.Context, problem *TournamentProblem) error {
	return db.InsertRow(ctx, s.db, *problem, &problem.ID, "id", s.table)
}

// Delete removes problem from pool.
func (s *TournamentProblemStore) Delete(ctx context.Context, tournamentID string, problemID int64) (bool, error) {
	count, err := s.db.Exec(
		ctx,
		fmt.Sprintf(`DELETE FROM %q WHERE "tournament_id" = ? AND "problem_id" = ?`, s.table),
		tournamentID, problemID,
	)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByTournament returns problem pool of tournament.
func (s *TournamentProblemStore) FindByTournament(ctx context.Context, tournamentID string) ([]TournamentProblem, error) {
	return s.findAll(ctx, `"tournament_id" = ? ORDER BY "id"`, tournamentID)
}
