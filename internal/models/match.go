package models

import (
	"context"
	"fmt"

	"github.com/udovin/duel/internal/db"
)

// MatchStatus represents status of tournament match.
type MatchStatus int

const (
	PendingMatch    MatchStatus = 1
	InProgressMatch MatchStatus = 2
	CompletedMatch  MatchStatus = 3
	CancelledMatch  MatchStatus = 4
)

// String returns string representation.
func (s MatchStatus) String() string {
	switch s {
	case PendingMatch:
		return "pending"
	case InProgressMatch:
		return "in_progress"
	case CompletedMatch:
		return "completed"
	case CancelledMatch:
		return "cancelled"
	default:
		return fmt.Sprintf("MatchStatus(%d)", s)
	}
}

func (s MatchStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *MatchStatus) UnmarshalText(data []byte) error {
	switch v := string(data); v {
	case "pending":
		*s = PendingMatch
	case "in_progress":
		*s = InProgressMatch
	case "completed":
		*s = CompletedMatch
	case "cancelled":
		*s = CancelledMatch
	default:
		return fmt.Errorf("unsupported status: %q", v)
	}
	return nil
}

// Match represents pairing of two participants in tournament round.
//
// Match without second participant is a bye.
type Match struct {
	ID             int64       `db:"id" json:"id"`
	TournamentID   string      `db:"tournament_id" json:"tournament_id"`
	Round          int64       `db:"round" json:"round"`
	Number         int64       `db:"number" json:"number"`
	Participant1ID int64       `db:"participant1_id" json:"participant1_id"`
	Participant2ID NInt64      `db:"participant2_id" json:"participant2_id,omitempty"`
	WinnerID       NInt64      `db:"winner_id" json:"winner_id,omitempty"`
	SessionID      NString     `db:"session_id" json:"session_id,omitempty"`
	Status         MatchStatus `db:"status" json:"status"`
}

// IsBye returns true when match has only one participant.
func (o Match) IsBye() bool {
	return o.Participant2ID == 0
}

// Loser returns ID of participant that lost match.
func (o Match) Loser() int64 {
	switch int64(o.WinnerID) {
	case 0:
		return 0
	case o.Participant1ID:
		return int64(o.Participant2ID)
	default:
		return o.Participant1ID
	}
}

// HasParticipant returns true when participant plays in match.
func (o Match) HasParticipant(id int64) bool {
	if id == 0 {
		return false
	}
	return o.Participant1ID == id || int64(o.Participant2ID) == id
}

// MatchStore represents store of tournament matches.
type MatchStore struct {
	baseStore[Match]
}

// NewMatchStore creates a new instance of MatchStore.
func NewMatchStore(conn *db.DB, table string) *MatchStore {
	return &MatchStore{baseStore[Match]{db: conn, table: table}}
}

// Create creates match.
func (s *MatchStore) Create(ctx context.Context, match *Match) error {
	return db.InsertRow(ctx, s.db, *match, &match.ID, "id", s.table)
}

// Get returns match by ID.
func (s *MatchStore) Get(ctx context.Context, id int64) (Match, error) {
	return s.findOne(ctx, `"id" = ?`, id)
}

// Update updates match.
func (s *MatchStore) Update(ctx context.Context, match Match) error {
	return db.UpdateRow(ctx, s.db, match, match.ID, "id", s.table)
}

// FindBySession returns match linked to session.
func (s *MatchStore) FindBySession(ctx context.Context, sessionID string) (Match, error) {
	return s.findOne(ctx, `"session_id" = ?`, sessionID)
}

// FindByRound returns matches of round ordered by number.
func (s *MatchStore) FindByRound(ctx context.Context, tournamentID string, round int64) ([]Match, error) {
	return s.findAll(ctx, `"tournament_id" = ? AND "round" = ? ORDER BY "number"`, tournamentID, round)
}

// FindByTournament returns all matches of tournament.
func (s *MatchStore) FindByTournament(ctx context.Context, tournamentID string) ([]Match, error) {
	return s.findAll(ctx, `"tournament_id" = ? ORDER BY "round", "number"`, tournamentID)
}
