package migrations

import (
	"github.com/udovin/duel/internal/db"
	"github.com/udovin/duel/internal/db/schema"
)

func init() {
	Schema.AddMigration("001_create_tables", db.NewMigration(m001Tables))
}

var m001Tables = []schema.Operation{
	schema.CreateTable{
		Name: "duel_profile",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Int64, PrimaryKey: true},
			{Name: "rating", Type: schema.Int64},
			{Name: "problems_solved_total", Type: schema.Int64},
			{Name: "streak", Type: schema.Int64},
			{Name: "last_submit_time", Type: schema.Int64},
			{Name: "rank", Type: schema.Int64},
		},
	},
	schema.CreateIndex{
		Name:    "duel_profile_rating_idx",
		Table:   "duel_profile",
		Columns: []string{"rating"},
	},
	schema.CreateTable{
		Name: "duel_problem",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Int64, PrimaryKey: true, AutoIncrement: true},
			{Name: "title", Type: schema.String},
			{Name: "difficulty", Type: schema.Int64},
			{Name: "time_limit", Type: schema.Int64},
			{Name: "memory_limit", Type: schema.Int64},
			{Name: "test_cases", Type: schema.JSON},
		},
	},
	schema.CreateTable{
		Name: "duel_session",
		Columns: []schema.Column{
			{Name: "id", Type: schema.String, PrimaryKey: true},
			{Name: "title", Type: schema.String},
			{Name: "creator_id", Type: schema.Int64},
			{Name: "capacity", Type: schema.Int64},
			{Name: "private", Type: schema.Bool},
			{Name: "access_code_hash", Type: schema.String},
			{Name: "duration", Type: schema.Int64},
			{Name: "tournament_id", Type: schema.String, Nullable: true},
			{Name: "state", Type: schema.Int64},
			{Name: "end_reason", Type: schema.String},
			{Name: "start_time", Type: schema.Int64, Nullable: true},
			{Name: "end_time", Type: schema.Int64, Nullable: true},
			{Name: "create_time", Type: schema.Int64},
		},
	},
	schema.CreateIndex{
		Name:    "duel_session_state_idx",
		Table:   "duel_session",
		Columns: []string{"state", "start_time"},
	},
	schema.CreateTable{
		Name: "duel_session_problem",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Int64, PrimaryKey: true, AutoIncrement: true},
			{Name: "session_id", Type: schema.String},
			{Name: "problem_id", Type: schema.Int64},
			{Name: "position", Type: schema.Int64},
		},
	},
	schema.CreateIndex{
		Name:    "duel_session_problem_session_id_problem_id_key",
		Table:   "duel_session_problem",
		Columns: []string{"session_id", "problem_id"},
		Unique:  true,
	},
	schema.CreateTable{
		Name: "duel_participation",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Int64, PrimaryKey: true, AutoIncrement: true},
			{Name: "session_id", Type: schema.String},
			{Name: "participant_id", Type: schema.Int64},
			{Name: "join_time", Type: schema.Int64},
			{Name: "problems_solved", Type: schema.Int64},
			{Name: "total_time", Type: schema.Int64},
			{Name: "is_ready", Type: schema.Bool},
			{Name: "score", Type: schema.Int64},
			{Name: "rating_change", Type: schema.Int64},
			{Name: "final_rank", Type: schema.Int64, Nullable: true},
		},
	},
	schema.CreateIndex{
		Name:    "duel_participation_session_id_participant_id_key",
		Table:   "duel_participation",
		Columns: []string{"session_id", "participant_id"},
		Unique:  true,
	},
	schema.CreateTable{
		Name: "duel_submission",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Int64, PrimaryKey: true, AutoIncrement: true},
			{Name: "session_id", Type: schema.String},
			{Name: "participant_id", Type: schema.Int64},
			{Name: "problem_id", Type: schema.Int64},
			{Name: "language", Type: schema.String},
			{Name: "code_key", Type: schema.String},
			{Name: "verdict", Type: schema.Int64},
			{Name: "tests", Type: schema.JSON},
			{Name: "create_time", Type: schema.Int64},
		},
	},
	schema.CreateIndex{
		Name:    "duel_submission_session_id_participant_id_idx",
		Table:   "duel_submission",
		Columns: []string{"session_id", "participant_id"},
	},
	schema.CreateTable{
		Name: "duel_accept",
		Columns: []schema.Column{
			{Name: "session_id", Type: schema.String},
			{Name: "participant_id", Type: schema.Int64},
			{Name: "problem_id", Type: schema.Int64},
			{Name: "submission_id", Type: schema.Int64},
			{Name: "create_time", Type: schema.Int64},
		},
	},
	schema.CreateIndex{
		Name:    "duel_accept_session_id_participant_id_problem_id_key",
		Table:   "duel_accept",
		Columns: []string{"session_id", "participant_id", "problem_id"},
		Unique:  true,
	},
	schema.CreateTable{
		Name: "duel_tournament",
		Columns: []schema.Column{
			{Name: "id", Type: schema.String, PrimaryKey: true},
			{Name: "title", Type: schema.String},
			{Name: "creator_id", Type: schema.Int64},
			{Name: "capacity", Type: schema.Int64},
			{Name: "format", Type: schema.String},
			{Name: "current_round", Type: schema.Int64},
			{Name: "total_rounds", Type: schema.Int64},
			{Name: "status", Type: schema.Int64},
			{Name: "create_time", Type: schema.Int64},
			{Name: "start_time", Type: schema.Int64, Nullable: true},
			{Name: "end_time", Type: schema.Int64, Nullable: true},
		},
	},
	schema.CreateTable{
		Name: "duel_tournament_participant",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Int64, PrimaryKey: true, AutoIncrement: true},
			{Name: "tournament_id", Type: schema.String},
			{Name: "participant_id", Type: schema.Int64},
			{Name: "final_rank", Type: schema.Int64, Nullable: true},
			{Name: "rating_change", Type: schema.Int64},
			{Name: "create_time", Type: schema.Int64},
		},
	},
	schema.CreateIndex{
		Name:    "duel_tournament_participant_tournament_id_participant_id_key",
		Table:   "duel_tournament_participant",
		Columns: []string{"tournament_id", "participant_id"},
		Unique:  true,
	},
	schema.CreateTable{
		Name: "duel_tournament_problem",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Int64, PrimaryKey: true, AutoIncrement: true},
			{Name: "tournament_id", Type: schema.String},
			{Name: "problem_id", Type: schema.Int64},
		},
	},
	schema.CreateIndex{
		Name:    "duel_tournament_problem_tournament_id_problem_id_key",
		Table:   "duel_tournament_problem",
		Columns: []string{"tournament_id", "problem_id"},
		Unique:  true,
	},
	schema.CreateTable{
		Name: "duel_match",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Int64, PrimaryKey: true, AutoIncrement: true},
			{Name: "tournament_id", Type: schema.String},
			{Name: "round", Type: schema.Int64},
			{Name: "number", Type: schema.Int64},
			{Name: "participant1_id", Type: schema.Int64},
			{Name: "participant2_id", Type: schema.Int64, Nullable: true},
			{Name: "winner_id", Type: schema.Int64, Nullable: true},
			{Name: "session_id", Type: schema.String, Nullable: true},
			{Name: "status", Type: schema.Int64},
		},
	},
	schema.CreateIndex{
		Name:    "duel_match_tournament_id_round_number_key",
		Table:   "duel_match",
		Columns: []string{"tournament_id", "round", "number"},
		Unique:  true,
	},
	schema.CreateIndex{
		Name:    "duel_match_session_id_idx",
		Table:   "duel_match",
		Columns: []string{"session_id"},
	},
}
