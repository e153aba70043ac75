package models

import (
	"context"
	"fmt"

	"github.com/udovin/duel/internal/db"
)

// baseStore contains common queries of table backed stores.
type baseStore[T any] struct {
	db    *db.DB
	table string
}

func (s baseStore[T]) selectQuery(where string) string {
	return fmt.Sprintf(
		"SELECT %s FROM %q WHERE %s",
		db.SelectColumns[T](), s.table, where,
	)
}

func (s baseStore[T]) findOne(ctx context.Context, where string, args ...any) (T, error) {
	return db.QueryOne[T](ctx, s.db, s.selectQuery(where), args...)
}

func (s baseStore[T]) findOneForUpdate(ctx context.Context, where string, args ...any) (T, error) {
	return db.QueryOne[T](ctx, s.db, s.selectQuery(where)+s.db.ForUpdate(), args...)
}

func (s baseStore[T]) findAll(ctx context.Context, where string, args ...any) ([]T, error) {
	return db.QueryAll[T](ctx, s.db, s.selectQuery(where), args...)
}

func (s baseStore[T]) count(ctx context.Context, where string, args ...any) (int64, error) {
	type countRow struct {
		Count int64 `db:"count"`
	}
	row, err := db.QueryOne[countRow](
		ctx, s.db,
		fmt.Sprintf(`SELECT COUNT(*) AS "count" FROM %q WHERE %s`, s.table, where),
		args...,
	)
	if err != nil {
		return 0, err
	}
	return row.Count, nil
}

// insertIgnore inserts row with specified identifier and returns false
// if row conflicts with existing one.
func (s baseStore[T]) insertIgnore(ctx context.Context, cols []string, args ...any) (bool, error) {
	query := fmt.Sprintf("INSERT INTO %q (", s.table)
	values := ""
	for i, col := range cols {
		if i > 0 {
			query += ", "
			values += ", "
		}
		query += fmt.Sprintf("%q", col)
		values += "?"
	}
	query += ") VALUES (" + values + ") ON CONFLICT DO NOTHING"
	count, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return count == 1, nil
}
