// Package db provides database connection wrapper and generic row helpers.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/udovin/gosql"
)

// DB represents database connection with its SQL dialect.
type DB struct {
	*sql.DB
	dialect gosql.Dialect
}

// NewDB creates a new instance of DB.
func NewDB(conn *sql.DB, dialect gosql.Dialect) *DB {
	return &DB{DB: conn, dialect: dialect}
}

// Dialect returns SQL dialect of database.
func (d *DB) Dialect() gosql.Dialect {
	return d.dialect
}

// Rebind rewrites '?' placeholders into dialect specific placeholders.
func (d *DB) Rebind(query string) string {
	if d.dialect != gosql.PostgresDialect {
		return query
	}
	var result strings.Builder
	result.Grow(len(query) + 8)
	pos := 0
	for _, c := range query {
		if c == '?' {
			pos++
			result.WriteByte('$')
			result.WriteString(strconv.Itoa(pos))
		} else {
			result.WriteRune(c)
		}
	}
	return result.String()
}

// ForUpdate returns row locking suffix for select queries.
//
// SQLite locks whole database on write so suffix is empty for it.
func (d *DB) ForUpdate() string {
	if d.dialect == gosql.PostgresDialect {
		return " FOR UPDATE"
	}
	return ""
}

type dbKey struct{}

func WithRunner(ctx context.Context, db gosql.Runner) context.Context {
	return context.WithValue(ctx, dbKey{}, db)
}

func GetRunner(ctx context.Context, db gosql.Runner) gosql.Runner {
	if r, ok := ctx.Value(dbKey{}).(gosql.Runner); ok {
		return r
	}
	return db
}

func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return WithRunner(ctx, tx)
}

func GetTx(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(dbKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// WrapTx runs function in transaction.
//
// If context already contains transaction, function joins it.
func (d *DB) WrapTx(
	ctx context.Context, fn func(ctx context.Context) error,
	options ...gosql.BeginTxOption,
) error {
	if GetTx(ctx) != nil {
		return fn(ctx)
	}
	return gosql.WrapTx(ctx, d.DB, func(tx *sql.Tx) error {
		return fn(WithTx(ctx, tx))
	}, options...)
}

// Exec executes query and returns amount of affected rows.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := GetRunner(ctx, d.DB).ExecContext(ctx, d.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Rows represents reader for rows.
type Rows[T any] interface {
	// Next should read next row and return true if row exists.
	Next() bool
	// Row should return current row.
	Row() T
	// Close should close reader.
	Close() error
	// Err should return error that occurred during reading.
	Err() error
}

type rowReader[T any] struct {
	rows *sql.Rows
	err  error
	row  T
	// refs contains pointers for each field in row.
	refs []any
}

func (r *rowReader[T]) Next() bool {
	if !r.rows.Next() {
		return false
	}
	r.err = r.rows.Scan(r.refs...)
	return r.err == nil
}

func (r *rowReader[T]) Row() T {
	return r.row
}

func (r *rowReader[T]) Close() error {
	return r.rows.Close()
}

func (r *rowReader[T]) Err() error {
	if err := r.rows.Err(); err != nil {
		return err
	}
	return r.err
}

func getRowFields[T any](row *T) []any {
	var fields []any
	var recursive func(reflect.Value)
	recursive = func(v reflect.Value) {
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			if _, ok := t.Field(i).Tag.Lookup("db"); ok {
				fields = append(fields, v.Field(i).Addr().Interface())
			} else if t.Field(i).Anonymous {
				recursive(v.Field(i))
			}
		}
	}
	recursive(reflect.ValueOf(row).Elem())
	return fields
}

// Columns returns column names of row type in declaration order.
func Columns[T any]() []string {
	var cols []string
	var recursive func(reflect.Type)
	recursive = func(t reflect.Type) {
		for i := 0; i < t.NumField(); i++ {
			if db, ok := t.Field(i).Tag.Lookup("db"); ok {
				name := strings.Split(db, ",")[0]
				cols = append(cols, name)
			} else if t.Field(i).Anonymous {
				recursive(t.Field(i).Type)
			}
		}
	}
	var object T
	recursive(reflect.TypeOf(object))
	return cols
}

// SelectColumns returns quoted list of columns for select query.
func SelectColumns[T any]() string {
	cols := Columns[T]()
	for i := range cols {
		cols[i] = fmt.Sprintf("%q", cols[i])
	}
	return strings.Join(cols, ", ")
}

// Query runs select query and returns typed rows.
//
// Query should select columns in order returned by Columns.
func Query[T any](ctx context.Context, d *DB, query string, args ...any) (Rows[T], error) {
	rows, err := GetRunner(ctx, d.DB).QueryContext(ctx, d.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	r := &rowReader[T]{rows: rows}
	r.refs = getRowFields(&r.row)
	return r, nil
}

// QueryAll runs select query and reads all rows.
func QueryAll[T any](ctx context.Context, d *DB, query string, args ...any) ([]T, error) {
	rows, err := Query[T](ctx, d, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var result []T
	for rows.Next() {
		result = append(result, rows.Row())
	}
	return result, rows.Err()
}

// QueryOne runs select query and returns first row.
//
// Returns sql.ErrNoRows when query has empty result.
func QueryOne[T any](ctx context.Context, d *DB, query string, args ...any) (T, error) {
	rows, err := Query[T](ctx, d, query, args...)
	if err != nil {
		var empty T
		return empty, err
	}
	defer func() { _ = rows.Close() }()
	if rows.Next() {
		return rows.Row(), nil
	}
	if err := rows.Err(); err != nil {
		var empty T
		return empty, err
	}
	var empty T
	return empty, sql.ErrNoRows
}

type sliceRows[T any] struct {
	rows []T
	pos  int
}

func (r *sliceRows[T]) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *sliceRows[T]) Row() T {
	return r.rows[r.pos]
}

func (r *sliceRows[T]) Close() error {
	return nil
}

func (r *sliceRows[T]) Err() error {
	return nil
}

func NewSliceRows[T any](rows []T) Rows[T] {
	return &sliceRows[T]{rows: rows, pos: -1}
}

func prepareUpsert(value reflect.Value, id string) ([]string, []any) {
	var cols []string
	var vals []any
	var recursive func(reflect.Value)
	recursive = func(v reflect.Value) {
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			if db, ok := t.Field(i).Tag.Lookup("db"); ok {
				name := strings.Split(db, ",")[0]
				if name == id {
					continue
				}
				cols = append(cols, name)
				vals = append(vals, v.Field(i).Interface())
			} else if t.Field(i).Anonymous {
				recursive(v.Field(i))
			}
		}
	}
	recursive(value)
	return cols, vals
}

func buildInsert(table string, cols []string) string {
	var query strings.Builder
	query.WriteString(fmt.Sprintf("INSERT INTO %q (", table))
	for i, col := range cols {
		if i > 0 {
			query.WriteString(", ")
		}
		query.WriteString(fmt.Sprintf("%q", col))
	}
	query.WriteString(") VALUES (")
	for i := range cols {
		if i > 0 {
			query.WriteString(", ")
		}
		query.WriteRune('?')
	}
	query.WriteRune(')')
	return query.String()
}

// InsertRow inserts row with generated int64 identifier.
func InsertRow[T any](
	ctx context.Context, d *DB, row T, rowID *int64, id, table string,
) error {
	cols, vals := prepareUpsert(reflect.ValueOf(row), id)
	query := buildInsert(table, cols)
	if d.dialect == gosql.PostgresDialect {
		query += fmt.Sprintf(" RETURNING %q", id)
		res := GetRunner(ctx, d.DB).QueryRowContext(ctx, d.Rebind(query), vals...)
		return res.Scan(rowID)
	}
	res, err := GetRunner(ctx, d.DB).ExecContext(ctx, query, vals...)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count != 1 {
		return fmt.Errorf("invalid amount of affected rows: %d", count)
	}
	*rowID, err = res.LastInsertId()
	return err
}

// InsertRowWithID inserts row with identifier provided by caller.
func InsertRowWithID[T any](ctx context.Context, d *DB, row T, table string) error {
	cols, vals := prepareUpsert(reflect.ValueOf(row), "")
	count, err := d.Exec(ctx, buildInsert(table, cols), vals...)
	if err != nil {
		return err
	}
	if count != 1 {
		return fmt.Errorf("invalid amount of affected rows: %d", count)
	}
	return nil
}

// UpdateRow updates all columns of row with specified identifier.
func UpdateRow[T any](
	ctx context.Context, d *DB, row T, rowID any, id, table string,
) error {
	cols, vals := prepareUpsert(reflect.ValueOf(row), id)
	var query strings.Builder
	query.WriteString(fmt.Sprintf("UPDATE %q SET ", table))
	for i, col := range cols {
		if i > 0 {
			query.WriteString(", ")
		}
		query.WriteString(fmt.Sprintf("%q = ?", col))
	}
	query.WriteString(fmt.Sprintf(" WHERE %q = ?", id))
	count, err := d.Exec(ctx, query.String(), append(vals, rowID)...)
	if err != nil {
		return err
	}
	if count < 1 {
		return sql.ErrNoRows
	} else if count > 1 {
		return fmt.Errorf("updated %d objects", count)
	}
	return nil
}

// DeleteRow deletes row with specified identifier.
func DeleteRow(ctx context.Context, d *DB, rowID any, id, table string) error {
	count, err := d.Exec(ctx, fmt.Sprintf("DELETE FROM %q WHERE %q = ?", table, id), rowID)
	if err != nil {
		return err
	}
	if count < 1 {
		return sql.ErrNoRows
	} else if count > 1 {
		return fmt.Errorf("deleted %d objects", count)
	}
	return nil
}
