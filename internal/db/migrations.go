package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/udovin/duel/internal/db/schema"
)

// Migration represents database migration.
type Migration interface {
	// Apply should apply database migration.
	Apply(ctx context.Context, conn *DB) error
	// Unapply should unapply database migration.
	Unapply(ctx context.Context, conn *DB) error
}

type NamedMigration struct {
	Name      string
	Migration Migration
}

// MigrationGroup represents group of database migrations.
type MigrationGroup interface {
	// AddMigration registers new migration to group.
	AddMigration(name string, m Migration)
	// GetMigration returns migration by name.
	GetMigration(name string) Migration
	// GetMigrations returns migrations by their order.
	GetMigrations() []NamedMigration
}

// NewMigration returns migration that applies operations in order
// and unapplies them in reverse order.
func NewMigration(operations []schema.Operation) Migration {
	return &simpleMigration{
		operations: operations,
	}
}

type simpleMigration struct {
	operations []schema.Operation
}

func (m *simpleMigration) Apply(ctx context.Context, conn *DB) error {
	tx := GetRunner(ctx, conn.DB)
	for _, op := range m.operations {
		query, err := op.BuildApply(conn.Dialect())
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (m *simpleMigration) Unapply(ctx context.Context, conn *DB) error {
	tx := GetRunner(ctx, conn.DB)
	for i := len(m.operations) - 1; i >= 0; i-- {
		query, err := m.operations[i].BuildUnapply(conn.Dialect())
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func NewMigrationGroup() MigrationGroup {
	return &migrationGroup{
		migrations: map[string]Migration{},
	}
}

type migrationGroup struct {
	migrations map[string]Migration
}

func (g *migrationGroup) AddMigration(name string, m Migration) {
	if _, ok := g.migrations[name]; ok {
		panic(fmt.Errorf("migration %q already exists", name))
	}
	g.migrations[name] = m
}

func (g *migrationGroup) GetMigration(name string) Migration {
	migration, ok := g.migrations[name]
	if !ok {
		panic(fmt.Errorf("migration %q does not exists", name))
	}
	return migration
}

func (g *migrationGroup) GetMigrations() []NamedMigration {
	var names []string
	for name := range g.migrations {
		names = append(names, name)
	}
	sort.Strings(names)
	var migrations []NamedMigration
	for _, name := range names {
		migrations = append(migrations, NamedMigration{
			Name:      name,
			Migration: g.migrations[name],
		})
	}
	return migrations
}

const migrationTableName = "duel_migration"

var migrationTable = schema.CreateTable{
	Name: migrationTableName,
	Columns: []schema.Column{
		{Name: "id", Type: schema.Int64, PrimaryKey: true, AutoIncrement: true},
		{Name: "group", Type: schema.String},
		{Name: "name", Type: schema.String},
		{Name: "time", Type: schema.Int64},
	},
}

type migration struct {
	ID    int64  `db:"id"`
	Group string `db:"group"`
	Name  string `db:"name"`
	Time  int64  `db:"time"`
}

type migrationState struct {
	Name      string
	Applied   bool
	Supported bool
}

type migrationManager struct {
	db    *DB
	group string
}

// ApplyMigrations applies migrations of group to database.
//
// By default all not applied migrations are applied.
func ApplyMigrations(
	ctx context.Context, conn *DB, name string, g MigrationGroup,
	options ...MigrateOption,
) error {
	m := migrationManager{db: conn, group: name}
	if err := m.init(ctx); err != nil {
		return err
	}
	return m.apply(ctx, g, options...)
}

func (m *migrationManager) init(ctx context.Context) error {
	query, err := migrationTable.BuildApply(m.db.Dialect())
	if err != nil {
		return err
	}
	_, err = m.db.DB.ExecContext(ctx, query)
	return err
}

func (m *migrationManager) getAppliedMigrations(ctx context.Context) ([]migration, error) {
	migrations, err := QueryAll[migration](
		ctx, m.db,
		fmt.Sprintf(
			`SELECT %s FROM %q WHERE "group" = ? ORDER BY "name"`,
			SelectColumns[migration](), migrationTableName,
		),
		m.group,
	)
	if err != nil {
		return nil, err
	}
	return migrations, nil
}

func (m *migrationManager) getState(ctx context.Context, g MigrationGroup) ([]migrationState, error) {
	migrations := g.GetMigrations()
	applied, err := m.getAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	var result []migrationState
	it, jt := 0, 0
	for it < len(migrations) || jt < len(applied) {
		switch {
		case jt == len(applied) || (it < len(migrations) && migrations[it].Name < applied[jt].Name):
			result = append(result, migrationState{Name: migrations[it].Name, Supported: true})
			it++
		case it == len(migrations) || applied[jt].Name < migrations[it].Name:
			result = append(result, migrationState{Name: applied[jt].Name, Applied: true})
			jt++
		default:
			result = append(result, migrationState{Name: applied[jt].Name, Applied: true, Supported: true})
			it++
			jt++
		}
	}
	return result, nil
}

type MigrateOption func(state []migrationState, beginPos, endPos *int) error

// WithMigration limits migrations to specified one inclusively.
func WithMigration(name string) MigrateOption {
	if name == "zero" {
		return WithZeroMigration
	}
	return func(state []migrationState, beginPos, endPos *int) error {
		for i := 0; i < len(state); i++ {
			if state[i].Name == name {
				*endPos = i + 1
				return nil
			}
		}
		return fmt.Errorf("invalid migration %q", name)
	}
}

// WithZeroMigration unapplies all migrations.
func WithZeroMigration(state []migrationState, beginPos, endPos *int) error {
	*endPos = 0
	return nil
}

func (m *migrationManager) apply(ctx context.Context, g MigrationGroup, options ...MigrateOption) error {
	state, err := m.getState(ctx, g)
	if err != nil {
		return err
	}
	beginPos := 0
	for i := 0; i < len(state); i++ {
		if state[i].Applied {
			beginPos = i + 1
		}
	}
	endPos := len(state)
	for _, option := range options {
		if err := option(state, &beginPos, &endPos); err != nil {
			return err
		}
	}
	if endPos < beginPos {
		return m.applyBackward(ctx, g, state[endPos:beginPos])
	}
	return m.applyForward(ctx, g, state[beginPos:endPos])
}

func (m *migrationManager) applyForward(ctx context.Context, g MigrationGroup, migrations []migrationState) error {
	for _, state := range migrations {
		if !state.Supported {
			return fmt.Errorf("migration %q is not supported", state.Name)
		}
		impl := g.GetMigration(state.Name)
		if err := m.db.WrapTx(ctx, func(ctx context.Context) error {
			if err := impl.Apply(ctx, m.db); err != nil {
				return err
			}
			if state.Applied {
				return nil
			}
			object := migration{
				Group: m.group,
				Name:  state.Name,
				Time:  time.Now().Unix(),
			}
			return InsertRow(ctx, m.db, object, &object.ID, "id", migrationTableName)
		}); err != nil {
			return fmt.Errorf("cannot apply migration %q: %w", state.Name, err)
		}
	}
	return nil
}

func (m *migrationManager) applyBackward(ctx context.Context, g MigrationGroup, migrations []migrationState) error {
	for i := len(migrations) - 1; i >= 0; i-- {
		state := migrations[i]
		if !state.Supported {
			return fmt.Errorf("migration %q is not supported", state.Name)
		}
		impl := g.GetMigration(state.Name)
		if err := m.db.WrapTx(ctx, func(ctx context.Context) error {
			if err := impl.Unapply(ctx, m.db); err != nil {
				return err
			}
			if !state.Applied {
				return nil
			}
			count, err := m.db.Exec(
				ctx,
				fmt.Sprintf(`DELETE FROM %q WHERE "group" = ? AND "name" = ?`, migrationTableName),
				m.group, state.Name,
			)
			if err != nil {
				return err
			}
			if count != 1 {
				return sql.ErrNoRows
			}
			return nil
		}); err != nil {
			return fmt.Errorf("cannot unapply migration %q: %w", state.Name, err)
		}
	}
	return nil
}
