package config

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	// Register SQL drivers.
	_ "github.com/jackc/pgx/v4/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/udovin/gosql"

	"github.com/udovin/duel/internal/db"
)

type DBDriver string

const (
	SQLiteDriver   DBDriver = "sqlite"
	PostgresDriver DBDriver = "postgres"
)

type DBOptions interface {
	Driver() DBDriver
	createDB() (*db.DB, error)
}

// DB stores configuration for database connection.
type DB struct {
	Options DBOptions `json:"options"`
}

// SQLiteOptions stores SQLite connection options.
type SQLiteOptions struct {
	// Path contains path to SQLite database file.
	Path string `json:"path"`
}

func (o SQLiteOptions) Driver() DBDriver {
	return SQLiteDriver
}

func (o SQLiteOptions) createDB() (*db.DB, error) {
	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", o.Path))
	if err != nil {
		return nil, err
	}
	// This can increase writes performance.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = conn.Close()
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	return db.NewDB(conn, gosql.SQLiteDialect), nil
}

// PostgresOptions stores Postgres connection options.
type PostgresOptions struct {
	Hosts    []string `json:"hosts"`
	User     string   `json:"user"`
	Password Secret   `json:"password"`
	Name     string   `json:"name"`
	SSLMode  string   `json:"sslmode,omitempty"`
}

func (o PostgresOptions) Driver() DBDriver {
	return PostgresDriver
}

func (o PostgresOptions) dataSourceName() (string, error) {
	password, err := o.Password.Secret()
	if err != nil {
		return "", err
	}
	if len(o.Hosts) == 0 {
		return "", fmt.Errorf("postgres hosts are not specified")
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(o.User, password),
		Host:     strings.Join(o.Hosts, ","),
		Path:     "/" + o.Name,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return dsn.String(), nil
}

func (o PostgresOptions) createDB() (*db.DB, error) {
	dsn, err := o.dataSourceName()
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return db.NewDB(conn, gosql.PostgresDialect), nil
}

// Create creates database connection using current configuration.
func (c DB) Create() (*db.DB, error) {
	if c.Options == nil {
		return nil, fmt.Errorf("database is not configured")
	}
	return c.Options.createDB()
}

func (c DB) MarshalJSON() ([]byte, error) {
	cfg := struct {
		Driver  DBDriver  `json:"driver"`
		Options DBOptions `json:"options"`
	}{
		Options: c.Options,
	}
	if c.Options != nil {
		cfg.Driver = c.Options.Driver()
	}
	return json.Marshal(cfg)
}

func (c *DB) UnmarshalJSON(bytes []byte) error {
	var cfg struct {
		Driver  DBDriver        `json:"driver"`
		Options json.RawMessage `json:"options"`
	}
	if err := json.Unmarshal(bytes, &cfg); err != nil {
		return err
	}
	switch cfg.Driver {
	case SQLiteDriver:
		var options SQLiteOptions
		if err := json.Unmarshal(cfg.Options, &options); err != nil {
			return err
		}
		c.Options = options
	case PostgresDriver:
		var options PostgresOptions
		if err := json.Unmarshal(cfg.Options, &options); err != nil {
			return err
		}
		c.Options = options
	default:
		return fmt.Errorf("driver %q is not supported", cfg.Driver)
	}
	return nil
}
