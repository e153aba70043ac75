// Package migrations contains database migrations of Duel.
package migrations

import (
	"github.com/udovin/duel/internal/db"
)

// Schema contains schema migrations.
var Schema = db.NewMigrationGroup()
