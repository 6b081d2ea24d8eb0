// Package migrations embeds the journal schema into the binary so the
// gateway can create its SQLite tables without files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-blegw/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
