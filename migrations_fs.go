package integrations

import (
	"embed"
	"io/fs"
)

// Postgres migrations live in data/sql/migrations and the sqlite variants in
// data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// MigrationsFS returns the embedded credential schema migrations.
func MigrationsFS() fs.FS {
	return migrationsFS
}
