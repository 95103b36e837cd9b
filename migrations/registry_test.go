package migrations

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	integrations "github.com/anishxyz/integrations"
	_ "github.com/mattn/go-sqlite3"
)

func TestSources_ReturnsPostgresAndSQLite(t *testing.T) {
	sources, err := Sources(nil)
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].Dialect != DialectPostgres || sources[0].Path != "data/sql/migrations" {
		t.Fatalf("unexpected postgres source %+v", sources[0])
	}
	if sources[1].Dialect != DialectSQLite || sources[1].Path != "data/sql/migrations/sqlite" {
		t.Fatalf("unexpected sqlite source %+v", sources[1])
	}
}

func TestSources_AcceptsFlatDirectory(t *testing.T) {
	root := fstest.MapFS{
		"00001_x.up.sql":        {Data: []byte("SELECT 1;")},
		"sqlite/00001_x.up.sql": {Data: []byte("SELECT 1;")},
	}
	sources, err := Sources(root)
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	if sources[0].Path != "." || sources[1].Path != "sqlite" {
		t.Fatalf("unexpected paths %q %q", sources[0].Path, sources[1].Path)
	}
}

func TestSources_RejectsDialectWithoutUpFiles(t *testing.T) {
	root := fstest.MapFS{
		"00001_x.up.sql":          {Data: []byte("SELECT 1;")},
		"sqlite/00001_x.down.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := Sources(root); err == nil {
		t.Fatalf("expected error for sqlite directory without up migrations")
	}
}

func TestRegister_UsesTargetsAndLabel(t *testing.T) {
	var calls []string
	reg, err := Register(context.Background(), func(_ context.Context, dialect string, label string, _ fs.FS) error {
		calls = append(calls, dialect+":"+label)
		return nil
	}, WithTargets(" SQLite "), WithSourceLabel("billing"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(calls) != 1 || calls[0] != "sqlite:billing" {
		t.Fatalf("unexpected registration calls %v", calls)
	}
	if reg.Label != "billing" {
		t.Fatalf("expected label billing, got %q", reg.Label)
	}
}

func TestRegister_DefaultsToBothDialects(t *testing.T) {
	var calls []string
	if _, err := Register(context.Background(), func(_ context.Context, dialect string, label string, _ fs.FS) error {
		calls = append(calls, dialect+":"+label)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if strings.Join(calls, ",") != "postgres:integrations,sqlite:integrations" {
		t.Fatalf("unexpected registration calls %v", calls)
	}
}

func TestRegister_PropagatesRegisterErrors(t *testing.T) {
	sentinel := errors.New("boom")
	_, err := Register(context.Background(), func(context.Context, string, string, fs.FS) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil register function")
	}
}

func TestCredentialMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := integrations.MigrationsFS()
	paths := []string{
		"data/sql/migrations/00001_integration_credentials.up.sql",
		"data/sql/migrations/00001_integration_credentials.down.sql",
		"data/sql/migrations/sqlite/00001_integration_credentials.up.sql",
		"data/sql/migrations/sqlite/00001_integration_credentials.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteCredentialMigration_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-credentials?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	sqliteMigrations, err := fs.Sub(integrations.MigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	ctx := context.Background()
	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_integration_credentials.up.sql"); err != nil {
		t.Fatalf("apply credential migration up: %v", err)
	}

	insert := `
		INSERT INTO integration_credentials (
			id,
			service_key,
			subject_key,
			payload,
			payload_format,
			payload_version
		) VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := db.ExecContext(ctx, insert, "cred-1", "github", "user_1", []byte("{}"), "stored_credential_json", 1); err != nil {
		t.Fatalf("insert first row: %v", err)
	}
	if _, err := db.ExecContext(ctx, insert, "cred-2", "github", "user_1", []byte("{}"), "stored_credential_json", 1); err == nil {
		t.Fatalf("expected unique violation for duplicate service and subject")
	}
	if _, err := db.ExecContext(ctx, insert, "cred-3", "slack", "user_1", []byte("{}"), "stored_credential_json", 1); err != nil {
		t.Fatalf("insert row for another service: %v", err)
	}

	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_integration_credentials.down.sql"); err != nil {
		t.Fatalf("apply credential migration down: %v", err)
	}
	var count int
	if err := db.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
		"integration_credentials",
	).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master after down migration: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected integration_credentials to be dropped after down migration")
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
