// Package migrations hands the credential schema migrations to a
// persistence client, one filesystem per SQL dialect.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	integrations "github.com/anishxyz/integrations"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	DefaultSourceLabel = "integrations"

	rootPath = "data/sql/migrations"
)

// Source is the migration filesystem of one dialect.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	Label   string
	Targets []string
	Sources []Source
}

// RegisterFunc receives each selected source, usually forwarding it to
// persistence.Client.RegisterDialectMigrations or RegisterSQLMigrations.
type RegisterFunc func(ctx context.Context, dialect string, label string, fsys fs.FS) error

type Option func(*Registration)

func WithSourceLabel(label string) Option {
	return func(r *Registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.Label = trimmed
		}
	}
}

// WithTargets restricts registration to the named dialects.
func WithTargets(dialects ...string) Option {
	return func(r *Registration) {
		if targets := normalizeDialects(dialects); len(targets) > 0 {
			r.Targets = targets
		}
	}
}

// WithSources replaces the embedded sources. Entries without a dialect or
// filesystem are dropped.
func WithSources(sources ...Source) Option {
	return func(r *Registration) {
		kept := make([]Source, 0, len(sources))
		for _, source := range sources {
			dialect := strings.ToLower(strings.TrimSpace(source.Dialect))
			if dialect == "" || source.FS == nil {
				continue
			}
			source.Dialect = dialect
			kept = append(kept, source)
		}
		if len(kept) > 0 {
			r.Sources = kept
		}
	}
}

// Sources splits root into the postgres and sqlite migration sources. root
// defaults to the module's embedded migrations and may either contain
// data/sql/migrations or be that directory itself.
func Sources(root fs.FS) ([]Source, error) {
	if root == nil {
		root = integrations.MigrationsFS()
	}
	base, basePath, err := locate(root)
	if err != nil {
		return nil, err
	}
	sqliteFS, err := fs.Sub(base, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite directory: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: basePath, FS: base},
		{Dialect: DialectSQLite, Path: joinPath(basePath, DialectSQLite), FS: sqliteFS},
	}
	for _, source := range sources {
		ups, globErr := fs.Glob(source.FS, "*.up.sql")
		if globErr != nil {
			return nil, fmt.Errorf("migrations: glob %s: %w", source.Path, globErr)
		}
		if len(ups) == 0 {
			return nil, fmt.Errorf("migrations: %s has no *.up.sql files", source.Path)
		}
	}
	return sources, nil
}

// Register calls registerFn for every source whose dialect is targeted.
// Both dialects are targeted by default.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		Label:   DefaultSourceLabel,
		Targets: []string{DialectPostgres, DialectSQLite},
	}
	sources, err := Sources(nil)
	if err != nil {
		return reg, err
	}
	reg.Sources = sources

	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	for _, source := range reg.Sources {
		if !slices.Contains(reg.Targets, source.Dialect) {
			continue
		}
		if err := registerFn(ctx, source.Dialect, reg.Label, source.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s from %s: %w", source.Dialect, source.Path, err)
		}
	}
	return reg, nil
}

func locate(root fs.FS) (fs.FS, string, error) {
	if _, err := fs.Stat(root, rootPath); err == nil {
		sub, subErr := fs.Sub(root, rootPath)
		if subErr != nil {
			return nil, "", fmt.Errorf("migrations: open %s: %w", rootPath, subErr)
		}
		return sub, rootPath, nil
	}
	if ups, err := fs.Glob(root, "*.up.sql"); err == nil && len(ups) > 0 {
		return root, ".", nil
	}
	return nil, "", fmt.Errorf("migrations: %s not found", rootPath)
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		dialect := strings.ToLower(strings.TrimSpace(value))
		if dialect == "" || slices.Contains(out, dialect) {
			continue
		}
		out = append(out, dialect)
	}
	return out
}

func joinPath(base string, name string) string {
	if base == "." {
		return name
	}
	return strings.TrimSuffix(base, "/") + "/" + name
}
