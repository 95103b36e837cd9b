package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/anishxyz/integrations/core"
	"github.com/anishxyz/integrations/migrations"
	"github.com/anishxyz/integrations/security"
	redisstore "github.com/anishxyz/integrations/store/redis"
	sqlstore "github.com/anishxyz/integrations/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// backend is the credential store and refresh locker a runtime hands to the
// manager, plus whatever must be closed when the command ends.
type backend struct {
	store   core.CredentialStore
	locker  core.RefreshLocker
	closers []func() error
}

func (b *backend) Close() error {
	if b == nil {
		return nil
	}
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	b.closers = nil
	return errors.Join(errs...)
}

type persistenceConfig struct {
	driver      string
	server      string
	debug       bool
	pingTimeout time.Duration
	otel        string
}

func (c persistenceConfig) GetDebug() bool                { return c.debug }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.server }
func (c persistenceConfig) GetPingTimeout() time.Duration { return c.pingTimeout }
func (c persistenceConfig) GetOtelIdentifier() string     { return c.otel }

type connectFunc func(cfg persistenceConfig, db *sql.DB) (*persistence.Client, error)

func connectSQLite(cfg persistenceConfig, db *sql.DB) (*persistence.Client, error) {
	return persistence.New(cfg, db, sqlitedialect.New())
}

func connectPostgres(cfg persistenceConfig, db *sql.DB) (*persistence.Client, error) {
	return persistence.New(cfg, db, pgdialect.New())
}

func openBackend(ctx context.Context, cfg Config) (*backend, error) {
	secrets, err := secretProvider(cfg)
	if err != nil {
		return nil, err
	}
	switch cfg.Store {
	case StoreMemory, "":
		return &backend{
			store:  core.NewMemoryCredentialStore(),
			locker: core.NewMemoryRefreshLocker(),
		}, nil
	case StoreSQLite:
		return openSQLBackend(ctx, cfg, "sqlite3", migrations.DialectSQLite, connectSQLite, secrets)
	case StorePostgres:
		return openSQLBackend(ctx, cfg, "postgres", migrations.DialectPostgres, connectPostgres, secrets)
	case StoreRedis:
		return openRedisBackend(ctx, cfg, secrets)
	default:
		return nil, fmt.Errorf("cli: unknown store %q", cfg.Store)
	}
}

func secretProvider(cfg Config) (core.SecretProvider, error) {
	if cfg.AppKey == "" {
		return nil, nil
	}
	provider, err := security.NewAppKeySecretProviderFromString(cfg.AppKey, security.WithKeyID(cfg.AppKeyID))
	if err != nil {
		return nil, fmt.Errorf("cli: app key: %w", err)
	}
	return provider, nil
}

func openSQLBackend(
	ctx context.Context,
	cfg Config,
	driver string,
	dialect string,
	connect connectFunc,
	secrets core.SecretProvider,
) (*backend, error) {
	sqlDB, err := sql.Open(driver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("cli: open %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := connect(persistenceConfig{
		driver:      driver,
		server:      cfg.DatabaseURL,
		debug:       cfg.DatabaseLogs,
		pingTimeout: cfg.PingTimeout,
		otel:        cfg.ServiceName,
	}, sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("cli: persistence client: %w", err)
	}
	out := &backend{
		locker:  core.NewMemoryRefreshLocker(),
		closers: []func() error{client.Close},
	}

	_, err = migrations.Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	}, migrations.WithTargets(dialect))
	if err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("cli: register migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("cli: migrate: %w", err)
	}

	factoryOpts := []sqlstore.FactoryOption{}
	if secrets != nil {
		factoryOpts = append(factoryOpts, sqlstore.WithStoreOptions(sqlstore.WithSecretProvider(secrets)))
	}
	if cfg.CacheTTL > 0 {
		cacheConfig := repositorycache.DefaultConfig()
		cacheConfig.TTL = cfg.CacheTTL
		cacheService, err := repositorycache.NewCacheService(cacheConfig)
		if err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("cli: cache service: %w", err)
		}
		factoryOpts = append(factoryOpts, sqlstore.WithCacheService(cacheService))
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, factoryOpts...)
	if err != nil {
		_ = out.Close()
		return nil, err
	}
	out.store = factory.Store()
	return out, nil
}

func openRedisBackend(ctx context.Context, cfg Config, secrets core.SecretProvider) (*backend, error) {
	client, err := redisstore.Connect(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	out := &backend{closers: []func() error{client.Close}}
	storeOpts := []redisstore.Option{}
	if secrets != nil {
		storeOpts = append(storeOpts, redisstore.WithSecretProvider(secrets))
	}
	store, err := redisstore.NewCredentialStore(client, storeOpts...)
	if err != nil {
		_ = out.Close()
		return nil, err
	}
	locker, err := redisstore.NewRefreshLocker(client, "")
	if err != nil {
		_ = out.Close()
		return nil, err
	}
	out.store = store
	out.locker = locker
	return out, nil
}
