package sqlstore

import (
	"fmt"

	"github.com/anishxyz/integrations/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds the SQL credential store from a persistence
// client or a bare bun DB, optionally fronted by a cache.
type RepositoryFactory struct {
	db      *bun.DB
	options []CredentialStoreOption
	cache   repositorycache.CacheService

	credentialStore *CredentialStore
	cachedStore     *CachedCredentialStore
}

type FactoryOption func(*RepositoryFactory)

// WithStoreOptions forwards options to the credential store.
func WithStoreOptions(opts ...CredentialStoreOption) FactoryOption {
	return func(f *RepositoryFactory) {
		f.options = append(f.options, opts...)
	}
}

// WithCacheService puts a CachedCredentialStore in front of the SQL store.
func WithCacheService(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cache = cacheService
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStore(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStore(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// BuildStore resolves the bun DB once and returns the store to hand to the
// manager: the cached store when a cache service is set.
func (f *RepositoryFactory) BuildStore(persistenceClient any) (core.CredentialStore, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.credentialStore == nil {
		store, err := NewCredentialStore(f.db, f.options...)
		if err != nil {
			return nil, err
		}
		f.credentialStore = store
	}
	if f.cache != nil && f.cachedStore == nil {
		cached, err := NewCachedCredentialStore(f.credentialStore, f.cache)
		if err != nil {
			return nil, err
		}
		f.cachedStore = cached
	}
	return f.Store(), nil
}

// Store returns the cached store when one was built, else the SQL store.
func (f *RepositoryFactory) Store() core.CredentialStore {
	if f == nil {
		return nil
	}
	if f.cachedStore != nil {
		return f.cachedStore
	}
	if f.credentialStore == nil {
		return nil
	}
	return f.credentialStore
}

func (f *RepositoryFactory) CredentialStore() *CredentialStore {
	if f == nil {
		return nil
	}
	return f.credentialStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
