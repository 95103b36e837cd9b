package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/anishxyz/integrations/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const credentialCacheKeyPrefix = "integrations::credentials::v1"

// CachedCredentialStore is a read-through cache in front of any credential
// store. Writes go to the base store first and then drop the cached entry.
type CachedCredentialStore struct {
	base  core.CredentialStore
	cache repositorycache.CacheService
}

func NewCachedCredentialStore(
	base core.CredentialStore,
	cacheService repositorycache.CacheService,
) (*CachedCredentialStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base credential store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: credential cache service is required")
	}
	return &CachedCredentialStore{base: base, cache: cacheService}, nil
}

// CredentialCacheKey renders
// integrations::credentials::v1::<service>::<subject key>, each segment URL
// path escaped.
func CredentialCacheKey(service core.ServiceKey, subject core.Subject) (string, error) {
	serviceKey, subjectKey, err := recordKey(service, subject)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{
		credentialCacheKeyPrefix,
		url.PathEscape(serviceKey),
		url.PathEscape(subjectKey),
	}, "::"), nil
}

func (s *CachedCredentialStore) Get(ctx context.Context, service core.ServiceKey, subject core.Subject) (core.StoredData, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	cacheKey, err := CredentialCacheKey(service, subject)
	if err != nil {
		return nil, err
	}
	data, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.StoredData, error) {
		return s.base.Get(ctx, service, subject)
	})
	if err != nil {
		return nil, err
	}
	return core.CloneStoredData(data)
}

func (s *CachedCredentialStore) Set(ctx context.Context, service core.ServiceKey, subject core.Subject, data core.StoredData) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	cacheKey, err := CredentialCacheKey(service, subject)
	if err != nil {
		return err
	}
	if err := s.base.Set(ctx, service, subject, data); err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func (s *CachedCredentialStore) Delete(ctx context.Context, service core.ServiceKey, subject core.Subject) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	cacheKey, err := CredentialCacheKey(service, subject)
	if err != nil {
		return err
	}
	if err := s.base.Delete(ctx, service, subject); err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}
