package sqlstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anishxyz/integrations/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type stubCredentialStore struct {
	mu          sync.Mutex
	data        core.StoredData
	getCalls    int
	setCalls    int
	deleteCalls int
	getErr      error
	setErr      error
}

func (s *stubCredentialStore) Get(_ context.Context, _ core.ServiceKey, _ core.Subject) (core.StoredData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return nil, s.getErr
	}
	return core.CloneStoredData(s.data)
}

func (s *stubCredentialStore) Set(_ context.Context, _ core.ServiceKey, _ core.Subject, data core.StoredData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls++
	if s.setErr != nil {
		return s.setErr
	}
	cloned, err := core.CloneStoredData(data)
	if err != nil {
		return err
	}
	s.data = cloned
	return nil
}

func (s *stubCredentialStore) Delete(_ context.Context, _ core.ServiceKey, _ core.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	s.data = nil
	return nil
}

func TestCachedCredentialStore_Get_MissFetchThenHit(t *testing.T) {
	base := &stubCredentialStore{data: core.StoredData{"access_token": "tok"}}
	store, err := NewCachedCredentialStore(base, newTestCredentialCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	subject := core.SubjectID("user_cache_1")
	first, err := store.Get(context.Background(), core.ServiceGitHub, subject)
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected first get to fetch base store once, got %d", base.getCalls)
	}

	first["access_token"] = "mutated"
	second, err := store.Get(context.Background(), core.ServiceGitHub, subject)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected second get to be cache hit, base get calls=%d", base.getCalls)
	}
	if second["access_token"] != "tok" {
		t.Fatalf("expected cached record to be isolated from callers, got %v", second)
	}
}

func TestCachedCredentialStore_SetAndDeleteInvalidate(t *testing.T) {
	base := &stubCredentialStore{data: core.StoredData{"access_token": "v1"}}
	store, err := NewCachedCredentialStore(base, newTestCredentialCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	ctx := context.Background()
	subject := core.SubjectID("user_cache_2")

	if _, err := store.Get(ctx, core.ServiceSlack, subject); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if err := store.Set(ctx, core.ServiceSlack, subject, core.StoredData{"access_token": "v2"}); err != nil {
		t.Fatalf("set through cached store: %v", err)
	}
	data, err := store.Get(ctx, core.ServiceSlack, subject)
	if err != nil {
		t.Fatalf("get after set: %v", err)
	}
	if data["access_token"] != "v2" || base.getCalls != 2 {
		t.Fatalf("expected refetch after set, data=%v calls=%d", data, base.getCalls)
	}

	if err := store.Delete(ctx, core.ServiceSlack, subject); err != nil {
		t.Fatalf("delete through cached store: %v", err)
	}
	data, err = store.Get(ctx, core.ServiceSlack, subject)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if data != nil {
		t.Fatalf("expected nil after delete, got %v", data)
	}
}

func TestCachedCredentialStore_BaseErrorsAreNotCached(t *testing.T) {
	sentinel := errors.New("db down")
	base := &stubCredentialStore{getErr: sentinel}
	store, err := NewCachedCredentialStore(base, newTestCredentialCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	ctx := context.Background()
	subject := core.SubjectID("user_cache_3")

	if _, err := store.Get(ctx, core.ServiceNotion, subject); !errors.Is(err, sentinel) {
		t.Fatalf("expected base error, got %v", err)
	}
	base.mu.Lock()
	base.getErr = nil
	base.data = core.StoredData{"access_token": "recovered"}
	base.mu.Unlock()

	data, err := store.Get(ctx, core.ServiceNotion, subject)
	if err != nil {
		t.Fatalf("get after recovery: %v", err)
	}
	if data["access_token"] != "recovered" {
		t.Fatalf("expected fresh fetch after error, got %v", data)
	}
}

func TestCachedCredentialStore_SetFailureKeepsCache(t *testing.T) {
	base := &stubCredentialStore{data: core.StoredData{"access_token": "v1"}}
	store, err := NewCachedCredentialStore(base, newTestCredentialCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	ctx := context.Background()
	subject := core.SubjectID("user_cache_4")
	if _, err := store.Get(ctx, core.ServiceAsana, subject); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	base.setErr = errors.New("write failed")
	if err := store.Set(ctx, core.ServiceAsana, subject, core.StoredData{"access_token": "v2"}); err == nil {
		t.Fatalf("expected set error")
	}
	if _, err := store.Get(ctx, core.ServiceAsana, subject); err != nil {
		t.Fatalf("get after failed set: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected cache to survive a failed write, base get calls=%d", base.getCalls)
	}
}

func TestCredentialCacheKey_EscapesSegments(t *testing.T) {
	key, err := CredentialCacheKey(core.ServiceGoogle, core.SubjectID("team/a b"))
	if err != nil {
		t.Fatalf("cache key: %v", err)
	}
	if key != "integrations::credentials::v1::google::team%2Fa%20b" {
		t.Fatalf("unexpected cache key %q", key)
	}
	if !strings.HasPrefix(key, credentialCacheKeyPrefix) {
		t.Fatalf("expected prefix %q", credentialCacheKeyPrefix)
	}
	if _, err := CredentialCacheKey("", core.SubjectID("x")); err == nil {
		t.Fatalf("expected error for blank service")
	}
}

func TestNewCachedCredentialStore_RequiresDependencies(t *testing.T) {
	if _, err := NewCachedCredentialStore(nil, newTestCredentialCacheService(t)); err == nil {
		t.Fatalf("expected error for nil base store")
	}
	if _, err := NewCachedCredentialStore(&stubCredentialStore{}, nil); err == nil {
		t.Fatalf("expected error for nil cache service")
	}
}

func newTestCredentialCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}
