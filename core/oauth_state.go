package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	gocache "github.com/patrickmn/go-cache"
)

const defaultOAuthStateTTL = 15 * time.Minute

// OAuthStateRecord is what Authorize remembers about an issued state until
// the matching Exchange consumes it.
type OAuthStateRecord struct {
	State       string
	Service     ServiceKey
	RedirectURI string
	Scope       []string
	Metadata    map[string]any
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

type OAuthStateStore interface {
	Save(ctx context.Context, record OAuthStateRecord) error
	Consume(ctx context.Context, state string) (OAuthStateRecord, error)
}

// MemoryOAuthStateStore keeps states in a TTL cache. Consume removes the
// entry so a state can be used once.
type MemoryOAuthStateStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries *gocache.Cache
}

func NewMemoryOAuthStateStore(ttl time.Duration) *MemoryOAuthStateStore {
	if ttl <= 0 {
		ttl = defaultOAuthStateTTL
	}
	return &MemoryOAuthStateStore{
		ttl:     ttl,
		entries: gocache.New(ttl, time.Minute),
	}
}

func (s *MemoryOAuthStateStore) Save(_ context.Context, record OAuthStateRecord) error {
	if s == nil {
		return fmt.Errorf("core: oauth state store is not configured")
	}
	state := strings.TrimSpace(record.State)
	if state == "" {
		return fmt.Errorf("core: oauth state is required")
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.ExpiresAt.IsZero() {
		record.ExpiresAt = record.CreatedAt.Add(s.ttl)
	}
	ttl := record.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return fmt.Errorf("core: oauth state already expired")
	}

	s.mu.Lock()
	s.entries.Set(state, cloneOAuthStateRecord(record), ttl)
	s.mu.Unlock()
	return nil
}

func (s *MemoryOAuthStateStore) Consume(_ context.Context, state string) (OAuthStateRecord, error) {
	if s == nil {
		return OAuthStateRecord{}, fmt.Errorf("core: oauth state store is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return OAuthStateRecord{}, fmt.Errorf("core: oauth state is required")
	}

	s.mu.Lock()
	value, ok := s.entries.Get(state)
	if ok {
		s.entries.Delete(state)
	}
	s.mu.Unlock()

	if !ok {
		return OAuthStateRecord{}, newIntegrationError("oauth state not found or expired", goerrors.CategoryAuth, ErrorOAuthStateInvalid)
	}
	record, _ := value.(OAuthStateRecord)
	return cloneOAuthStateRecord(record), nil
}

// GenerateOAuthState returns 24 random bytes encoded as unpadded base64url.
func GenerateOAuthState() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func cloneOAuthStateRecord(record OAuthStateRecord) OAuthStateRecord {
	cloned := record
	cloned.Scope = append([]string(nil), record.Scope...)
	cloned.Metadata = copyAnyMap(record.Metadata)
	return cloned
}
