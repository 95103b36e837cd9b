package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultRefreshMaxAttempts    = 3
	defaultRefreshInitialBackoff = 500 * time.Millisecond
	defaultRefreshMaxBackoff     = 10 * time.Second
	defaultRefreshLockTTL        = 30 * time.Second
	defaultTokenTimeout          = 30 * time.Second
)

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// RefreshLocker guards a refresh run for one lock key.
type RefreshLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (LockHandle, error)
}

type RefreshBackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := s.Initial
	if initial <= 0 {
		initial = defaultRefreshInitialBackoff
	}
	max := s.Max
	if max <= 0 {
		max = defaultRefreshMaxBackoff
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

type RefreshRunResult struct {
	Token    *Token
	Attempts int
	// Reauthorize is set when the failure cannot be fixed by retrying and the
	// subject has to go through the authorization flow again.
	Reauthorize bool
}

type RefreshRunOptions struct {
	MaxAttempts int
	LockTTL     time.Duration
}

// RefreshLockKey is the lock key guarding refreshes of (service, subject).
func RefreshLockKey(service ServiceKey, subjectKey string) string {
	return "refresh:" + string(service) + ":" + subjectKey
}

// RunRefreshWithRetry refreshes the stored credentials for (name, subject)
// under the refresh lock, retrying recoverable failures with backoff.
func (m *Manager) RunRefreshWithRetry(ctx context.Context, name string, subject Subject, opts RefreshRunOptions) (RefreshRunResult, error) {
	key := ServiceKey(NormalizeName(name))
	subjectKey, err := subject.Key()
	if err != nil {
		return RefreshRunResult{}, m.mapError(err)
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = m.config.RefreshMaxAttempts
	}
	if maxAttempts < 1 {
		maxAttempts = defaultRefreshMaxAttempts
	}
	lockTTL := opts.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultRefreshLockTTL
	}

	unlock := func() {}
	if m.refreshLocker != nil {
		lockHandle, lockErr := m.refreshLocker.Acquire(ctx, RefreshLockKey(key, subjectKey), lockTTL)
		if lockErr != nil {
			return RefreshRunResult{}, m.mapError(lockErr)
		}
		unlock = func() {
			_ = lockHandle.Unlock(ctx)
		}
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		token, err := m.RefreshCredentials(ctx, string(key), subject)
		if err == nil {
			return RefreshRunResult{Token: token, Attempts: attempt}, nil
		}
		fields := map[string]any{
			"service_key": string(key),
			"subject":     subject.String(),
			"attempts":    attempt,
			"error":       err.Error(),
		}
		if isUnrecoverableRefreshError(err) {
			m.logInfo(ctx, "refresh requires reauthorization", fields)
			return RefreshRunResult{Attempts: attempt, Reauthorize: true}, err
		}
		if attempt >= maxAttempts {
			m.logInfo(ctx, "refresh attempts exhausted", fields)
			return RefreshRunResult{Attempts: attempt}, err
		}

		delay := defaultRefreshInitialBackoff
		if m.refreshBackoff != nil {
			delay = m.refreshBackoff.NextDelay(attempt)
		}
		if waitErr := waitWithContext(ctx, delay); waitErr != nil {
			return RefreshRunResult{Attempts: attempt}, m.mapError(waitErr)
		}
	}
}

func isUnrecoverableRefreshError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.TextCode {
		case ErrorMissingCredentials, ErrorMissingOAuth2Params, ErrorUnsupportedFlow, ErrorUnknownKey:
			return true
		}
		switch richErr.Category {
		case goerrors.CategoryAuth, goerrors.CategoryAuthz, goerrors.CategoryValidation, goerrors.CategoryNotFound:
			return true
		}
		if code, ok := richErr.Metadata["oauth_error"].(string); ok {
			switch code {
			case "invalid_grant", "invalid_client", "unauthorized_client":
				return true
			}
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "invalid_grant") ||
		strings.Contains(msg, "invalid refresh token")
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type MemoryRefreshLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLock
	seq   uint64
	nowFn func() time.Time
}

type memoryLock struct {
	owner uint64
	until time.Time
}

func NewMemoryRefreshLocker() *MemoryRefreshLocker {
	return &MemoryRefreshLocker{
		locks: make(map[string]memoryLock),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryRefreshLocker) Acquire(_ context.Context, key string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: refresh locker is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("core: lock key is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = defaultRefreshLockTTL
	}

	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.locks[key]; ok && now.Before(held.until) {
		return nil, RefreshLockedError(key)
	}
	l.seq++
	l.locks[key] = memoryLock{owner: l.seq, until: now.Add(ttl)}
	return &memoryLockHandle{locker: l, key: key, owner: l.seq}, nil
}

type memoryLockHandle struct {
	locker *MemoryRefreshLocker
	key    string
	owner  uint64
	once   sync.Once
}

// Unlock releases the lock only while this handle still owns it; a lock
// taken over after expiry stays with its new holder.
func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		defer h.locker.mu.Unlock()
		if held, ok := h.locker.locks[h.key]; ok && held.owner == h.owner {
			delete(h.locker.locks, h.key)
		}
	})
	return nil
}
