package redisstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anishxyz/integrations/core"
	"github.com/google/uuid"
)

const DefaultLockPrefix = "integrations:lock"

// unlockScript deletes the lock only while it still carries our token.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// RefreshLocker is a core.RefreshLocker shared by every process talking to
// the same Redis: SET NX PX to acquire, a token checked delete to release.
type RefreshLocker struct {
	client Client
	prefix string
}

func NewRefreshLocker(client Client, prefix string) (*RefreshLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("redisstore: redis client is required")
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = DefaultLockPrefix
	}
	return &RefreshLocker{client: client, prefix: prefix}, nil
}

func (l *RefreshLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (core.LockHandle, error) {
	if l == nil || l.client == nil {
		return nil, fmt.Errorf("redisstore: refresh locker is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("redisstore: lock key is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("redisstore: lock ttl must be positive")
	}
	redisKey := l.prefix + ":" + key
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, core.RefreshLockedError(key)
	}
	return &lockHandle{client: l.client, key: redisKey, token: token}, nil
}

type lockHandle struct {
	client Client
	key    string
	token  string
	once   sync.Once
	err    error
}

func (h *lockHandle) Unlock(ctx context.Context) error {
	h.once.Do(func() {
		h.err = h.client.Eval(ctx, unlockScript, []string{h.key}, h.token).Err()
	})
	return h.err
}

var _ core.RefreshLocker = (*RefreshLocker)(nil)
