package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/anishxyz/integrations/core"
	"github.com/anishxyz/integrations/security"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

func TestCredentialStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	server, client := newTestClient(t)
	store, err := NewCredentialStore(client)
	require.NoError(t, err)

	subject := core.SubjectID("user_1")
	data, err := store.Get(ctx, core.ServiceGitHub, subject)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, store.Set(ctx, core.ServiceGitHub, subject, core.StoredData{
		"access_token":  "gho_1",
		"refresh_token": "ghr_1",
	}))
	require.NoError(t, store.Set(ctx, core.ServiceGitHub, subject, core.StoredData{"access_token": "gho_2"}))

	data, err = store.Get(ctx, core.ServiceGitHub, subject)
	require.NoError(t, err)
	assert.Equal(t, core.StoredData{"access_token": "gho_2"}, data)
	assert.True(t, server.Exists("integrations:credentials:github"))
	fields, err := server.HKeys("integrations:credentials:github")
	require.NoError(t, err)
	assert.Equal(t, []string{"user_1"}, fields)

	require.NoError(t, store.Delete(ctx, core.ServiceGitHub, subject))
	require.NoError(t, store.Delete(ctx, core.ServiceGitHub, subject))
	data, err = store.Get(ctx, core.ServiceGitHub, subject)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestCredentialStore_MappingSubjectUsesCanonicalField(t *testing.T) {
	ctx := context.Background()
	server, client := newTestClient(t)
	store, err := NewCredentialStore(client, WithKeyPrefix("tenant-a:creds:"))
	require.NoError(t, err)

	subject := core.SubjectAttrs(map[string]any{"user": "u1", "org": "o1"})
	require.NoError(t, store.Set(ctx, core.ServiceSlack, subject, core.StoredData{"access_token": "xoxb"}))

	fields, err := server.HKeys("tenant-a:creds:slack")
	require.NoError(t, err)
	assert.Equal(t, []string{`{"org":"o1","user":"u1"}`}, fields)

	reordered := core.SubjectAttrs(map[string]any{"org": "o1", "user": "u1"})
	data, err := store.Get(ctx, core.ServiceSlack, reordered)
	require.NoError(t, err)
	assert.Equal(t, "xoxb", data["access_token"])
}

func TestCredentialStore_EncryptsPayload(t *testing.T) {
	ctx := context.Background()
	server, client := newTestClient(t)
	secrets, err := security.NewAppKeySecretProviderFromString("redis-test-key")
	require.NoError(t, err)
	store, err := NewCredentialStore(client, WithSecretProvider(secrets))
	require.NoError(t, err)

	subject := core.SubjectID("enc")
	require.NoError(t, store.Set(ctx, core.ServiceNotion, subject, core.StoredData{"access_token": "secret_abc"}))

	raw := server.HGet("integrations:credentials:notion", "enc")
	assert.NotContains(t, raw, "secret_abc")

	data, err := store.Get(ctx, core.ServiceNotion, subject)
	require.NoError(t, err)
	assert.Equal(t, "secret_abc", data["access_token"])
}

func TestCredentialStore_RejectsInvalidInput(t *testing.T) {
	_, err := NewCredentialStore(nil)
	require.Error(t, err)

	_, client := newTestClient(t)
	store, err := NewCredentialStore(client)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), " ", core.SubjectID("u"))
	require.Error(t, err)
	err = store.Set(context.Background(), core.ServiceAsana, core.SubjectID(""), core.StoredData{})
	require.Error(t, err)
}

func TestCredentialStore_PropagatesConnectionErrors(t *testing.T) {
	server, client := newTestClient(t)
	store, err := NewCredentialStore(client)
	require.NoError(t, err)
	server.Close()

	_, err = store.Get(context.Background(), core.ServiceHubSpot, core.SubjectID("u"))
	require.Error(t, err)
}

func TestRefreshLocker_AcquireReleaseAndExpire(t *testing.T) {
	ctx := context.Background()
	server, client := newTestClient(t)
	locker, err := NewRefreshLocker(client, "")
	require.NoError(t, err)

	key := core.RefreshLockKey(core.ServiceGoogle, "user_1")
	handle, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, server.Exists(DefaultLockPrefix+":"+key))

	_, err = locker.Acquire(ctx, key, time.Minute)
	require.Error(t, err)
	assert.True(t, core.IsRefreshLocked(err))

	require.NoError(t, handle.Unlock(ctx))
	require.NoError(t, handle.Unlock(ctx))
	assert.False(t, server.Exists(DefaultLockPrefix+":"+key))

	_, err = locker.Acquire(ctx, key, time.Second)
	require.NoError(t, err)
	server.FastForward(2 * time.Second)
	_, err = locker.Acquire(ctx, key, time.Second)
	require.NoError(t, err)
}

func TestRefreshLocker_UnlockLeavesForeignLock(t *testing.T) {
	ctx := context.Background()
	server, client := newTestClient(t)
	locker, err := NewRefreshLocker(client, "locks")
	require.NoError(t, err)

	stale, err := locker.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	server.FastForward(2 * time.Second)

	_, err = locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale.Unlock(ctx))
	assert.True(t, server.Exists("locks:k"), "expired holder must not release the new holder's lock")
}

func TestRefreshLocker_RejectsInvalidInput(t *testing.T) {
	_, err := NewRefreshLocker(nil, "")
	require.Error(t, err)

	_, client := newTestClient(t)
	locker, err := NewRefreshLocker(client, "")
	require.NoError(t, err)
	_, err = locker.Acquire(context.Background(), " ", time.Second)
	require.Error(t, err)
	_, err = locker.Acquire(context.Background(), "k", 0)
	require.Error(t, err)
}

func TestConnect(t *testing.T) {
	server := miniredis.RunT(t)

	client, err := Connect(context.Background(), ConnectConfig{
		URL:            "redis://" + server.Addr() + "/0",
		RetryAttempts:  2,
		RetryInterval:  10 * time.Millisecond,
		ConnectTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	_, err = Connect(context.Background(), ConnectConfig{URL: "://bad"})
	require.ErrorIs(t, err, ErrInvalidURL)
}
