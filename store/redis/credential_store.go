// Package redisstore keeps credentials and refresh locks in Redis.
//
// Records of one service share a hash at <prefix>:<service>; the field is the
// canonical subject key and the value the encoded payload, so Set is a single
// HSET and Delete a single HDEL.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anishxyz/integrations/core"
	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "integrations:credentials"

// Client is the subset of *redis.Client the stores use.
type Client interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

type CredentialStore struct {
	client  Client
	prefix  string
	codec   core.CredentialCodec
	secrets core.SecretProvider
}

type Option func(*CredentialStore)

func WithKeyPrefix(prefix string) Option {
	return func(s *CredentialStore) {
		if trimmed := strings.Trim(strings.TrimSpace(prefix), ":"); trimmed != "" {
			s.prefix = trimmed
		}
	}
}

func WithCredentialCodec(codec core.CredentialCodec) Option {
	return func(s *CredentialStore) {
		if codec != nil {
			s.codec = codec
		}
	}
}

func WithSecretProvider(secrets core.SecretProvider) Option {
	return func(s *CredentialStore) {
		s.secrets = secrets
	}
}

func NewCredentialStore(client Client, opts ...Option) (*CredentialStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redisstore: redis client is required")
	}
	store := &CredentialStore{
		client: client,
		prefix: DefaultKeyPrefix,
		codec:  core.JSONCredentialCodec{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// HashKey is the hash holding every record of service.
func (s *CredentialStore) HashKey(service core.ServiceKey) string {
	return s.prefix + ":" + string(service)
}

func (s *CredentialStore) Get(ctx context.Context, service core.ServiceKey, subject core.Subject) (core.StoredData, error) {
	hash, field, err := s.location(service, subject)
	if err != nil {
		return nil, err
	}
	payload, err := s.client.HGet(ctx, hash, field).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return core.OpenCredentials(ctx, s.codec, s.secrets, payload)
}

func (s *CredentialStore) Set(ctx context.Context, service core.ServiceKey, subject core.Subject, data core.StoredData) error {
	hash, field, err := s.location(service, subject)
	if err != nil {
		return err
	}
	if data == nil {
		data = core.StoredData{}
	}
	payload, err := core.SealCredentials(ctx, s.codec, s.secrets, data)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, hash, field, payload).Err()
}

func (s *CredentialStore) Delete(ctx context.Context, service core.ServiceKey, subject core.Subject) error {
	hash, field, err := s.location(service, subject)
	if err != nil {
		return err
	}
	return s.client.HDel(ctx, hash, field).Err()
}

func (s *CredentialStore) location(service core.ServiceKey, subject core.Subject) (string, string, error) {
	if s == nil || s.client == nil {
		return "", "", fmt.Errorf("redisstore: credential store is not configured")
	}
	if strings.TrimSpace(string(service)) == "" {
		return "", "", fmt.Errorf("redisstore: service key is required")
	}
	field, err := subject.Key()
	if err != nil {
		return "", "", err
	}
	return s.HashKey(service), field, nil
}

var _ core.CredentialStore = (*CredentialStore)(nil)
