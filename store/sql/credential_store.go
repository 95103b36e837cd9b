package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anishxyz/integrations/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CredentialStore keeps one row per (service, subject) in
// integration_credentials. Payloads are encoded with the codec and, when a
// secret provider is set, encrypted before they reach the database.
type CredentialStore struct {
	db      *bun.DB
	repo    repository.Repository[*credentialRecord]
	codec   core.CredentialCodec
	secrets core.SecretProvider
	now     func() time.Time
}

type CredentialStoreOption func(*CredentialStore)

func WithCredentialCodec(codec core.CredentialCodec) CredentialStoreOption {
	return func(s *CredentialStore) {
		if codec != nil {
			s.codec = codec
		}
	}
}

func WithSecretProvider(secrets core.SecretProvider) CredentialStoreOption {
	return func(s *CredentialStore) {
		s.secrets = secrets
	}
}

func WithClock(now func() time.Time) CredentialStoreOption {
	return func(s *CredentialStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewCredentialStore(db *bun.DB, opts ...CredentialStoreOption) (*CredentialStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*credentialRecord](db, credentialHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid credential repository wiring: %w", err)
		}
	}
	store := &CredentialStore{
		db:    db,
		repo:  repo,
		codec: core.JSONCredentialCodec{},
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *CredentialStore) Get(ctx context.Context, service core.ServiceKey, subject core.Subject) (core.StoredData, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: credential store is not configured")
	}
	serviceKey, subjectKey, err := recordKey(service, subject)
	if err != nil {
		return nil, err
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("service_key", "=", serviceKey),
		repository.SelectBy("subject_key", "=", subjectKey),
		repository.OrderBy("updated_at DESC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return s.open(ctx, records[0])
}

// Set replaces the record with a single upsert on (service_key, subject_key),
// so concurrent first writes for one key never collide.
func (s *CredentialStore) Set(ctx context.Context, service core.ServiceKey, subject core.Subject, data core.StoredData) error {
	if s == nil || s.repo == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	serviceKey, subjectKey, err := recordKey(service, subject)
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
	now := s.now()

	record := &credentialRecord{
		ID:         uuid.NewString(),
		ServiceKey: serviceKey,
		SubjectKey: subjectKey,
		CreatedAt:  now,
	}
	s.fill(record, payload, now)
	_, err = s.db.NewInsert().
		Model(record).
		On("CONFLICT (service_key, subject_key) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("payload_format = EXCLUDED.payload_format").
		Set("payload_version = EXCLUDED.payload_version").
		Set("encrypted = EXCLUDED.encrypted").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *CredentialStore) Delete(ctx context.Context, service core.ServiceKey, subject core.Subject) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	serviceKey, subjectKey, err := recordKey(service, subject)
	if err != nil {
		return err
	}
	_, err = s.db.NewDelete().
		Model((*credentialRecord)(nil)).
		Where("service_key = ?", serviceKey).
		Where("subject_key = ?", subjectKey).
		Exec(ctx)
	return err
}

func (s *CredentialStore) fill(record *credentialRecord, payload []byte, now time.Time) {
	record.Payload = payload
	record.PayloadFormat = s.codec.Format()
	record.PayloadVersion = s.codec.Version()
	record.Encrypted = s.secrets != nil
	record.UpdatedAt = now
}

func (s *CredentialStore) open(ctx context.Context, record *credentialRecord) (core.StoredData, error) {
	if record.PayloadFormat != s.codec.Format() {
		return nil, fmt.Errorf("sqlstore: credential payload format %q is not supported", record.PayloadFormat)
	}
	secrets := s.secrets
	if !record.Encrypted {
		secrets = nil
	} else if secrets == nil {
		return nil, fmt.Errorf("sqlstore: credential payload is encrypted and no secret provider is configured")
	}
	return core.OpenCredentials(ctx, s.codec, secrets, record.Payload)
}

func recordKey(service core.ServiceKey, subject core.Subject) (string, string, error) {
	serviceKey := strings.TrimSpace(string(service))
	if serviceKey == "" {
		return "", "", fmt.Errorf("sqlstore: service key is required")
	}
	subjectKey, err := subject.Key()
	if err != nil {
		return "", "", err
	}
	return serviceKey, subjectKey, nil
}
