package core

import (
	"context"
	"sync"

	"github.com/tiendc/go-deepcopy"
)

// MemoryCredentialStore keeps records in process. A single store-wide lock
// serializes every operation; records are deep copied in and out so callers
// never share nested maps with the store.
type MemoryCredentialStore struct {
	mu      sync.Mutex
	records map[ServiceKey]map[string]StoredData
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{records: map[ServiceKey]map[string]StoredData{}}
}

func (s *MemoryCredentialStore) Get(ctx context.Context, service ServiceKey, subject Subject) (StoredData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := subject.Key()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[service][key]
	if !ok {
		return nil, nil
	}
	return CloneStoredData(record)
}

func (s *MemoryCredentialStore) Set(ctx context.Context, service ServiceKey, subject Subject, data StoredData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := subject.Key()
	if err != nil {
		return err
	}
	cloned, err := CloneStoredData(data)
	if err != nil {
		return StoreError(err, "set", service)
	}
	if cloned == nil {
		cloned = StoredData{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		s.records = map[ServiceKey]map[string]StoredData{}
	}
	bucket, ok := s.records[service]
	if !ok {
		bucket = map[string]StoredData{}
		s.records[service] = bucket
	}
	bucket[key] = cloned
	return nil
}

func (s *MemoryCredentialStore) Delete(ctx context.Context, service ServiceKey, subject Subject) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := subject.Key()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.records[service]
	if !ok {
		return nil
	}
	delete(bucket, key)
	if len(bucket) == 0 {
		delete(s.records, service)
	}
	return nil
}

// Len returns the number of stored records for service.
func (s *MemoryCredentialStore) Len(service ServiceKey) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[service])
}

// Services lists services that currently hold at least one record.
func (s *MemoryCredentialStore) Services() []ServiceKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.records)
}

// CloneStoredData deep copies data; nil stays nil.
func CloneStoredData(data StoredData) (StoredData, error) {
	if data == nil {
		return nil, nil
	}
	var out StoredData
	if err := deepcopy.Copy(&out, data); err != nil {
		return nil, err
	}
	return out, nil
}

var _ CredentialStore = (*MemoryCredentialStore)(nil)
