package core

import (
	"context"
	"net/http"

	glog "github.com/goliatone/go-logger/glog"
)

// StoredData is the opaque mapping persisted per (service, subject).
type StoredData map[string]any

// CredentialStore persists user credentials. Get returns nil data when no
// record exists; Set replaces the whole record; Delete is a no-op when absent.
type CredentialStore interface {
	Get(ctx context.Context, service ServiceKey, subject Subject) (StoredData, error)
	Set(ctx context.Context, service ServiceKey, subject Subject, data StoredData) error
	Delete(ctx context.Context, service ServiceKey, subject Subject) error
}

// HTTPDoer is the transport used for token endpoint requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
