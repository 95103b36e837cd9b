package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFieldMap(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFieldMap(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFieldMap(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func cloneFieldMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

func TestManagerObservability_RegisterSuccess(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	manager, err := newTestManager(
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	provider := newTestProvider(ServiceGitHub, AppCredentials{Token: "ghp_1"})
	if err := manager.Register("GitHub", ProviderInstance(provider)); err != nil {
		t.Fatalf("register: %v", err)
	}

	if !hasCounter(metrics.counters, "integrations.register.total", "success") {
		t.Fatalf("expected integrations.register.total success counter")
	}
	if !hasHistogram(metrics.histograms, "integrations.register.duration_ms", "success") {
		t.Fatalf("expected integrations.register.duration_ms histogram")
	}
	if !hasLog(logger.snapshot(), "info", "register succeeded", "register") {
		t.Fatalf("expected register succeeded structured log")
	}
	for _, counter := range metrics.counters {
		if counter.name == "integrations.register.total" && counter.tags["service_key"] != "github" {
			t.Fatalf("expected normalized service_key tag, got %q", counter.tags["service_key"])
		}
	}
}

func TestManagerObservability_SessionFailure(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	manager, err := newTestManager(
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
		WithProvider("github", ProviderInstance(newTestProvider(ServiceGitHub, AppCredentials{}))),
	)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	_, err = manager.Session(context.Background(), SubjectID("user-1"))
	if !IsMissingCredentials(err) {
		t.Fatalf("expected missing credentials, got %v", err)
	}
	if !hasCounter(metrics.counters, "integrations.session.total", "failure") {
		t.Fatalf("expected session failure counter")
	}
	if !hasLog(logger.snapshot(), "error", "session failed", "session") {
		t.Fatalf("expected session failure log")
	}
}

func TestManagerObservability_EnrichesStructuredErrorFields(t *testing.T) {
	logger := newCaptureLogger()
	manager, err := newTestManager(
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	richErr := goerrors.New("token endpoint timeout", goerrors.CategoryExternal).
		WithCode(502).
		WithTextCode(ErrorTokenEndpoint).
		WithMetadata(map[string]any{
			"trace_id":      "trace_123",
			"refresh_token": "secret_refresh_token",
		})
	manager.observeOperation(
		context.Background(),
		time.Now().UTC().Add(-100*time.Millisecond),
		"refresh_credentials",
		richErr,
		map[string]any{"service_key": "google", "access_token": "ya29.secret"},
	)

	records := logger.snapshot()
	if len(records) == 0 {
		t.Fatalf("expected logs to be emitted")
	}
	last := records[len(records)-1]
	if last.fields["error_category"] != fmt.Sprint(goerrors.CategoryExternal) {
		t.Fatalf("expected external error_category, got %#v", last.fields["error_category"])
	}
	if last.fields["error_text_code"] != ErrorTokenEndpoint {
		t.Fatalf("expected error_text_code %q, got %#v", ErrorTokenEndpoint, last.fields["error_text_code"])
	}
	if last.fields["access_token"] != RedactedValue {
		t.Fatalf("expected access_token field to be redacted, got %#v", last.fields["access_token"])
	}
	if last.fields["service_key"] != "google" {
		t.Fatalf("expected service_key to stay visible, got %#v", last.fields["service_key"])
	}

	metadata, ok := last.fields["error_metadata"].(map[string]any)
	if !ok {
		t.Fatalf("expected redacted error_metadata map, got %#v", last.fields["error_metadata"])
	}
	if metadata["refresh_token"] != RedactedValue {
		t.Fatalf("expected refresh_token to be redacted, got %#v", metadata["refresh_token"])
	}
	if metadata["trace_id"] != "trace_123" {
		t.Fatalf("expected trace_id to stay visible, got %#v", metadata["trace_id"])
	}
}

func TestMetricNames(t *testing.T) {
	if got := CounterName("Refresh Credentials"); got != "integrations.refresh_credentials.total" {
		t.Fatalf("unexpected counter name %q", got)
	}
	if got := HistogramName("load-credentials"); got != "integrations.load_credentials.duration_ms" {
		t.Fatalf("unexpected histogram name %q", got)
	}
}

func hasCounter(items []capturedCounter, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasHistogram(items []capturedHistogram, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasLog(items []capturedLog, level string, message string, eventType string) bool {
	for _, item := range items {
		if item.level != level {
			continue
		}
		if item.msg != message {
			continue
		}
		if item.fields["event_type"] == eventType {
			return true
		}
	}
	return false
}
