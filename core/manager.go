package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/sync/singleflight"
)

// Manager holds one auth provider per service key, owns the credential store,
// and resolves per-subject sessions.
type Manager struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	registry        *Registry
	store           CredentialStore
	env             EnvSource
	httpClient      HTTPDoer
	stateStore      OAuthStateStore
	refreshLocker   RefreshLocker
	refreshBackoff  RefreshBackoffScheduler
	now             func() time.Time
	autoConfigure   bool

	mu        sync.RWMutex
	providers map[ServiceKey]AuthProvider
	explicit  map[ServiceKey]bool

	refreshes singleflight.Group
}

func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	builder := defaultManagerBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("integrations", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("integrations"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewRegistry()
	}
	if builder.credentialStore == nil {
		builder.credentialStore = NewMemoryCredentialStore()
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.env == nil {
		env, envErr := NewEnvSource(finalConfig.EnvFiles...)
		if envErr != nil {
			return nil, mapBuildError(builder.errorMapper, envErr)
		}
		builder.env = env
	}
	if builder.oauthStateStore == nil {
		builder.oauthStateStore = NewMemoryOAuthStateStore(finalConfig.OAuthStateTTL())
	}
	if builder.refreshLocker == nil {
		builder.refreshLocker = NewMemoryRefreshLocker()
	}
	if builder.refreshBackoff == nil {
		builder.refreshBackoff = ExponentialBackoffScheduler{}
	}
	if builder.clock == nil {
		builder.clock = func() time.Time { return time.Now().UTC() }
	}
	autoConfigure := finalConfig.AutoConfigure
	if builder.autoConfigure != nil {
		autoConfigure = *builder.autoConfigure
	}

	m := &Manager{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		registry:        builder.registry,
		store:           builder.credentialStore,
		env:             builder.env,
		httpClient:      builder.httpClient,
		stateStore:      builder.oauthStateStore,
		refreshLocker:   builder.refreshLocker,
		refreshBackoff:  builder.refreshBackoff,
		now:             builder.clock,
		autoConfigure:   autoConfigure,
		providers:       map[ServiceKey]AuthProvider{},
		explicit:        map[ServiceKey]bool{},
	}

	for _, entry := range builder.providers {
		if err := m.install(entry.name, entry.config); err != nil {
			return nil, mapBuildError(builder.errorMapper, err)
		}
	}
	if autoConfigure {
		m.autoConfigureProviders()
	}
	return m, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

// autoConfigureProviders builds every registered type not yet present with
// default options. Failures leave the service unconfigured.
func (m *Manager) autoConfigureProviders() {
	for _, key := range m.registry.Keys() {
		if m.Has(string(key)) {
			continue
		}
		providerType, err := m.registry.Get(key)
		if err != nil {
			continue
		}
		provider, err := providerType.New(m.providerOptions()...)
		if err != nil {
			m.logDebug(context.Background(), "auto-configure skipped provider", map[string]any{
				"service_key": string(key),
				"error":       err.Error(),
			})
			continue
		}
		m.mu.Lock()
		if _, exists := m.providers[key]; !exists {
			m.providers[key] = provider
		}
		m.mu.Unlock()
	}
}

func (m *Manager) providerOptions() []ProviderOption {
	options := []ProviderOption{
		WithProviderEnv(m.env),
		WithProviderStateStore(m.stateStore),
		WithTokenRequestTimeout(m.config.TokenTimeout()),
	}
	if m.httpClient != nil {
		options = append(options, WithProviderHTTPClient(m.httpClient))
	}
	return options
}

// Register installs a provider under name and marks it explicit, replacing
// any auto-configured provider for the same key.
func (m *Manager) Register(name string, config ProviderConfig) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"service_key": NormalizeName(name)}
	defer func() {
		m.observeOperation(context.Background(), startedAt, "register", err, fields)
	}()

	if err = m.install(name, config); err != nil {
		err = m.mapError(err)
		return err
	}
	return nil
}

func (m *Manager) install(name string, config ProviderConfig) error {
	key := ServiceKey(NormalizeName(name))
	if key == "" {
		return BadInputError("provider name is required")
	}
	provider, err := m.buildProvider(key, config)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.providers[key] = provider
	m.explicit[key] = true
	m.mu.Unlock()
	return nil
}

func (m *Manager) buildProvider(key ServiceKey, config ProviderConfig) (AuthProvider, error) {
	if provider, ok := config.Provider(); ok {
		if provider == nil {
			return nil, TypeError("provider instance is nil")
		}
		return provider, nil
	}
	providerType, err := m.registry.Get(key)
	if err != nil {
		return nil, err
	}
	options := append(m.providerOptions(), config.options()...)
	return providerType.New(options...)
}

// Provider returns the provider registered under name.
func (m *Manager) Provider(name string) (AuthProvider, error) {
	key := ServiceKey(NormalizeName(name))
	m.mu.RLock()
	provider, ok := m.providers[key]
	m.mu.RUnlock()
	if !ok {
		return nil, UnknownKeyError("provider", string(key))
	}
	return provider, nil
}

func (m *Manager) Has(name string) bool {
	_, err := m.Provider(name)
	return err == nil
}

// IsExplicit reports whether name was supplied at construction or through
// Register rather than auto-configured.
func (m *Manager) IsExplicit(name string) bool {
	key := ServiceKey(NormalizeName(name))
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.explicit[key]
}

// Providers returns a snapshot of the provider map.
func (m *Manager) Providers() map[ServiceKey]AuthProvider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[ServiceKey]AuthProvider, len(m.providers))
	for key, provider := range m.providers {
		out[key] = provider
	}
	return out
}

// Names returns the configured service keys in sorted order.
func (m *Manager) Names() []ServiceKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.providers)
}

func (m *Manager) Config() Config {
	if m == nil {
		return Config{}
	}
	return m.config
}

func (m *Manager) Registry() *Registry { return m.registry }

func (m *Manager) CredentialStore() CredentialStore { return m.store }

func (m *Manager) Env() EnvSource { return m.env }

// LoadCredentials returns the stored credentials for (name, subject) parsed by
// the owning provider, or nil when nothing is stored.
func (m *Manager) LoadCredentials(ctx context.Context, name string, subject Subject) (token *Token, err error) {
	startedAt := time.Now().UTC()
	key := ServiceKey(NormalizeName(name))
	fields := map[string]any{"service_key": string(key), "subject": subject.String()}
	defer func() {
		fields["found"] = token != nil
		m.observeOperation(ctx, startedAt, "load_credentials", err, fields)
	}()

	data, err := m.store.Get(ctx, key, subject)
	if err != nil {
		err = m.mapError(wrapStoreError(err, "get", key))
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	provider, err := m.Provider(string(key))
	if err != nil {
		err = m.mapError(err)
		return nil, err
	}
	token, err = provider.ParseUserCredentials(Raw(data))
	if err != nil {
		err = m.mapError(err)
		return nil, err
	}
	return token, nil
}

// StoreCredentials serializes input and replaces the stored record.
func (m *Manager) StoreCredentials(ctx context.Context, name string, subject Subject, input CredentialsInput) (err error) {
	startedAt := time.Now().UTC()
	key := ServiceKey(NormalizeName(name))
	fields := map[string]any{"service_key": string(key), "subject": subject.String(), "kind": input.Kind().String()}
	defer func() {
		m.observeOperation(ctx, startedAt, "store_credentials", err, fields)
	}()

	separator := DefaultScopeSeparator
	if provider, lookupErr := m.Provider(string(key)); lookupErr == nil {
		separator = provider.AppCredentials().Separator()
	}
	data, err := input.Serialize(separator)
	if err != nil {
		err = m.mapError(err)
		return err
	}
	if err = m.store.Set(ctx, key, subject, data); err != nil {
		err = m.mapError(wrapStoreError(err, "set", key))
		return err
	}
	return nil
}

func (m *Manager) DeleteCredentials(ctx context.Context, name string, subject Subject) (err error) {
	startedAt := time.Now().UTC()
	key := ServiceKey(NormalizeName(name))
	fields := map[string]any{"service_key": string(key), "subject": subject.String()}
	defer func() {
		m.observeOperation(ctx, startedAt, "delete_credentials", err, fields)
	}()

	if err = m.store.Delete(ctx, key, subject); err != nil {
		err = m.mapError(wrapStoreError(err, "delete", key))
		return err
	}
	return nil
}

// Authorize builds the authorization redirect for an OAuth2 capable provider.
func (m *Manager) Authorize(ctx context.Context, name string, req AuthorizeRequest) (result AuthorizeResult, err error) {
	startedAt := time.Now().UTC()
	key := ServiceKey(NormalizeName(name))
	fields := map[string]any{"service_key": string(key)}
	defer func() {
		m.observeOperation(ctx, startedAt, "authorize", err, fields)
	}()

	flow, err := m.oauth2Flow(key)
	if err != nil {
		err = m.mapError(err)
		return AuthorizeResult{}, err
	}
	result, err = flow.Authorize(ctx, req)
	if err != nil {
		err = m.mapError(err)
		return AuthorizeResult{}, err
	}
	return result, nil
}

// Exchange trades an authorization code for a token and, when the request
// names a subject, stores it.
func (m *Manager) Exchange(ctx context.Context, name string, req ExchangeRequest) (token *Token, err error) {
	startedAt := time.Now().UTC()
	key := ServiceKey(NormalizeName(name))
	fields := map[string]any{"service_key": string(key), "subject": req.Subject.String()}
	defer func() {
		m.observeOperation(ctx, startedAt, "exchange", err, fields)
	}()

	flow, err := m.oauth2Flow(key)
	if err != nil {
		err = m.mapError(err)
		return nil, err
	}
	token, err = flow.Exchange(ctx, req)
	if err != nil {
		err = m.mapError(err)
		return nil, err
	}
	if req.Subject.IsZero() {
		fields["stored"] = false
		return token, nil
	}
	if err = m.StoreCredentials(ctx, string(key), req.Subject, Structured(token)); err != nil {
		return nil, err
	}
	fields["stored"] = true
	return token, nil
}

// RefreshCredentials refreshes the stored token for (name, subject) and
// stores the result. Concurrent calls for the same pair share one request.
func (m *Manager) RefreshCredentials(ctx context.Context, name string, subject Subject) (token *Token, err error) {
	startedAt := time.Now().UTC()
	key := ServiceKey(NormalizeName(name))
	fields := map[string]any{"service_key": string(key), "subject": subject.String()}
	defer func() {
		m.observeOperation(ctx, startedAt, "refresh_credentials", err, fields)
	}()

	subjectKey, err := subject.Key()
	if err != nil {
		err = m.mapError(err)
		return nil, err
	}
	// The shared refresh ignores caller cancellation; each caller stops
	// waiting when its own ctx is done.
	results := m.refreshes.DoChan(string(key)+"\x00"+subjectKey, func() (any, error) {
		detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.refreshTimeout())
		defer cancel()
		return m.refresh(detached, key, subject)
	})
	select {
	case <-ctx.Done():
		err = m.mapError(ctx.Err())
		return nil, err
	case result := <-results:
		fields["shared"] = result.Shared
		if result.Err != nil {
			err = m.mapError(result.Err)
			return nil, err
		}
		refreshed, _ := result.Val.(*Token)
		return refreshed.Clone(), nil
	}
}

// refreshTimeout bounds a detached refresh: load, token request and store.
func (m *Manager) refreshTimeout() time.Duration {
	timeout := m.config.TokenTimeout()
	if timeout <= 0 {
		timeout = defaultTokenTimeout
	}
	return 2 * timeout
}

func (m *Manager) refresh(ctx context.Context, key ServiceKey, subject Subject) (*Token, error) {
	current, err := m.LoadCredentials(ctx, string(key), subject)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, MissingCredentialsError(ContainerKey(key), "no stored credentials to refresh")
	}
	flow, err := m.oauth2Flow(key)
	if err != nil {
		return nil, err
	}
	refreshed, err := flow.Refresh(ctx, RefreshRequest{
		Subject:     subject,
		Credentials: Structured(current),
	})
	if err != nil {
		return nil, err
	}
	if err := m.StoreCredentials(ctx, string(key), subject, Structured(refreshed)); err != nil {
		return nil, err
	}
	return refreshed, nil
}

func (m *Manager) oauth2Flow(key ServiceKey) (OAuth2Flow, error) {
	provider, err := m.Provider(string(key))
	if err != nil {
		return nil, err
	}
	oauthProvider, ok := provider.(OAuth2Provider)
	if !ok {
		return nil, newIntegrationError(
			fmt.Sprintf("provider %q does not support the oauth2 flow", key),
			goerrors.CategoryBadInput,
			ErrorUnsupportedFlow,
		)
	}
	return oauthProvider.OAuth2()
}

func (m *Manager) mapError(err error) error {
	if err == nil {
		return nil
	}
	if m == nil || m.errorMapper == nil {
		return err
	}
	mapped := m.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func wrapStoreError(err error, operation string, service ServiceKey) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return StoreError(err, operation, service)
}
