package core

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
	"gopkg.in/yaml.v3"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type explicitProvider struct {
	name   string
	config ProviderConfig
}

type managerBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	oauthStateStore OAuthStateStore
	registry        *Registry
	credentialStore CredentialStore
	env             EnvSource
	httpClient      HTTPDoer
	refreshLocker   RefreshLocker
	refreshBackoff  RefreshBackoffScheduler
	clock           func() time.Time
	autoConfigure   *bool
	providers       []explicitProvider
}

type Option func(*managerBuilder)

func WithLogger(logger Logger) Option {
	return func(b *managerBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *managerBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *managerBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *managerBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *managerBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *managerBuilder) {
		b.optionsResolver = resolver
	}
}

func WithOAuthStateStore(store OAuthStateStore) Option {
	return func(b *managerBuilder) {
		b.oauthStateStore = store
	}
}

// WithRegistry sets the provider type registry used for explicit providers
// named by key and for auto-configuration.
func WithRegistry(registry *Registry) Option {
	return func(b *managerBuilder) {
		b.registry = registry
	}
}

func WithCredentialStore(store CredentialStore) Option {
	return func(b *managerBuilder) {
		b.credentialStore = store
	}
}

// WithEnv sets the environment handed to providers and settings loaders. It
// takes precedence over the configured env files.
func WithEnv(env EnvSource) Option {
	return func(b *managerBuilder) {
		b.env = env
	}
}

func WithHTTPClient(client HTTPDoer) Option {
	return func(b *managerBuilder) {
		b.httpClient = client
	}
}

// WithRefreshLocker serializes refresh runs per (service, subject) across
// processes sharing the locker backend.
func WithRefreshLocker(locker RefreshLocker) Option {
	return func(b *managerBuilder) {
		b.refreshLocker = locker
	}
}

func WithRefreshBackoff(scheduler RefreshBackoffScheduler) Option {
	return func(b *managerBuilder) {
		b.refreshBackoff = scheduler
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *managerBuilder) {
		b.clock = now
	}
}

// WithAutoConfigure overrides the configured auto_configure flag.
func WithAutoConfigure(enabled bool) Option {
	return func(b *managerBuilder) {
		b.autoConfigure = &enabled
	}
}

// WithProvider registers an explicit provider at construction. Providers
// added this way fail construction on bad configuration.
func WithProvider(name string, config ProviderConfig) Option {
	return func(b *managerBuilder) {
		b.providers = append(b.providers, explicitProvider{name: name, config: config})
	}
}

func defaultManagerBuilder(runtime Config) managerBuilder {
	loggerProvider, logger := glog.Resolve("integrations", nil, nil)
	return managerBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return integrationErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	return copyAnyMap(l.Values), nil
}

// YAMLConfigLoader reads raw configuration from a YAML file. A missing file
// yields an empty configuration.
type YAMLConfigLoader struct {
	Path string
}

func (l YAMLConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	path := strings.TrimSpace(l.Path)
	if path == "" {
		return map[string]any{}, nil
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("core: read config %s: %w", path, err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("core: parse config %s: %w", path, err)
	}
	return raw, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver merges defaults < loaded config < runtime config. Zero
// valued runtime fields do not override lower layers.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, true)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || cfg.AutoConfigure {
		layer["auto_configure"] = cfg.AutoConfigure
	}
	if includeZero || cfg.AutoLoadCredentials {
		layer["auto_load_credentials"] = cfg.AutoLoadCredentials
	}
	if includeZero || len(cfg.EnvFiles) > 0 {
		layer["env_files"] = append([]string{}, cfg.EnvFiles...)
	}
	if includeZero || cfg.TokenTimeoutSeconds > 0 {
		layer["token_timeout_seconds"] = cfg.TokenTimeoutSeconds
	}
	if includeZero || cfg.OAuthStateTTLSeconds > 0 {
		layer["oauth_state_ttl_seconds"] = cfg.OAuthStateTTLSeconds
	}
	if includeZero || cfg.RefreshLeadSeconds > 0 {
		layer["refresh_lead_seconds"] = cfg.RefreshLeadSeconds
	}
	if includeZero || cfg.RefreshMaxAttempts > 0 {
		layer["refresh_max_attempts"] = cfg.RefreshMaxAttempts
	}
	return layer
}
