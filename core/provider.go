package core

import (
	"sync"
	"time"
)

// AuthProvider owns one service's app credentials and the bindings from its
// container keys to settings.
type AuthProvider interface {
	Key() ServiceKey
	AppCredentials() AppCredentials
	DefaultBindings() map[ContainerKey]Binding
	Bindings() map[ContainerKey]Binding
	RegisterBinding(key ContainerKey, binding Binding) error
	ParseUserCredentials(input CredentialsInput) (*Token, error)
	Flows() map[string]Flow
}

// ProviderOptions are the construction inputs shared by every provider type.
type ProviderOptions struct {
	App                 *AppCredentials
	AppData             map[string]any
	Env                 EnvSource
	HTTPClient          HTTPDoer
	StateStore          OAuthStateStore
	TokenRequestTimeout time.Duration
	Now                 func() time.Time
}

type ProviderOption func(*ProviderOptions)

// WithAppCredentials supplies pre-built app credentials.
func WithAppCredentials(app AppCredentials) ProviderOption {
	return func(o *ProviderOptions) {
		cloned := app.Clone()
		o.App = &cloned
	}
}

// WithAppData supplies a raw mapping coerced over the provider defaults. An
// empty mapping supplies nothing.
func WithAppData(data map[string]any) ProviderOption {
	return func(o *ProviderOptions) {
		if len(data) == 0 {
			return
		}
		o.AppData = copyAnyMap(data)
	}
}

// WithProviderEnv sets the environment used when neither app credentials nor
// app data are supplied.
func WithProviderEnv(env EnvSource) ProviderOption {
	return func(o *ProviderOptions) {
		o.Env = env
	}
}

func WithProviderHTTPClient(client HTTPDoer) ProviderOption {
	return func(o *ProviderOptions) {
		o.HTTPClient = client
	}
}

func WithProviderStateStore(store OAuthStateStore) ProviderOption {
	return func(o *ProviderOptions) {
		o.StateStore = store
	}
}

func WithTokenRequestTimeout(timeout time.Duration) ProviderOption {
	return func(o *ProviderOptions) {
		o.TokenRequestTimeout = timeout
	}
}

func WithProviderClock(now func() time.Time) ProviderOption {
	return func(o *ProviderOptions) {
		o.Now = now
	}
}

func BuildProviderOptions(opts ...ProviderOption) ProviderOptions {
	options := ProviderOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}
	return options
}

// ResolveAppCredentials picks the app credentials source. Supplying both app
// credentials and app data is ambiguous; supplying neither reads spec from the
// environment over defaults.
func (o ProviderOptions) ResolveAppCredentials(defaults AppCredentials, spec EnvSpec) (AppCredentials, error) {
	switch {
	case o.App != nil && o.AppData != nil:
		return AppCredentials{}, AmbiguousConfigurationError("provide either app credentials or app data, not both")
	case o.App != nil:
		return o.App.Clone().withDefaults(), nil
	case o.AppData != nil:
		return AppCredentialsFromMap(o.AppData, defaults)
	}
	env := o.Env
	if env == nil {
		env = OSEnv()
	}
	return LoadAppCredentials(env, spec, defaults)
}

// BaseProvider implements the bookkeeping every AuthProvider shares. Concrete
// providers embed it and add their flow accessors.
type BaseProvider struct {
	key      ServiceKey
	app      AppCredentials
	options  ProviderOptions
	defaults map[ContainerKey]Binding

	mu       sync.RWMutex
	bindings map[ContainerKey]Binding
	flows    FlowCache
}

func NewBaseProvider(key ServiceKey, app AppCredentials, defaults map[ContainerKey]Binding, options ProviderOptions) *BaseProvider {
	defaultsCopy := make(map[ContainerKey]Binding, len(defaults))
	bindings := make(map[ContainerKey]Binding, len(defaults))
	for containerKey, binding := range defaults {
		defaultsCopy[containerKey] = binding
		bindings[containerKey] = binding
	}
	return &BaseProvider{
		key:      key,
		app:      app.Clone(),
		options:  options,
		defaults: defaultsCopy,
		bindings: bindings,
	}
}

func (p *BaseProvider) Key() ServiceKey { return p.key }

func (p *BaseProvider) AppCredentials() AppCredentials { return p.app.Clone() }

func (p *BaseProvider) Options() ProviderOptions { return p.options }

func (p *BaseProvider) DefaultBindings() map[ContainerKey]Binding {
	out := make(map[ContainerKey]Binding, len(p.defaults))
	for key, binding := range p.defaults {
		out[key] = binding
	}
	return out
}

func (p *BaseProvider) Bindings() map[ContainerKey]Binding {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[ContainerKey]Binding, len(p.bindings))
	for key, binding := range p.bindings {
		out[key] = binding
	}
	return out
}

// RegisterBinding adds or replaces the binding for key.
func (p *BaseProvider) RegisterBinding(key ContainerKey, binding Binding) error {
	if binding == nil {
		return BadInputError("binding is required")
	}
	key = key.Normalize()
	if key == "" {
		return BadInputError("container key is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bindings == nil {
		p.bindings = map[ContainerKey]Binding{}
	}
	p.bindings[key] = binding
	return nil
}

func (p *BaseProvider) ParseUserCredentials(input CredentialsInput) (*Token, error) {
	return input.Parse(p.app.Separator())
}

// Flow returns the flow cached under name, building it once.
func (p *BaseProvider) Flow(name string, factory func() (Flow, error)) (Flow, error) {
	return p.flows.GetOrCreate(name, factory)
}

func (p *BaseProvider) Flows() map[string]Flow {
	return p.flows.Snapshot()
}

var _ AuthProvider = (*BaseProvider)(nil)
