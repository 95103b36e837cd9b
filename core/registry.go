package core

import (
	"reflect"
	"sync"
)

// ProviderType constructs auth providers for one service key.
type ProviderType interface {
	Key() ServiceKey
	New(opts ...ProviderOption) (AuthProvider, error)
}

// SettingsLoader resolves container settings from the environment alone.
// ok is false when the environment does not carry enough to build settings.
type SettingsLoader interface {
	LoadSettings(env EnvSource) (settings Settings, ok bool, err error)
}

type SettingsLoaderFunc func(env EnvSource) (Settings, bool, error)

func (f SettingsLoaderFunc) LoadSettings(env EnvSource) (Settings, bool, error) {
	return f(env)
}

// Registry maps service keys to provider implementations. It is a value with
// an explicit lifecycle; build one at process start and hand it to managers.
type Registry struct {
	mu        sync.RWMutex
	providers map[ServiceKey]ProviderType
	loaders   map[ContainerKey]SettingsLoader
}

func NewRegistry() *Registry {
	return &Registry{
		providers: map[ServiceKey]ProviderType{},
		loaders:   map[ContainerKey]SettingsLoader{},
	}
}

// Register binds key to providerType. Registering the same implementation
// again is a no-op; a different implementation under a taken key fails.
func (r *Registry) Register(key ServiceKey, providerType ProviderType) error {
	if providerType == nil {
		return BadInputError("provider type is required")
	}
	key = registryKey(key)
	if key == "" {
		return BadInputError("service key is required")
	}
	candidate := reflect.TypeOf(providerType)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.providers == nil {
		r.providers = map[ServiceKey]ProviderType{}
	}
	if existing, ok := r.providers[key]; ok {
		current := reflect.TypeOf(existing)
		if current == candidate {
			return nil
		}
		return RegistrationConflictError(key, current.String(), candidate.String())
	}
	r.providers[key] = providerType
	return nil
}

func (r *Registry) Get(key ServiceKey) (ProviderType, error) {
	key = registryKey(key)
	r.mu.RLock()
	providerType, ok := r.providers[key]
	r.mu.RUnlock()
	if !ok {
		return nil, UnknownKeyError("provider type", string(key))
	}
	return providerType, nil
}

func (r *Registry) Has(key ServiceKey) bool {
	_, err := r.Get(key)
	return err == nil
}

// List returns a snapshot; mutating it does not affect the registry.
func (r *Registry) List() map[ServiceKey]ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[ServiceKey]ProviderType, len(r.providers))
	for key, providerType := range r.providers {
		out[key] = providerType
	}
	return out
}

// Keys returns the registered service keys in sorted order.
func (r *Registry) Keys() []ServiceKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.providers)
}

// RegisterSettingsLoader adds a container level settings loader. A key may
// hold one loader.
func (r *Registry) RegisterSettingsLoader(key ContainerKey, loader SettingsLoader) error {
	if loader == nil {
		return BadInputError("settings loader is required")
	}
	key = key.Normalize()
	if key == "" {
		return BadInputError("container key is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaders == nil {
		r.loaders = map[ContainerKey]SettingsLoader{}
	}
	if _, ok := r.loaders[key]; ok {
		return RegistrationConflictError(ServiceKey(key), "an existing settings loader", reflect.TypeOf(loader).String())
	}
	r.loaders[key] = loader
	return nil
}

func (r *Registry) SettingsLoaders() map[ContainerKey]SettingsLoader {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[ContainerKey]SettingsLoader, len(r.loaders))
	for key, loader := range r.loaders {
		out[key] = loader
	}
	return out
}
