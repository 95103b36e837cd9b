package core

import (
	"context"
	"time"
)

type sessionOptions struct {
	allow       map[ContainerKey]struct{}
	overrides   map[ContainerKey]Settings
	credentials map[ContainerKey]CredentialsInput
	autoLoad    *bool
}

type SessionOption func(*sessionOptions)

// WithProviders restricts the session to the given container keys. Keys named
// here are also exempt from the unconfigured provider skip.
func WithProviders(keys ...string) SessionOption {
	return func(o *sessionOptions) {
		if o.allow == nil {
			o.allow = map[ContainerKey]struct{}{}
		}
		for _, key := range keys {
			normalized := ContainerKey(NormalizeName(key))
			if normalized == "" {
				continue
			}
			o.allow[normalized] = struct{}{}
		}
	}
}

// WithOverrides replaces the resolved settings for the given keys after
// binding.
func WithOverrides(overrides map[ContainerKey]Settings) SessionOption {
	return func(o *sessionOptions) {
		if o.overrides == nil {
			o.overrides = map[ContainerKey]Settings{}
		}
		for key, settings := range overrides {
			o.overrides[key.Normalize()] = settings
		}
	}
}

func WithOverride(key string, settings Settings) SessionOption {
	return WithOverrides(map[ContainerKey]Settings{ContainerKey(key): settings})
}

// WithCredentials supplies user credentials for one container key. They take
// precedence over stored credentials.
func WithCredentials(key string, input CredentialsInput) SessionOption {
	return func(o *sessionOptions) {
		if o.credentials == nil {
			o.credentials = map[ContainerKey]CredentialsInput{}
		}
		o.credentials[ContainerKey(NormalizeName(key))] = input
	}
}

func WithAutoLoadCredentials(enabled bool) SessionOption {
	return func(o *sessionOptions) {
		o.autoLoad = &enabled
	}
}

func (o sessionOptions) allowed(key ContainerKey) bool {
	if o.allow == nil {
		return true
	}
	_, ok := o.allow[key]
	return ok
}

func (o sessionOptions) named(key ContainerKey) bool {
	if o.allow == nil {
		return false
	}
	_, ok := o.allow[key]
	return ok
}

func (o sessionOptions) manual(key ContainerKey) (CredentialsInput, bool) {
	input, ok := o.credentials[key]
	if !ok || input.IsAbsent() {
		return CredentialsInput{}, false
	}
	return input, true
}

type sessionProvider struct {
	key      ServiceKey
	provider AuthProvider
	explicit bool
}

func (m *Manager) sessionProviders() []sessionProvider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := sortedKeys(m.providers)
	out := make([]sessionProvider, 0, len(keys))
	for _, key := range keys {
		out = append(out, sessionProvider{
			key:      key,
			provider: m.providers[key],
			explicit: m.explicit[key],
		})
	}
	return out
}

// Session resolves settings for every bound container key visible to subject.
//
// A binding that reports missing credentials is skipped only when its provider
// was auto-configured, the caller supplied no credentials for it, nothing is
// stored for it and the caller did not name it in WithProviders. Otherwise the
// session fails with a missing credentials error.
func (m *Manager) Session(ctx context.Context, subject Subject, opts ...SessionOption) (container *Container, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"subject": subject.String()}
	defer func() {
		m.observeOperation(ctx, startedAt, "session", err, fields)
	}()

	options := sessionOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}
	autoLoad := m.config.AutoLoadCredentials
	if options.autoLoad != nil {
		autoLoad = *options.autoLoad
	}
	if autoLoad {
		if _, err = subject.Key(); err != nil {
			err = m.mapError(err)
			return nil, err
		}
	}

	resolved := map[ContainerKey]Settings{}
	skipped := []string{}
	for _, entry := range m.sessionProviders() {
		var stored StoredData
		storedLoaded := false
		bindings := entry.provider.Bindings()
		for _, containerKey := range sortedKeys(bindings) {
			if err = ctx.Err(); err != nil {
				err = m.mapError(err)
				return nil, err
			}
			if !options.allowed(containerKey) {
				continue
			}

			var user *Token
			manual, manualSupplied := options.manual(containerKey)
			if manualSupplied {
				user, err = entry.provider.ParseUserCredentials(manual)
				if err != nil {
					err = m.mapError(err)
					return nil, err
				}
			}
			storedFound := false
			if !manualSupplied && autoLoad {
				if !storedLoaded {
					stored, err = m.store.Get(ctx, entry.key, subject)
					if err != nil {
						err = m.mapError(wrapStoreError(err, "get", entry.key))
						return nil, err
					}
					storedLoaded = true
				}
				if stored != nil {
					storedFound = true
					user, err = entry.provider.ParseUserCredentials(Raw(stored))
					if err != nil {
						err = m.mapError(err)
						return nil, err
					}
				}
			}

			result, bindErr := bindings[containerKey].ToSettings(ctx, BindingRequest{
				Manager:         m,
				Service:         entry.key,
				ContainerKey:    containerKey,
				Subject:         subject,
				AppCredentials:  entry.provider.AppCredentials(),
				UserCredentials: user,
			})
			if bindErr != nil {
				err = m.mapError(bindErr)
				return nil, err
			}
			settings, ok := result.Settings()
			if !ok {
				if !entry.explicit && !manualSupplied && !storedFound && !options.named(containerKey) {
					skipped = append(skipped, string(containerKey))
					m.logDebug(ctx, "skipping unconfigured binding", map[string]any{
						"service_key":   string(entry.key),
						"container_key": string(containerKey),
						"reason":        result.Reason(),
					})
					continue
				}
				err = m.mapError(result.Err(containerKey))
				return nil, err
			}
			resolved[containerKey] = settings
		}
	}

	for key, settings := range options.overrides {
		if settings == nil {
			delete(resolved, key)
			continue
		}
		resolved[key] = settings
	}
	m.fillFromLoaders(ctx, resolved, options)

	container = NewContainer(resolved)
	fields["container_keys"] = len(resolved)
	if len(skipped) > 0 {
		fields["skipped"] = skipped
	}
	return container, nil
}

// fillFromLoaders adds settings for keys still missing after binding when a
// registered loader can build them from the environment alone.
func (m *Manager) fillFromLoaders(ctx context.Context, resolved map[ContainerKey]Settings, options sessionOptions) {
	if !m.autoConfigure || m.registry == nil {
		return
	}
	loaders := m.registry.SettingsLoaders()
	for _, key := range sortedKeys(loaders) {
		if _, exists := resolved[key]; exists || !options.allowed(key) {
			continue
		}
		// A nil override removes the key for good.
		if _, overridden := options.overrides[key]; overridden {
			continue
		}
		settings, ok, err := loaders[key].LoadSettings(m.env)
		if err != nil {
			m.logDebug(ctx, "settings loader failed", map[string]any{
				"container_key": string(key),
				"error":         err.Error(),
			})
			continue
		}
		if ok && settings != nil {
			resolved[key] = settings
		}
	}
}
