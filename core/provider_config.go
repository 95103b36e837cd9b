package core

import "fmt"

type providerConfigKind int

const (
	providerConfigInstance providerConfigKind = iota + 1
	providerConfigApp
	providerConfigData
)

// ProviderConfig is what the manager accepts for an explicit provider: a
// built provider, app credentials, or a raw mapping.
type ProviderConfig struct {
	kind     providerConfigKind
	provider AuthProvider
	app      AppCredentials
	data     map[string]any
}

func ProviderInstance(provider AuthProvider) ProviderConfig {
	return ProviderConfig{kind: providerConfigInstance, provider: provider}
}

func ProviderApp(app AppCredentials) ProviderConfig {
	return ProviderConfig{kind: providerConfigApp, app: app.Clone()}
}

func ProviderData(data map[string]any) ProviderConfig {
	return ProviderConfig{kind: providerConfigData, data: copyAnyMap(data)}
}

// ProviderConfigFrom builds the union from a dynamic value. Anything else is a
// type error.
func ProviderConfigFrom(value any) (ProviderConfig, error) {
	switch typed := value.(type) {
	case ProviderConfig:
		if typed.kind == 0 {
			return ProviderConfig{}, TypeError("provider config is empty")
		}
		return typed, nil
	case AuthProvider:
		if typed == nil {
			return ProviderConfig{}, TypeError("provider is nil")
		}
		return ProviderInstance(typed), nil
	case AppCredentials:
		return ProviderApp(typed), nil
	case *AppCredentials:
		if typed == nil {
			return ProviderConfig{}, TypeError("app credentials are nil")
		}
		return ProviderApp(*typed), nil
	case map[string]any:
		return ProviderData(typed), nil
	default:
		return ProviderConfig{}, TypeError(fmt.Sprintf("provider config must be a provider, app credentials, or a mapping, got %T", value))
	}
}

// Provider returns the built provider variant.
func (c ProviderConfig) Provider() (AuthProvider, bool) {
	return c.provider, c.kind == providerConfigInstance
}

// options translates the app or data variant into provider options.
func (c ProviderConfig) options() []ProviderOption {
	switch c.kind {
	case providerConfigApp:
		return []ProviderOption{WithAppCredentials(c.app)}
	case providerConfigData:
		return []ProviderOption{WithAppData(c.data)}
	default:
		return nil
	}
}
