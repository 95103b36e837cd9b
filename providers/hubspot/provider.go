package hubspot

import (
	"time"

	"github.com/anishxyz/integrations/core"
	"github.com/anishxyz/integrations/providers"
)

const (
	Key      = core.ServiceHubSpot
	AuthURL  = "https://app.hubspot.com/oauth/authorize"
	TokenURL = "https://api.hubapi.com/oauth/v1/token"
	BaseURL  = "https://api.hubapi.com"

	DefaultTimeout = 15 * time.Second
)

const missingToken = "HubSpot credentials missing access token; supply a user OAuth token or configure a private app token."

// DefaultAppCredentials posts the client secret in the form body, which is
// the only method the HubSpot token endpoint accepts.
func DefaultAppCredentials() core.AppCredentials {
	return core.AppCredentials{
		AuthorizationURL:        AuthURL,
		TokenURL:                TokenURL,
		ScopeSeparator:          core.DefaultScopeSeparator,
		TokenEndpointAuthMethod: core.AuthMethodClientSecretPost,
	}
}

var AppEnv = providers.AppEnvSpec("HUBSPOT_", map[string][]string{
	"HUBSPOT_TOKEN": {"HUBSPOT_ACCESS_TOKEN", "HUBSPOT_TOKEN", "HUBSPOT_PRIVATE_APP_TOKEN"},
}, nil)

type Type struct{}

func (Type) Key() core.ServiceKey { return Key }

func (Type) New(opts ...core.ProviderOption) (core.AuthProvider, error) {
	return New(opts...)
}

func New(opts ...core.ProviderOption) (*providers.Provider, error) {
	return providers.NewProvider(providers.Definition{
		Key:      Key,
		Defaults: DefaultAppCredentials(),
		Env:      AppEnv,
		Bindings: map[core.ContainerKey]core.Binding{
			core.ContainerHubSpot: Binding(),
		},
	}, opts...)
}

type Settings struct {
	AccessToken string        `mapstructure:"access_token" env:"ACCESS_TOKEN"`
	BaseURL     string        `mapstructure:"base_url" env:"BASE_URL"`
	Timeout     time.Duration `mapstructure:"timeout" env:"TIMEOUT"`
	UserAgent   string        `mapstructure:"user_agent" env:"USER_AGENT"`
}

func DefaultSettings() Settings {
	return Settings{
		BaseURL:   BaseURL,
		Timeout:   DefaultTimeout,
		UserAgent: providers.UserAgent,
	}
}

func (Settings) ContainerKey() core.ContainerKey { return core.ContainerHubSpot }

func (s Settings) Authorization() string {
	return providers.AuthorizationHeader(core.DefaultTokenType, s.AccessToken)
}

func Binding() core.Binding {
	return providers.TokenBinding(
		missingToken,
		[]string{"token", "access_token"},
		[]string{"base_url", "timeout", "user_agent"},
		func(token string, _ string) Settings {
			settings := DefaultSettings()
			settings.AccessToken = token
			return settings
		},
	)
}

var SettingsEnv = core.EnvSpec{
	Prefix: "HUBSPOT_",
	Aliases: map[string][]string{
		"HUBSPOT_ACCESS_TOKEN": {"HUBSPOT_ACCESS_TOKEN", "HUBSPOT_TOKEN", "HUBSPOT_PRIVATE_APP_TOKEN"},
	},
}

func SettingsLoader() core.SettingsLoader {
	return providers.EnvSettingsLoader(SettingsEnv, DefaultSettings, func(s Settings) string { return s.AccessToken })
}
