package notion

import (
	"time"

	"github.com/anishxyz/integrations/core"
	"github.com/anishxyz/integrations/providers"
)

const (
	Key      = core.ServiceNotion
	AuthURL  = "https://api.notion.com/v1/oauth/authorize"
	TokenURL = "https://api.notion.com/v1/oauth/token"
	BaseURL  = "https://api.notion.com/v1"
	Version  = "2022-06-28"
)

const missingToken = "Notion credentials missing access token; provide an integration token or persist the OAuth access token."

func DefaultAppCredentials() core.AppCredentials {
	return core.AppCredentials{
		AuthorizationURL: AuthURL,
		TokenURL:         TokenURL,
		ScopeSeparator:   core.DefaultScopeSeparator,
	}
}

var AppEnv = providers.AppEnvSpec("NOTION_", map[string][]string{
	"NOTION_TOKEN": {"NOTION_TOKEN", "NOTION_INTEGRATION_TOKEN"},
}, map[string][]string{
	"version": {"NOTION_VERSION", "NOTION_API_VERSION"},
})

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
			core.ContainerNotion: Binding(),
		},
	}, opts...)
}

type Settings struct {
	Token     string        `mapstructure:"token" env:"TOKEN"`
	Version   string        `mapstructure:"version" env:"VERSION"`
	BaseURL   string        `mapstructure:"base_url" env:"BASE_URL"`
	UserAgent string        `mapstructure:"user_agent" env:"USER_AGENT"`
	Timeout   time.Duration `mapstructure:"timeout" env:"TIMEOUT"`
}

func DefaultSettings() Settings {
	return Settings{
		Version:   Version,
		BaseURL:   BaseURL,
		UserAgent: providers.UserAgent,
		Timeout:   providers.DefaultTimeout,
	}
}

func (Settings) ContainerKey() core.ContainerKey { return core.ContainerNotion }

func (s Settings) Authorization() string {
	return providers.AuthorizationHeader(core.DefaultTokenType, s.Token)
}

// Headers returns the headers every Notion API request carries.
func (s Settings) Headers() map[string]string {
	return map[string]string{
		"Authorization":  s.Authorization(),
		"Notion-Version": s.Version,
		"User-Agent":     s.UserAgent,
	}
}

func Binding() core.Binding {
	return providers.TokenBinding(
		missingToken,
		[]string{"token"},
		[]string{"version", "user_agent", "timeout", "base_url"},
		func(token string, _ string) Settings {
			settings := DefaultSettings()
			settings.Token = token
			return settings
		},
	)
}

var SettingsEnv = core.EnvSpec{
	Prefix: "NOTION_",
	Aliases: map[string][]string{
		"NOTION_TOKEN":   {"NOTION_TOKEN", "NOTION_INTEGRATION_TOKEN"},
		"NOTION_VERSION": {"NOTION_VERSION", "NOTION_API_VERSION"},
	},
}

func SettingsLoader() core.SettingsLoader {
	return providers.EnvSettingsLoader(SettingsEnv, DefaultSettings, func(s Settings) string { return s.Token })
}
