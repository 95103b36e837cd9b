package asana

import (
	"time"

	"github.com/anishxyz/integrations/core"
	"github.com/anishxyz/integrations/providers"
)

const (
	Key      = core.ServiceAsana
	AuthURL  = "https://app.asana.com/-/oauth_authorize"
	TokenURL = "https://app.asana.com/-/oauth_token"
	BaseURL  = "https://app.asana.com/api/1.0"
)

const missingToken = "Asana credentials missing access token; supply a user token or configure an app token."

func DefaultAppCredentials() core.AppCredentials {
	return core.AppCredentials{
		AuthorizationURL: AuthURL,
		TokenURL:         TokenURL,
		ScopeSeparator:   core.DefaultScopeSeparator,
	}
}

var AppEnv = providers.AppEnvSpec("ASANA_", map[string][]string{
	"ASANA_TOKEN": {"ASANA_ACCESS_TOKEN", "ASANA_PERSONAL_ACCESS_TOKEN", "ASANA_TOKEN"},
}, map[string][]string{
	"workspace_gid": {"ASANA_WORKSPACE_GID", "ASANA_WORKSPACE"},
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
			core.ContainerAsana: Binding(),
		},
	}, opts...)
}

type Settings struct {
	Token        string        `mapstructure:"token" env:"TOKEN"`
	WorkspaceGID string        `mapstructure:"workspace_gid" env:"WORKSPACE_GID"`
	BaseURL      string        `mapstructure:"base_url" env:"BASE_URL"`
	Timeout      time.Duration `mapstructure:"timeout" env:"TIMEOUT"`
	UserAgent    string        `mapstructure:"user_agent" env:"USER_AGENT"`
}

func DefaultSettings() Settings {
	return Settings{
		BaseURL:   BaseURL,
		Timeout:   providers.DefaultTimeout,
		UserAgent: providers.UserAgent,
	}
}

func (Settings) ContainerKey() core.ContainerKey { return core.ContainerAsana }

func (s Settings) Authorization() string {
	return providers.AuthorizationHeader(core.DefaultTokenType, s.Token)
}

func Binding() core.Binding {
	return providers.TokenBinding(
		missingToken,
		[]string{"token"},
		[]string{"workspace_gid"},
		func(token string, _ string) Settings {
			settings := DefaultSettings()
			settings.Token = token
			return settings
		},
	)
}

var SettingsEnv = core.EnvSpec{
	Prefix: "ASANA_",
	Aliases: map[string][]string{
		"ASANA_TOKEN":         {"ASANA_ACCESS_TOKEN", "ASANA_PERSONAL_ACCESS_TOKEN", "ASANA_TOKEN"},
		"ASANA_WORKSPACE_GID": {"ASANA_WORKSPACE_GID", "ASANA_WORKSPACE"},
	},
}

func SettingsLoader() core.SettingsLoader {
	return providers.EnvSettingsLoader(SettingsEnv, DefaultSettings, func(s Settings) string { return s.Token })
}
