package github

import (
	"time"

	"github.com/anishxyz/integrations/core"
	"github.com/anishxyz/integrations/providers"
)

const (
	Key      = core.ServiceGitHub
	AuthURL  = "https://github.com/login/oauth/authorize"
	TokenURL = "https://github.com/login/oauth/access_token"
	BaseURL  = "https://api.github.com"
)

func DefaultAppCredentials() core.AppCredentials {
	return core.AppCredentials{
		AuthorizationURL: AuthURL,
		TokenURL:         TokenURL,
		ScopeSeparator:   core.DefaultScopeSeparator,
	}
}

// AppEnv reads GITHUB_CLIENT_ID, GITHUB_CLIENT_SECRET, GITHUB_REDIRECT_URI and
// the static token from GITHUB_TOKEN or GITHUB_API_TOKEN.
var AppEnv = providers.AppEnvSpec("GITHUB_", map[string][]string{
	"GITHUB_TOKEN": {"GITHUB_TOKEN", "GITHUB_API_TOKEN"},
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
			core.ContainerGitHub: Binding(),
		},
	}, opts...)
}

type Settings struct {
	Token               string        `mapstructure:"token" env:"TOKEN"`
	AuthorizationScheme string        `mapstructure:"authorization_scheme" env:"TOKEN_TYPE"`
	BaseURL             string        `mapstructure:"base_url" env:"BASE_URL"`
	UserAgent           string        `mapstructure:"user_agent" env:"USER_AGENT"`
	Timeout             time.Duration `mapstructure:"timeout" env:"TIMEOUT"`
}

func DefaultSettings() Settings {
	return Settings{
		AuthorizationScheme: core.DefaultTokenType,
		BaseURL:             BaseURL,
		UserAgent:           providers.UserAgent,
		Timeout:             providers.DefaultTimeout,
	}
}

func (Settings) ContainerKey() core.ContainerKey { return core.ContainerGitHub }

func (s Settings) Authorization() string {
	return providers.AuthorizationHeader(s.AuthorizationScheme, s.Token)
}

// Binding maps the user OAuth token, or the app token, to Settings.
func Binding() core.Binding {
	return providers.TokenBinding(
		"GitHub credentials missing token; store OAuth token or configure an app token.",
		[]string{"token"},
		[]string{"base_url", "user_agent", "timeout"},
		func(token string, scheme string) Settings {
			settings := DefaultSettings()
			settings.Token = token
			settings.AuthorizationScheme = scheme
			return settings
		},
	)
}

// SettingsEnv reads GITHUB_TOKEN (or GITHUB_PAT, GITHUB_OAUTH_TOKEN,
// GITHUB_APP_TOKEN), GITHUB_TOKEN_TYPE, GITHUB_BASE_URL, GITHUB_USER_AGENT and
// GITHUB_TIMEOUT.
var SettingsEnv = core.EnvSpec{
	Prefix: "GITHUB_",
	Aliases: map[string][]string{
		"GITHUB_TOKEN": {"GITHUB_TOKEN", "GITHUB_PAT", "GITHUB_OAUTH_TOKEN", "GITHUB_APP_TOKEN"},
	},
}

func SettingsLoader() core.SettingsLoader {
	return providers.EnvSettingsLoader(SettingsEnv, DefaultSettings, func(s Settings) string { return s.Token })
}
