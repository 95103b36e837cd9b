package slack

import (
	"time"

	"github.com/anishxyz/integrations/core"
	"github.com/anishxyz/integrations/providers"
)

const (
	Key      = core.ServiceSlack
	AuthURL  = "https://slack.com/oauth/v2/authorize"
	TokenURL = "https://slack.com/api/oauth.v2.access"
	BaseURL  = "https://slack.com/api"
)

const missingToken = "Slack credentials missing access token; store the OAuth access token or configure a bot token."

func DefaultAppCredentials() core.AppCredentials {
	return core.AppCredentials{
		AuthorizationURL: AuthURL,
		TokenURL:         TokenURL,
		ScopeSeparator:   ",",
	}
}

// AppEnv keeps bot_token and user_token as app credential extras.
var AppEnv = providers.AppEnvSpec("SLACK_", nil, map[string][]string{
	"bot_token":  {"SLACK_BOT_TOKEN", "SLACK_TOKEN"},
	"user_token": {"SLACK_USER_TOKEN"},
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
			core.ContainerSlack: Binding(),
		},
	}, opts...)
}

type Settings struct {
	Token     string        `mapstructure:"token" env:"TOKEN"`
	BaseURL   string        `mapstructure:"base_url" env:"BASE_URL"`
	UserAgent string        `mapstructure:"user_agent" env:"USER_AGENT"`
	Timeout   time.Duration `mapstructure:"timeout" env:"TIMEOUT"`
}

func DefaultSettings() Settings {
	return Settings{
		BaseURL:   BaseURL,
		UserAgent: providers.UserAgent,
		Timeout:   providers.DefaultTimeout,
	}
}

func (Settings) ContainerKey() core.ContainerKey { return core.ContainerSlack }

// Authorization always uses the Bearer scheme; Slack rejects others.
func (s Settings) Authorization() string {
	return providers.AuthorizationHeader(core.DefaultTokenType, s.Token)
}

// Binding prefers the user access token, then the app bot token, then the app
// user token.
func Binding() core.Binding {
	return providers.TokenBinding(
		missingToken,
		[]string{"bot_token", "user_token"},
		[]string{"base_url", "timeout", "user_agent"},
		func(token string, _ string) Settings {
			settings := DefaultSettings()
			settings.Token = token
			return settings
		},
	)
}

var SettingsEnv = core.EnvSpec{
	Prefix: "SLACK_",
	Aliases: map[string][]string{
		"SLACK_TOKEN": {"SLACK_BOT_TOKEN", "SLACK_TOKEN", "SLACK_USER_TOKEN"},
	},
}

func SettingsLoader() core.SettingsLoader {
	return providers.EnvSettingsLoader(SettingsEnv, DefaultSettings, func(s Settings) string { return s.Token })
}
