package docs

import (
	"time"

	"github.com/anishxyz/integrations/core"
	"github.com/anishxyz/integrations/providers"
	"github.com/anishxyz/integrations/providers/google/common"
)

const (
	Key     = core.ContainerGoogleDocs
	BaseURL = "https://docs.googleapis.com/v1"
)

type Settings struct {
	Token               string        `mapstructure:"token" env:"TOKEN"`
	AuthorizationScheme string        `mapstructure:"authorization_scheme" env:"AUTHORIZATION_SCHEME"`
	BaseURL             string        `mapstructure:"base_url" env:"BASE_URL"`
	Timeout             time.Duration `mapstructure:"timeout" env:"TIMEOUT"`
	UserAgent           string        `mapstructure:"user_agent" env:"USER_AGENT"`
}

func DefaultSettings() Settings {
	return Settings{
		AuthorizationScheme: common.DefaultAuthScheme,
		BaseURL:             BaseURL,
		Timeout:             providers.DefaultTimeout,
		UserAgent:           providers.UserAgent,
	}
}

func (Settings) ContainerKey() core.ContainerKey { return Key }

func (s Settings) Authorization() string {
	return providers.AuthorizationHeader(s.AuthorizationScheme, s.Token)
}

func Binding() core.Binding {
	return providers.TokenBinding(
		common.MissingTokenReason,
		common.AppTokenFields,
		[]string{"base_url", "timeout", "user_agent"},
		func(token string, scheme string) Settings {
			settings := DefaultSettings()
			settings.Token = token
			settings.AuthorizationScheme = scheme
			return settings
		},
	)
}

var SettingsEnv = common.SettingsEnv("GOOGLE_DOCS_", nil)

func SettingsLoader() core.SettingsLoader {
	return providers.EnvSettingsLoader(SettingsEnv, DefaultSettings, func(s Settings) string { return s.Token })
}
