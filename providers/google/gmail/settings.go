package gmail

import (
	"time"

	"github.com/anishxyz/integrations/core"
	"github.com/anishxyz/integrations/providers"
	"github.com/anishxyz/integrations/providers/google/common"
)

const (
	Key     = core.ContainerGmail
	BaseURL = "https://gmail.googleapis.com/gmail/v1"
	UserID  = "me"
)

type Settings struct {
	Token               string        `mapstructure:"token" env:"TOKEN"`
	AuthorizationScheme string        `mapstructure:"authorization_scheme" env:"TOKEN_TYPE"`
	BaseURL             string        `mapstructure:"base_url" env:"BASE_URL"`
	UserID              string        `mapstructure:"user_id" env:"USER_ID"`
	Timeout             time.Duration `mapstructure:"timeout" env:"TIMEOUT"`
}

func DefaultSettings() Settings {
	return Settings{
		AuthorizationScheme: common.DefaultAuthScheme,
		BaseURL:             BaseURL,
		UserID:              UserID,
		Timeout:             providers.DefaultTimeout,
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
		[]string{"user_id", "base_url", "timeout"},
		func(token string, scheme string) Settings {
			settings := DefaultSettings()
			settings.Token = token
			settings.AuthorizationScheme = scheme
			return settings
		},
	)
}

var SettingsEnv = common.SettingsEnv("GMAIL_", map[string][]string{
	"GMAIL_TOKEN": {"GMAIL_TOKEN", "GMAIL_ACCESS_TOKEN", "GOOGLE_TOKEN", "GOOGLE_ACCESS_TOKEN"},
})

func SettingsLoader() core.SettingsLoader {
	return providers.EnvSettingsLoader(SettingsEnv, DefaultSettings, func(s Settings) string { return s.Token })
}
