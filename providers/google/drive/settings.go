package drive

import (
	"time"

	"github.com/anishxyz/integrations/core"
	"github.com/anishxyz/integrations/providers"
	"github.com/anishxyz/integrations/providers/google/common"
)

const (
	Key           = core.ContainerGoogleDrive
	BaseURL       = "https://www.googleapis.com/drive/v3"
	UploadBaseURL = "https://www.googleapis.com/upload/drive/v3"
)

type Settings struct {
	Token               string        `mapstructure:"token" env:"TOKEN"`
	AuthorizationScheme string        `mapstructure:"authorization_scheme" env:"AUTHORIZATION_SCHEME"`
	BaseURL             string        `mapstructure:"base_url" env:"BASE_URL"`
	UploadBaseURL       string        `mapstructure:"upload_base_url" env:"UPLOAD_BASE_URL"`
	Timeout             time.Duration `mapstructure:"timeout" env:"TIMEOUT"`
	UserAgent           string        `mapstructure:"user_agent" env:"USER_AGENT"`
	DefaultDriveID      string        `mapstructure:"default_drive_id" env:"DEFAULT_DRIVE_ID"`
	DefaultParentID     string        `mapstructure:"default_parent_id" env:"DEFAULT_PARENT_ID"`
}

func DefaultSettings() Settings {
	return Settings{
		AuthorizationScheme: common.DefaultAuthScheme,
		BaseURL:             BaseURL,
		UploadBaseURL:       UploadBaseURL,
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
		[]string{"base_url", "upload_base_url", "timeout", "user_agent", "default_drive_id", "default_parent_id"},
		func(token string, scheme string) Settings {
			settings := DefaultSettings()
			settings.Token = token
			settings.AuthorizationScheme = scheme
			return settings
		},
	)
}

var SettingsEnv = common.SettingsEnv("GOOGLE_DRIVE_", nil)

func SettingsLoader() core.SettingsLoader {
	return providers.EnvSettingsLoader(SettingsEnv, DefaultSettings, func(s Settings) string { return s.Token })
}
