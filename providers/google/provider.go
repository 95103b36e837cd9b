// Package google is the auth provider shared by the Google workspace
// products. One OAuth2 grant backs the gmail, calendar, docs, drive and
// sheets containers; their settings live in the product subpackages.
package google

import (
	"github.com/anishxyz/integrations/core"
	"github.com/anishxyz/integrations/providers"
	"github.com/anishxyz/integrations/providers/google/calendar"
	"github.com/anishxyz/integrations/providers/google/docs"
	"github.com/anishxyz/integrations/providers/google/drive"
	"github.com/anishxyz/integrations/providers/google/gmail"
	"github.com/anishxyz/integrations/providers/google/sheets"
)

const (
	Key      = core.ServiceGoogle
	AuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	TokenURL = "https://oauth2.googleapis.com/token"
)

func DefaultAppCredentials() core.AppCredentials {
	return core.AppCredentials{
		AuthorizationURL: AuthURL,
		TokenURL:         TokenURL,
		ScopeSeparator:   core.DefaultScopeSeparator,
	}
}

var AppEnv = providers.AppEnvSpec("GOOGLE_", map[string][]string{
	"GOOGLE_CLIENT_ID":     {"GOOGLE_CLIENT_ID", "GOOGLE_OAUTH_CLIENT_ID"},
	"GOOGLE_CLIENT_SECRET": {"GOOGLE_CLIENT_SECRET", "GOOGLE_OAUTH_CLIENT_SECRET"},
	"GOOGLE_REDIRECT_URI":  {"GOOGLE_REDIRECT_URI", "GOOGLE_OAUTH_REDIRECT_URI"},
	"GOOGLE_TOKEN":         {"GOOGLE_TOKEN", "GOOGLE_ACCESS_TOKEN"},
	"GOOGLE_REFRESH_TOKEN": {"GOOGLE_REFRESH_TOKEN", "GOOGLE_OAUTH_REFRESH_TOKEN"},
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
		Bindings: Bindings(),
	}, opts...)
}

// Bindings returns a fresh binding per workspace product.
func Bindings() map[core.ContainerKey]core.Binding {
	return map[core.ContainerKey]core.Binding{
		gmail.Key:    gmail.Binding(),
		calendar.Key: calendar.Binding(),
		docs.Key:     docs.Binding(),
		drive.Key:    drive.Binding(),
		sheets.Key:   sheets.Binding(),
	}
}

// SettingsLoaders returns the env loaders of the workspace products.
func SettingsLoaders() map[core.ContainerKey]core.SettingsLoader {
	return map[core.ContainerKey]core.SettingsLoader{
		gmail.Key:    gmail.SettingsLoader(),
		calendar.Key: calendar.SettingsLoader(),
		docs.Key:     docs.SettingsLoader(),
		drive.Key:    drive.SettingsLoader(),
		sheets.Key:   sheets.SettingsLoader(),
	}
}
