// Package integrations resolves per-subject settings for third-party
// services from app credentials, stored user credentials and the
// environment.
//
// New returns a core.Manager whose registry already knows the builtin
// providers:
//
//	manager, err := integrations.New(integrations.DefaultConfig())
//	container, err := manager.Session(ctx, integrations.SubjectID("user_1"))
//	github, ok := container.Get(integrations.ContainerGitHub)
package integrations

import "github.com/anishxyz/integrations/core"

type Manager = core.Manager

type Config = core.Config

type Option = core.Option

type Subject = core.Subject

type Token = core.Token

type CredentialsInput = core.CredentialsInput

type CredentialStore = core.CredentialStore
type StoredData = core.StoredData
type SecretProvider = core.SecretProvider
type RefreshLocker = core.RefreshLocker
type OAuthStateStore = core.OAuthStateStore

type Container = core.Container
type ContainerKey = core.ContainerKey
type ServiceKey = core.ServiceKey
type Settings = core.Settings

type AuthorizeRequest = core.AuthorizeRequest
type AuthorizeResult = core.AuthorizeResult
type ExchangeRequest = core.ExchangeRequest
type RefreshRunOptions = core.RefreshRunOptions
type RefreshRunResult = core.RefreshRunResult
type EnsureFreshOptions = core.EnsureFreshOptions
type EnsureFreshResult = core.EnsureFreshResult

const (
	ServiceAsana   = core.ServiceAsana
	ServiceGitHub  = core.ServiceGitHub
	ServiceGoogle  = core.ServiceGoogle
	ServiceHubSpot = core.ServiceHubSpot
	ServiceNotion  = core.ServiceNotion
	ServiceSlack   = core.ServiceSlack

	ContainerAsana          = core.ContainerAsana
	ContainerGitHub         = core.ContainerGitHub
	ContainerGmail          = core.ContainerGmail
	ContainerGoogleCalendar = core.ContainerGoogleCalendar
	ContainerGoogleDocs     = core.ContainerGoogleDocs
	ContainerGoogleDrive    = core.ContainerGoogleDrive
	ContainerGoogleSheets   = core.ContainerGoogleSheets
	ContainerHubSpot        = core.ContainerHubSpot
	ContainerNotion         = core.ContainerNotion
	ContainerSlack          = core.ContainerSlack
)

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithOAuthStateStore = core.WithOAuthStateStore
	WithRegistry        = core.WithRegistry
	WithCredentialStore = core.WithCredentialStore
	WithEnv             = core.WithEnv
	WithHTTPClient      = core.WithHTTPClient
	WithRefreshLocker   = core.WithRefreshLocker
	WithRefreshBackoff  = core.WithRefreshBackoff
	WithClock           = core.WithClock
	WithAutoConfigure   = core.WithAutoConfigure
	WithProvider        = core.WithProvider

	SubjectID    = core.SubjectID
	SubjectAttrs = core.SubjectAttrs
	Structured   = core.Structured
	Raw          = core.Raw
	Absent       = core.Absent
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// New builds a manager over a registry holding the builtin providers. A
// WithRegistry option replaces that registry.
func New(cfg Config, opts ...Option) (*Manager, error) {
	registry, err := DefaultRegistry()
	if err != nil {
		return nil, err
	}
	return core.NewManager(cfg, append([]Option{core.WithRegistry(registry)}, opts...)...)
}
