package query

import (
	"strings"

	"github.com/anishxyz/integrations/core"
)

const (
	TypeLoadCredentials = "integrations.query.credentials.load"
	TypeAuthorize       = "integrations.query.oauth2.authorize"
	TypeSession         = "integrations.query.session"
	TypeListProviders   = "integrations.query.providers.list"
)

type LoadCredentialsMessage struct {
	Provider string
	Subject  core.Subject
}

func (LoadCredentialsMessage) Type() string { return TypeLoadCredentials }

func (m LoadCredentialsMessage) Validate() error {
	if strings.TrimSpace(m.Provider) == "" {
		return queryValidationError("provider", "provider is required")
	}
	if _, err := m.Subject.Key(); err != nil {
		return queryWrapValidation(err, "query: invalid subject")
	}
	return nil
}

// AuthorizeMessage builds an authorization URL. It has no side effects, so it
// is served as a query.
type AuthorizeMessage struct {
	Provider string
	Request  core.AuthorizeRequest
}

func (AuthorizeMessage) Type() string { return TypeAuthorize }

func (m AuthorizeMessage) Validate() error {
	if strings.TrimSpace(m.Provider) == "" {
		return queryValidationError("provider", "provider is required")
	}
	return nil
}

type SessionMessage struct {
	Subject core.Subject
	// Providers narrows the session to these container keys.
	Providers           []string
	Credentials         map[string]core.CredentialsInput
	AutoLoadCredentials *bool
}

func (SessionMessage) Type() string { return TypeSession }

func (m SessionMessage) Validate() error {
	if _, err := m.Subject.Key(); err != nil {
		return queryWrapValidation(err, "query: invalid subject")
	}
	for _, name := range m.Providers {
		if strings.TrimSpace(name) == "" {
			return queryInvalidInputError("query: provider names must not be blank")
		}
	}
	return nil
}

func (m SessionMessage) options() []core.SessionOption {
	opts := make([]core.SessionOption, 0, len(m.Credentials)+2)
	if len(m.Providers) > 0 {
		opts = append(opts, core.WithProviders(m.Providers...))
	}
	for key, input := range m.Credentials {
		opts = append(opts, core.WithCredentials(key, input))
	}
	if m.AutoLoadCredentials != nil {
		opts = append(opts, core.WithAutoLoadCredentials(*m.AutoLoadCredentials))
	}
	return opts
}

type ListProvidersMessage struct{}

func (ListProvidersMessage) Type() string { return TypeListProviders }

func (ListProvidersMessage) Validate() error { return nil }
