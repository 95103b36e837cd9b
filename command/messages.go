package command

import (
	"strings"

	"github.com/anishxyz/integrations/core"
)

const (
	TypeStoreCredentials  = "integrations.command.credentials.store"
	TypeDeleteCredentials = "integrations.command.credentials.delete"
	TypeExchange          = "integrations.command.oauth2.exchange"
	TypeRefresh           = "integrations.command.credentials.refresh"
	TypeEnsureFresh       = "integrations.command.credentials.ensure_fresh"
)

type StoreCredentialsMessage struct {
	Provider    string
	Subject     core.Subject
	Credentials core.CredentialsInput
}

func (StoreCredentialsMessage) Type() string { return TypeStoreCredentials }

func (m StoreCredentialsMessage) Validate() error {
	if err := validateTarget(m.Provider, m.Subject); err != nil {
		return err
	}
	if m.Credentials.IsAbsent() {
		return commandValidationError("credentials", "credentials are required")
	}
	return nil
}

type DeleteCredentialsMessage struct {
	Provider string
	Subject  core.Subject
}

func (DeleteCredentialsMessage) Type() string { return TypeDeleteCredentials }

func (m DeleteCredentialsMessage) Validate() error {
	return validateTarget(m.Provider, m.Subject)
}

// ExchangeMessage trades an authorization code for a token. The token is
// stored when Request.Subject is set.
type ExchangeMessage struct {
	Provider string
	Request  core.ExchangeRequest
}

func (ExchangeMessage) Type() string { return TypeExchange }

func (m ExchangeMessage) Validate() error {
	if strings.TrimSpace(m.Provider) == "" {
		return commandValidationError("provider", "provider is required")
	}
	if strings.TrimSpace(m.Request.Code) == "" && strings.TrimSpace(m.Request.AuthorizationResponse) == "" {
		return commandValidationError("code", "code or authorization response is required")
	}
	return nil
}

// RefreshMessage refreshes stored credentials through the retrying runner.
// MaxAttempts falls back to the manager configuration when zero.
type RefreshMessage struct {
	Provider    string
	Subject     core.Subject
	MaxAttempts int
}

func (RefreshMessage) Type() string { return TypeRefresh }

func (m RefreshMessage) Validate() error {
	if err := validateTarget(m.Provider, m.Subject); err != nil {
		return err
	}
	if m.MaxAttempts < 0 {
		return commandValidationError("max_attempts", "max attempts must be >= 0")
	}
	return nil
}

type EnsureFreshMessage struct {
	Provider string
	Subject  core.Subject
	Options  core.EnsureFreshOptions
}

func (EnsureFreshMessage) Type() string { return TypeEnsureFresh }

func (m EnsureFreshMessage) Validate() error {
	return validateTarget(m.Provider, m.Subject)
}

func validateTarget(provider string, subject core.Subject) error {
	if strings.TrimSpace(provider) == "" {
		return commandValidationError("provider", "provider is required")
	}
	if _, err := subject.Key(); err != nil {
		return commandWrapValidation(err, "subject")
	}
	return nil
}
