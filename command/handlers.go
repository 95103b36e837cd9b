package command

import (
	"context"

	"github.com/anishxyz/integrations/core"
	gocmd "github.com/goliatone/go-command"
)

// CredentialService is the mutating surface of *core.Manager.
type CredentialService interface {
	StoreCredentials(ctx context.Context, name string, subject core.Subject, input core.CredentialsInput) error
	DeleteCredentials(ctx context.Context, name string, subject core.Subject) error
	Exchange(ctx context.Context, name string, req core.ExchangeRequest) (*core.Token, error)
	RunRefreshWithRetry(ctx context.Context, name string, subject core.Subject, opts core.RefreshRunOptions) (core.RefreshRunResult, error)
	EnsureFresh(ctx context.Context, name string, subject core.Subject, opts core.EnsureFreshOptions) (core.EnsureFreshResult, error)
}

type StoreCredentialsCommand struct {
	service CredentialService
}

func NewStoreCredentialsCommand(service CredentialService) *StoreCredentialsCommand {
	return &StoreCredentialsCommand{service: service}
}

func (c *StoreCredentialsCommand) Execute(ctx context.Context, msg StoreCredentialsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.service.StoreCredentials(ctx, msg.Provider, msg.Subject, msg.Credentials)
}

type DeleteCredentialsCommand struct {
	service CredentialService
}

func NewDeleteCredentialsCommand(service CredentialService) *DeleteCredentialsCommand {
	return &DeleteCredentialsCommand{service: service}
}

func (c *DeleteCredentialsCommand) Execute(ctx context.Context, msg DeleteCredentialsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.service.DeleteCredentials(ctx, msg.Provider, msg.Subject)
}

type ExchangeCommand struct {
	service CredentialService
}

func NewExchangeCommand(service CredentialService) *ExchangeCommand {
	return &ExchangeCommand{service: service}
}

func (c *ExchangeCommand) Execute(ctx context.Context, msg ExchangeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: exchange service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	token, err := c.service.Exchange(ctx, msg.Provider, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, token)
	return nil
}

type RefreshCommand struct {
	service CredentialService
}

func NewRefreshCommand(service CredentialService) *RefreshCommand {
	return &RefreshCommand{service: service}
}

func (c *RefreshCommand) Execute(ctx context.Context, msg RefreshMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.RunRefreshWithRetry(ctx, msg.Provider, msg.Subject, core.RefreshRunOptions{
		MaxAttempts: msg.MaxAttempts,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type EnsureFreshCommand struct {
	service CredentialService
}

func NewEnsureFreshCommand(service CredentialService) *EnsureFreshCommand {
	return &EnsureFreshCommand{service: service}
}

func (c *EnsureFreshCommand) Execute(ctx context.Context, msg EnsureFreshMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: freshness service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.EnsureFresh(ctx, msg.Provider, msg.Subject, msg.Options)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
