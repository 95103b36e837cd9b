package integrations

import (
	"fmt"

	integrationscommand "github.com/anishxyz/integrations/command"
	"github.com/anishxyz/integrations/core"
	integrationsquery "github.com/anishxyz/integrations/query"
)

type Commands struct {
	StoreCredentials  *integrationscommand.StoreCredentialsCommand
	DeleteCredentials *integrationscommand.DeleteCredentialsCommand
	Exchange          *integrationscommand.ExchangeCommand
	Refresh           *integrationscommand.RefreshCommand
	EnsureFresh       *integrationscommand.EnsureFreshCommand
}

type Queries struct {
	LoadCredentials *integrationsquery.LoadCredentialsQuery
	Authorize       *integrationsquery.AuthorizeQuery
	Session         *integrationsquery.SessionQuery
	ListProviders   *integrationsquery.ListProvidersQuery
}

// Facade exposes a manager as go-command commands and queries.
type Facade struct {
	manager  *core.Manager
	commands Commands
	queries  Queries
}

func NewFacade(manager *core.Manager) (*Facade, error) {
	if manager == nil {
		return nil, fmt.Errorf("integrations: manager is required")
	}
	return &Facade{
		manager: manager,
		commands: Commands{
			StoreCredentials:  integrationscommand.NewStoreCredentialsCommand(manager),
			DeleteCredentials: integrationscommand.NewDeleteCredentialsCommand(manager),
			Exchange:          integrationscommand.NewExchangeCommand(manager),
			Refresh:           integrationscommand.NewRefreshCommand(manager),
			EnsureFresh:       integrationscommand.NewEnsureFreshCommand(manager),
		},
		queries: Queries{
			LoadCredentials: integrationsquery.NewLoadCredentialsQuery(manager),
			Authorize:       integrationsquery.NewAuthorizeQuery(manager),
			Session:         integrationsquery.NewSessionQuery(manager),
			ListProviders:   integrationsquery.NewListProvidersQuery(manager),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Manager() *core.Manager {
	if f == nil {
		return nil
	}
	return f.manager
}
