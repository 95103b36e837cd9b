package query

import (
	"github.com/anishxyz/integrations/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[LoadCredentialsMessage, *core.Token]     = (*LoadCredentialsQuery)(nil)
	_ gocmd.Querier[AuthorizeMessage, core.AuthorizeResult]  = (*AuthorizeQuery)(nil)
	_ gocmd.Querier[SessionMessage, *core.Container]         = (*SessionQuery)(nil)
	_ gocmd.Querier[ListProvidersMessage, []core.ServiceKey] = (*ListProvidersQuery)(nil)

	_ CredentialReader    = (*core.Manager)(nil)
	_ AuthorizationReader = (*core.Manager)(nil)
	_ SessionReader       = (*core.Manager)(nil)
	_ ProviderLister      = (*core.Manager)(nil)
)
