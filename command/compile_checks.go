package command

import (
	"github.com/anishxyz/integrations/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Commander[StoreCredentialsMessage]  = (*StoreCredentialsCommand)(nil)
	_ gocmd.Commander[DeleteCredentialsMessage] = (*DeleteCredentialsCommand)(nil)
	_ gocmd.Commander[ExchangeMessage]          = (*ExchangeCommand)(nil)
	_ gocmd.Commander[RefreshMessage]           = (*RefreshCommand)(nil)
	_ gocmd.Commander[EnsureFreshMessage]       = (*EnsureFreshCommand)(nil)

	_ CredentialService = (*core.Manager)(nil)
)
