package query

import (
	"context"

	"github.com/anishxyz/integrations/core"
)

type CredentialReader interface {
	LoadCredentials(ctx context.Context, name string, subject core.Subject) (*core.Token, error)
}

type AuthorizationReader interface {
	Authorize(ctx context.Context, name string, req core.AuthorizeRequest) (core.AuthorizeResult, error)
}

type SessionReader interface {
	Session(ctx context.Context, subject core.Subject, opts ...core.SessionOption) (*core.Container, error)
}

type ProviderLister interface {
	Names() []core.ServiceKey
}

type LoadCredentialsQuery struct {
	reader CredentialReader
}

func NewLoadCredentialsQuery(reader CredentialReader) *LoadCredentialsQuery {
	return &LoadCredentialsQuery{reader: reader}
}

func (q *LoadCredentialsQuery) Query(ctx context.Context, msg LoadCredentialsMessage) (*core.Token, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: credential reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.LoadCredentials(ctx, msg.Provider, msg.Subject)
}

type AuthorizeQuery struct {
	reader AuthorizationReader
}

func NewAuthorizeQuery(reader AuthorizationReader) *AuthorizeQuery {
	return &AuthorizeQuery{reader: reader}
}

func (q *AuthorizeQuery) Query(ctx context.Context, msg AuthorizeMessage) (core.AuthorizeResult, error) {
	if q == nil || q.reader == nil {
		return core.AuthorizeResult{}, queryDependencyError("query: authorization reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.AuthorizeResult{}, err
	}
	return q.reader.Authorize(ctx, msg.Provider, msg.Request)
}

type SessionQuery struct {
	reader SessionReader
}

func NewSessionQuery(reader SessionReader) *SessionQuery {
	return &SessionQuery{reader: reader}
}

func (q *SessionQuery) Query(ctx context.Context, msg SessionMessage) (*core.Container, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: session reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.Session(ctx, msg.Subject, msg.options()...)
}

type ListProvidersQuery struct {
	lister ProviderLister
}

func NewListProvidersQuery(lister ProviderLister) *ListProvidersQuery {
	return &ListProvidersQuery{lister: lister}
}

func (q *ListProvidersQuery) Query(_ context.Context, _ ListProvidersMessage) ([]core.ServiceKey, error) {
	if q == nil || q.lister == nil {
		return nil, queryDependencyError("query: provider lister is required")
	}
	return q.lister.Names(), nil
}
