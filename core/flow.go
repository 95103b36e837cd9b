package core

import (
	"context"
	"sync"
)

// FlowOAuth2 is the flow cache name of the OAuth2 authorization code flow.
const FlowOAuth2 = "oauth2"

// Flow is a named credential flow owned by a provider.
type Flow interface {
	Kind() string
}

type AuthorizeRequest struct {
	State       string
	Scope       []string
	RedirectURI string
	ExtraParams map[string]string
}

type AuthorizeResult struct {
	AuthorizationURL string
	State            string
}

// ExchangeRequest needs Code or AuthorizationResponse, the full redirect URL
// the authorization server sent the user back to.
type ExchangeRequest struct {
	Subject               Subject
	Code                  string
	AuthorizationResponse string
	Scope                 []string
	RedirectURI           string
	TokenParams           map[string]string
}

// RefreshRequest resolves its refresh token from Credentials first and
// RefreshToken second.
type RefreshRequest struct {
	Subject      Subject
	Credentials  CredentialsInput
	RefreshToken string
	Scope        []string
	TokenParams  map[string]string
}

// OAuth2Flow performs the three OAuth2 client operations.
type OAuth2Flow interface {
	Flow
	Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResult, error)
	Exchange(ctx context.Context, req ExchangeRequest) (*Token, error)
	Refresh(ctx context.Context, req RefreshRequest) (*Token, error)
}

// OAuth2Provider is implemented by providers that expose an OAuth2 flow.
type OAuth2Provider interface {
	AuthProvider
	OAuth2() (OAuth2Flow, error)
}

// FlowCache memoizes flows by name for the lifetime of one provider.
type FlowCache struct {
	mu    sync.Mutex
	flows map[string]Flow
}

// GetOrCreate returns the cached flow for name, building it with factory on
// first access. A failed build is not cached.
func (c *FlowCache) GetOrCreate(name string, factory func() (Flow, error)) (Flow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if flow, ok := c.flows[name]; ok {
		return flow, nil
	}
	flow, err := factory()
	if err != nil {
		return nil, err
	}
	if c.flows == nil {
		c.flows = map[string]Flow{}
	}
	c.flows[name] = flow
	return flow, nil
}

// Snapshot returns the flows built so far.
func (c *FlowCache) Snapshot() map[string]Flow {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Flow, len(c.flows))
	for name, flow := range c.flows {
		out[name] = flow
	}
	return out
}
