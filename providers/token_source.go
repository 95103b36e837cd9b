package providers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/anishxyz/integrations/core"
	"golang.org/x/oauth2"
)

const defaultExpiryLeeway = 10 * time.Second

// RefreshingTokenSource is an oauth2.TokenSource over a core token that
// refreshes through the flow once the token is within the expiry leeway.
type RefreshingTokenSource struct {
	ctx    context.Context
	flow   core.OAuth2Flow
	now    func() time.Time
	leeway time.Duration

	mu        sync.Mutex
	current   *core.Token
	onRefresh func(*core.Token)
}

type TokenSourceOption func(*RefreshingTokenSource)

// OnRefresh registers a callback receiving every refreshed token, typically
// to persist it.
func OnRefresh(fn func(*core.Token)) TokenSourceOption {
	return func(s *RefreshingTokenSource) {
		s.onRefresh = fn
	}
}

func WithExpiryLeeway(leeway time.Duration) TokenSourceOption {
	return func(s *RefreshingTokenSource) {
		s.leeway = leeway
	}
}

func WithTokenSourceClock(now func() time.Time) TokenSourceOption {
	return func(s *RefreshingTokenSource) {
		s.now = now
	}
}

// TokenSource wraps token in an oauth2.ReuseTokenSource backed by flow.
func TokenSource(ctx context.Context, flow core.OAuth2Flow, token *core.Token, opts ...TokenSourceOption) oauth2.TokenSource {
	source := NewRefreshingTokenSource(ctx, flow, token, opts...)
	return oauth2.ReuseTokenSource(token.OAuth2(), source)
}

func NewRefreshingTokenSource(ctx context.Context, flow core.OAuth2Flow, token *core.Token, opts ...TokenSourceOption) *RefreshingTokenSource {
	if ctx == nil {
		ctx = context.Background()
	}
	source := &RefreshingTokenSource{
		ctx:     ctx,
		flow:    flow,
		now:     func() time.Time { return time.Now().UTC() },
		leeway:  defaultExpiryLeeway,
		current: token.Clone(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(source)
		}
	}
	return source
}

func (s *RefreshingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.AccessToken != "" && !s.current.Expired(s.now(), s.leeway) {
		return s.current.OAuth2(), nil
	}
	if s.flow == nil {
		return nil, core.MissingOAuth2ParamsError("token expired and no oauth2 flow is available to refresh it")
	}
	refreshed, err := s.flow.Refresh(s.ctx, core.RefreshRequest{
		Credentials: core.Structured(s.current),
	})
	if err != nil {
		return nil, err
	}
	s.current = refreshed.Clone()
	if s.onRefresh != nil {
		s.onRefresh(refreshed.Clone())
	}
	return s.current.OAuth2(), nil
}

// Current returns the latest token seen by the source.
func (s *RefreshingTokenSource) Current() *core.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// HTTPClient returns an *http.Client that authorizes requests with ts.
func HTTPClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	if ctx == nil {
		ctx = context.Background()
	}
	return oauth2.NewClient(ctx, ts)
}

// StaticHTTPClient authorizes every request with a fixed token and scheme.
func StaticHTTPClient(ctx context.Context, token string, scheme string) *http.Client {
	if scheme == "" {
		scheme = core.DefaultTokenType
	}
	return HTTPClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   scheme,
	}))
}
