package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	return copyAnyMap(l.values), nil
}

// testSettings is the settings value produced by testBinding.
type testSettings struct {
	key   ContainerKey
	Token string
	Extra string
}

func (s testSettings) ContainerKey() ContainerKey { return s.key }

// testBinding resolves the user access token, then the app token field.
func testBinding(key ContainerKey) Binding {
	return BindingFunc(func(_ context.Context, req BindingRequest) (BindingResult, error) {
		token, _ := req.AccessToken("token")
		if token == "" {
			return Unavailable(fmt.Sprintf("%s has no token", key)), nil
		}
		extra, _ := req.Lookup("extra")
		text, _ := extra.(string)
		return Resolved(testSettings{key: key, Token: token, Extra: text}), nil
	})
}

type testFlow struct {
	mu        sync.Mutex
	refreshes int
	errs      []error
	next      func(current *Token) *Token
	exchange  *Token
	// entered receives one value per Refresh call; release, when set, holds
	// Refresh until it is closed.
	entered chan struct{}
	release chan struct{}
}

func (*testFlow) Kind() string { return FlowOAuth2 }

func (f *testFlow) Authorize(_ context.Context, req AuthorizeRequest) (AuthorizeResult, error) {
	state := req.State
	if state == "" {
		state = "generated"
	}
	return AuthorizeResult{AuthorizationURL: "https://auth.example/authorize?state=" + state, State: state}, nil
}

func (f *testFlow) Exchange(_ context.Context, req ExchangeRequest) (*Token, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, MissingOAuth2ParamsError("code is required")
	}
	if f.exchange != nil {
		return f.exchange.Clone(), nil
	}
	return &Token{AccessToken: "exchanged-" + req.Code, TokenType: DefaultTokenType, RefreshToken: "rt-" + req.Code}, nil
}

func (f *testFlow) Refresh(_ context.Context, req RefreshRequest) (*Token, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	current, _ := req.Credentials.Parse(DefaultScopeSeparator)
	if f.next != nil {
		return f.next(current), nil
	}
	refreshToken := req.Credentials.RefreshToken()
	if refreshToken == "" {
		return nil, MissingOAuth2ParamsError("refresh token is required")
	}
	return &Token{
		AccessToken:  fmt.Sprintf("refreshed-%d", f.refreshes),
		TokenType:    DefaultTokenType,
		RefreshToken: refreshToken,
	}, nil
}

func (f *testFlow) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

type testProvider struct {
	*BaseProvider
	flow *testFlow
}

func newTestProvider(key ServiceKey, app AppCredentials, containers ...ContainerKey) *testProvider {
	if len(containers) == 0 {
		containers = []ContainerKey{ContainerKey(key)}
	}
	bindings := make(map[ContainerKey]Binding, len(containers))
	for _, container := range containers {
		bindings[container] = testBinding(container)
	}
	return &testProvider{
		BaseProvider: NewBaseProvider(key, app, bindings, ProviderOptions{}),
		flow:         &testFlow{},
	}
}

func (p *testProvider) OAuth2() (OAuth2Flow, error) {
	flow, err := p.Flow(FlowOAuth2, func() (Flow, error) { return p.flow, nil })
	if err != nil {
		return nil, err
	}
	return flow.(OAuth2Flow), nil
}

// testProviderType builds testProviders from provider options. With
// requireApp set, construction fails unless a client id or token resolves.
type testProviderType struct {
	key        ServiceKey
	containers []ContainerKey
	requireApp bool
}

func (t testProviderType) Key() ServiceKey { return t.key }

func (t testProviderType) New(opts ...ProviderOption) (AuthProvider, error) {
	options := BuildProviderOptions(opts...)
	app, err := options.ResolveAppCredentials(AppCredentials{}, EnvSpec{
		Prefix: strings.ToUpper(string(t.key)) + "_",
	})
	if err != nil {
		return nil, err
	}
	if t.requireApp && app.ClientID == "" && app.Token == "" {
		return nil, MissingOAuth2ParamsError(string(t.key) + " requires a client id or token")
	}
	return newTestProvider(t.key, app, t.containers...), nil
}

type otherProviderType struct{ testProviderType }

// plainProvider has no OAuth2 flow.
type plainProvider struct {
	*BaseProvider
}

func newTestManager(opts ...Option) (*Manager, error) {
	defaults := []Option{
		WithEnv(MapEnv{}),
		WithLogger(newCaptureLogger()),
		WithRefreshBackoff(noBackoff{}),
	}
	return NewManager(Config{}, append(defaults, opts...)...)
}

type noBackoff struct{}

func (noBackoff) NextDelay(int) time.Duration { return 0 }

type failingStore struct {
	err error
}

func (s failingStore) Get(context.Context, ServiceKey, Subject) (StoredData, error) {
	return nil, s.err
}

func (s failingStore) Set(context.Context, ServiceKey, Subject, StoredData) error {
	return s.err
}

func (s failingStore) Delete(context.Context, ServiceKey, Subject) error {
	return s.err
}

type countingStore struct {
	*MemoryCredentialStore
	mu   sync.Mutex
	gets map[ServiceKey]int
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryCredentialStore: NewMemoryCredentialStore(), gets: map[ServiceKey]int{}}
}

func (s *countingStore) Get(ctx context.Context, service ServiceKey, subject Subject) (StoredData, error) {
	s.mu.Lock()
	s.gets[service]++
	s.mu.Unlock()
	return s.MemoryCredentialStore.Get(ctx, service, subject)
}

func (s *countingStore) getCount(service ServiceKey) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[service]
}
