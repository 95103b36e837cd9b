package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anishxyz/integrations/core"
)

const (
	defaultTokenRequestTimeout = 30 * time.Second
	maxTokenResponseBodyBytes  = 1 << 20 // 1 MiB
)

type OAuth2FlowConfig struct {
	Service core.ServiceKey
	App     core.AppCredentials
	// DefaultScope overrides the app default scope when set.
	DefaultScope        []string
	HTTPClient          core.HTTPDoer
	StateStore          core.OAuthStateStore
	TokenRequestTimeout time.Duration
	Now                 func() time.Time
}

// OAuth2Flow is an OAuth2 authorization code client bound to one set of app
// credentials. It holds no per-subject state.
type OAuth2Flow struct {
	cfg        OAuth2FlowConfig
	httpClient core.HTTPDoer
}

func NewOAuth2Flow(cfg OAuth2FlowConfig) *OAuth2Flow {
	cfg.App = cfg.App.Clone()
	cfg.DefaultScope = append([]string(nil), cfg.DefaultScope...)
	if len(cfg.DefaultScope) == 0 {
		cfg.DefaultScope = append([]string(nil), cfg.App.DefaultScope...)
	}
	if cfg.TokenRequestTimeout <= 0 {
		cfg.TokenRequestTimeout = defaultTokenRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time {
			return time.Now().UTC()
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.TokenRequestTimeout}
	}
	return &OAuth2Flow{
		cfg:        cfg,
		httpClient: httpClient,
	}
}

// NewOAuth2FlowFromOptions builds the flow a provider exposes from its
// construction options.
func NewOAuth2FlowFromOptions(service core.ServiceKey, app core.AppCredentials, options core.ProviderOptions) *OAuth2Flow {
	return NewOAuth2Flow(OAuth2FlowConfig{
		Service:             service,
		App:                 app,
		HTTPClient:          options.HTTPClient,
		StateStore:          options.StateStore,
		TokenRequestTimeout: options.TokenRequestTimeout,
		Now:                 options.Now,
	})
}

func (*OAuth2Flow) Kind() string {
	return core.FlowOAuth2
}

// AppCredentials returns a copy of the credentials the flow was built with.
func (f *OAuth2Flow) AppCredentials() core.AppCredentials {
	if f == nil {
		return core.AppCredentials{}
	}
	return f.cfg.App.Clone()
}

func (f *OAuth2Flow) Authorize(ctx context.Context, req core.AuthorizeRequest) (core.AuthorizeResult, error) {
	if f == nil {
		return core.AuthorizeResult{}, fmt.Errorf("providers: oauth2 flow is nil")
	}
	authURL := strings.TrimSpace(f.cfg.App.AuthorizationURL)
	if authURL == "" {
		return core.AuthorizeResult{}, core.MissingOAuth2ParamsError("oauth2 flow requires authorization_url")
	}
	state := strings.TrimSpace(req.State)
	if state == "" {
		generated, err := core.GenerateOAuthState()
		if err != nil {
			return core.AuthorizeResult{}, err
		}
		state = generated
	}
	scope := f.resolveScope(req.Scope)
	redirectURI := f.resolveRedirectURI(req.RedirectURI)

	values := url.Values{}
	values.Set("response_type", "code")
	if f.cfg.App.ClientID != "" {
		values.Set("client_id", f.cfg.App.ClientID)
	}
	if redirectURI != "" {
		values.Set("redirect_uri", redirectURI)
	}
	if len(scope) > 0 {
		values.Set("scope", core.JoinScope(scope, f.cfg.App.Separator()))
	}
	values.Set("state", state)
	for key, value := range req.ExtraParams {
		if strings.TrimSpace(key) == "" {
			continue
		}
		values.Set(key, value)
	}

	if strings.Contains(authURL, "?") {
		authURL += "&" + values.Encode()
	} else {
		authURL += "?" + values.Encode()
	}

	if f.cfg.StateStore != nil {
		now := f.cfg.Now().UTC()
		if err := f.cfg.StateStore.Save(ctx, core.OAuthStateRecord{
			State:       state,
			Service:     f.cfg.Service,
			RedirectURI: redirectURI,
			Scope:       scope,
			CreatedAt:   now,
		}); err != nil {
			return core.AuthorizeResult{}, err
		}
	}

	return core.AuthorizeResult{
		AuthorizationURL: authURL,
		State:            state,
	}, nil
}

// Exchange trades an authorization code for a token. The code comes from
// req.Code or from the code parameter of req.AuthorizationResponse.
func (f *OAuth2Flow) Exchange(ctx context.Context, req core.ExchangeRequest) (*core.Token, error) {
	if f == nil {
		return nil, fmt.Errorf("providers: oauth2 flow is nil")
	}
	code := strings.TrimSpace(req.Code)
	response := strings.TrimSpace(req.AuthorizationResponse)
	if code == "" && response == "" {
		return nil, core.MissingOAuth2ParamsError("Provide either an authorization code or response URI.")
	}

	redirectURI := strings.TrimSpace(req.RedirectURI)
	if response != "" {
		callback, err := parseAuthorizationResponse(response)
		if err != nil {
			return nil, err
		}
		if callback.ErrorCode != "" {
			return nil, core.TokenEndpointError(f.cfg.Service, 0, callback.ErrorCode, callback.ErrorDescription)
		}
		if code == "" {
			code = callback.Code
		}
		if code == "" {
			return nil, core.MissingOAuth2ParamsError("authorization response has no code")
		}
		if f.cfg.StateStore != nil && callback.State != "" {
			record, err := f.cfg.StateStore.Consume(ctx, callback.State)
			if err != nil {
				return nil, err
			}
			if record.Service != "" && record.Service != f.cfg.Service {
				return nil, core.BadInputError(fmt.Sprintf("oauth state was issued for %q", record.Service))
			}
			if redirectURI == "" {
				redirectURI = record.RedirectURI
			}
		}
	}
	if redirectURI == "" {
		redirectURI = strings.TrimSpace(f.cfg.App.RedirectURI)
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	if redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}
	if f.cfg.App.IncludeClientID && f.cfg.App.ClientID != "" {
		form.Set("client_id", f.cfg.App.ClientID)
	}
	return f.fetchToken(ctx, form, req.TokenParams, "")
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token is taken from req.Credentials and then from req.RefreshToken.
func (f *OAuth2Flow) Refresh(ctx context.Context, req core.RefreshRequest) (*core.Token, error) {
	if f == nil {
		return nil, fmt.Errorf("providers: oauth2 flow is nil")
	}
	refreshToken := req.Credentials.RefreshToken()
	if refreshToken == "" {
		refreshToken = strings.TrimSpace(req.RefreshToken)
	}
	if refreshToken == "" {
		return nil, core.MissingOAuth2ParamsError("OAuth2 refresh requires a refresh token.")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	if scope := f.resolveScope(req.Scope); len(scope) > 0 {
		form.Set("scope", core.JoinScope(scope, f.cfg.App.Separator()))
	}
	return f.fetchToken(ctx, form, req.TokenParams, refreshToken)
}

func (f *OAuth2Flow) resolveScope(requested []string) []string {
	if len(requested) > 0 {
		return append([]string(nil), requested...)
	}
	return append([]string(nil), f.cfg.DefaultScope...)
}

func (f *OAuth2Flow) resolveRedirectURI(requested string) string {
	if value := strings.TrimSpace(requested); value != "" {
		return value
	}
	return strings.TrimSpace(f.cfg.App.RedirectURI)
}

func (f *OAuth2Flow) fetchToken(ctx context.Context, form url.Values, params map[string]string, previousRefresh string) (*core.Token, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	tokenURL := strings.TrimSpace(f.cfg.App.TokenURL)
	if tokenURL == "" {
		return nil, core.MissingOAuth2ParamsError("oauth2 flow requires token_url")
	}

	values := url.Values{}
	for key, items := range form {
		for _, item := range items {
			values.Add(key, strings.TrimSpace(item))
		}
	}
	for key, value := range f.cfg.App.ClientOptions {
		if strings.TrimSpace(key) == "" {
			continue
		}
		values.Set(key, value)
	}
	for key, value := range params {
		if strings.TrimSpace(key) == "" {
			continue
		}
		values.Set(key, value)
	}

	app := f.cfg.App
	useBasicAuth := false
	switch app.AuthMethod() {
	case core.AuthMethodClientSecretPost:
		values.Set("client_id", app.ClientID)
		if app.ClientSecret != "" {
			values.Set("client_secret", app.ClientSecret)
		}
	case core.AuthMethodNone:
		values.Set("client_id", app.ClientID)
	default:
		useBasicAuth = app.ClientID != "" || app.ClientSecret != ""
	}

	requestCtx := ctx
	cancel := func() {}
	if f.cfg.TokenRequestTimeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, f.cfg.TokenRequestTimeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		tokenURL,
		strings.NewReader(values.Encode()),
	)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	if useBasicAuth {
		httpReq.SetBasicAuth(url.QueryEscape(app.ClientID), url.QueryEscape(app.ClientSecret))
	}

	response, err := f.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, core.TokenEndpointError(f.cfg.Service, 0, "", "token request failed: "+err.Error())
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBodyBytes+1))
	if readErr != nil {
		return nil, core.TokenEndpointError(f.cfg.Service, response.StatusCode, "", "read token response: "+readErr.Error())
	}
	if int64(len(body)) > maxTokenResponseBodyBytes {
		return nil, core.TokenEndpointError(f.cfg.Service, response.StatusCode, "", fmt.Sprintf("token response exceeds %d bytes", maxTokenResponseBodyBytes))
	}

	payload, parseErr := parseTokenPayload(body, response.Header.Get("Content-Type"))
	failed := response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices
	if parseErr != nil {
		if failed {
			return nil, core.TokenEndpointError(f.cfg.Service, response.StatusCode, "", strings.TrimSpace(string(body)))
		}
		return nil, core.TokenEndpointError(f.cfg.Service, response.StatusCode, "", "decode token response: "+parseErr.Error())
	}
	errorCode := readAnyString(payload["error"])
	if failed || errorCode != "" {
		return nil, core.TokenEndpointError(
			f.cfg.Service,
			response.StatusCode,
			errorCode,
			readAnyString(payload["error_description"]),
		)
	}
	if readAnyString(payload["access_token"]) == "" {
		return nil, core.TokenEndpointError(f.cfg.Service, response.StatusCode, "", "token response missing access_token")
	}

	token, err := core.TokenFromMap(payload, f.cfg.App.Separator())
	if err != nil {
		return nil, err
	}
	if token.ExpiresAt == nil && token.ExpiresIn != nil {
		expiresAt := float64(f.cfg.Now().Add(time.Duration(*token.ExpiresIn)*time.Second).Unix())
		token.ExpiresAt = &expiresAt
	}
	if token.RefreshToken == "" && previousRefresh != "" {
		token.RefreshToken = previousRefresh
	}
	return token, nil
}

type authorizationCallback struct {
	Code             string
	State            string
	ErrorCode        string
	ErrorDescription string
}

func parseAuthorizationResponse(raw string) (authorizationCallback, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return authorizationCallback{}, core.BadInputError("invalid authorization response: " + err.Error())
	}
	query := parsed.Query()
	if parsed.Fragment != "" {
		if fragment, fragmentErr := url.ParseQuery(parsed.Fragment); fragmentErr == nil {
			for key, items := range fragment {
				if query.Get(key) == "" && len(items) > 0 {
					query.Set(key, items[0])
				}
			}
		}
	}
	return authorizationCallback{
		Code:             strings.TrimSpace(query.Get("code")),
		State:            strings.TrimSpace(query.Get("state")),
		ErrorCode:        strings.TrimSpace(query.Get("error")),
		ErrorDescription: strings.TrimSpace(query.Get("error_description")),
	}, nil
}

func parseTokenPayload(body []byte, contentType string) (map[string]any, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "json") {
		return parseTokenPayloadJSON(body)
	}
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (map[string]any, error) {
	if strings.TrimSpace(string(body)) == "" {
		return nil, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, err
	}
	if decoded == nil {
		return nil, fmt.Errorf("token payload is not an object")
	}
	return decoded, nil
}

// parseTokenPayloadForm handles servers that answer with a form encoded body.
// Numeric fields stay strings; TokenFromMap coerces them.
func parseTokenPayloadForm(body []byte) (map[string]any, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(trimmed)
	if err != nil {
		return nil, err
	}
	decoded := make(map[string]any, len(values))
	for key, items := range values {
		if len(items) == 0 {
			continue
		}
		decoded[key] = strings.TrimSpace(items[0])
	}
	return decoded, nil
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

var _ core.OAuth2Flow = (*OAuth2Flow)(nil)
