package core

import (
	"context"
	"strings"
)

// Settings is the resolved configuration for one container key, consumed by
// service clients.
type Settings interface {
	ContainerKey() ContainerKey
}

// BindingRequest carries everything a binding may read. Bindings must not
// mutate any of it.
type BindingRequest struct {
	Manager         *Manager
	Service         ServiceKey
	ContainerKey    ContainerKey
	Subject         Subject
	AppCredentials  AppCredentials
	UserCredentials *Token
}

// Lookup resolves field from the user credentials first and the app
// credentials second.
func (r BindingRequest) Lookup(field string) (any, bool) {
	if value, ok := r.UserCredentials.Lookup(field); ok {
		if text, isString := value.(string); !isString || strings.TrimSpace(text) != "" {
			return value, true
		}
	}
	return r.AppCredentials.Lookup(field)
}

// AccessToken applies the token policy shared by token bearing services: the
// user access token, then the first non-empty app field in appFields. The
// scheme is the user token type or Bearer.
func (r BindingRequest) AccessToken(appFields ...string) (token string, scheme string) {
	scheme = DefaultTokenType
	if r.UserCredentials != nil {
		token = strings.TrimSpace(r.UserCredentials.AccessToken)
		if tokenType := strings.TrimSpace(r.UserCredentials.TokenType); tokenType != "" {
			scheme = tokenType
		}
	}
	if token != "" {
		return token, scheme
	}
	if len(appFields) == 0 {
		appFields = []string{"token"}
	}
	for _, field := range appFields {
		if value := strings.TrimSpace(r.AppCredentials.LookupString(field)); value != "" {
			return value, scheme
		}
	}
	return "", scheme
}

// BindingResult is either Resolved settings or Unavailable with a reason.
type BindingResult struct {
	settings Settings
	reason   string
}

func Resolved(settings Settings) BindingResult {
	return BindingResult{settings: settings}
}

func Unavailable(reason string) BindingResult {
	return BindingResult{reason: reason}
}

func (r BindingResult) IsResolved() bool { return r.settings != nil }

func (r BindingResult) Settings() (Settings, bool) { return r.settings, r.settings != nil }

func (r BindingResult) Reason() string { return r.reason }

// Err converts an unavailable result into a missing credentials error for key.
func (r BindingResult) Err(key ContainerKey) error {
	if r.IsResolved() {
		return nil
	}
	return MissingCredentialsError(key, r.reason)
}

// Binding maps credentials to the settings of one container key.
type Binding interface {
	ToSettings(ctx context.Context, req BindingRequest) (BindingResult, error)
}

type BindingFunc func(ctx context.Context, req BindingRequest) (BindingResult, error)

func (f BindingFunc) ToSettings(ctx context.Context, req BindingRequest) (BindingResult, error) {
	return f(ctx, req)
}
