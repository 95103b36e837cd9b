package core

import (
	"context"
	"strings"
	"time"
)

const (
	DefaultCredentialExpiringSoonWindow = 5 * time.Minute
	DefaultCredentialRefreshLeadWindow  = 5 * time.Minute
)

// CredentialTokenState captures access/refresh lifecycle state derived from a token.
type CredentialTokenState struct {
	ExpiresAt       *time.Time
	HasAccessToken  bool
	HasRefreshToken bool
	IsExpired       bool
	IsExpiringSoon  bool
}

type EnsureFreshOptions struct {
	RefreshLeadWindow  time.Duration
	ExpiringSoonWindow time.Duration
}

type EnsureFreshResult struct {
	Token            *Token
	State            CredentialTokenState
	RefreshAttempted bool
	Refreshed        bool
}

// ResolveCredentialTokenState evaluates expiry flags for token.
func ResolveCredentialTokenState(now time.Time, token *Token, expiringSoonWindow time.Duration) CredentialTokenState {
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}
	if expiringSoonWindow <= 0 {
		expiringSoonWindow = DefaultCredentialExpiringSoonWindow
	}
	if token == nil {
		return CredentialTokenState{}
	}

	state := CredentialTokenState{
		HasAccessToken:  strings.TrimSpace(token.AccessToken) != "",
		HasRefreshToken: strings.TrimSpace(token.RefreshToken) != "",
	}
	expiry := token.Expiry()
	if expiry.IsZero() {
		return state
	}
	expiresAt := expiry.UTC()
	state.ExpiresAt = &expiresAt
	if !expiresAt.After(now) {
		state.IsExpired = true
		return state
	}
	state.IsExpiringSoon = !expiresAt.After(now.Add(expiringSoonWindow))
	return state
}

// ShouldRefreshCredential returns true when a refresh should run before the
// token is handed to a service client.
func ShouldRefreshCredential(now time.Time, state CredentialTokenState, refreshLeadWindow time.Duration) bool {
	if !state.HasRefreshToken {
		return false
	}
	if !state.HasAccessToken {
		return true
	}
	if state.ExpiresAt == nil {
		return false
	}
	if refreshLeadWindow <= 0 {
		refreshLeadWindow = DefaultCredentialRefreshLeadWindow
	}
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}
	return !state.ExpiresAt.UTC().After(now.Add(refreshLeadWindow))
}

// EnsureFresh loads the stored token for (name, subject) and refreshes it
// when it expires within the lead window.
func (m *Manager) EnsureFresh(ctx context.Context, name string, subject Subject, opts EnsureFreshOptions) (EnsureFreshResult, error) {
	expiringSoonWindow := opts.ExpiringSoonWindow
	if expiringSoonWindow <= 0 {
		expiringSoonWindow = DefaultCredentialExpiringSoonWindow
	}
	refreshLeadWindow := opts.RefreshLeadWindow
	if refreshLeadWindow <= 0 {
		refreshLeadWindow = m.config.RefreshLead()
	}

	token, err := m.LoadCredentials(ctx, name, subject)
	if err != nil {
		return EnsureFreshResult{}, err
	}
	if token == nil {
		return EnsureFreshResult{}, m.mapError(MissingCredentialsError(ContainerKey(NormalizeName(name)), "no stored credentials"))
	}

	now := m.now()
	state := ResolveCredentialTokenState(now, token, expiringSoonWindow)
	result := EnsureFreshResult{Token: token, State: state}
	if !ShouldRefreshCredential(now, state, refreshLeadWindow) {
		return result, nil
	}

	result.RefreshAttempted = true
	refreshed, err := m.RefreshCredentials(ctx, name, subject)
	if err != nil {
		return result, err
	}
	result.Token = refreshed
	result.State = ResolveCredentialTokenState(now, refreshed, expiringSoonWindow)
	result.Refreshed = true
	return result, nil
}
