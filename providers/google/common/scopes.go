// Package common holds what the Google workspace settings packages share.
package common

import (
	"strings"

	"github.com/anishxyz/integrations/core"
)

const (
	ScopeOpenID  = "openid"
	ScopeEmail   = "email"
	ScopeProfile = "profile"

	ScopeGmailModify   = "https://www.googleapis.com/auth/gmail.modify"
	ScopeCalendar      = "https://www.googleapis.com/auth/calendar"
	ScopeDocuments     = "https://www.googleapis.com/auth/documents"
	ScopeDrive         = "https://www.googleapis.com/auth/drive"
	ScopeSpreadsheets  = "https://www.googleapis.com/auth/spreadsheets"
	AccessTokenField   = "access_token"
	DefaultAuthScheme  = core.DefaultTokenType
	MissingTokenReason = "Google credentials missing access token; run the OAuth flow or provide a service account token via app credentials."
)

var productScopes = map[core.ContainerKey]string{
	core.ContainerGmail:          ScopeGmailModify,
	core.ContainerGoogleCalendar: ScopeCalendar,
	core.ContainerGoogleDocs:     ScopeDocuments,
	core.ContainerGoogleDrive:    ScopeDrive,
	core.ContainerGoogleSheets:   ScopeSpreadsheets,
}

// AppTokenFields are the app credential fields checked, in order, when the
// user has no access token.
var AppTokenFields = []string{"token", AccessTokenField}

// ProductScopes returns the OAuth scopes covering the given workspace
// products. Unknown keys are ignored.
func ProductScopes(keys ...core.ContainerKey) []string {
	scopes := make([]string, 0, len(keys))
	for _, key := range keys {
		if scope, ok := productScopes[key.Normalize()]; ok {
			scopes = append(scopes, scope)
		}
	}
	return normalizeScopes(scopes)
}

func WithIdentityScopes(scopes []string, include bool) []string {
	normalized := normalizeScopes(scopes)
	if !include {
		return normalized
	}
	return normalizeScopes(append(normalized, ScopeOpenID, ScopeProfile, ScopeEmail))
}

func normalizeScopes(scopes []string) []string {
	if len(scopes) == 0 {
		return []string{}
	}
	seen := map[string]struct{}{}
	result := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		trimmed := strings.TrimSpace(scope)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

// SettingsEnv builds the env layout of one workspace product: prefixed
// variables, with the token also read from the shared GOOGLE_TOKEN and
// GOOGLE_ACCESS_TOKEN.
func SettingsEnv(prefix string, extra map[string][]string) core.EnvSpec {
	aliases := map[string][]string{
		prefix + "TOKEN": {prefix + "ACCESS_TOKEN", prefix + "TOKEN", "GOOGLE_TOKEN", "GOOGLE_ACCESS_TOKEN"},
	}
	for key, candidates := range extra {
		aliases[key] = append([]string(nil), candidates...)
	}
	return core.EnvSpec{Prefix: prefix, Aliases: aliases}
}
