package core

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestTokenFromMapCoercesKnownFields(t *testing.T) {
	token, err := TokenFromMap(map[string]any{
		"access_token":  "at-1",
		"refresh_token": "rt-1",
		"scope":         "repo,gist",
		"expires_in":    "3600",
		"expires_at":    1767225600,
		"team":          map[string]any{"id": "T1"},
	}, ",")
	if err != nil {
		t.Fatalf("token from map: %v", err)
	}

	expiresIn := int64(3600)
	expiresAt := float64(1767225600)
	want := &Token{
		AccessToken:  "at-1",
		TokenType:    DefaultTokenType,
		RefreshToken: "rt-1",
		Scope:        []string{"repo", "gist"},
		ExpiresIn:    &expiresIn,
		ExpiresAt:    &expiresAt,
		Raw: map[string]any{
			"access_token":  "at-1",
			"refresh_token": "rt-1",
			"scope":         "repo,gist",
			"expires_in":    "3600",
			"expires_at":    1767225600,
			"team":          map[string]any{"id": "T1"},
		},
	}
	if diff := cmp.Diff(want, token); diff != "" {
		t.Fatalf("unexpected token (-want +got):\n%s", diff)
	}
}

func TestTokenFromMapRejectsWrongShapes(t *testing.T) {
	cases := map[string]map[string]any{
		"access token":  {"access_token": 42},
		"expires in":    {"access_token": "a", "expires_in": 1.5},
		"expires at":    {"access_token": "a", "expires_at": "tomorrow"},
		"scope entries": {"access_token": "a", "scope": []any{"repo", 3}},
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := TokenFromMap(payload, " "); !IsTypeError(err) {
				t.Fatalf("expected type error, got %v", err)
			}
		})
	}
	if _, err := TokenFromMap(nil, " "); !IsTypeError(err) {
		t.Fatalf("expected type error for nil payload, got %v", err)
	}
}

func TestTokenToMapTypedFieldsWin(t *testing.T) {
	token := &Token{
		AccessToken: "at-2",
		Scope:       []string{"a", "b"},
		Raw: map[string]any{
			"access_token":  "stale",
			"refresh_token": "stale-refresh",
			"team_id":       "T1",
		},
	}
	want := map[string]any{
		"access_token": "at-2",
		"token_type":   DefaultTokenType,
		"scope":        "a b",
		"team_id":      "T1",
	}
	if diff := cmp.Diff(want, token.ToMap(" ")); diff != "" {
		t.Fatalf("unexpected mapping (-want +got):\n%s", diff)
	}
}

func TestTokenSurvivesStorageRoundTrip(t *testing.T) {
	expiresAt := float64(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC).Unix())
	original := &Token{
		AccessToken:  "at-3",
		TokenType:    "token",
		RefreshToken: "rt-3",
		Scope:        []string{"repo", "user"},
		ExpiresAt:    &expiresAt,
		Raw:          map[string]any{"installation_id": "inst-1"},
	}
	parsed, err := TokenFromMap(original.ToMap(" "), " ")
	if err != nil {
		t.Fatalf("token from map: %v", err)
	}
	if diff := cmp.Diff(original, parsed, cmpopts.IgnoreFields(Token{}, "Raw")); diff != "" {
		t.Fatalf("round trip changed the token (-want +got):\n%s", diff)
	}
	if value, ok := parsed.Lookup("installation_id"); !ok || value != "inst-1" {
		t.Fatalf("expected provider field to survive, got %v", value)
	}
}

func TestTokenExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	expiresAt := float64(now.Add(30 * time.Second).Unix())
	token := &Token{AccessToken: "a", ExpiresAt: &expiresAt}

	if token.Expired(now, 0) {
		t.Fatalf("token should still be valid")
	}
	if !token.Expired(now, time.Minute) {
		t.Fatalf("token should be expired inside the leeway")
	}
	if (&Token{AccessToken: "a"}).Expired(now, time.Hour) {
		t.Fatalf("token without expiry never expires")
	}

	converted := token.OAuth2()
	if !converted.Expiry.Equal(now.Add(30 * time.Second)) {
		t.Fatalf("unexpected oauth2 expiry %v", converted.Expiry)
	}
}

func TestTokenCloneIsDeep(t *testing.T) {
	expiresIn := int64(10)
	token := &Token{AccessToken: "a", Scope: []string{"x"}, ExpiresIn: &expiresIn, Raw: map[string]any{"k": "v"}}
	cloned := token.Clone()
	cloned.Scope[0] = "changed"
	cloned.Raw["k"] = "changed"
	*cloned.ExpiresIn = 99
	if token.Scope[0] != "x" || token.Raw["k"] != "v" || *token.ExpiresIn != 10 {
		t.Fatalf("clone shares state with the original: %+v", token)
	}
	if (*Token)(nil).Clone() != nil {
		t.Fatalf("nil clone should be nil")
	}
}

func TestTokenIDTokenClaims(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "user-1",
		"email": "user@example.com",
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := (&Token{IDToken: signed}).IDTokenClaims()
	if err != nil {
		t.Fatalf("claims: %v", err)
	}
	if claims["email"] != "user@example.com" {
		t.Fatalf("unexpected claims %v", claims)
	}
	if _, err := (&Token{}).IDTokenClaims(); err == nil {
		t.Fatalf("expected error without id_token")
	}
}
