package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// DefaultTokenType is assumed when a token payload omits token_type.
const DefaultTokenType = "Bearer"

const (
	tokenFieldAccessToken  = "access_token"
	tokenFieldTokenType    = "token_type"
	tokenFieldRefreshToken = "refresh_token"
	tokenFieldScope        = "scope"
	tokenFieldExpiresIn    = "expires_in"
	tokenFieldExpiresAt    = "expires_at"
	tokenFieldIDToken      = "id_token"
	tokenFieldRaw          = "raw"
)

// Token holds the user credentials issued by an authorization server or
// supplied by the caller. Raw keeps the payload as received so provider
// specific keys survive a store round trip.
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	Scope        []string
	ExpiresIn    *int64
	// ExpiresAt is a unix timestamp in seconds.
	ExpiresAt *float64
	IDToken   string
	Raw       map[string]any
}

// TokenFromMap coerces a raw token payload. A string scope is split on
// separator; unknown keys stay in Raw.
func TokenFromMap(data map[string]any, separator string) (*Token, error) {
	if data == nil {
		return nil, TypeError("token payload is required")
	}
	raw := copyAnyMap(data)
	if nested, ok := data[tokenFieldRaw].(map[string]any); ok {
		raw = copyAnyMap(nested)
		for key, value := range data {
			if key == tokenFieldRaw {
				continue
			}
			raw[key] = value
		}
	}
	delete(raw, tokenFieldRaw)

	token := &Token{Raw: raw}
	var err error
	if token.AccessToken, err = stringField(data, tokenFieldAccessToken); err != nil {
		return nil, err
	}
	if token.TokenType, err = stringField(data, tokenFieldTokenType); err != nil {
		return nil, err
	}
	if token.RefreshToken, err = stringField(data, tokenFieldRefreshToken); err != nil {
		return nil, err
	}
	if token.IDToken, err = stringField(data, tokenFieldIDToken); err != nil {
		return nil, err
	}
	if token.Scope, err = scopeFromAny(data[tokenFieldScope], separator); err != nil {
		return nil, err
	}
	if value, ok := data[tokenFieldExpiresIn]; ok && value != nil {
		seconds, convErr := int64FromAny(value)
		if convErr != nil {
			return nil, TypeError("expires_in must be an integer: " + convErr.Error())
		}
		token.ExpiresIn = &seconds
	}
	if value, ok := data[tokenFieldExpiresAt]; ok && value != nil {
		at, convErr := float64FromAny(value)
		if convErr != nil {
			return nil, TypeError("expires_at must be a number: " + convErr.Error())
		}
		token.ExpiresAt = &at
	}
	if token.TokenType == "" {
		token.TokenType = DefaultTokenType
	}
	return token, nil
}

// ToMap renders the token for storage: Raw overlaid with the typed fields.
// Typed fields always win; an empty typed field removes a stale raw value.
func (t *Token) ToMap(separator string) map[string]any {
	if t == nil {
		return nil
	}
	out := copyAnyMap(t.Raw)
	out[tokenFieldAccessToken] = t.AccessToken
	tokenType := t.TokenType
	if tokenType == "" {
		tokenType = DefaultTokenType
	}
	out[tokenFieldTokenType] = tokenType
	setOrDelete(out, tokenFieldRefreshToken, t.RefreshToken)
	setOrDelete(out, tokenFieldIDToken, t.IDToken)
	setOrDelete(out, tokenFieldScope, JoinScope(t.Scope, separator))
	if t.ExpiresIn != nil {
		out[tokenFieldExpiresIn] = *t.ExpiresIn
	} else {
		delete(out, tokenFieldExpiresIn)
	}
	if t.ExpiresAt != nil {
		out[tokenFieldExpiresAt] = *t.ExpiresAt
	} else {
		delete(out, tokenFieldExpiresAt)
	}
	return out
}

// Lookup returns a typed field by its wire name, falling back to Raw.
func (t *Token) Lookup(field string) (any, bool) {
	if t == nil {
		return nil, false
	}
	switch field {
	case tokenFieldAccessToken:
		return t.AccessToken, t.AccessToken != ""
	case tokenFieldTokenType:
		return t.TokenType, t.TokenType != ""
	case tokenFieldRefreshToken:
		return t.RefreshToken, t.RefreshToken != ""
	case tokenFieldIDToken:
		return t.IDToken, t.IDToken != ""
	case tokenFieldScope:
		return append([]string(nil), t.Scope...), len(t.Scope) > 0
	case tokenFieldExpiresIn:
		if t.ExpiresIn == nil {
			return nil, false
		}
		return *t.ExpiresIn, true
	case tokenFieldExpiresAt:
		if t.ExpiresAt == nil {
			return nil, false
		}
		return *t.ExpiresAt, true
	}
	value, ok := t.Raw[field]
	if !ok || value == nil {
		return nil, false
	}
	return value, true
}

func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	cloned := *t
	cloned.Scope = append([]string(nil), t.Scope...)
	cloned.Raw = copyAnyMap(t.Raw)
	if t.ExpiresIn != nil {
		value := *t.ExpiresIn
		cloned.ExpiresIn = &value
	}
	if t.ExpiresAt != nil {
		value := *t.ExpiresAt
		cloned.ExpiresAt = &value
	}
	return &cloned
}

// Expiry returns the absolute expiry, or the zero time when unknown.
func (t *Token) Expiry() time.Time {
	if t == nil || t.ExpiresAt == nil {
		return time.Time{}
	}
	seconds, fraction := math.Modf(*t.ExpiresAt)
	return time.Unix(int64(seconds), int64(fraction*float64(time.Second))).UTC()
}

// Expired reports whether the token expires within leeway of now. Tokens
// without an expiry never expire.
func (t *Token) Expired(now time.Time, leeway time.Duration) bool {
	expiry := t.Expiry()
	if expiry.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(expiry)
}

// OAuth2 converts the token into an x/oauth2 token carrying Raw as extras.
func (t *Token) OAuth2() *oauth2.Token {
	if t == nil {
		return nil
	}
	converted := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry(),
	}
	if t.ExpiresIn != nil {
		converted.ExpiresIn = *t.ExpiresIn
	}
	return converted.WithExtra(copyAnyMap(t.Raw))
}

// IDTokenClaims decodes the id_token claims without verifying the signature.
// Callers that need verified identity must validate the JWT themselves.
func (t *Token) IDTokenClaims() (jwt.MapClaims, error) {
	if t == nil || strings.TrimSpace(t.IDToken) == "" {
		return nil, BadInputError("token has no id_token")
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(t.IDToken, claims); err != nil {
		return nil, TypeError("id_token is not a valid JWT: " + err.Error())
	}
	return claims, nil
}

func setOrDelete(target map[string]any, key string, value string) {
	if value == "" {
		delete(target, key)
		return
	}
	target[key] = value
}

func stringField(data map[string]any, key string) (string, error) {
	value, ok := data[key]
	if !ok || value == nil {
		return "", nil
	}
	text, ok := value.(string)
	if !ok {
		return "", TypeError(fmt.Sprintf("%s must be a string, got %T", key, value))
	}
	return text, nil
}

func int64FromAny(value any) (int64, error) {
	switch typed := value.(type) {
	case int:
		return int64(typed), nil
	case int32:
		return int64(typed), nil
	case int64:
		return typed, nil
	case uint:
		return int64(typed), nil
	case uint32:
		return int64(typed), nil
	case uint64:
		return int64(typed), nil
	case float32:
		return int64(typed), nil
	case float64:
		if typed != math.Trunc(typed) {
			return 0, fmt.Errorf("%v has a fractional part", typed)
		}
		return int64(typed), nil
	case json.Number:
		return typed.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", value)
	}
}

func float64FromAny(value any) (float64, error) {
	switch typed := value.(type) {
	case float64:
		return typed, nil
	case float32:
		return float64(typed), nil
	case int:
		return float64(typed), nil
	case int32:
		return float64(typed), nil
	case int64:
		return float64(typed), nil
	case uint64:
		return float64(typed), nil
	case json.Number:
		return typed.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(typed), 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", value)
	}
}
