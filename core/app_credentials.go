package core

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Token endpoint client authentication methods.
const (
	AuthMethodClientSecretBasic = "client_secret_basic"
	AuthMethodClientSecretPost  = "client_secret_post"
	AuthMethodNone              = "none"
)

// AppCredentials is the static, provider level configuration. Values are
// treated as immutable: providers hand out clones and no method mutates the
// receiver. Unknown fields loaded from a mapping or env aliases are kept as
// extras and reachable through Lookup.
type AppCredentials struct {
	AuthorizationURL        string            `mapstructure:"authorization_url" env:"AUTHORIZATION_URL"`
	TokenURL                string            `mapstructure:"token_url" env:"TOKEN_URL"`
	ClientID                string            `mapstructure:"client_id" env:"CLIENT_ID"`
	ClientSecret            string            `mapstructure:"client_secret" env:"CLIENT_SECRET"`
	RedirectURI             string            `mapstructure:"redirect_uri" env:"REDIRECT_URI"`
	Token                   string            `mapstructure:"token" env:"TOKEN"`
	RefreshToken            string            `mapstructure:"refresh_token" env:"REFRESH_TOKEN"`
	DefaultScope            []string          `mapstructure:"default_scope" env:"DEFAULT_SCOPE" envSeparator:","`
	ScopeSeparator          string            `mapstructure:"scope_separator" env:"SCOPE_SEPARATOR"`
	IncludeClientID         bool              `mapstructure:"include_client_id" env:"INCLUDE_CLIENT_ID"`
	TokenEndpointAuthMethod string            `mapstructure:"token_endpoint_auth_method" env:"TOKEN_ENDPOINT_AUTH_METHOD"`
	// ClientOptions are sent with every token endpoint request.
	ClientOptions           map[string]string `mapstructure:"client_options"`

	extra map[string]any
}

// AppCredentialsFromMap coerces data over defaults. Keys that do not match a
// known field are preserved as extras; values of the wrong shape fail with a
// type error.
func AppCredentialsFromMap(data map[string]any, defaults AppCredentials) (AppCredentials, error) {
	creds := defaults.Clone()
	if len(data) == 0 {
		return creds.withDefaults(), nil
	}
	input := copyAnyMap(data)
	if alias, ok := input["authorize_url"]; ok {
		if _, exists := input["authorization_url"]; !exists {
			input["authorization_url"] = alias
		}
		delete(input, "authorize_url")
	}
	separator := creds.ScopeSeparator
	if value, ok := input["scope_separator"].(string); ok && value != "" {
		separator = value
	}
	if value, ok := input["default_scope"]; ok {
		scopes, err := scopeFromAny(value, separator)
		if err != nil {
			return AppCredentials{}, err
		}
		input["default_scope"] = scopes
		creds.DefaultScope = nil
	}
	if _, ok := input["client_options"]; ok {
		creds.ClientOptions = nil
	}

	var metadata mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &creds,
		Metadata:         &metadata,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return AppCredentials{}, fmt.Errorf("core: build app credentials decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return AppCredentials{}, TypeError("invalid app credentials: " + err.Error())
	}
	if len(metadata.Unused) > 0 {
		if creds.extra == nil {
			creds.extra = map[string]any{}
		}
		for _, key := range metadata.Unused {
			creds.extra[key] = input[key]
		}
	}
	return creds.withDefaults(), nil
}

// WithExtra returns a copy of c with an extra field set.
func (c AppCredentials) WithExtra(field string, value any) AppCredentials {
	cloned := c.Clone()
	if cloned.extra == nil {
		cloned.extra = map[string]any{}
	}
	cloned.extra[field] = value
	return cloned
}

// Extras returns a copy of the unrecognized fields.
func (c AppCredentials) Extras() map[string]any {
	return copyAnyMap(c.extra)
}

// Lookup resolves a field by its mapping name, known fields first and then
// extras. Empty values report false.
func (c AppCredentials) Lookup(field string) (any, bool) {
	var value string
	switch field {
	case "authorization_url", "authorize_url":
		value = c.AuthorizationURL
	case "token_url":
		value = c.TokenURL
	case "client_id":
		value = c.ClientID
	case "client_secret":
		value = c.ClientSecret
	case "redirect_uri":
		value = c.RedirectURI
	case "token":
		value = c.Token
	case "refresh_token":
		value = c.RefreshToken
	case "scope_separator":
		value = c.ScopeSeparator
	case "token_endpoint_auth_method":
		value = c.TokenEndpointAuthMethod
	case "default_scope":
		return append([]string(nil), c.DefaultScope...), len(c.DefaultScope) > 0
	case "include_client_id":
		return c.IncludeClientID, true
	case "client_options":
		return copyStringMap(c.ClientOptions), len(c.ClientOptions) > 0
	default:
		extra, ok := c.extra[field]
		if !ok || extra == nil {
			return nil, false
		}
		if text, isString := extra.(string); isString && text == "" {
			return nil, false
		}
		return extra, true
	}
	return value, value != ""
}

// LookupString is Lookup restricted to string values.
func (c AppCredentials) LookupString(field string) string {
	value, ok := c.Lookup(field)
	if !ok {
		return ""
	}
	text, _ := value.(string)
	return text
}

// Separator returns the configured scope separator or the default.
func (c AppCredentials) Separator() string {
	return scopeSeparator(c.ScopeSeparator)
}

// AuthMethod returns the normalized token endpoint auth method.
func (c AppCredentials) AuthMethod() string {
	method := strings.ToLower(strings.TrimSpace(c.TokenEndpointAuthMethod))
	if method == "" {
		return AuthMethodClientSecretBasic
	}
	return method
}

// Fields renders the known fields and extras as a mapping with secrets
// included; callers that log it must redact first.
func (c AppCredentials) Fields() map[string]any {
	out := copyAnyMap(c.extra)
	set := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}
	set("authorization_url", c.AuthorizationURL)
	set("token_url", c.TokenURL)
	set("client_id", c.ClientID)
	set("client_secret", c.ClientSecret)
	set("redirect_uri", c.RedirectURI)
	set("token", c.Token)
	set("refresh_token", c.RefreshToken)
	set("token_endpoint_auth_method", c.TokenEndpointAuthMethod)
	out["scope_separator"] = c.Separator()
	out["include_client_id"] = c.IncludeClientID
	if len(c.DefaultScope) > 0 {
		out["default_scope"] = append([]string(nil), c.DefaultScope...)
	}
	if len(c.ClientOptions) > 0 {
		out["client_options"] = copyStringMap(c.ClientOptions)
	}
	return out
}

func (c AppCredentials) Clone() AppCredentials {
	cloned := c
	cloned.DefaultScope = append([]string(nil), c.DefaultScope...)
	cloned.ClientOptions = copyStringMap(c.ClientOptions)
	if c.extra != nil {
		cloned.extra = copyAnyMap(c.extra)
	}
	return cloned
}

func (c AppCredentials) withDefaults() AppCredentials {
	if c.ScopeSeparator == "" {
		c.ScopeSeparator = DefaultScopeSeparator
	}
	return c
}
