package providers

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/anishxyz/integrations/core"
	"github.com/go-viper/mapstructure/v2"
)

// UserAgent is the default User-Agent of every builtin settings type.
const UserAgent = "integrations-sdk"

// DefaultTimeout is the request timeout most builtin settings default to.
const DefaultTimeout = 10 * time.Second

// ResolveFields collects the named fields from the request, user credentials
// over app credentials. Fields set in neither are left out so settings
// defaults survive.
func ResolveFields(req core.BindingRequest, fields ...string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, field := range fields {
		value, ok := req.Lookup(field)
		if !ok || value == nil {
			continue
		}
		if text, isString := value.(string); isString && strings.TrimSpace(text) == "" {
			continue
		}
		out[field] = value
	}
	return out
}

// DecodeSettings overlays values on target, a pointer to a settings struct
// tagged with mapstructure. Timeouts accept seconds or duration strings.
func DecodeSettings(values map[string]any, target any) error {
	if len(values) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		DecodeHook:       timeoutDecodeHook,
	})
	if err != nil {
		return fmt.Errorf("providers: build settings decoder: %w", err)
	}
	if err := decoder.Decode(values); err != nil {
		return core.TypeError("invalid settings: " + err.Error())
	}
	return nil
}

func timeoutDecodeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch typed := data.(type) {
	case time.Duration:
		return typed, nil
	case string:
		return core.ParseTimeout(typed)
	case float64:
		return core.SecondsDuration(typed)
	case float32:
		return core.SecondsDuration(float64(typed))
	case int:
		return core.SecondsDuration(float64(typed))
	case int64:
		return core.SecondsDuration(float64(typed))
	}
	return data, nil
}

// TokenBinding builds the binding shared by token bearing services. The
// token comes from the user credentials and then from appFields of the app
// credentials; with no token the result is Unavailable(missing). build
// returns the settings defaults carrying token and scheme, and the named
// fields are decoded on top.
func TokenBinding[S core.Settings](
	missing string,
	appFields []string,
	fields []string,
	build func(token string, scheme string) S,
) core.Binding {
	return core.BindingFunc(func(_ context.Context, req core.BindingRequest) (core.BindingResult, error) {
		token, scheme := req.AccessToken(appFields...)
		if token == "" {
			return core.Unavailable(missing), nil
		}
		settings := build(token, scheme)
		if err := DecodeSettings(ResolveFields(req, fields...), &settings); err != nil {
			return core.BindingResult{}, err
		}
		return core.Resolved(settings), nil
	})
}

// EnvSettingsLoader reads settings from the environment over defaults. The
// loader reports nothing unless token yields a non-empty value.
func EnvSettingsLoader[S core.Settings](spec core.EnvSpec, defaults func() S, token func(S) string) core.SettingsLoader {
	return core.SettingsLoaderFunc(func(env core.EnvSource) (core.Settings, bool, error) {
		if env == nil {
			return nil, false, nil
		}
		settings := defaults()
		if err := core.LoadEnvInto(env, spec, &settings); err != nil {
			return nil, false, err
		}
		if strings.TrimSpace(token(settings)) == "" {
			return nil, false, nil
		}
		return settings, true, nil
	})
}

// AuthorizationHeader renders "<scheme> <token>".
func AuthorizationHeader(scheme string, token string) string {
	scheme = strings.TrimSpace(scheme)
	if scheme == "" {
		scheme = core.DefaultTokenType
	}
	return scheme + " " + strings.TrimSpace(token)
}
