package core

import "strings"

const RedactedValue = "[REDACTED]"

// secretKeyFragments mark a key as secret when any of them appears in it.
var secretKeyFragments = []string{
	"token",
	"secret",
	"password",
	"refresh",
	"credential",
	"authorization",
	"api_key",
	"apikey",
	"private_key",
	"signature",
}

// publicKeys match a secret fragment but carry no secret material.
var publicKeys = map[string]struct{}{
	"token_type":                 {},
	"token_url":                  {},
	"authorization_url":          {},
	"authorize_url":              {},
	"authorization_scheme":       {},
	"token_endpoint_auth_method": {},
	"service_key":                {},
	"container_key":              {},
	"subject":                    {},
	"request_id":                 {},
	"trace_id":                   {},
}

// RedactSensitiveMap returns a copy of fields with secret values replaced by
// RedactedValue. Nested maps and slices are walked; fields is not modified.
func RedactSensitiveMap(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		if IsSecretKey(key) {
			out[key] = RedactedValue
			continue
		}
		out[key] = redactValue(value)
	}
	return out
}

// IsSecretKey reports whether values stored under key should never be logged
// or printed.
func IsSecretKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	if _, ok := publicKeys[key]; ok {
		return false
	}
	for _, fragment := range secretKeyFragments {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}

func redactValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return RedactSensitiveMap(typed)
	case StoredData:
		return RedactSensitiveMap(typed)
	case map[string]string:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = item
		}
		return RedactSensitiveMap(out)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = redactValue(item)
		}
		return out
	default:
		return value
	}
}
