package core

import "strings"

// DefaultScopeSeparator joins scopes on the wire unless a provider overrides it.
const DefaultScopeSeparator = " "

// JoinScope renders scopes in wire form.
func JoinScope(scopes []string, separator string) string {
	if len(scopes) == 0 {
		return ""
	}
	return strings.Join(scopes, scopeSeparator(separator))
}

// ParseScope splits a wire form scope string back into its ordered parts,
// dropping empty segments. ParseScope(JoinScope(s, sep), sep) returns s for any
// list of non-empty strings that do not contain sep.
func ParseScope(value string, separator string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, scopeSeparator(separator))
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func scopeSeparator(separator string) string {
	if separator == "" {
		return DefaultScopeSeparator
	}
	return separator
}

// scopeFromAny accepts the scope shapes seen in token payloads and app
// configuration: a wire string, a string slice, or a generic slice of strings.
func scopeFromAny(value any, separator string) ([]string, error) {
	switch typed := value.(type) {
	case nil:
		return nil, nil
	case string:
		return ParseScope(typed, separator), nil
	case []string:
		return append([]string(nil), typed...), nil
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			text, ok := item.(string)
			if !ok {
				return nil, TypeError("scope entries must be strings")
			}
			out = append(out, text)
		}
		return out, nil
	default:
		return nil, TypeError("scope must be a string or a list of strings")
	}
}
