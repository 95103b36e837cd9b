package core

import (
	"fmt"
	"strings"
)

// CredentialsKind tags the variant held by a CredentialsInput.
type CredentialsKind int

const (
	CredentialsAbsent CredentialsKind = iota
	CredentialsStructured
	CredentialsRaw
)

func (k CredentialsKind) String() string {
	switch k {
	case CredentialsStructured:
		return "structured"
	case CredentialsRaw:
		return "raw"
	default:
		return "absent"
	}
}

// CredentialsInput is user credentials as supplied by a caller: a parsed
// Token, a raw mapping, or nothing.
type CredentialsInput struct {
	kind  CredentialsKind
	token *Token
	raw   map[string]any
}

// Structured wraps a parsed token. A nil token is Absent.
func Structured(token *Token) CredentialsInput {
	if token == nil {
		return Absent()
	}
	return CredentialsInput{kind: CredentialsStructured, token: token}
}

// Raw wraps an unparsed mapping. A nil mapping is Absent.
func Raw(data map[string]any) CredentialsInput {
	if data == nil {
		return Absent()
	}
	return CredentialsInput{kind: CredentialsRaw, raw: data}
}

func Absent() CredentialsInput {
	return CredentialsInput{kind: CredentialsAbsent}
}

// CredentialsFrom builds the union from a dynamic value. Anything other than
// nil, a token, a mapping, or an existing CredentialsInput is a type error.
func CredentialsFrom(value any) (CredentialsInput, error) {
	switch typed := value.(type) {
	case nil:
		return Absent(), nil
	case CredentialsInput:
		return typed, nil
	case *Token:
		return Structured(typed), nil
	case Token:
		return Structured(typed.Clone()), nil
	case StoredData:
		return Raw(map[string]any(typed)), nil
	case map[string]any:
		return Raw(typed), nil
	case map[string]string:
		data := make(map[string]any, len(typed))
		for key, val := range typed {
			data[key] = val
		}
		return Raw(data), nil
	default:
		return CredentialsInput{}, TypeError(fmt.Sprintf("credentials must be a token or a mapping, got %T", value))
	}
}

func (c CredentialsInput) Kind() CredentialsKind { return c.kind }

func (c CredentialsInput) IsAbsent() bool { return c.kind == CredentialsAbsent }

// Token returns the structured variant.
func (c CredentialsInput) Token() (*Token, bool) {
	return c.token, c.kind == CredentialsStructured
}

// Raw returns the mapping variant.
func (c CredentialsInput) Raw() (map[string]any, bool) {
	return c.raw, c.kind == CredentialsRaw
}

// Parse coerces the input into a Token using separator for string scopes.
// Absent yields nil without error.
func (c CredentialsInput) Parse(separator string) (*Token, error) {
	switch c.kind {
	case CredentialsStructured:
		return c.token, nil
	case CredentialsRaw:
		return TokenFromMap(c.raw, separator)
	default:
		return nil, nil
	}
}

// RefreshToken finds a refresh token in the structured token first and then
// in the raw mapping.
func (c CredentialsInput) RefreshToken() string {
	switch c.kind {
	case CredentialsStructured:
		if c.token != nil {
			return strings.TrimSpace(c.token.RefreshToken)
		}
	case CredentialsRaw:
		if value, ok := c.raw[tokenFieldRefreshToken].(string); ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// Serialize renders the input as a storable mapping.
func (c CredentialsInput) Serialize(separator string) (StoredData, error) {
	switch c.kind {
	case CredentialsStructured:
		return StoredData(c.token.ToMap(separator)), nil
	case CredentialsRaw:
		return StoredData(copyAnyMap(c.raw)), nil
	default:
		return nil, TypeError("credentials are required")
	}
}
