package core

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Subject identifies whose credentials are being stored or resolved. It is
// either a plain string or a mapping; mappings canonicalize to compact JSON
// with sorted keys so equal mappings share one storage key.
type Subject struct {
	id    string
	attrs map[string]any
}

func SubjectID(id string) Subject {
	return Subject{id: id}
}

func SubjectAttrs(attrs map[string]any) Subject {
	return Subject{attrs: copyAnyMap(attrs)}
}

// SubjectFrom builds a Subject from a string, a mapping, or another Subject.
func SubjectFrom(value any) (Subject, error) {
	switch typed := value.(type) {
	case Subject:
		return typed, nil
	case string:
		return SubjectID(typed), nil
	case map[string]any:
		return SubjectAttrs(typed), nil
	case map[string]string:
		attrs := make(map[string]any, len(typed))
		for key, val := range typed {
			attrs[key] = val
		}
		return SubjectAttrs(attrs), nil
	default:
		return Subject{}, TypeError("subject must be a string or a mapping")
	}
}

func (s Subject) IsMapping() bool { return s.attrs != nil }

func (s Subject) IsZero() bool { return s.attrs == nil && strings.TrimSpace(s.id) == "" }

// Attrs returns a copy of a mapping subject's attributes.
func (s Subject) Attrs() map[string]any {
	if s.attrs == nil {
		return nil
	}
	return copyAnyMap(s.attrs)
}

// Key returns the canonical key material for s. String subjects are used
// verbatim.
func (s Subject) Key() (string, error) {
	if s.attrs == nil {
		if strings.TrimSpace(s.id) == "" {
			return "", BadInputError("subject is required")
		}
		return s.id, nil
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(s.attrs); err != nil {
		return "", TypeError("subject mapping is not serializable: " + err.Error())
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func (s Subject) String() string {
	key, err := s.Key()
	if err != nil {
		return ""
	}
	return key
}
