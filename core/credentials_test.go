package core

import "testing"

func TestCredentialsInputVariants(t *testing.T) {
	token := &Token{AccessToken: "at", RefreshToken: "rt-token"}

	if Structured(nil).Kind() != CredentialsAbsent || Raw(nil).Kind() != CredentialsAbsent {
		t.Fatalf("nil inputs should be absent")
	}
	if got := Structured(token).RefreshToken(); got != "rt-token" {
		t.Fatalf("expected structured refresh token, got %q", got)
	}
	if got := Raw(map[string]any{"refresh_token": " rt-raw "}).RefreshToken(); got != "rt-raw" {
		t.Fatalf("expected trimmed raw refresh token, got %q", got)
	}
	if got := Raw(map[string]any{"refresh_token": 7}).RefreshToken(); got != "" {
		t.Fatalf("non-string refresh token should be ignored, got %q", got)
	}
	if Absent().RefreshToken() != "" {
		t.Fatalf("absent input has no refresh token")
	}

	parsed, err := Absent().Parse(" ")
	if err != nil || parsed != nil {
		t.Fatalf("absent parses to nil, got %v %v", parsed, err)
	}
	if _, err := Absent().Serialize(" "); !IsTypeError(err) {
		t.Fatalf("absent cannot be serialized, got %v", err)
	}
}

func TestCredentialsFrom(t *testing.T) {
	cases := []struct {
		name  string
		value any
		kind  CredentialsKind
	}{
		{name: "nil", value: nil, kind: CredentialsAbsent},
		{name: "token pointer", value: &Token{AccessToken: "a"}, kind: CredentialsStructured},
		{name: "token value", value: Token{AccessToken: "a"}, kind: CredentialsStructured},
		{name: "mapping", value: map[string]any{"access_token": "a"}, kind: CredentialsRaw},
		{name: "string mapping", value: map[string]string{"access_token": "a"}, kind: CredentialsRaw},
		{name: "stored data", value: StoredData{"access_token": "a"}, kind: CredentialsRaw},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input, err := CredentialsFrom(tc.value)
			if err != nil {
				t.Fatalf("credentials from: %v", err)
			}
			if input.Kind() != tc.kind {
				t.Fatalf("expected %s, got %s", tc.kind, input.Kind())
			}
		})
	}
	if _, err := CredentialsFrom(42); !IsTypeError(err) {
		t.Fatalf("expected type error, got %v", err)
	}
}

func TestCredentialsSerializeRaw(t *testing.T) {
	raw := map[string]any{"access_token": "a", "custom": "x"}
	data, err := Raw(raw).Serialize(" ")
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	data["custom"] = "changed"
	if raw["custom"] != "x" {
		t.Fatalf("serialize must copy the raw mapping")
	}
}
