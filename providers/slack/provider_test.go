package slack

import (
	"context"
	"testing"

	"github.com/anishxyz/integrations/core"
)

func TestNewReadsBotAndUserTokens(t *testing.T) {
	provider, err := New(core.WithProviderEnv(core.MapEnv{
		"SLACK_TOKEN":      "xoxb-legacy",
		"SLACK_USER_TOKEN": "xoxp-user",
	}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	app := provider.AppCredentials()
	if app.LookupString("bot_token") != "xoxb-legacy" {
		t.Fatalf("expected bot token alias, got %q", app.LookupString("bot_token"))
	}
	if app.LookupString("user_token") != "xoxp-user" {
		t.Fatalf("expected user token")
	}
	if app.Separator() != "," {
		t.Fatalf("expected comma scope separator, got %q", app.Separator())
	}
}

func TestBindingTokenPrecedence(t *testing.T) {
	app := core.AppCredentials{}.WithExtra("bot_token", "xoxb-1").WithExtra("user_token", "xoxp-1")

	cases := []struct {
		name string
		req  core.BindingRequest
		want string
	}{
		{
			name: "user access token",
			req:  core.BindingRequest{AppCredentials: app, UserCredentials: &core.Token{AccessToken: "xoxe-user"}},
			want: "xoxe-user",
		},
		{
			name: "bot token",
			req:  core.BindingRequest{AppCredentials: app},
			want: "xoxb-1",
		},
		{
			name: "user token",
			req:  core.BindingRequest{AppCredentials: core.AppCredentials{}.WithExtra("user_token", "xoxp-1")},
			want: "xoxp-1",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Binding().ToSettings(context.Background(), tc.req)
			if err != nil {
				t.Fatalf("to settings: %v", err)
			}
			value, ok := result.Settings()
			if !ok {
				t.Fatalf("expected resolved settings")
			}
			if got := value.(Settings).Token; got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}

	result, err := Binding().ToSettings(context.Background(), core.BindingRequest{})
	if err != nil {
		t.Fatalf("to settings: %v", err)
	}
	if result.IsResolved() || result.Reason() != missingToken {
		t.Fatalf("expected unavailable, got %q", result.Reason())
	}
}

func TestSettingsLoaderPrefersBotToken(t *testing.T) {
	value, ok, err := SettingsLoader().LoadSettings(core.MapEnv{
		"SLACK_USER_TOKEN": "xoxp-1",
		"SLACK_BOT_TOKEN":  "xoxb-1",
	})
	if err != nil || !ok {
		t.Fatalf("expected settings, got ok=%v err=%v", ok, err)
	}
	settings := value.(Settings)
	if settings.Token != "xoxb-1" {
		t.Fatalf("expected bot token, got %q", settings.Token)
	}
	if settings.Authorization() != "Bearer xoxb-1" {
		t.Fatalf("unexpected authorization %q", settings.Authorization())
	}
}
