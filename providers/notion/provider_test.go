package notion

import (
	"context"
	"testing"
	"time"

	"github.com/anishxyz/integrations/core"
)

func TestBindingResolvesVersion(t *testing.T) {
	provider, err := New(core.WithProviderEnv(core.MapEnv{
		"NOTION_INTEGRATION_TOKEN": "secret_app",
		"NOTION_API_VERSION":       "2025-09-03",
	}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	binding := provider.Bindings()[core.ContainerNotion]
	if binding == nil {
		t.Fatalf("expected notion binding")
	}

	result, err := binding.ToSettings(context.Background(), core.BindingRequest{
		AppCredentials: provider.AppCredentials(),
	})
	if err != nil {
		t.Fatalf("to settings: %v", err)
	}
	value, ok := result.Settings()
	if !ok {
		t.Fatalf("expected resolved settings")
	}
	settings := value.(Settings)
	if settings.Token != "secret_app" || settings.Version != "2025-09-03" {
		t.Fatalf("unexpected settings %+v", settings)
	}
	headers := settings.Headers()
	if headers["Notion-Version"] != "2025-09-03" || headers["Authorization"] != "Bearer secret_app" {
		t.Fatalf("unexpected headers %v", headers)
	}
}

func TestBindingUnavailable(t *testing.T) {
	result, err := Binding().ToSettings(context.Background(), core.BindingRequest{})
	if err != nil {
		t.Fatalf("to settings: %v", err)
	}
	if result.IsResolved() || result.Reason() != missingToken {
		t.Fatalf("expected unavailable, got %q", result.Reason())
	}
}

func TestSettingsLoaderDefaults(t *testing.T) {
	value, ok, err := SettingsLoader().LoadSettings(core.MapEnv{"NOTION_TOKEN": "secret_env"})
	if err != nil || !ok {
		t.Fatalf("expected settings, got ok=%v err=%v", ok, err)
	}
	settings := value.(Settings)
	if settings.Version != Version || settings.Timeout != 10*time.Second || settings.BaseURL != BaseURL {
		t.Fatalf("expected defaults, got %+v", settings)
	}
}
