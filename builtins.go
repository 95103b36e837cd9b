package integrations

import (
	"fmt"
	"strings"

	"github.com/anishxyz/integrations/core"
	"github.com/anishxyz/integrations/providers/asana"
	"github.com/anishxyz/integrations/providers/github"
	"github.com/anishxyz/integrations/providers/google"
	"github.com/anishxyz/integrations/providers/hubspot"
	"github.com/anishxyz/integrations/providers/notion"
	"github.com/anishxyz/integrations/providers/slack"
)

// ProviderPack groups provider types with the env settings loaders of the
// container keys they bind.
type ProviderPack struct {
	Name    string
	Types   []core.ProviderType
	Loaders map[core.ContainerKey]core.SettingsLoader
}

// BuiltinPack holds Asana, GitHub, Google Workspace, HubSpot, Notion and Slack.
func BuiltinPack() ProviderPack {
	loaders := map[core.ContainerKey]core.SettingsLoader{
		core.ContainerAsana:   asana.SettingsLoader(),
		core.ContainerGitHub:  github.SettingsLoader(),
		core.ContainerHubSpot: hubspot.SettingsLoader(),
		core.ContainerNotion:  notion.SettingsLoader(),
		core.ContainerSlack:   slack.SettingsLoader(),
	}
	for key, loader := range google.SettingsLoaders() {
		loaders[key] = loader
	}
	return ProviderPack{
		Name: "builtin",
		Types: []core.ProviderType{
			asana.Type{},
			github.Type{},
			google.Type{},
			hubspot.Type{},
			notion.Type{},
			slack.Type{},
		},
		Loaders: loaders,
	}
}

// RegisterPack adds every type and loader of pack to registry. It stops at
// the first conflict.
func RegisterPack(registry *core.Registry, pack ProviderPack) error {
	if registry == nil {
		return fmt.Errorf("integrations: registry is required")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("integrations: provider pack name is required")
	}
	if len(pack.Types) == 0 && len(pack.Loaders) == 0 {
		return fmt.Errorf("integrations: provider pack %q is empty", name)
	}
	for _, providerType := range pack.Types {
		if providerType == nil {
			return fmt.Errorf("integrations: provider pack %q has a nil type", name)
		}
		if err := registry.Register(providerType.Key(), providerType); err != nil {
			return err
		}
	}
	for key, loader := range pack.Loaders {
		if err := registry.RegisterSettingsLoader(key, loader); err != nil {
			return err
		}
	}
	return nil
}

// DefaultRegistry returns a fresh registry holding the builtin pack.
func DefaultRegistry() (*core.Registry, error) {
	registry := core.NewRegistry()
	if err := RegisterPack(registry, BuiltinPack()); err != nil {
		return nil, err
	}
	return registry, nil
}
