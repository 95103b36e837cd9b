package providers

import (
	"fmt"

	"github.com/anishxyz/integrations/core"
)

// Definition is what a builtin provider package contributes: its key, app
// credential defaults, env aliases and default bindings.
type Definition struct {
	Key      core.ServiceKey
	Defaults core.AppCredentials
	Env      core.EnvSpec
	Bindings map[core.ContainerKey]core.Binding
}

// Provider is the auth provider shared by the builtin services: a
// BaseProvider plus a lazily built OAuth2 flow.
type Provider struct {
	*core.BaseProvider
}

func NewProvider(def Definition, opts ...core.ProviderOption) (*Provider, error) {
	options := core.BuildProviderOptions(opts...)
	app, err := options.ResolveAppCredentials(def.Defaults, def.Env)
	if err != nil {
		return nil, err
	}
	return &Provider{
		BaseProvider: core.NewBaseProvider(def.Key, app, def.Bindings, options),
	}, nil
}

// OAuth2 returns the provider's OAuth2 flow, the same value on every call.
func (p *Provider) OAuth2() (core.OAuth2Flow, error) {
	if p == nil || p.BaseProvider == nil {
		return nil, fmt.Errorf("providers: provider is nil")
	}
	flow, err := p.Flow(core.FlowOAuth2, func() (core.Flow, error) {
		return NewOAuth2FlowFromOptions(p.Key(), p.AppCredentials(), p.Options()), nil
	})
	if err != nil {
		return nil, err
	}
	typed, ok := flow.(core.OAuth2Flow)
	if !ok {
		return nil, fmt.Errorf("providers: flow %q has type %T", core.FlowOAuth2, flow)
	}
	return typed, nil
}

// AppEnvSpec is the env layout every builtin provider shares: prefixed
// canonical names plus the authorization and token URL aliases.
func AppEnvSpec(prefix string, aliases map[string][]string, extras map[string][]string) core.EnvSpec {
	merged := map[string][]string{
		prefix + "AUTHORIZATION_URL": {prefix + "AUTHORIZATION_URL", prefix + "AUTHORIZE_URL"},
		prefix + "TOKEN_URL":         {prefix + "TOKEN_URL", prefix + "ACCESS_TOKEN_URL"},
	}
	for key, candidates := range aliases {
		merged[key] = append([]string(nil), candidates...)
	}
	return core.EnvSpec{
		Prefix:  prefix,
		Aliases: merged,
		Extras:  extras,
	}
}

var _ core.OAuth2Provider = (*Provider)(nil)
