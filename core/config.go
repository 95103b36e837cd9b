package core

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	ServiceName          string   `koanf:"service_name" mapstructure:"service_name"`
	AutoConfigure        bool     `koanf:"auto_configure" mapstructure:"auto_configure"`
	AutoLoadCredentials  bool     `koanf:"auto_load_credentials" mapstructure:"auto_load_credentials"`
	EnvFiles             []string `koanf:"env_files" mapstructure:"env_files"`
	TokenTimeoutSeconds  int      `koanf:"token_timeout_seconds" mapstructure:"token_timeout_seconds"`
	OAuthStateTTLSeconds int      `koanf:"oauth_state_ttl_seconds" mapstructure:"oauth_state_ttl_seconds"`
	RefreshLeadSeconds   int      `koanf:"refresh_lead_seconds" mapstructure:"refresh_lead_seconds"`
	RefreshMaxAttempts   int      `koanf:"refresh_max_attempts" mapstructure:"refresh_max_attempts"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:          "integrations",
		AutoConfigure:        true,
		AutoLoadCredentials:  true,
		EnvFiles:             []string{},
		TokenTimeoutSeconds:  30,
		OAuthStateTTLSeconds: 900,
		RefreshLeadSeconds:   300,
		RefreshMaxAttempts:   3,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.TokenTimeoutSeconds < 0 {
		return fmt.Errorf("core: token_timeout_seconds must be positive")
	}
	if c.OAuthStateTTLSeconds < 0 {
		return fmt.Errorf("core: oauth_state_ttl_seconds must be positive")
	}
	if c.RefreshLeadSeconds < 0 {
		return fmt.Errorf("core: refresh_lead_seconds must be positive")
	}
	if c.RefreshMaxAttempts < 0 {
		return fmt.Errorf("core: refresh_max_attempts must be positive")
	}
	return nil
}

func (c Config) TokenTimeout() time.Duration {
	return time.Duration(c.TokenTimeoutSeconds) * time.Second
}

func (c Config) OAuthStateTTL() time.Duration {
	return time.Duration(c.OAuthStateTTLSeconds) * time.Second
}

func (c Config) RefreshLead() time.Duration {
	return time.Duration(c.RefreshLeadSeconds) * time.Second
}
