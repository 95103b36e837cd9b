package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/anishxyz/integrations/core"
	redisstore "github.com/anishxyz/integrations/store/redis"
	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config is read from INTEGRATIONS_* variables; persistent flags override it.
type Config struct {
	ServiceName  string        `env:"INTEGRATIONS_SERVICE_NAME" envDefault:"integrations"`
	Store        string        `env:"INTEGRATIONS_STORE" envDefault:"memory"`
	DatabaseURL  string        `env:"INTEGRATIONS_DATABASE_URL"`
	DatabaseLogs bool          `env:"INTEGRATIONS_DATABASE_DEBUG"`
	PingTimeout  time.Duration `env:"INTEGRATIONS_DATABASE_PING_TIMEOUT" envDefault:"5s"`
	CacheTTL     time.Duration `env:"INTEGRATIONS_CACHE_TTL" envDefault:"0s"`
	AppKey       string        `env:"INTEGRATIONS_APP_KEY"`
	AppKeyID     string        `env:"INTEGRATIONS_APP_KEY_ID" envDefault:"app-key"`
	EnvFiles     []string      `env:"INTEGRATIONS_ENV_FILES" envSeparator:","`
	LogLevel     string        `env:"INTEGRATIONS_LOG_LEVEL" envDefault:"warn"`
	RefreshLead  time.Duration `env:"INTEGRATIONS_REFRESH_LEAD" envDefault:"5m"`
	MaxAttempts  int           `env:"INTEGRATIONS_REFRESH_MAX_ATTEMPTS" envDefault:"3"`
	Redis        redisstore.ConnectConfig
}

// LoadConfig parses environ, or the process environment when environ is nil.
// The result is validated once flags have been applied.
func LoadConfig(environ map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("cli: parse config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreRedis:
	case StoreSQLite, StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("cli: %s store requires a database url", c.Store)
		}
	default:
		return fmt.Errorf("cli: unknown store %q", c.Store)
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("cli: refresh max attempts must not be negative")
	}
	return nil
}

// ManagerConfig maps the CLI settings onto the manager configuration.
func (c Config) ManagerConfig() core.Config {
	cfg := core.DefaultConfig()
	if name := strings.TrimSpace(c.ServiceName); name != "" {
		cfg.ServiceName = name
	}
	cfg.EnvFiles = append([]string{}, c.EnvFiles...)
	cfg.RefreshLeadSeconds = int(c.RefreshLead / time.Second)
	cfg.RefreshMaxAttempts = c.MaxAttempts
	return cfg
}

// applyFlags copies every persistent flag the user set over cfg.
func applyFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store, _ = flags.GetString("store")
	}
	if flags.Changed("database-url") {
		cfg.DatabaseURL, _ = flags.GetString("database-url")
	}
	if flags.Changed("redis-url") {
		cfg.Redis.URL, _ = flags.GetString("redis-url")
	}
	if flags.Changed("app-key") {
		cfg.AppKey, _ = flags.GetString("app-key")
	}
	if flags.Changed("env-file") {
		cfg.EnvFiles, _ = flags.GetStringSlice("env-file")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
}
