// Package cli is the integrations command line: it resolves sessions, runs
// the OAuth2 flow and manages stored credentials against a configured store.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anishxyz/integrations/core"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "integrations",
	Short: "Resolve third-party service credentials per subject",
	Long: `Resolve per-subject settings for GitHub, Slack, Notion, HubSpot, Asana
and Google from app credentials, stored user credentials and the environment.

The credential store is chosen with --store (memory, sqlite, postgres, redis)
or INTEGRATIONS_STORE. App credentials are read from the environment and from
any --env-file, for example GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET.

Examples:
  integrations providers
  integrations authorize github --redirect-uri http://localhost:8080/cb
  integrations exchange github --subject user_1 --code abc123
  integrations session --subject user_1 --provider github --provider slack`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Flags shared by every command.
var (
	rootStore       string
	rootDatabaseURL string
	rootRedisURL    string
	rootAppKey      string
	rootEnvFiles    []string
	rootLogLevel    string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootStore, "store", StoreMemory, "Credential store (memory, sqlite, postgres, redis)")
	flags.StringVar(&rootDatabaseURL, "database-url", "", "SQL DSN for the sqlite and postgres stores")
	flags.StringVar(&rootRedisURL, "redis-url", "", "Redis URL for the redis store")
	flags.StringVar(&rootAppKey, "app-key", "", "Key used to encrypt stored credentials")
	flags.StringSliceVar(&rootEnvFiles, "env-file", nil, "Dotenv files read before the process environment")
	flags.StringVar(&rootLogLevel, "log-level", "warn", "Log level (trace, debug, info, warn, error)")
}

// Execute runs the root command; cancelling ctx stops a running server.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// parseSubject accepts a plain id or a JSON object of attributes.
func parseSubject(value string) (core.Subject, error) {
	value = strings.TrimSpace(value)
	subject := core.SubjectID(value)
	if strings.HasPrefix(value, "{") {
		var attrs map[string]any
		if err := json.Unmarshal([]byte(value), &attrs); err != nil {
			return core.Subject{}, fmt.Errorf("cli: subject attributes: %w", err)
		}
		subject = core.SubjectAttrs(attrs)
	}
	if _, err := subject.Key(); err != nil {
		return core.Subject{}, err
	}
	return subject, nil
}

func writeJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

// tokenView renders token for output, redacting secrets unless reveal is set.
func tokenView(token *core.Token, reveal bool) map[string]any {
	if token == nil {
		return nil
	}
	view := token.ToMap(core.DefaultScopeSeparator)
	if reveal {
		return view
	}
	return core.RedactSensitiveMap(view)
}

// settingsView flattens provider settings through their JSON form.
func settingsView(settings core.Settings, reveal bool) (map[string]any, error) {
	payload, err := json.Marshal(settings)
	if err != nil {
		return nil, err
	}
	view := map[string]any{}
	if err := json.Unmarshal(payload, &view); err != nil {
		return nil, err
	}
	if reveal {
		return view, nil
	}
	return core.RedactSensitiveMap(view), nil
}
