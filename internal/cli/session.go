package cli

import (
	"fmt"
	"strings"

	"github.com/anishxyz/integrations/core"
	integrationsquery "github.com/anishxyz/integrations/query"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Resolve the settings container for a subject",
	Long: `Resolve the settings container for a subject. Without --provider every
registered container is tried and the ones lacking credentials are skipped.
Naming a container with --provider makes missing credentials an error.

Examples:
  integrations session --subject user_1
  integrations session --subject user_1 --provider github --provider gmail
  integrations session --subject user_1 --token slack=xoxb-123`,
	Args: cobra.NoArgs,
	RunE: runSession,
}

// Flags for session.
var (
	sessionSubject    string
	sessionProviders  []string
	sessionTokens     []string
	sessionNoAutoLoad bool
	sessionReveal     bool
)

func init() {
	sessionCmd.Flags().StringVar(&sessionSubject, "subject", "", "Subject id or JSON attributes")
	sessionCmd.Flags().StringSliceVar(&sessionProviders, "provider", nil, "Containers to resolve (all when empty)")
	sessionCmd.Flags().StringArrayVar(&sessionTokens, "token", nil, "Inline access token as container=token")
	sessionCmd.Flags().BoolVar(&sessionNoAutoLoad, "no-auto-load", false, "Do not read stored credentials")
	sessionCmd.Flags().BoolVar(&sessionReveal, "reveal", false, "Print secrets instead of redacting them")
	_ = sessionCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(sessionCmd)
}

func runSession(cmd *cobra.Command, _ []string) error {
	subject, err := parseSubject(sessionSubject)
	if err != nil {
		return err
	}
	msg := integrationsquery.SessionMessage{
		Subject:   subject,
		Providers: sessionProviders,
	}
	if len(sessionTokens) > 0 {
		msg.Credentials = make(map[string]core.CredentialsInput, len(sessionTokens))
		for _, pair := range sessionTokens {
			key, token, ok := strings.Cut(pair, "=")
			if !ok || strings.TrimSpace(key) == "" || strings.TrimSpace(token) == "" {
				return fmt.Errorf("--token expects container=token, got %q", pair)
			}
			msg.Credentials[strings.TrimSpace(key)] = core.Structured(&core.Token{AccessToken: strings.TrimSpace(token)})
		}
	}
	if sessionNoAutoLoad {
		autoLoad := false
		msg.AutoLoadCredentials = &autoLoad
	}

	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	container, err := rt.facade.Queries().Session.Query(cmd.Context(), msg)
	if err != nil {
		return err
	}
	out := make(map[string]any, container.Len())
	for key, settings := range container.All() {
		view, err := settingsView(settings, sessionReveal)
		if err != nil {
			return err
		}
		out[string(key)] = view
	}
	return writeJSON(cmd, out)
}
