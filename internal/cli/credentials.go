package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	integrationscommand "github.com/anishxyz/integrations/command"
	"github.com/anishxyz/integrations/core"
	integrationsquery "github.com/anishxyz/integrations/query"
	"github.com/spf13/cobra"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Read, store and delete user credentials",
	Long: `Read, store and delete the user credentials kept for a provider and
subject. A subject is a plain id or a JSON object of attributes.

Examples:
  integrations credentials set slack --subject user_1 --access-token xoxb-1
  integrations credentials set github --subject '{"org":"acme"}' --json '{"access_token":"gho_1"}'
  integrations credentials get slack --subject user_1
  integrations credentials delete slack --subject user_1`,
}

var credentialsGetCmd = &cobra.Command{
	Use:   "get [provider]",
	Short: "Print stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredentialsGet,
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set [provider]",
	Short: "Store credentials for a subject",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredentialsSet,
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete [provider]",
	Short: "Delete stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredentialsDelete,
}

// Flags for credentials commands.
var (
	credentialsSubject      string
	credentialsReveal       bool
	credentialsAccessToken  string
	credentialsRefreshToken string
	credentialsTokenType    string
	credentialsScope        []string
	credentialsExpiresIn    int64
	credentialsJSON         string
)

func init() {
	for _, cmd := range []*cobra.Command{credentialsGetCmd, credentialsSetCmd, credentialsDeleteCmd} {
		cmd.Flags().StringVar(&credentialsSubject, "subject", "", "Subject id or JSON attributes")
		_ = cmd.MarkFlagRequired("subject")
	}
	credentialsGetCmd.Flags().BoolVar(&credentialsReveal, "reveal", false, "Print secrets instead of redacting them")

	flags := credentialsSetCmd.Flags()
	flags.StringVar(&credentialsAccessToken, "access-token", "", "Access token")
	flags.StringVar(&credentialsRefreshToken, "refresh-token", "", "Refresh token")
	flags.StringVar(&credentialsTokenType, "token-type", "", "Token type (defaults to Bearer)")
	flags.StringSliceVar(&credentialsScope, "scope", nil, "Granted scopes")
	flags.Int64Var(&credentialsExpiresIn, "expires-in", 0, "Seconds until the access token expires")
	flags.StringVar(&credentialsJSON, "json", "", "Raw credential payload as a JSON object")

	credentialsCmd.AddCommand(credentialsGetCmd)
	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsCmd.AddCommand(credentialsDeleteCmd)
	rootCmd.AddCommand(credentialsCmd)
}

func runCredentialsGet(cmd *cobra.Command, args []string) error {
	subject, err := parseSubject(credentialsSubject)
	if err != nil {
		return err
	}
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	token, err := rt.facade.Queries().LoadCredentials.Query(cmd.Context(), integrationsquery.LoadCredentialsMessage{
		Provider: args[0],
		Subject:  subject,
	})
	if err != nil {
		return err
	}
	if token == nil {
		return fmt.Errorf("no credentials stored for %s %s", args[0], subject)
	}
	return writeJSON(cmd, tokenView(token, credentialsReveal))
}

func runCredentialsSet(cmd *cobra.Command, args []string) error {
	subject, err := parseSubject(credentialsSubject)
	if err != nil {
		return err
	}
	input, err := credentialsInput(cmd)
	if err != nil {
		return err
	}
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	err = rt.facade.Commands().StoreCredentials.Execute(cmd.Context(), integrationscommand.StoreCredentialsMessage{
		Provider:    args[0],
		Subject:     subject,
		Credentials: input,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stored %s credentials for %s\n", core.NormalizeName(args[0]), subject)
	return nil
}

// credentialsInput builds the payload from --json or the token flags; the two
// forms are exclusive.
func credentialsInput(cmd *cobra.Command) (core.CredentialsInput, error) {
	raw := strings.TrimSpace(credentialsJSON)
	if raw != "" {
		if cmd.Flags().Changed("access-token") {
			return core.Absent(), fmt.Errorf("use either --json or --access-token")
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return core.Absent(), fmt.Errorf("cli: credentials json: %w", err)
		}
		return core.Raw(payload), nil
	}
	if strings.TrimSpace(credentialsAccessToken) == "" {
		return core.Absent(), fmt.Errorf("one of --access-token or --json is required")
	}
	token := &core.Token{
		AccessToken:  credentialsAccessToken,
		TokenType:    credentialsTokenType,
		RefreshToken: credentialsRefreshToken,
		Scope:        credentialsScope,
	}
	if credentialsExpiresIn > 0 {
		expiresIn := credentialsExpiresIn
		token.ExpiresIn = &expiresIn
	}
	return core.Structured(token), nil
}

func runCredentialsDelete(cmd *cobra.Command, args []string) error {
	subject, err := parseSubject(credentialsSubject)
	if err != nil {
		return err
	}
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	err = rt.facade.Commands().DeleteCredentials.Execute(cmd.Context(), integrationscommand.DeleteCredentialsMessage{
		Provider: args[0],
		Subject:  subject,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s credentials for %s\n", core.NormalizeName(args[0]), subject)
	return nil
}
