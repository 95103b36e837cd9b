package cli

import (
	"fmt"
	"strings"
	"time"

	integrationscommand "github.com/anishxyz/integrations/command"
	"github.com/anishxyz/integrations/core"
	integrationsquery "github.com/anishxyz/integrations/query"
	gocmd "github.com/goliatone/go-command"
	"github.com/spf13/cobra"
)

var authorizeCmd = &cobra.Command{
	Use:   "authorize [provider]",
	Short: "Print the OAuth2 authorization URL for a provider",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthorize,
}

var exchangeCmd = &cobra.Command{
	Use:   "exchange [provider]",
	Short: "Trade an authorization code for a token",
	Long: `Trade an authorization code for a token. With --subject the token is
stored for that subject.

Examples:
  integrations exchange github --subject user_1 --code abc123
  integrations exchange slack --code abc123 --redirect-uri http://localhost:8080/cb`,
	Args: cobra.ExactArgs(1),
	RunE: runExchange,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh [provider]",
	Short: "Refresh stored credentials",
	Long: `Refresh the stored credentials of a subject. With --if-needed the token
is only refreshed when it is expired or expires within the refresh lead window.`,
	Args: cobra.ExactArgs(1),
	RunE: runRefresh,
}

// Flags for the OAuth2 commands.
var (
	oauthRedirectURI string
	oauthScope       []string
	oauthState       string
	oauthSubject     string
	oauthCode        string
	oauthResponse    string
	oauthReveal      bool
	refreshAttempts  int
	refreshIfNeeded  bool
	refreshLead      time.Duration
)

func init() {
	authorizeCmd.Flags().StringVar(&oauthRedirectURI, "redirect-uri", "", "Redirect URI registered with the provider")
	authorizeCmd.Flags().StringSliceVar(&oauthScope, "scope", nil, "Scopes to request (provider defaults when empty)")
	authorizeCmd.Flags().StringVar(&oauthState, "state", "", "State value (generated when empty)")

	exchangeCmd.Flags().StringVar(&oauthSubject, "subject", "", "Store the token for this subject")
	exchangeCmd.Flags().StringVar(&oauthCode, "code", "", "Authorization code")
	exchangeCmd.Flags().StringVar(&oauthResponse, "response-url", "", "Full redirect URL returned by the provider")
	exchangeCmd.Flags().StringVar(&oauthRedirectURI, "redirect-uri", "", "Redirect URI used when authorizing")
	exchangeCmd.Flags().BoolVar(&oauthReveal, "reveal", false, "Print secrets instead of redacting them")

	refreshCmd.Flags().StringVar(&oauthSubject, "subject", "", "Subject id or JSON attributes")
	refreshCmd.Flags().IntVar(&refreshAttempts, "max-attempts", 0, "Refresh attempts (configuration default when zero)")
	refreshCmd.Flags().BoolVar(&refreshIfNeeded, "if-needed", false, "Refresh only expired or expiring tokens")
	refreshCmd.Flags().DurationVar(&refreshLead, "lead", 0, "Refresh lead window for --if-needed")
	refreshCmd.Flags().BoolVar(&oauthReveal, "reveal", false, "Print secrets instead of redacting them")
	_ = refreshCmd.MarkFlagRequired("subject")

	rootCmd.AddCommand(authorizeCmd)
	rootCmd.AddCommand(exchangeCmd)
	rootCmd.AddCommand(refreshCmd)
}

func runAuthorize(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := rt.facade.Queries().Authorize.Query(cmd.Context(), integrationsquery.AuthorizeMessage{
		Provider: args[0],
		Request: core.AuthorizeRequest{
			State:       oauthState,
			Scope:       oauthScope,
			RedirectURI: oauthRedirectURI,
		},
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, result.AuthorizationURL)
	fmt.Fprintf(out, "state: %s\n", result.State)
	return nil
}

func runExchange(cmd *cobra.Command, args []string) error {
	request := core.ExchangeRequest{
		Code:                  strings.TrimSpace(oauthCode),
		AuthorizationResponse: strings.TrimSpace(oauthResponse),
		RedirectURI:           oauthRedirectURI,
	}
	if strings.TrimSpace(oauthSubject) != "" {
		subject, err := parseSubject(oauthSubject)
		if err != nil {
			return err
		}
		request.Subject = subject
	}
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	result := gocmd.NewResult[*core.Token]()
	ctx := gocmd.ContextWithResult(cmd.Context(), result)
	err = rt.facade.Commands().Exchange.Execute(ctx, integrationscommand.ExchangeMessage{
		Provider: args[0],
		Request:  request,
	})
	if err != nil {
		return err
	}
	token, _ := result.Load()
	return writeJSON(cmd, tokenView(token, oauthReveal))
}

func runRefresh(cmd *cobra.Command, args []string) error {
	subject, err := parseSubject(oauthSubject)
	if err != nil {
		return err
	}
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	if refreshIfNeeded {
		return ensureFresh(cmd, rt, args[0], subject)
	}

	result := gocmd.NewResult[core.RefreshRunResult]()
	ctx := gocmd.ContextWithResult(cmd.Context(), result)
	err = rt.facade.Commands().Refresh.Execute(ctx, integrationscommand.RefreshMessage{
		Provider:    args[0],
		Subject:     subject,
		MaxAttempts: refreshAttempts,
	})
	if err != nil {
		return err
	}
	run, _ := result.Load()
	return writeJSON(cmd, map[string]any{
		"attempts": run.Attempts,
		"token":    tokenView(run.Token, oauthReveal),
	})
}

func ensureFresh(cmd *cobra.Command, rt *runtime, provider string, subject core.Subject) error {
	result := gocmd.NewResult[core.EnsureFreshResult]()
	ctx := gocmd.ContextWithResult(cmd.Context(), result)
	err := rt.facade.Commands().EnsureFresh.Execute(ctx, integrationscommand.EnsureFreshMessage{
		Provider: provider,
		Subject:  subject,
		Options:  core.EnsureFreshOptions{RefreshLeadWindow: refreshLead},
	})
	if err != nil {
		return err
	}
	fresh, _ := result.Load()
	return writeJSON(cmd, map[string]any{
		"refresh_attempted": fresh.RefreshAttempted,
		"refreshed":         fresh.Refreshed,
		"expired":           fresh.State.IsExpired,
		"expiring_soon":     fresh.State.IsExpiringSoon,
		"token":             tokenView(fresh.Token, oauthReveal),
	})
}
