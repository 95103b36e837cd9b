package cli

import (
	"fmt"
	"sort"
	"strings"

	integrationsquery "github.com/anishxyz/integrations/query"
	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List registered providers",
	Args:  cobra.NoArgs,
	RunE:  runProviders,
}

var providersJSON bool

func init() {
	providersCmd.Flags().BoolVar(&providersJSON, "json", false, "Print the list as JSON")
	rootCmd.AddCommand(providersCmd)
}

func runProviders(cmd *cobra.Command, _ []string) error {
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	names, err := rt.facade.Queries().ListProviders.Query(cmd.Context(), integrationsquery.ListProvidersMessage{})
	if err != nil {
		return err
	}
	if providersJSON {
		return writeJSON(cmd, names)
	}
	for _, name := range names {
		provider, err := rt.manager.Provider(string(name))
		if err != nil {
			return err
		}
		keys := make([]string, 0)
		for key := range provider.Bindings() {
			keys = append(keys, string(key))
		}
		sort.Strings(keys)
		app := "-"
		if provider.AppCredentials().ClientID != "" {
			app = "oauth2"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-8s %-7s %s\n", name, app, strings.Join(keys, ","))
	}
	return nil
}
