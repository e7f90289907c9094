package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"closet/internal/infra/credentials"
)

func newCapabilitiesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "Show the provider chain for each transformation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			for _, kind := range rt.Service.Capabilities() {
				fmt.Fprintf(out, "%s\n", kind.Kind)
				for i, c := range kind.Candidates {
					status := "available"
					if !c.Available {
						status = "unavailable (" + string(c.Reason) + ")"
					}
					fmt.Fprintf(out, "  %d. %-20s %-20s %s\n", i+1, c.Provider, c.Mode, status)
				}
			}
			return nil
		},
	}
}

func newHistoryCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent transformations from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			records, err := rt.Service.RecentTransformations(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, records)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to show")
	return cmd
}

func newCredentialsCmd(opts *options) *cobra.Command {
	creds := &cobra.Command{
		Use:   "credentials",
		Short: "Manage provider credentials stored in the database",
	}
	creds.AddCommand(&cobra.Command{
		Use:   "set PROVIDER [TOKEN]",
		Short: "Store a provider credential (" + strings.Join(credentials.Providers(), ", ") + ")",
		Long: `Store a provider credential in the integration_tokens table. When TOKEN is
omitted it is read from the provider's environment variable.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := strings.ToLower(strings.TrimSpace(args[0]))
			token := ""
			if len(args) > 1 {
				token = strings.TrimSpace(args[1])
			}
			if token == "" {
				token = strings.TrimSpace(os.Getenv(envForProvider(provider)))
			}
			if token == "" {
				return fmt.Errorf("%s token is required as an argument or via %s", provider, envForProvider(provider))
			}

			rt, err := openRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			if rt.Credentials == nil {
				return errors.New("DATABASE_URL is required to store credentials")
			}
			if err := rt.Credentials.Set(cmd.Context(), provider, token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s credential\n", provider)
			return nil
		},
	})
	return creds
}

func envForProvider(provider string) string {
	switch provider {
	case credentials.ProviderFal:
		return "FAL_API_KEY"
	case credentials.ProviderKlingAccess:
		return "KLING_ACCESS_KEY"
	case credentials.ProviderKlingSecret:
		return "KLING_SECRET_KEY"
	case credentials.ProviderTagging:
		return "TAGGING_API_TOKEN"
	default:
		return strings.ToUpper(provider) + "_TOKEN"
	}
}
