package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/mediasession/credentials"
)

const (
	flagBootstrapURL = "bootstrap-url"
	flagAPIKey       = "api-key"
	flagEphemeral    = "ephemeral"
)

var errNoBootstrapURL = errors.New("--bootstrap-url (or MEDIASESSION_BOOTSTRAP_URL) is required")

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Fetch a provider credential from the bootstrap endpoint",
		Long: `Without --ephemeral, prints the API key served at ` + credentials.APIKeyPath + `.
With --ephemeral, exchanges the API key for a short-lived OpenAI Realtime
client secret at ` + credentials.EphemeralKeyPath + `.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := bindViper(cmd.Flags())
			base := v.GetString(flagBootstrapURL)
			if base == "" {
				return errNoBootstrapURL
			}
			client := credentials.NewBootstrapClient(base)
			ctx := cmd.Context()

			key := v.GetString(flagAPIKey)
			if !credentials.IsUsable(key) {
				fetched, err := client.FetchAPIKey(ctx)
				if err != nil {
					return err
				}
				key = fetched
			}
			if !v.GetBool(flagEphemeral) {
				fmt.Fprintln(cmd.OutOrStdout(), key)
				return nil
			}
			secret, err := client.FetchEphemeralKey(ctx, key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
	cmd.Flags().String(flagBootstrapURL, "", "Base URL of the credential bootstrap server")
	cmd.Flags().String(flagAPIKey, "", "API key to exchange; fetched from the bootstrap server when empty")
	cmd.Flags().Bool(flagEphemeral, false, "Exchange the key for an OpenAI ephemeral client secret")
	return cmd
}
