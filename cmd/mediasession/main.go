// Command mediasession runs a realtime voice session against Gemini Live or
// OpenAI Realtime from the terminal.
package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/AltairaLabs/mediasession/logger"
	"github.com/AltairaLabs/mediasession/version"
)

// envPrefix namespaces environment overrides: --api-key is MEDIASESSION_API_KEY.
const envPrefix = "MEDIASESSION"

// newRootCmd assembles the command tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mediasession",
		Short:         "Realtime voice and video sessions with Gemini Live and OpenAI Realtime",
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: false,
		Long: `mediasession streams microphone audio and camera frames to a realtime
model provider and plays the spoken reply.

Flags can also be set through MEDIASESSION_* environment variables,
for example MEDIASESSION_API_KEY or MEDIASESSION_PROVIDER.`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if verbose, err := cmd.Flags().GetBool("verbose"); err == nil && verbose {
				logger.SetVerbose(true)
			}
		},
	}
	root.SetVersionTemplate(version.GetVersionInfo() + "\n")
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	root.AddCommand(newRunCmd(), newTokenCmd(), newValidateCmd(), newVersionCmd())
	return root
}

// bindViper returns a viper instance over the command's flags and the
// MEDIASESSION_* environment.
func bindViper(flags *pflag.FlagSet) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)
	return v
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Error already printed by cobra
		os.Exit(1)
	}
}
