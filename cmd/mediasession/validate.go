package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/mediasession/config"
)

var errInvalidConfig = errors.New("invalid configuration")

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate SessionConfig manifests",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, file := range args {
				cfg, err := config.Load(file)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s: %v\n", file, err)
					continue
				}
				fmt.Fprintf(out, "%s: valid (%s, provider %s)\n", file, name(cfg), cfg.Spec.Session.Provider)
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d files", errInvalidConfig, failed, len(args))
			}
			return nil
		},
	}
}

func name(cfg *config.SessionConfig) string {
	if cfg.Metadata.Name == "" {
		return "unnamed"
	}
	return cfg.Metadata.Name
}
