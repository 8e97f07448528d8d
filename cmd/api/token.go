package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"todo-list-backend/internal/auth"
	"todo-list-backend/internal/identity"
)

// tokenCmd mints a bearer token for local testing.
func tokenCmd() *cobra.Command {
	var (
		configPath string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token [principal]",
		Short: "Mint a bearer token for a principal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.TokenTTL()
			}

			tok, err := auth.GenerateToken([]byte(cfg.JWTSecret), identity.Principal(args[0]), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (.yaml, .yml or .toml)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default from TOKEN_TTL_HOURS)")

	return cmd
}
