package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iurnickita/pixrecon/internal/errs"
	"github.com/iurnickita/pixrecon/internal/token"
)

func tokenCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <operator>",
		Short: "Mint an operator token signed with AUTH_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.Secret == "" {
				return errs.New("AUTH_SECRET is not set")
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TTL
			}

			tokenString, err := token.BuildJWTString(cfg.Auth.Secret, ttl, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tokenString)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default AUTH_TTL)")
	return cmd
}
