package main

import (
	"fmt"
	"time"

	"github.com/erp/setoff/internal/infrastructure/auth"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var flagUser string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token for a tenant, signed with the configured secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, err := tenant()
		if err != nil {
			return err
		}
		userID := uuid.New()
		if flagUser != "" {
			if userID, err = uuid.Parse(flagUser); err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		token, expires, err := auth.NewJWTService(cfg.JWT).GenerateAccessToken(tenantID, userID)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&flagUser, "user", "", "user id (random when empty)")
}
