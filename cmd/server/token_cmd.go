package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/slot-booking/internal/config"
	"github.com/iliyamo/slot-booking/internal/middleware"
	"github.com/iliyamo/slot-booking/internal/utils"
)

func newTokenCommand() *cobra.Command {
	var (
		userID     uint64
		role       string
		merchantID uint64
		ttl        time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token signed with JWT_SECRET (development only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			role = strings.ToUpper(role)
			if role != middleware.RoleCustomer && role != middleware.RoleMerchant {
				return fmt.Errorf("role must be %s or %s", middleware.RoleCustomer, middleware.RoleMerchant)
			}
			tok, err := utils.NewAccessToken(cfg.JWTSecret, userID, role, merchantID, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return err
		},
	}
	f := cmd.Flags()
	f.Uint64Var(&userID, "user", 0, "subject user id")
	f.StringVar(&role, "role", middleware.RoleCustomer, "CUSTOMER or MERCHANT")
	f.Uint64Var(&merchantID, "merchant", 0, "merchant_id claim for merchant tokens")
	f.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
