package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire and auto-complete reservations of ended slots once, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.svc.NewSweeper(cfg.Booking.AutoCompleteAfter).SweepOnce(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "expired=%d completed=%d skipped=%d\n", stats.Expired, stats.Completed, stats.Skipped)
			return err
		},
	}
}
