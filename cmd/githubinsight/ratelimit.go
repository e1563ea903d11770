package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var rateLimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Show the remaining GitHub API quota for the configured token",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		rl, err := svc.RateLimit(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Limit: %d\nRemaining: %d\nResets: %s (in %s)\n",
			rl.Limit, rl.Remaining, rl.Reset.Format(time.RFC3339), time.Until(rl.Reset).Round(time.Second))
		return nil
	},
}
