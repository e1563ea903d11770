package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the configured user's profile and repositories into a snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		out := cmd.OutOrStdout()
		snap, err := svc.Fetch(cmd.Context(), func(index, total int, name string) {
			fmt.Fprintf(out, "[%d/%d] %s\n", index+1, total, name)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Fetched %d repositories for %s into %s\n",
			len(snap.Repositories), snap.Profile.Login, cfg.SnapshotLocation())
		return nil
	},
}
