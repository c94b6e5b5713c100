package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ignite/listsync/internal/repository/postgres"
)

var quarantineList string

var quarantineCmd = &cobra.Command{
	Use:   "quarantine",
	Short: "List subscribers the last match could not resolve",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := loadApp()
		if err != nil {
			return err
		}
		lc, err := a.cfg.ListConfig(quarantineList)
		if err != nil {
			return err
		}
		if err := a.connect(ctx); err != nil {
			return err
		}
		defer a.close()

		entries, err := postgres.NewQuarantineRepo(a.db).List(ctx, lc.MembershipGroupID())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		defer w.Flush()
		fmt.Fprintln(w, "EMAIL\tNAME\tREASON\tRECORDED")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Email, e.Name, e.Reason, e.CreatedAt.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	quarantineCmd.Flags().StringVar(&quarantineList, "list", "", "list id")
	quarantineCmd.MarkFlagRequired("list")
	rootCmd.AddCommand(quarantineCmd)
}
