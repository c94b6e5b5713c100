package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Print lists, interest categories and interests",
	Long:  `Print the ids needed to write the lists section of the config.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := loadApp()
		if err != nil {
			return err
		}
		if err := a.client.Ping(ctx); err != nil {
			return err
		}

		lists, err := a.client.GetLists(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		defer w.Flush()
		for _, l := range lists {
			fmt.Fprintf(w, "list\t%s\t%s\t%d members\n", l.ID, l.Name, l.Stats.MemberCount)
			cats, err := a.client.GetInterestCategories(ctx, l.ID)
			if err != nil {
				return err
			}
			for _, c := range cats {
				fmt.Fprintf(w, "  category\t%s\t%s\t%s\n", c.ID, c.Title, c.Type)
				interests, err := a.client.GetInterests(ctx, l.ID, c.ID)
				if err != nil {
					return err
				}
				for _, i := range interests {
					fmt.Fprintf(w, "    interest\t%s\t%s\t\n", i.ID, i.Name)
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}
