package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"

	"github.com/ignite/listsync/internal/config"
	"github.com/ignite/listsync/internal/report"
)

var (
	historyList string
	historyDays int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs of a list from the DynamoDB run history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := config.LoadFromEnv(configPath)
		if err != nil {
			return err
		}
		if cfg.Report.DynamoDBTable == "" {
			return fmt.Errorf("report.dynamodb_table is not configured")
		}
		awsCfg, err := report.LoadAWSConfig(ctx, cfg.Report.AWSRegion, cfg.Report.AWSProfile)
		if err != nil {
			return err
		}
		sink := report.NewDynamoSink(dynamodb.NewFromConfig(awsCfg), cfg.Report.DynamoDBTable)

		to := time.Now()
		runs, err := sink.History(ctx, historyList, to.AddDate(0, 0, -historyDays), to)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		defer w.Flush()
		fmt.Fprintln(w, "STARTED\tRUN\tDIRECTION\tSTEP\tSTATUS\tMUTATIONS\tQUARANTINED\tDURATION")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
				r.StartedAt.Format(time.RFC3339), r.RunID, r.Direction, r.Step, r.Status,
				r.Mutations, r.Quarantined, time.Duration(r.DurationMS)*time.Millisecond)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyList, "list", "", "list id")
	historyCmd.Flags().IntVar(&historyDays, "days", 7, "how many days back to show")
	historyCmd.MarkFlagRequired("list")
	rootCmd.AddCommand(historyCmd)
}
