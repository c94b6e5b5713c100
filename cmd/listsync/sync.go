package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/report"
	"github.com/ignite/listsync/internal/service/listsync"
)

var (
	syncDirection string
	syncLists     []string
	syncFlags     serviceFlags
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full sync for the configured lists",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSteps(cmd, listsync.StepRun)
	},
}

var stepCmd = &cobra.Command{
	Use:   "step <name>",
	Short: "Run one named sync step",
	Long: `Run one named step against the staging tables left by earlier steps.
Steps in order: collect-list, collect-crm, match, reduce, reconcile, discard.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		step, err := listsync.ParseStep(args[0])
		if err != nil {
			return err
		}
		return runSteps(cmd, step)
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, stepCmd} {
		c.Flags().StringVar(&syncDirection, "direction", string(domain.DirectionPush), "push (CRM to list) or pull (list to CRM)")
		c.Flags().StringSliceVar(&syncLists, "list", nil, "list ids to sync (default: every configured list)")
		c.Flags().BoolVar(&syncFlags.dryRun, "dry-run", false, "log push operations instead of sending them")
		c.Flags().BoolVar(&syncFlags.keepStaging, "keep-staging", false, "keep staging tables after a full run")
		c.Flags().BoolVar(&syncFlags.memoryStaging, "memory-staging", false, "stage rows in process memory instead of Postgres tables")
		rootCmd.AddCommand(c)
	}
}

func runSteps(cmd *cobra.Command, step listsync.Step) error {
	ctx := cmd.Context()
	dir, err := domain.ParseDirection(syncDirection)
	if err != nil {
		return err
	}
	if syncFlags.memoryStaging && step != listsync.StepRun {
		return fmt.Errorf("--memory-staging only works with a full run")
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	if err := a.connect(ctx); err != nil {
		return err
	}
	defer a.close()

	listIDs := syncLists
	if len(listIDs) == 0 {
		listIDs = a.cfg.ListIDs()
	}
	if len(listIDs) == 0 {
		return fmt.Errorf("no lists configured")
	}

	sinks, err := report.NewSinks(ctx, a.cfg.Report)
	if err != nil {
		return err
	}

	runID := report.NewRunID()
	log.Printf("Starting %s %s for %d list(s), run %s", dir, step, len(listIDs), runID)

	results := a.service(syncFlags).SyncAll(ctx, listIDs, a.cfg.Mappings(), dir, step)
	reports := report.PublishAll(ctx, sinks, runID, dir, step, results)

	failed := 0
	for _, r := range reports {
		if r.Status == report.StatusFailed {
			failed++
		}
	}
	log.Printf("Finished run %s: %d list(s), %d failed", runID, len(reports), failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d list(s) failed", failed, len(reports))
	}
	return nil
}
