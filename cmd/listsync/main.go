// Command listsync reconciles CRM group membership with mailing lists.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "listsync",
	Short: "Reconcile CRM group membership with mailing lists",
	Long: `listsync compares CRM groups with the members of mailing lists and
pushes CRM state to the lists or pulls list state into the CRM.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "listsync.yaml", "path to the YAML config file")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Printf("listsync: %v", err)
		os.Exit(1)
	}
}
