package main

import (
	"fmt"
	"log"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/repository/postgres"
	"github.com/ignite/listsync/internal/service/listsync"
)

var (
	groupID    int64
	groupActor string
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Change CRM group membership and update the mapped lists right away",
}

var groupAddCmd = &cobra.Command{
	Use:   "add <contact id>...",
	Short: "Add contacts to a CRM group",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeGroup(cmd, args, true)
	},
}

var groupRemoveCmd = &cobra.Command{
	Use:   "remove <contact id>...",
	Short: "Remove contacts from a CRM group",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeGroup(cmd, args, false)
	},
}

func init() {
	groupCmd.PersistentFlags().Int64Var(&groupID, "group", 0, "CRM group id")
	groupCmd.PersistentFlags().StringVar(&groupActor, "actor", "", "who is making the change")
	groupCmd.MarkPersistentFlagRequired("group")
	groupCmd.AddCommand(groupAddCmd, groupRemoveCmd)
	rootCmd.AddCommand(groupCmd)
}

// changeGroup applies a user change through the notifying CRM so mapped
// list members are updated one by one.
func changeGroup(cmd *cobra.Command, args []string, add bool) error {
	ctx := cmd.Context()
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid contact id %q", arg)
		}
		ids = append(ids, id)
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	lists, err := a.cfg.ListConfigs()
	if err != nil {
		return err
	}
	if err := a.connect(ctx); err != nil {
		return err
	}
	defer a.close()

	base := postgres.NewCRMRepo(a.db)
	crm := listsync.NewNotifyingCRM(base, listsync.NewRemoteNotifier(a.client, base, lists))
	change := domain.GroupChange{Origin: domain.OriginUser, Actor: groupActor, Reason: "listsync group command"}
	if add {
		err = crm.AddToGroup(ctx, groupID, ids, change)
	} else {
		err = crm.RemoveFromGroup(ctx, groupID, ids, change)
	}
	if err != nil {
		return err
	}
	log.Printf("Group %d: %d contact(s) %s", groupID, len(ids), map[bool]string{true: "added", false: "removed"}[add])
	return nil
}
