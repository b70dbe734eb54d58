package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/qartal/kongsync/internal/audit"
	"github.com/qartal/kongsync/internal/syncer"
)

var (
	flagSyncDryRun bool
	flagSyncYes    bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize entities between the planes",
}

var pushCmd = &cobra.Command{
	Use:   "push <entity-type>",
	Short: "Push gateway entities to the control plane",
	Long: `Make the gateway the source of truth for one entity type:
entities only the gateway has are created in the control plane, and
drifted entities are overwritten with the gateway's values. Nothing is
ever deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd, args[0], audit.OperationPush)
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull <entity-type>",
	Short: "Pull control plane entities into the gateway",
	Long: `Make the control plane the source of truth for one entity type:
entities only the control plane has are created in the gateway, and
drifted entities are overwritten with the control plane's values.
Nothing is ever deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd, args[0], audit.OperationPull)
	},
}

func init() {
	for _, c := range []*cobra.Command{pushCmd, pullCmd} {
		c.Flags().BoolVar(&flagSyncDryRun, "dry-run", false, "record what would happen without changing anything")
		c.Flags().BoolVarP(&flagSyncYes, "yes", "y", false, "skip the confirmation prompt")
		c.Flags().StringSliceVar(&flagDiffFields, "fields", nil, "restrict drift comparison to these field paths")
		c.Flags().StringSliceVar(&flagDiffExclude, "exclude", nil, "additional fields to exclude from comparison")
		syncCmd.AddCommand(c)
	}
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, entityType string, op audit.Operation) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry := buildRegistry(cfg)
	list, err := unifiedView(cmd.Context(), cfg, registry, entityType)
	if err != nil {
		return err
	}

	stats := list.Stats()
	if !flagSyncDryRun {
		prompt := fmt.Sprintf("%s %d %ss (%d new, %d drifted)?",
			op, stats.Total, entityType, stats.GatewayOnly+stats.ControlOnly, stats.WithDrift)
		ok, err := confirm(prompt, flagSyncYes)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	store := openStore(cfg)
	result, err := syncer.New(store, registry).Run(cmd.Context(), list, syncer.Options{
		Operation:  op,
		DryRun:     flagSyncDryRun,
		EntityType: entityType,
	})
	if err != nil {
		return err
	}

	verb := "synced"
	if flagSyncDryRun {
		verb = "previewed"
	}
	fmt.Printf("Run %s %s in %v: %d created, %d updated, %d skipped, %d failed\n",
		result.SyncID, verb, result.Duration.Round(time.Millisecond),
		result.Created, result.Updated, result.Skipped, result.Failed)

	for _, msg := range result.Errors {
		fmt.Printf("  error: %s\n", msg)
	}
	if !result.Success() {
		return fmt.Errorf("%d entity operations failed", result.Failed)
	}
	return nil
}
