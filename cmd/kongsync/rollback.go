package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qartal/kongsync/internal/errors"
	"github.com/qartal/kongsync/internal/rollback"
)

var (
	flagRollbackTypes   []string
	flagRollbackForce   bool
	flagRollbackYes     bool
	flagRollbackPreview bool
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <sync-id>",
	Short: "Reverse a completed sync run",
	Long: `Reverse a completed sync run using its audit records: entities the
run created are deleted, entities it updated are restored to their
recorded before-state. Actions execute in reverse chronological order
and stop at the first failure unless --force is given.

Dry runs cannot be rolled back because they changed nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		syncID := args[0]
		store := openStore(cfg)
		engine := rollback.NewEngine(store, buildRegistry(cfg))

		preview, err := engine.Preview(syncID, flagRollbackTypes)
		if err != nil {
			return err
		}

		printPreview(preview)
		if flagRollbackPreview {
			return nil
		}
		if !preview.CanRollback {
			return errors.Wrapf(errors.ErrNotReversible, "sync %s produced no reversible operations", syncID)
		}

		ok, err := confirm(fmt.Sprintf("Execute %d rollback actions?", len(preview.Actions)), flagRollbackYes)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}

		result, err := engine.Rollback(cmd.Context(), syncID, flagRollbackTypes, flagRollbackForce)
		if err != nil {
			return err
		}

		fmt.Printf("Rollback of %s: %d rolled back, %d failed, %d skipped\n",
			result.SyncID, result.RolledBack, result.Failed, result.Skipped)
		for _, msg := range result.Errors {
			fmt.Printf("  error: %s\n", msg)
		}
		if !result.Success {
			return fmt.Errorf("rollback did not complete cleanly")
		}
		return nil
	},
}

func init() {
	rollbackCmd.Flags().StringSliceVar(&flagRollbackTypes, "entity-type", nil, "restrict rollback to these entity types")
	rollbackCmd.Flags().BoolVar(&flagRollbackForce, "force", false, "continue past failed actions")
	rollbackCmd.Flags().BoolVarP(&flagRollbackYes, "yes", "y", false, "skip the confirmation prompt")
	rollbackCmd.Flags().BoolVar(&flagRollbackPreview, "preview", false, "show the derived actions without executing")
	rootCmd.AddCommand(rollbackCmd)
}

func printPreview(p *rollback.Preview) {
	if len(p.Actions) > 0 {
		fmt.Printf("Rollback plan for %s (%d actions, executed last-to-first):\n", p.SyncID, len(p.Actions))
		for i := len(p.Actions) - 1; i >= 0; i-- {
			a := p.Actions[i]
			fmt.Printf("  %-7s %s/%s in %s (was %s)\n",
				a.Kind, a.EntityType, a.EntityName, a.Target, a.OriginalAction)
		}
	}
	for _, w := range p.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}
