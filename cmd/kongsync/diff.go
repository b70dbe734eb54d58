package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qartal/kongsync/internal/config"
	"github.com/qartal/kongsync/internal/entity"
	"github.com/qartal/kongsync/internal/manager"
	"github.com/qartal/kongsync/internal/unify"
)

var (
	flagDiffFields  []string
	flagDiffExclude []string
	flagDiffJSON    bool
	flagDiffAll     bool
)

var diffCmd = &cobra.Command{
	Use:   "diff <entity-type>",
	Short: "Compare one entity type across both planes",
	Long: `Compare the gateway's and the control plane's view of one entity
type and report which entities exist where and which have drifted.

By default only differences are shown; --all includes fully synced
entities as well.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		entityType := args[0]
		list, err := unifiedView(cmd.Context(), cfg, buildRegistry(cfg), entityType)
		if err != nil {
			return err
		}

		if flagDiffJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		}

		printDiff(entityType, list)
		return nil
	},
}

func init() {
	diffCmd.Flags().StringSliceVar(&flagDiffFields, "fields", nil, "restrict comparison to these field paths")
	diffCmd.Flags().StringSliceVar(&flagDiffExclude, "exclude", nil, "additional fields to exclude from comparison")
	diffCmd.Flags().BoolVar(&flagDiffJSON, "json", false, "print the unified view as JSON")
	diffCmd.Flags().BoolVar(&flagDiffAll, "all", false, "include fully synced entities")
	rootCmd.AddCommand(diffCmd)
}

// unifiedView lists one entity type from both planes and unifies it.
func unifiedView(ctx context.Context, cfg *config.Config, registry *manager.Registry, entityType string) (*unify.UnifiedEntityList, error) {
	gateway, err := listPlane(ctx, registry, manager.PlaneGateway, entityType)
	if err != nil {
		return nil, fmt.Errorf("list gateway %ss: %w", entityType, err)
	}
	controlPlane, err := listPlane(ctx, registry, manager.PlaneControlPlane, entityType)
	if err != nil {
		return nil, fmt.Errorf("list control plane %ss: %w", entityType, err)
	}

	opts := unify.Options{
		CompareFields: flagDiffFields,
		ExcludeFields: driftExclusions(cfg),
	}
	return unify.MergeEntities(gateway, controlPlane, cfg.Sync.KeyField, opts), nil
}

// listPlane pulls one plane's collection through its registered manager.
func listPlane(ctx context.Context, registry *manager.Registry, plane manager.Plane, entityType string) ([]unify.Entity, error) {
	mgr, err := registry.Get(plane, entityType)
	if err != nil {
		return nil, err
	}
	lister, ok := mgr.(manager.Lister)
	if !ok {
		return nil, fmt.Errorf("manager for %s %s cannot list", plane, entityType)
	}
	return lister.List(ctx)
}

// driftExclusions merges the configured exclusions with any given on the
// command line. With neither set, nil keeps the built-in metadata defaults;
// command-line additions extend the defaults rather than replace them.
func driftExclusions(cfg *config.Config) []string {
	if len(cfg.Sync.ExcludeFields) == 0 && len(flagDiffExclude) == 0 {
		return nil
	}
	base := cfg.Sync.ExcludeFields
	if len(base) == 0 {
		base = entity.MetadataFields
	}
	out := append([]string{}, base...)
	return append(out, flagDiffExclude...)
}

// printDiff renders the unified view for humans.
func printDiff(entityType string, list *unify.UnifiedEntityList) {
	stats := list.Stats()
	fmt.Printf("%s: %d total, %d gateway-only, %d control-plane-only, %d in both (%d drifted)\n\n",
		entityType, stats.Total, stats.GatewayOnly, stats.ControlOnly, stats.InBoth, stats.WithDrift)

	for _, u := range list.Entities {
		switch {
		case u.Source == unify.SourceGateway:
			fmt.Printf("  + %-30s only in gateway\n", u.Key)
		case u.Source == unify.SourceControlPlane:
			fmt.Printf("  - %-30s only in control plane\n", u.Key)
		case u.HasDrift:
			fmt.Printf("  ~ %-30s drift: %s\n", u.Key, strings.Join(u.DriftFields, ", "))
		case flagDiffAll:
			fmt.Printf("    %-30s in sync\n", u.Key)
		}
	}
}
