package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/qartal/kongsync/internal/audit"
	"github.com/qartal/kongsync/internal/audit/query"
	"github.com/qartal/kongsync/internal/errors"
)

var (
	flagAuditLimit   int
	flagAuditSince   string
	flagAuditOp      string
	flagAuditJSON    bool
	flagAuditArchive bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the sync audit log",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded sync runs, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		op, err := audit.ParseOperation(flagAuditOp)
		if err != nil {
			return err
		}

		var since *time.Time
		if flagAuditSince != "" {
			t, err := audit.ParseSince(flagAuditSince)
			if err != nil {
				return err
			}
			since = &t
		}

		summaries, err := openStore(cfg).ListSyncs(flagAuditLimit, since, op)
		if err != nil {
			return err
		}

		if flagAuditArchive {
			svc, err := query.New(archiveDir(cfg), nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			archived, err := svc.RunSummaries(cmd.Context(), 0)
			if err != nil {
				return err
			}
			summaries = mergeSummaries(summaries, archived, since, op, flagAuditLimit)
		}

		if flagAuditJSON {
			return printJSON(summaries)
		}

		if len(summaries) == 0 {
			fmt.Println("No sync runs recorded.")
			return nil
		}
		for _, s := range summaries {
			mode := ""
			if s.DryRun {
				mode = " (dry run)"
			}
			fmt.Printf("%s  %s  %-4s%s  %d created, %d updated, %d skipped, %d errors\n",
				s.StartedAt.Local().Format("2006-01-02 15:04:05"),
				s.SyncID, s.Operation, mode,
				s.Created, s.Updated, s.Skipped, s.Errors)
		}
		return nil
	},
}

var auditShowCmd = &cobra.Command{
	Use:   "show <sync-id>",
	Short: "Show every record of one sync run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		entries, err := openStore(cfg).GetSyncDetails(args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 && flagAuditArchive {
			svc, err := query.New(archiveDir(cfg), nil)
			if err != nil {
				return err
			}
			defer svc.Close()
			entries, err = svc.RunEntries(cmd.Context(), args[0])
			if err != nil {
				return err
			}
		}
		if len(entries) == 0 {
			return errors.Wrapf(errors.ErrRunNotFound, "sync %s", args[0])
		}

		if flagAuditJSON {
			return printJSON(entries)
		}
		for _, e := range entries {
			line := fmt.Sprintf("%s  %-6s %-8s %s/%s  %s",
				e.Timestamp.Local().Format("15:04:05.000"),
				e.Action, e.Status, e.EntityType, e.EntityName, e.Target)
			if e.Error != "" {
				line += "  error: " + e.Error
			}
			fmt.Println(line)
		}
		return nil
	},
}

var auditHistoryCmd = &cobra.Command{
	Use:   "history <entity-type> <entity-name>",
	Short: "Show one entity's change history across runs",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var entries []audit.Entry
		if flagAuditArchive {
			svc, err := query.New(archiveDir(cfg), openStore(cfg))
			if err != nil {
				return err
			}
			defer svc.Close()
			entries, err = svc.EntityHistory(cmd.Context(), args[0], args[1], flagAuditLimit)
			if err != nil {
				return err
			}
		} else {
			entries, err = openStore(cfg).GetEntityHistory(args[0], args[1], flagAuditLimit)
			if err != nil {
				return err
			}
		}

		if flagAuditJSON {
			return printJSON(entries)
		}
		if len(entries) == 0 {
			fmt.Printf("No history for %s %q.\n", args[0], args[1])
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %s  %-6s %-8s %s\n",
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				e.SyncID, e.Action, e.Status, e.Operation)
		}
		return nil
	},
}

var auditStatsCmd = &cobra.Command{
	Use:   "stats <sync-id>",
	Short: "Show timing statistics for one sync run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		entries, err := openStore(cfg).GetSyncDetails(args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return errors.Wrapf(errors.ErrRunNotFound, "sync %s", args[0])
		}

		stats := audit.ComputeRunStats(entries)
		if flagAuditJSON {
			return printJSON(stats)
		}
		fmt.Printf("Run %s: %d operations in %v\n", stats.SyncID, stats.Operations, stats.Duration)
		fmt.Printf("  gap p50: %v\n", stats.GapP50)
		fmt.Printf("  gap p90: %v\n", stats.GapP90)
		fmt.Printf("  gap p99: %v\n", stats.GapP99)
		fmt.Printf("  gap max: %v\n", stats.GapMax)
		return nil
	},
}

func init() {
	auditCmd.PersistentFlags().BoolVar(&flagAuditJSON, "json", false, "print results as JSON")
	auditCmd.PersistentFlags().BoolVar(&flagAuditArchive, "archive", false, "include archived runs")
	auditListCmd.Flags().IntVar(&flagAuditLimit, "limit", 20, "maximum runs to list (0 for all)")
	auditListCmd.Flags().StringVar(&flagAuditSince, "since", "", "only runs since (7d, 24h, 30m, or a timestamp)")
	auditListCmd.Flags().StringVar(&flagAuditOp, "operation", "", "only push or pull runs")
	auditHistoryCmd.Flags().IntVar(&flagAuditLimit, "limit", 20, "maximum entries to show (0 for all)")

	auditCmd.AddCommand(auditListCmd, auditShowCmd, auditHistoryCmd, auditStatsCmd)
	rootCmd.AddCommand(auditCmd)
}

// mergeSummaries combines live and archived run summaries, re-applying
// the list filters, newest first.
func mergeSummaries(live, archived []audit.Summary, since *time.Time, op audit.Operation, limit int) []audit.Summary {
	seen := make(map[string]bool, len(live))
	out := append([]audit.Summary{}, live...)
	for _, s := range live {
		seen[s.SyncID] = true
	}
	for _, s := range archived {
		if seen[s.SyncID] {
			continue
		}
		if since != nil && s.StartedAt.Before(*since) {
			continue
		}
		if op != "" && s.Operation != op {
			continue
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
