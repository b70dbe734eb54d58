// kongsync reconciles entity configuration between a gateway's admin API
// and its control plane, with a local audit trail and rollback.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/qartal/kongsync/internal/audit"
	"github.com/qartal/kongsync/internal/config"
	"github.com/qartal/kongsync/internal/errors"
	"github.com/qartal/kongsync/internal/kong"
	"github.com/qartal/kongsync/internal/logging"
	"github.com/qartal/kongsync/internal/manager"
)

var (
	flagConfig   string
	flagAudit    string
	flagVerbose  bool
	flagJSONLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "kongsync",
	Short: "Sync gateway entities against a control plane",
	Long: `kongsync compares, synchronizes, and rolls back Kong entity
configuration between a gateway admin API and a control plane.

Every change is recorded in a local append-only audit log, which also
drives rollback: a completed sync run can be reversed entity by entity
using only the recorded before and after states.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if flagVerbose {
			level = slog.LevelDebug
		}
		logging.Init(level, flagJSONLogs)
	},
}

// Exit codes: 1 for failures, 2 for correctable input errors, 3 when a
// rollback is blocked outright (unknown run, dry run, nothing reversible).
func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		switch {
		case errors.IsInput(err):
			os.Exit(2)
		case errors.IsBlocked(err):
			os.Exit(3)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file (default ./kongsync.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagAudit, "audit-file", "", "audit log file (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLogs, "json-logs", false, "emit logs as JSON")
}

// loadConfig loads the configured or default config file; with neither
// present the built-in defaults apply.
func loadConfig() (*config.Config, error) {
	path := flagConfig
	if path == "" {
		if _, err := os.Stat("kongsync.yaml"); err != nil {
			return config.DefaultConfig(), nil
		}
		path = "kongsync.yaml"
	}
	return config.Load(path)
}

// openStore opens the audit store from config and flags.
func openStore(cfg *config.Config) *audit.Store {
	path := cfg.Audit.Path
	if flagAudit != "" {
		path = flagAudit
	}
	return audit.NewStore(path)
}

// archiveDir resolves the Parquet archive directory, defaulting to an
// "archive" directory beside the live audit file.
func archiveDir(cfg *config.Config) string {
	if cfg.Audit.ArchiveDir != "" {
		return cfg.Audit.ArchiveDir
	}
	return filepath.Join(filepath.Dir(openStore(cfg).Path()), "archive")
}

// buildRegistry wires both planes' API clients into a manager registry.
func buildRegistry(cfg *config.Config) *manager.Registry {
	registry := manager.NewRegistry()

	gateway := kong.NewClient(kong.Options{
		BaseURL: cfg.Gateway.URL,
		Token:   cfg.Gateway.Token,
		Timeout: cfg.Gateway.Timeout,
	})
	gateway.RegisterAll(registry, manager.PlaneGateway, cfg.Sync.EntityTypes)

	controlPlane := kong.NewClient(kong.Options{
		BaseURL: cfg.ControlPlane.URL,
		Token:   cfg.ControlPlane.Token,
		Timeout: cfg.ControlPlane.Timeout,
	})
	controlPlane.RegisterAll(registry, manager.PlaneControlPlane, cfg.Sync.EntityTypes)

	return registry
}
