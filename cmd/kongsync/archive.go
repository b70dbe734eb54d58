package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/qartal/kongsync/internal/audit/archive"
)

var flagArchiveOlder time.Duration

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Move old sync runs into Parquet archives",
	Long: `Move closed sync runs older than the cutoff out of the live audit
log into a compressed Parquet file. Archived runs stay queryable via
'audit list --archive' and 'audit history --archive'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		olderThan := flagArchiveOlder
		if olderThan == 0 {
			olderThan = cfg.Audit.ArchiveAfter
		}

		archiver := archive.New(openStore(cfg), archive.Options{
			Dir:         archiveDir(cfg),
			Compression: cfg.Audit.Compression,
		})

		result, err := archiver.Archive(time.Now().Add(-olderThan))
		if err != nil {
			return err
		}

		if result.File == "" {
			fmt.Println("No runs old enough to archive.")
			return nil
		}
		fmt.Printf("Archived %d runs (%d entries) to %s; %d entries remain live.\n",
			result.RunsArchived, result.EntriesArchived, result.File, result.EntriesKept)
		return nil
	},
}

func init() {
	archiveCmd.Flags().DurationVar(&flagArchiveOlder, "older-than", 0, "archive runs older than this (default from config)")
	rootCmd.AddCommand(archiveCmd)
}
