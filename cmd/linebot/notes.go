package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Kame-terry/line-bot/internal/archive"
	"github.com/Kame-terry/line-bot/internal/config"
	"github.com/Kame-terry/line-bot/internal/domain"
)

func notesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Browse notes in the local SQLite archive",
	}

	var limit int
	recent := &cobra.Command{
		Use:   "recent",
		Short: "List the most recently archived notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Archive.Backend != config.ArchiveBackendSQLite {
				return fmt.Errorf("archive backend is %q; notes are only browsable with the sqlite backend", cfg.Archive.Backend)
			}

			store, err := archive.OpenSQLite(cfg.Archive.SQLitePath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			notes, err := store.Recent(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(notes) == 0 {
				fmt.Println("no notes archived yet")
				return nil
			}
			for _, n := range notes {
				fmt.Printf("#%-5d %s  %-16s %s\n", n.ID, n.Timestamp(), n.Type, n.Title)
				if n.Summary != "" {
					fmt.Printf("       %s\n", domain.Truncate(n.Summary, 80))
				}
			}
			return nil
		},
	}
	recent.Flags().IntVarP(&limit, "limit", "n", 10, "number of notes to show")
	cmd.AddCommand(recent)

	return cmd
}
