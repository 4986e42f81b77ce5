package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewStatusCmd creates the storage summary command.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what the store currently holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Repository.Ping(ctx); err != nil {
				return withCode(ExitStorage, err)
			}

			stats, err := application.Repository.GetStats(ctx)
			if err != nil {
				return withCode(ExitStorage, err)
			}

			bold := color.New(color.Bold)
			_, _ = bold.Printf("\nStore %s (%s)\n",
				application.Config.Storage.DSN, application.Config.Storage.Backend)
			fmt.Printf("  bulletins:   %d\n", stats.BulletinCount)
			fmt.Printf("  entries:     %d\n", stats.EntryCount)
			fmt.Printf("  earliest:    %s\n", formatDate(stats.Earliest))
			fmt.Printf("  latest:      %s\n", formatDate(stats.Latest))
			fmt.Printf("  last ingest: %s\n", formatDate(stats.LastIngestAt))
			return nil
		},
	}
}
