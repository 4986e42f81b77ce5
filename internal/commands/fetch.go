package commands

import (
	"github.com/spf13/cobra"
)

// NewFetchCmd creates the single current-bulletin ingestion command.
func NewFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and store the current bulletin",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			report, runErr := application.Collector.FetchCurrent(ctx)
			renderReport(report)
			return reportOutcome(report, runErr)
		},
	}
}
