package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"BulletinTracker/internal/domain"
	"BulletinTracker/internal/usecase"
)

// NewCollectCmd creates the historical backfill command.
func NewCollectCmd() *cobra.Command {
	var (
		startYear int
		endYear   int
		workers   int
		force     bool
		verify    bool
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Backfill bulletins for a fiscal year range",
		RunE: func(cmd *cobra.Command, args []string) error {
			if startYear == 0 || endYear == 0 {
				return withCode(ExitConfig,
					fmt.Errorf("--start-year and --end-year are required: %w", domain.ErrConfig))
			}
			if workers > 0 {
				os.Setenv("HTTP_MAX_WORKERS", strconv.Itoa(workers))
			}

			ctx := cmd.Context()
			application, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			report, runErr := application.Collector.Collect(ctx, startYear, endYear,
				usecase.CollectOptions{Force: force, Verify: verify})
			renderReport(report)
			return reportOutcome(report, runErr)
		},
	}

	cmd.Flags().IntVar(&startYear, "start-year", 0, "first fiscal year to backfill")
	cmd.Flags().IntVar(&endYear, "end-year", 0, "last fiscal year to backfill")
	cmd.Flags().IntVar(&workers, "workers", 0, "override fetch worker count")
	cmd.Flags().BoolVar(&force, "force", false, "re-fetch bulletins that are already stored")
	cmd.Flags().BoolVar(&verify, "verify", false, "probe candidate URLs before downloading")

	return cmd
}
