package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"BulletinTracker/internal/domain"
)

// NewAnalyzeCmd creates the trend analysis command.
func NewAnalyzeCmd() *cobra.Command {
	var (
		category string
		country  string
		chart    string
		window   int
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Summarize cutoff movement for one series",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := seriesKeyFromFlags(category, country, chart)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			application, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			summary, err := application.Analyzer.AnalyzeSeries(ctx, key, window)
			if err != nil {
				return err
			}

			printSummary(summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "category code, e.g. EB-2 or F1")
	cmd.Flags().StringVar(&country, "country", "", "chargeability area (default Worldwide)")
	cmd.Flags().StringVar(&chart, "chart", "final", "chart: final or filing")
	cmd.Flags().IntVar(&window, "window", 0, "trailing window in months (0 = full history)")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func printSummary(summary *domain.TrendSummary) {
	bold := color.New(color.Bold)
	_, _ = bold.Printf("\nSeries %s\n", summary.Key.String())

	if summary.Observations == 0 {
		fmt.Println("  no dated observations")
		return
	}

	fmt.Printf("  window:       %s .. %s (%d observations)\n",
		summary.StartDate.Format("2006-01"), summary.EndDate.Format("2006-01"),
		summary.Observations)
	fmt.Printf("  total move:   %.1f days\n", summary.TotalAdvancementDays)
	fmt.Printf("  mean monthly: %.1f days\n", summary.MeanMonthlyDays)
	fmt.Printf("  volatility:   %.1f days\n", summary.Volatility)

	switch summary.TrendDirection {
	case domain.TrendAdvancing:
		color.Green("  trend:        %s", summary.TrendDirection)
	case domain.TrendRetrogressing:
		color.Red("  trend:        %s", summary.TrendDirection)
	default:
		color.Yellow("  trend:        %s", summary.TrendDirection)
	}

	for m := 1; m <= 12; m++ {
		if factor := summary.SeasonalFactors[m]; factor != nil {
			fmt.Printf("  seasonal %02d:  %.2f\n", m, *factor)
		}
	}
}
