package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"BulletinTracker/internal/forecast"
)

// NewForecastCmd creates the cutoff prediction command.
func NewForecastCmd() *cobra.Command {
	var (
		category string
		country  string
		chart    string
		model    string
		target   string
	)

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Predict the next cutoff for one series",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := seriesKeyFromFlags(category, country, chart)
			if err != nil {
				return err
			}

			targetYear, targetMonth, err := parseTargetMonth(target, time.Now())
			if err != nil {
				return withCode(ExitConfig, err)
			}

			ctx := cmd.Context()
			application, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			result, err := application.Forecaster.PredictAndStore(ctx, key, targetYear, targetMonth, model)
			if err != nil {
				return err
			}

			bold := color.New(color.Bold)
			_, _ = bold.Printf("\nForecast %s for %d-%02d\n", key.String(), targetYear, targetMonth)
			fmt.Printf("  predicted:  %s\n", result.PredictedDate.Format("2006-01-02"))
			fmt.Printf("  confidence: %.2f\n", result.Confidence)
			fmt.Printf("  model:      %s\n", result.ModelID)

			if result.ModelID == forecast.NullModelID {
				color.Yellow("Result: NOT ENOUGH HISTORY (holding last observed cutoff)")
			} else {
				color.Green("Result: OK")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "category code, e.g. EB-2 or F1")
	cmd.Flags().StringVar(&country, "country", "", "chargeability area (default Worldwide)")
	cmd.Flags().StringVar(&chart, "chart", "final", "chart: final or filing")
	cmd.Flags().StringVar(&model, "model", "tree", "model variant: tree or logistic")
	cmd.Flags().StringVar(&target, "target", "", "target month as YYYY-MM (default next month)")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}
