package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"BulletinTracker/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "bulletintracker",
		Short: "Visa bulletin collection, analysis, and forecasting",
		Long: `BulletinTracker ingests the State Department's monthly visa bulletins,
stores every cutoff date as a time series, and derives advancement trends
and forecasts from the stored history.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		commands.NewCollectCmd(),
		commands.NewFetchCmd(),
		commands.NewValidateCmd(),
		commands.NewAnalyzeCmd(),
		commands.NewStatusCmd(),
		commands.NewForecastCmd(),
		commands.NewServeCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(commands.ExitCode(err))
	}
}
