package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewServeCmd creates the long-running refresh daemon command.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the periodic bulletin refresh until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Scheduler.Start(ctx); err != nil {
				return err
			}
			application.Logger.Info("refresh scheduler running", "interval", "24h")

			<-ctx.Done()
			application.Logger.Info("shutting down")
			return application.Scheduler.Stop(cmd.Context())
		},
	}
}
