package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewValidateCmd creates the stored-data consistency check command.
func NewValidateCmd() *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check stored entries against domain invariants",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			report, err := application.Collector.Validate(ctx, fix)
			if err != nil {
				return err
			}

			fmt.Printf("bulletins: %d\n", report.Bulletins)
			fmt.Printf("entries:   %d\n", report.Entries)
			for _, violation := range report.Violations {
				color.Yellow("  %s", violation)
			}

			switch {
			case len(report.Violations) == 0:
				color.Green("Result: OK")
			case fix:
				color.Yellow("Result: FIXED %d of %d violations", report.Fixed, len(report.Violations))
			default:
				color.Red("Result: %d violations (re-run with --fix to delete)", len(report.Violations))
				return withCode(ExitPartial,
					fmt.Errorf("%d invariant violations", len(report.Violations)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "delete entries that violate invariants")

	return cmd
}
