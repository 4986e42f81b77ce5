// Package commands implements the CLI subcommands for the bulletintracker
// binary.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"BulletinTracker/internal/app"
	"BulletinTracker/internal/config"
	"BulletinTracker/internal/domain"
	"BulletinTracker/internal/logging"
)

// Process exit codes. The collector decides run outcomes; commands only map
// them here.
const (
	ExitOK      = 0
	ExitPartial = 2
	ExitConfig  = 3
	ExitStorage = 4
	ExitNetwork = 5
)

// codedError carries the process exit code alongside the cause.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var coded *codedError
	if errors.As(err, &coded) {
		return coded.code
	}

	switch {
	case errors.Is(err, domain.ErrConfig), errors.Is(err, domain.ErrValidation):
		return ExitConfig
	case errors.Is(err, domain.ErrStorage):
		return ExitStorage
	case errors.Is(err, domain.ErrNetwork):
		return ExitNetwork
	default:
		return 1
	}
}

// buildApp loads configuration and assembles the application.
func buildApp(ctx context.Context) (*app.Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, withCode(ExitConfig, err)
	}

	application, err := app.New(ctx, cfg, logging.New(cfg.LogLevel))
	if err != nil {
		return nil, withCode(ExitStorage, err)
	}
	return application, nil
}

// renderReport prints a run report table to stdout.
func renderReport(report *domain.RunReport) {
	bold := color.New(color.Bold)

	_, _ = bold.Printf("\nRun %s\n", report.ID)
	fmt.Printf("  attempted:   %d\n", report.Attempted)
	fmt.Printf("  fetched:     %d\n", report.Fetched)
	fmt.Printf("  parsed:      %d\n", report.Parsed)
	fmt.Printf("  stored:      %d\n", report.Stored)
	fmt.Printf("  skipped:     %d\n", report.Skipped)
	fmt.Printf("  quarantined: %d\n", len(report.Quarantined))
	fmt.Printf("  failed:      %d\n", len(report.Failed))
	fmt.Printf("  duration:    %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))

	for _, failure := range report.Quarantined {
		color.Yellow("  quarantined %s (%s)", failure.URL, failure.Reason)
	}
	for _, failure := range report.Failed {
		color.Red("  failed %s after %d retries (%s)", failure.URL, failure.Retries, failure.Reason)
	}

	switch {
	case len(report.Failed) == 0 && len(report.Quarantined) == 0:
		color.Green("Result: OK")
	case report.Stored > 0:
		color.Yellow("Result: PARTIAL")
	default:
		color.Red("Result: FAILED")
	}
}

// reportOutcome converts a finished run into the command's error, choosing
// between partial and network-exhaustion exits.
func reportOutcome(report *domain.RunReport, runErr error) error {
	if runErr != nil {
		return runErr
	}
	if !report.Partial() {
		return nil
	}

	if report.Fetched == 0 && len(report.Failed) > 0 {
		return withCode(ExitNetwork,
			fmt.Errorf("all %d fetches failed: %w", len(report.Failed), domain.ErrNetwork))
	}
	return withCode(ExitPartial,
		fmt.Errorf("%d bulletins failed, %d quarantined",
			len(report.Failed), len(report.Quarantined)))
}

// seriesKeyFromFlags resolves the analyze/forecast target series.
func seriesKeyFromFlags(category, country, chart string) (domain.SeriesKey, error) {
	cat, err := domain.ParseCategory(strings.ToUpper(strings.TrimSpace(category)))
	if err != nil {
		return domain.SeriesKey{}, withCode(ExitConfig, err)
	}

	ctry, err := domain.ParseCountry(normalizeCountryFlag(country))
	if err != nil {
		return domain.SeriesKey{}, withCode(ExitConfig, err)
	}

	ch, err := chartFromFlag(chart)
	if err != nil {
		return domain.SeriesKey{}, withCode(ExitConfig, err)
	}

	return domain.SeriesKey{Category: cat, Country: ctry, Chart: ch}, nil
}

func normalizeCountryFlag(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return string(domain.CountryWorldwide)
	}
	return strings.ToUpper(value[:1]) + strings.ToLower(value[1:])
}

func chartFromFlag(value string) (domain.Chart, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "final", "final_action":
		return domain.ChartFinalAction, nil
	case "filing", "dates_for_filing":
		return domain.ChartDatesForFiling, nil
	}
	return "", fmt.Errorf("unknown chart %q (want final or filing): %w", value, domain.ErrValidation)
}

// parseTargetMonth parses a YYYY-MM flag, defaulting to the month after now.
func parseTargetMonth(value string, now time.Time) (year, month int, err error) {
	if value == "" {
		next := now.AddDate(0, 1, 0)
		return next.Year(), int(next.Month()), nil
	}

	parts := strings.SplitN(value, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("target %q is not YYYY-MM: %w", value, domain.ErrValidation)
	}
	year, yearErr := strconv.Atoi(parts[0])
	month, monthErr := strconv.Atoi(parts[1])
	if yearErr != nil || monthErr != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("target %q is not YYYY-MM: %w", value, domain.ErrValidation)
	}
	return year, month, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}
