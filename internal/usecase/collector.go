package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"BulletinTracker/internal/domain"
	"BulletinTracker/internal/normalize"
	"BulletinTracker/internal/planner"
	"BulletinTracker/internal/ports"
)

// bulletinBudget bounds parse+normalize+store of one bulletin end to end.
const bulletinBudget = 120 * time.Second

// CollectorDeps wires all driven adapters into the ingestion orchestrator.
type CollectorDeps struct {
	Planner    *planner.Planner
	Fetcher    ports.BulletinFetcher
	Parser     ports.BulletinParser
	Normalizer *normalize.Normalizer
	Repository ports.BulletinRepository
	Logger     *slog.Logger
}

// CollectOptions tune a historical backfill.
type CollectOptions struct {
	Force  bool
	Verify bool
}

// Collector orchestrates planner, fetcher, parser, normalizer, and
// repository. It is the single funnel into storage and the only layer that
// decides run-level outcomes.
type Collector struct {
	planner    *planner.Planner
	fetcher    ports.BulletinFetcher
	parser     ports.BulletinParser
	normalizer *normalize.Normalizer
	repository ports.BulletinRepository
	logger     *slog.Logger
}

// NewCollector constructs the orchestration component.
func NewCollector(deps CollectorDeps) *Collector {
	return &Collector{
		planner:    deps.Planner,
		fetcher:    deps.Fetcher,
		parser:     deps.Parser,
		normalizer: deps.Normalizer,
		repository: deps.Repository,
		logger:     deps.Logger,
	}
}

// Collect backfills bulletins for fiscal years [fyFrom, fyTo]. Failures are
// isolated per bulletin; a cancelled context returns the partial report
// together with domain.ErrCancelled.
func (c *Collector) Collect(ctx context.Context, fyFrom, fyTo int, opts CollectOptions) (*domain.RunReport, error) {
	report := newRunReport()

	candidates, err := c.planner.Plan(fyFrom, fyTo)
	if err != nil {
		return report, err
	}
	report.Attempted = len(candidates)

	pending, err := c.filterExisting(ctx, candidates, fyFrom, fyTo, opts.Force, report)
	if err != nil {
		return report, err
	}

	if opts.Verify {
		pending = c.verifyCandidates(ctx, pending, report)
	}

	err = c.ingest(ctx, pending, report)
	report.FinishedAt = time.Now().UTC()
	return report, err
}

// FetchCurrent ingests the bulletin the index page points at. Repeated
// invocations within a month are idempotent.
func (c *Collector) FetchCurrent(ctx context.Context) (*domain.RunReport, error) {
	report := newRunReport()
	report.Attempted = 1

	candidate, err := c.planner.Current(ctx)
	if err != nil {
		report.FinishedAt = time.Now().UTC()
		report.Failed = append(report.Failed, domain.Failure{Reason: err.Error()})
		return report, err
	}

	c.logger.Info("current bulletin discovered",
		"year", candidate.Year, "month", candidate.Month, "url", candidate.URL)

	err = c.ingest(ctx, []planner.Candidate{candidate}, report)
	report.FinishedAt = time.Now().UTC()
	return report, err
}

func (c *Collector) ingest(ctx context.Context, candidates []planner.Candidate, report *domain.RunReport) error {
	results := c.fetcher.Fetch(ctx, candidates)

	for result := range results {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("collect: %w", domain.ErrCancelled)
		}

		if result.Err != nil {
			c.recordFetchFailure(result, report)
			continue
		}
		report.Fetched++

		// processOne reports per-bulletin problems itself; an error here
		// means cancellation.
		if err := c.processOne(ctx, result, report); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("collect: %w", domain.ErrCancelled)
	}

	return nil
}

// processOne runs parse, normalize, and store for one fetched bulletin
// under its own processing budget.
func (c *Collector) processOne(ctx context.Context, result ports.FetchResult, report *domain.RunReport) error {
	bctx, cancel := context.WithTimeout(ctx, bulletinBudget)
	defer cancel()

	candidate := result.Candidate

	parsed, err := c.parser.Parse(result.Body, candidate)
	if err != nil {
		c.logger.Warn("bulletin skipped", "url", candidate.URL, "error", err)
		report.Failed = append(report.Failed, domain.Failure{URL: candidate.URL, Reason: err.Error()})
		return nil
	}
	report.Parsed++

	entries, quality, err := c.normalizer.Run(parsed)
	if err != nil {
		if errors.Is(err, domain.ErrQuality) {
			c.logger.Warn("bulletin quarantined",
				"url", candidate.URL, "rate", quality.DateParseRate)
			report.Quarantined = append(report.Quarantined,
				domain.Failure{URL: candidate.URL, Reason: normalize.QuarantineReason})
			return nil
		}
		report.Failed = append(report.Failed, domain.Failure{URL: candidate.URL, Reason: err.Error()})
		return nil
	}

	for _, warning := range quality.Warnings {
		c.logger.Debug("normalization warning", "url", candidate.URL, "warning", warning)
	}

	if _, err := c.repository.UpsertBulletin(bctx, parsed.Bulletin, entries); err != nil {
		if bctx.Err() != nil && ctx.Err() != nil {
			return fmt.Errorf("store %s: %w", candidate.URL, domain.ErrCancelled)
		}
		c.logger.Error("bulletin store failed", "url", candidate.URL, "error", err)
		report.Failed = append(report.Failed, domain.Failure{URL: candidate.URL, Reason: err.Error()})
		return nil
	}

	report.Stored++
	c.logger.Info("bulletin stored",
		"year", candidate.Year, "month", candidate.Month,
		"entries", len(entries), "rate", quality.DateParseRate)
	return nil
}

func (c *Collector) recordFetchFailure(result ports.FetchResult, report *domain.RunReport) {
	candidate := result.Candidate

	switch {
	case errors.Is(result.Err, domain.ErrNotFound):
		// Months that were never published are routine during backfill.
		c.logger.Debug("bulletin does not exist", "url", candidate.URL)
		report.Skipped++
	case errors.Is(result.Err, domain.ErrCancelled):
	default:
		c.logger.Warn("fetch failed",
			"url", candidate.URL, "retries", result.Retries, "error", result.Err)
		report.Failed = append(report.Failed, domain.Failure{
			URL:     candidate.URL,
			Reason:  result.Err.Error(),
			Retries: result.Retries,
		})
	}
}

// filterExisting implements resume: already stored (year, month) pairs are
// skipped unless force is set.
func (c *Collector) filterExisting(ctx context.Context, candidates []planner.Candidate, fyFrom, fyTo int, force bool, report *domain.RunReport) ([]planner.Candidate, error) {
	if force {
		return candidates, nil
	}

	stored, err := c.repository.ListBulletins(ctx, fyFrom, fyTo)
	if err != nil {
		return nil, err
	}

	existing := make(map[[2]int]struct{}, len(stored))
	for _, b := range stored {
		existing[[2]int{b.Year, b.Month}] = struct{}{}
	}

	pending := make([]planner.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if _, ok := existing[[2]int{candidate.Year, candidate.Month}]; ok {
			report.Skipped++
			continue
		}
		pending = append(pending, candidate)
	}

	return pending, nil
}

func (c *Collector) verifyCandidates(ctx context.Context, candidates []planner.Candidate, report *domain.RunReport) []planner.Candidate {
	reachable := make([]planner.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if err := c.fetcher.Verify(ctx, candidate); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.logger.Debug("bulletin does not exist", "url", candidate.URL)
				report.Skipped++
				continue
			}
			report.Failed = append(report.Failed, domain.Failure{
				URL:    candidate.URL,
				Reason: err.Error(),
			})
			continue
		}
		reachable = append(reachable, candidate)
	}
	return reachable
}

func newRunReport() *domain.RunReport {
	return &domain.RunReport{
		ID:        ulid.Make().String(),
		StartedAt: time.Now().UTC(),
	}
}
