// Package normalize validates parser output before it reaches storage.
package normalize

import (
	"fmt"
	"time"

	"BulletinTracker/internal/domain"
	"BulletinTracker/internal/ports"
)

// MaxDriftYears bounds how far a priority date may sit from its bulletin
// date before it is treated as a parse artifact.
const MaxDriftYears = 30

// QuarantineReason is the canonical reason string for a bulletin whose
// date-parse rate fell below the configured floor.
const QuarantineReason = "date_parse_rate_below_floor"

// Normalizer enforces entry invariants and the per-bulletin quality gate.
type Normalizer struct {
	minParseRate float64
}

// New constructs a normalizer with the configured parse-rate floor.
func New(minParseRate float64) *Normalizer {
	return &Normalizer{minParseRate: minParseRate}
}

// Run checks every parsed entry, collapses duplicates, and applies the
// quality gate. A domain.ErrQuality result means the bulletin must be
// quarantined rather than stored; the surviving entries and report are
// returned in every case.
func (n *Normalizer) Run(parsed *ports.ParsedBulletin) ([]domain.CategoryEntry, domain.QualityReport, error) {
	report := domain.QualityReport{
		RowsIn:        len(parsed.Entries),
		Warnings:      append([]string(nil), parsed.Warnings...),
		DateParseRate: parseRate(parsed),
	}

	kept := make([]domain.CategoryEntry, 0, len(parsed.Entries))
	index := make(map[domain.SeriesKey]int, len(parsed.Entries))

	for _, entry := range parsed.Entries {
		if err := CheckEntry(entry, parsed.Bulletin.BulletinDate); err != nil {
			report.Errors = append(report.Errors, err.Error())
			continue
		}

		key := domain.SeriesKey{Category: entry.Category, Country: entry.Country, Chart: entry.Chart}
		if pos, seen := index[key]; seen {
			// Last occurrence wins.
			kept[pos] = entry
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("duplicate entry %s collapsed", key))
			continue
		}

		index[key] = len(kept)
		kept = append(kept, entry)
	}

	report.RowsOut = len(kept)

	if report.DateParseRate < n.minParseRate {
		return kept, report, fmt.Errorf("%s: rate %.2f below %.2f: %w",
			QuarantineReason, report.DateParseRate, n.minParseRate, domain.ErrQuality)
	}

	return kept, report, nil
}

// CheckEntry validates a single entry against the status and drift
// invariants. It is also used by the validate command over stored rows.
func CheckEntry(entry domain.CategoryEntry, bulletinDate time.Time) error {
	switch entry.Status {
	case domain.StatusCurrent, domain.StatusUnavailable:
		if entry.PriorityDate != nil {
			return fmt.Errorf("%s/%s/%s: status %s carries a priority date: %w",
				entry.Category, entry.Country, entry.Chart, entry.Status, domain.ErrValidation)
		}
	case domain.StatusDated:
		if entry.PriorityDate == nil {
			return fmt.Errorf("%s/%s/%s: dated status without priority date: %w",
				entry.Category, entry.Country, entry.Chart, domain.ErrValidation)
		}
		if driftYears(*entry.PriorityDate, bulletinDate) > MaxDriftYears {
			return fmt.Errorf("%s/%s/%s: priority date %s drifts more than %d years from bulletin: %w",
				entry.Category, entry.Country, entry.Chart,
				entry.PriorityDate.Format("2006-01-02"), MaxDriftYears, domain.ErrValidation)
		}
	default:
		return fmt.Errorf("%s/%s/%s: unknown status %q: %w",
			entry.Category, entry.Country, entry.Chart, entry.Status, domain.ErrValidation)
	}

	return nil
}

func parseRate(parsed *ports.ParsedBulletin) float64 {
	if parsed.CellsSeen == 0 {
		return 1
	}
	return float64(parsed.CellsDated) / float64(parsed.CellsSeen)
}

func driftYears(a, b time.Time) float64 {
	delta := a.Sub(b)
	if delta < 0 {
		delta = -delta
	}
	return delta.Hours() / 24 / 365.25
}
