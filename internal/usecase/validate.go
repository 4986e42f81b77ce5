package usecase

import (
	"context"
	"fmt"

	"BulletinTracker/internal/domain"
	"BulletinTracker/internal/normalize"
)

// ValidateReport summarizes a re-validation pass over stored entries.
type ValidateReport struct {
	Bulletins  int
	Entries    int
	Violations []string
	Fixed      int
}

// Validate re-checks every stored entry against the normalization
// invariants. Raw HTML is not retained, so this operates on the canonical
// rows. With fix set, violating entries are deleted.
func (c *Collector) Validate(ctx context.Context, fix bool) (*ValidateReport, error) {
	report := &ValidateReport{}

	bulletins, err := c.repository.ListBulletins(ctx, 0, 9999)
	if err != nil {
		return nil, err
	}
	report.Bulletins = len(bulletins)

	for _, bulletin := range bulletins {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("validate: %w", domain.ErrCancelled)
		}

		entries, err := c.repository.ListEntries(ctx, bulletin.ID)
		if err != nil {
			return report, err
		}
		report.Entries += len(entries)

		for _, entry := range entries {
			checkErr := normalize.CheckEntry(entry, bulletin.BulletinDate)
			if checkErr == nil {
				continue
			}

			violation := fmt.Sprintf("bulletin %d-%02d: %v", bulletin.Year, bulletin.Month, checkErr)
			report.Violations = append(report.Violations, violation)
			c.logger.Warn("stored entry violates invariants",
				"year", bulletin.Year, "month", bulletin.Month, "error", checkErr)

			if fix {
				if err := c.repository.DeleteEntry(ctx, entry.ID); err != nil {
					return report, err
				}
				report.Fixed++
			}
		}
	}

	return report, nil
}
