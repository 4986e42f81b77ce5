package normalize

import (
	"errors"
	"testing"
	"time"

	"BulletinTracker/internal/domain"
	"BulletinTracker/internal/ports"
)

func datePtr(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func datedEntry(category domain.Category, country domain.Country, date *time.Time) domain.CategoryEntry {
	return domain.CategoryEntry{
		Category:     category,
		Country:      country,
		Chart:        domain.ChartFinalAction,
		Status:       domain.StatusDated,
		PriorityDate: date,
	}
}

func TestRunKeepsValidEntries(t *testing.T) {
	t.Parallel()

	parsed := &ports.ParsedBulletin{
		Bulletin: domain.Bulletin{BulletinDate: time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)},
		Entries: []domain.CategoryEntry{
			datedEntry(domain.CategoryEB1, domain.CountryIndia, datePtr(2020, time.January, 1)),
			{Category: domain.CategoryEB1, Country: domain.CountryWorldwide,
				Chart: domain.ChartFinalAction, Status: domain.StatusCurrent},
		},
		CellsSeen:  1,
		CellsDated: 1,
	}

	kept, report, err := New(0.5).Run(parsed)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(kept) != 2 {
		t.Fatalf("expected 2 kept entries, got %d", len(kept))
	}
	if report.RowsIn != 2 || report.RowsOut != 2 {
		t.Fatalf("unexpected row counts: %+v", report)
	}
	if report.DateParseRate != 1 {
		t.Fatalf("unexpected parse rate: %f", report.DateParseRate)
	}
}

func TestRunCollapsesDuplicatesLastWins(t *testing.T) {
	t.Parallel()

	parsed := &ports.ParsedBulletin{
		Bulletin: domain.Bulletin{BulletinDate: time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)},
		Entries: []domain.CategoryEntry{
			datedEntry(domain.CategoryEB2, domain.CountryIndia, datePtr(2012, time.January, 1)),
			datedEntry(domain.CategoryEB2, domain.CountryIndia, datePtr(2012, time.February, 1)),
		},
		CellsSeen:  2,
		CellsDated: 2,
	}

	kept, report, err := New(0.5).Run(parsed)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(kept) != 1 {
		t.Fatalf("expected 1 kept entry, got %d", len(kept))
	}
	if !kept[0].PriorityDate.Equal(time.Date(2012, time.February, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("last occurrence should win, got %s", kept[0].PriorityDate)
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("expected 1 duplicate warning, got %v", report.Warnings)
	}
}

func TestRunQuarantinesLowParseRate(t *testing.T) {
	t.Parallel()

	parsed := &ports.ParsedBulletin{
		Bulletin: domain.Bulletin{BulletinDate: time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)},
		Entries: []domain.CategoryEntry{
			datedEntry(domain.CategoryEB1, domain.CountryIndia, datePtr(2020, time.January, 1)),
		},
		CellsSeen:  10,
		CellsDated: 4,
	}

	kept, report, err := New(0.5).Run(parsed)
	if !errors.Is(err, domain.ErrQuality) {
		t.Fatalf("expected ErrQuality, got %v", err)
	}
	if report.DateParseRate != 0.4 {
		t.Fatalf("unexpected parse rate: %f", report.DateParseRate)
	}
	if len(kept) != 1 {
		t.Fatal("entries should still be returned alongside the gate error")
	}
}

func TestRunDropsInvalidEntries(t *testing.T) {
	t.Parallel()

	bulletinDate := time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)
	parsed := &ports.ParsedBulletin{
		Bulletin: domain.Bulletin{BulletinDate: bulletinDate},
		Entries: []domain.CategoryEntry{
			// Dated without a priority date.
			{Category: domain.CategoryF1, Country: domain.CountryMexico,
				Chart: domain.ChartFinalAction, Status: domain.StatusDated},
			// Drifts far beyond the plausible window.
			datedEntry(domain.CategoryF3, domain.CountryMexico, datePtr(1950, time.January, 1)),
			datedEntry(domain.CategoryF4, domain.CountryMexico, datePtr(2001, time.March, 15)),
		},
	}

	kept, report, err := New(0).Run(parsed)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(kept) != 1 || kept[0].Category != domain.CategoryF4 {
		t.Fatalf("expected only the F4 entry to survive, got %+v", kept)
	}
	if len(report.Errors) != 2 {
		t.Fatalf("expected 2 recorded violations, got %v", report.Errors)
	}
}

func TestCheckEntry(t *testing.T) {
	t.Parallel()

	bulletinDate := time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)

	current := domain.CategoryEntry{Category: domain.CategoryEB1, Country: domain.CountryWorldwide,
		Chart: domain.ChartFinalAction, Status: domain.StatusCurrent}
	if err := CheckEntry(current, bulletinDate); err != nil {
		t.Fatalf("current entry should pass: %v", err)
	}

	current.PriorityDate = datePtr(2020, time.January, 1)
	if err := CheckEntry(current, bulletinDate); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("current entry with date should fail, got %v", err)
	}

	unknown := domain.CategoryEntry{Category: domain.CategoryEB1, Country: domain.CountryWorldwide,
		Chart: domain.ChartFinalAction, Status: domain.Status("weird")}
	if err := CheckEntry(unknown, bulletinDate); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown status should fail, got %v", err)
	}

	// Just inside the edge of the drift window is still acceptable.
	nearEdge := datedEntry(domain.CategoryF4, domain.CountryMexico, datePtr(1994, time.January, 1))
	if err := CheckEntry(nearEdge, bulletinDate); err != nil {
		t.Fatalf("29-year-old date should pass: %v", err)
	}
}
