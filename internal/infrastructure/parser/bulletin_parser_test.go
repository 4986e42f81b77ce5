package parser

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"BulletinTracker/internal/domain"
	"BulletinTracker/internal/planner"
)

const sampleBulletin = `
<html><body>
<h1>Visa Bulletin For October 2023</h1>
<p>Number 82 Volume X Washington, D.C. September 8, 2023</p>
<table>
  <tr><td>Employment-based</td><td>Worldwide</td></tr>
  <tr><td>1st</td><td>C</td></tr>
</table>
<h3>A. FINAL ACTION DATES FOR EMPLOYMENT-BASED PREFERENCE CASES</h3>
<table>
  <tr>
    <th>Employment-based</th>
    <th>All Chargeability Areas Except Those Listed</th>
    <th>CHINA-mainland born</th>
    <th>INDIA</th>
  </tr>
  <tr><td>1st</td><td>C</td><td>01FEB22</td><td>01JAN20</td></tr>
  <tr><td>2nd</td><td>C</td><td>U</td><td>soon</td></tr>
</table>
<h3>B. DATES FOR FILING OF EMPLOYMENT-BASED VISA APPLICATIONS</h3>
<table>
  <tr><th>Employment-based</th><th>All Chargeability Areas Except Those Listed</th></tr>
  <tr><td>Other Workers</td><td>01JUN21</td></tr>
</table>
</body></html>`

func testParser() *BulletinParser {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testCandidate() planner.Candidate {
	return planner.Candidate{
		FiscalYear: 2024,
		Month:      10,
		Year:       2023,
		URL:        "https://example.org/visa-bulletin-for-october-2023.html",
	}
}

func TestParseBulletin(t *testing.T) {
	t.Parallel()

	result, err := testParser().Parse([]byte(sampleBulletin), testCandidate())
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if result.Bulletin.FiscalYear != 2024 {
		t.Fatalf("unexpected fiscal year: %d", result.Bulletin.FiscalYear)
	}
	wantDate := time.Date(2023, time.September, 8, 0, 0, 0, 0, time.UTC)
	if !result.Bulletin.BulletinDate.Equal(wantDate) {
		t.Fatalf("unexpected bulletin date: %s", result.Bulletin.BulletinDate)
	}

	// 5 final-action cells plus 1 filing cell; the "soon" cell is dropped.
	if len(result.Entries) != 6 {
		t.Fatalf("expected 6 entries, got %d", len(result.Entries))
	}
	if result.CellsSeen != 4 {
		t.Fatalf("expected 4 counted cells, got %d", result.CellsSeen)
	}
	if result.CellsDated != 3 {
		t.Fatalf("expected 3 dated cells, got %d", result.CellsDated)
	}

	var filing *domain.CategoryEntry
	for i := range result.Entries {
		if result.Entries[i].Chart == domain.ChartDatesForFiling {
			filing = &result.Entries[i]
		}
	}
	if filing == nil {
		t.Fatal("no dates-for-filing entry parsed")
	}
	if filing.Category != domain.CategoryEB3OtherWorkers || filing.Status != domain.StatusDated {
		t.Fatalf("unexpected filing entry: %+v", filing)
	}
}

func TestParseBulletinWarnings(t *testing.T) {
	t.Parallel()

	result, err := testParser().Parse([]byte(sampleBulletin), testCandidate())
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	var headless, unparseable bool
	for _, warning := range result.Warnings {
		if warning == "table without chart heading skipped" {
			headless = true
		}
		if warning == `unparseable cell "soon" for EB-2/India` {
			unparseable = true
		}
	}
	if !headless {
		t.Fatalf("missing heading warning, got %v", result.Warnings)
	}
	if !unparseable {
		t.Fatalf("missing unparseable-cell warning, got %v", result.Warnings)
	}
}

func TestParseBulletinFullRow(t *testing.T) {
	t.Parallel()

	html := `<html><body>
	<h3>A. FINAL ACTION DATES FOR EMPLOYMENT-BASED PREFERENCE CASES</h3>
	<table>
	  <tr>
	    <th>Employment-based</th>
	    <th>All Chargeability Areas Except Those Listed</th>
	    <th>CHINA-mainland born</th>
	    <th>INDIA</th>
	    <th>MEXICO</th>
	    <th>PHILIPPINES</th>
	  </tr>
	  <tr><td>2nd</td><td>C</td><td>15JAN23</td><td>01JAN12</td><td>C</td><td>C</td></tr>
	</table>
	</body></html>`

	result, err := testParser().Parse([]byte(html), testCandidate())
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(result.Entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(result.Entries))
	}

	byCountry := map[domain.Country]domain.CategoryEntry{}
	for _, entry := range result.Entries {
		if entry.Category != domain.CategoryEB2 || entry.Chart != domain.ChartFinalAction {
			t.Fatalf("unexpected entry: %+v", entry)
		}
		byCountry[entry.Country] = entry
	}

	for _, country := range []domain.Country{domain.CountryWorldwide, domain.CountryMexico, domain.CountryPhilippines} {
		entry := byCountry[country]
		if entry.Status != domain.StatusCurrent || entry.PriorityDate != nil {
			t.Fatalf("%s should be current without a date: %+v", country, entry)
		}
	}

	china := byCountry[domain.CountryChina]
	if china.Status != domain.StatusDated ||
		!china.PriorityDate.Equal(time.Date(2023, time.January, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected china entry: %+v", china)
	}
	india := byCountry[domain.CountryIndia]
	if india.Status != domain.StatusDated ||
		!india.PriorityDate.Equal(time.Date(2012, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected india entry: %+v", india)
	}
}

func TestParseBulletinNoEntries(t *testing.T) {
	t.Parallel()

	_, err := testParser().Parse([]byte("<html><body><p>maintenance</p></body></html>"), testCandidate())
	if !errors.Is(err, domain.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestParseBulletinDateFallback(t *testing.T) {
	t.Parallel()

	html := `<html><body>
	<h3>FINAL ACTION DATES</h3>
	<table>
	  <tr><th>Family-sponsored</th><th>Worldwide</th></tr>
	  <tr><td>F1</td><td>01JAN15</td></tr>
	</table>
	</body></html>`

	result, err := testParser().Parse([]byte(html), testCandidate())
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	want := time.Date(2023, time.October, 1, 0, 0, 0, 0, time.UTC)
	if !result.Bulletin.BulletinDate.Equal(want) {
		t.Fatalf("expected fallback date %s, got %s", want, result.Bulletin.BulletinDate)
	}
}
