// Package parser extracts bulletins and cutoff entries from State
// Department HTML pages.
package parser

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"BulletinTracker/internal/domain"
	"BulletinTracker/internal/planner"
	"BulletinTracker/internal/ports"
)

var publicationDateExpr = regexp.MustCompile(
	`(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{1,2}),?\s+(\d{4})`)

// BulletinParser turns raw bulletin HTML into canonical records.
type BulletinParser struct {
	logger *slog.Logger
}

var _ ports.BulletinParser = (*BulletinParser)(nil)

// New constructs the parser.
func New(logger *slog.Logger) *BulletinParser {
	return &BulletinParser{logger: logger}
}

// Parse extracts the bulletin header and every cutoff entry. Structural
// problems (no usable tables) abort this bulletin only.
func (p *BulletinParser) Parse(body []byte, candidate planner.Candidate) (*ports.ParsedBulletin, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("read document for %s: %v: %w", candidate.URL, err, domain.ErrParse)
	}

	result := &ports.ParsedBulletin{
		Bulletin: domain.Bulletin{
			FiscalYear:   domain.FiscalYear(candidate.Year, candidate.Month),
			Month:        candidate.Month,
			Year:         candidate.Year,
			BulletinDate: p.bulletinDate(doc, candidate),
			SourceURL:    candidate.URL,
		},
	}

	chart := domain.Chart("")
	tables := 0

	doc.Find("h1, h2, h3, h4, h5, h6, p, strong, b, table").Each(func(i int, sel *goquery.Selection) {
		if !sel.Is("table") {
			if c, ok := chartFromHeading(sel.Text()); ok {
				chart = c
			}
			return
		}

		tables++
		p.parseTable(sel, chart, result)
	})

	if len(result.Entries) == 0 {
		return nil, fmt.Errorf("no cutoff entries in %s (%d tables): %w",
			candidate.URL, tables, domain.ErrParse)
	}

	return result, nil
}

// bulletinDate scans for a publication date and falls back to the first of
// the labeled month.
func (p *BulletinParser) bulletinDate(doc *goquery.Document, candidate planner.Candidate) time.Time {
	match := publicationDateExpr.FindStringSubmatch(doc.Find("body").Text())
	if match != nil {
		month, ok := monthByName(strings.ToUpper(match[1]))
		if ok {
			day, _ := strconv.Atoi(match[2])
			year, _ := strconv.Atoi(match[3])
			if date, valid := makeDate(year, month, day); valid {
				return date
			}
		}
	}

	return time.Date(candidate.Year, time.Month(candidate.Month), 1, 0, 0, 0, 0, time.UTC)
}

// chartFromHeading classifies a heading as one of the two cutoff charts.
func chartFromHeading(text string) (domain.Chart, bool) {
	normalized := strings.ToLower(collapseSpaces(text))
	switch {
	case strings.Contains(normalized, "final action"):
		return domain.ChartFinalAction, true
	case strings.Contains(normalized, "dates for filing"):
		return domain.ChartDatesForFiling, true
	}
	return "", false
}

func (p *BulletinParser) parseTable(table *goquery.Selection, chart domain.Chart, result *ports.ParsedBulletin) {
	rows := table.Find("tr")
	if rows.Length() < 2 {
		return
	}

	header := cellTexts(rows.First())
	categoryHits, countryHits := headerSignals(header)
	if categoryHits == 0 || countryHits == 0 {
		return
	}

	if chart == "" {
		result.Warnings = append(result.Warnings, "table without chart heading skipped")
		return
	}

	columns := make([]domain.Country, len(header))
	known := false
	for i := 1; i < len(header); i++ {
		country, ok := canonCountry(header[i])
		if !ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("unrecognized country column %q", header[i]))
			continue
		}
		columns[i] = country
		known = true
	}
	if !known {
		return
	}

	rows.Slice(1, rows.Length()).Each(func(i int, row *goquery.Selection) {
		p.parseRow(row, columns, chart, result)
	})
}

func (p *BulletinParser) parseRow(row *goquery.Selection, columns []domain.Country, chart domain.Chart, result *ports.ParsedBulletin) {
	cells := cellTexts(row)
	if len(cells) < 2 {
		return
	}

	category, ok := canonCategory(cells[0])
	if !ok {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("unrecognized category label %q", cells[0]))
		return
	}

	for i := 1; i < len(cells) && i < len(columns); i++ {
		if columns[i] == "" {
			continue
		}

		entry, counted, ok := p.parseCell(cells[i], category, columns[i], chart)
		if counted {
			result.CellsSeen++
		}
		if !ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("unparseable cell %q for %s/%s", cells[i], category, columns[i]))
			continue
		}
		if entry.Status == domain.StatusDated {
			result.CellsDated++
		}
		result.Entries = append(result.Entries, entry)
	}
}

// parseCell interprets one cutoff cell. The counted flag marks cells that
// participate in the date-parse-rate denominator: non-empty and not C/U.
func (p *BulletinParser) parseCell(raw string, category domain.Category, country domain.Country, chart domain.Chart) (domain.CategoryEntry, bool, bool) {
	entry := domain.CategoryEntry{
		Category: category,
		Country:  country,
		Chart:    chart,
	}

	value := strings.ToUpper(collapseSpaces(raw))
	switch value {
	case "":
		return entry, false, false
	case "C", "CURRENT":
		entry.Status = domain.StatusCurrent
		return entry, false, true
	case "U", "UNAVAILABLE":
		entry.Status = domain.StatusUnavailable
		return entry, false, true
	}

	date, ok := parseCutoffDate(value)
	if !ok {
		return entry, true, false
	}

	entry.Status = domain.StatusDated
	entry.PriorityDate = &date
	return entry, true, true
}

func cellTexts(row *goquery.Selection) []string {
	var cells []string
	row.Find("th, td").Each(func(i int, cell *goquery.Selection) {
		cells = append(cells, collapseSpaces(cell.Text()))
	})
	return cells
}
