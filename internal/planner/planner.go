// Package planner enumerates candidate bulletin URLs for a fiscal-year
// range and discovers the current bulletin from the index page.
package planner

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"BulletinTracker/internal/domain"
)

const (
	minPlanYear = 1990
	maxPlanYear = 2100
)

var bulletinHrefExpr = regexp.MustCompile(`visa-bulletin-for-([a-z]+)-(\d{4})`)

var monthNames = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4,
	"may": 5, "june": 6, "july": 7, "august": 8,
	"september": 9, "october": 10, "november": 11, "december": 12,
}

// Candidate labels one bulletin URL with its calendar and fiscal position.
type Candidate struct {
	FiscalYear int
	Month      int
	Year       int
	URL        string
}

// Planner builds bulletin URLs from the documented template.
type Planner struct {
	baseURL   string
	client    *http.Client
	userAgent string
}

// New wires a planner; client is only used in current mode.
func New(baseURL string, client *http.Client, userAgent string) *Planner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Planner{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		client:    client,
		userAgent: userAgent,
	}
}

// Plan enumerates candidates for fiscal years [fyFrom, fyTo] in fiscal-month
// order (October through September). The output is deterministic.
func (p *Planner) Plan(fyFrom, fyTo int) ([]Candidate, error) {
	if fyFrom > fyTo {
		return nil, fmt.Errorf("fiscal range %d..%d is inverted: %w", fyFrom, fyTo, domain.ErrConfig)
	}
	if fyFrom < minPlanYear || fyTo > maxPlanYear {
		return nil, fmt.Errorf("fiscal range %d..%d outside [%d,%d]: %w",
			fyFrom, fyTo, minPlanYear, maxPlanYear, domain.ErrConfig)
	}

	candidates := make([]Candidate, 0, (fyTo-fyFrom+1)*12)
	for fy := fyFrom; fy <= fyTo; fy++ {
		for i := 0; i < 12; i++ {
			month := (9+i)%12 + 1
			year := fy
			if month >= 10 {
				year = fy - 1
			}
			candidates = append(candidates, Candidate{
				FiscalYear: fy,
				Month:      month,
				Year:       year,
				URL:        p.BulletinURL(fy, month, year),
			})
		}
	}

	return candidates, nil
}

// BulletinURL renders the canonical URL for one bulletin month.
func (p *Planner) BulletinURL(fiscalYear, month, year int) string {
	name := strings.ToLower(time.Month(month).String())
	return fmt.Sprintf("%s/%d/visa-bulletin-for-%s-%d.html", p.baseURL, fiscalYear, name, year)
}

// Current fetches the bulletin index page and returns the topmost published
// bulletin link.
func (p *Planner) Current(ctx context.Context) (Candidate, error) {
	indexURL := p.baseURL + ".html"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
	if err != nil {
		return Candidate{}, fmt.Errorf("build index request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return Candidate{}, fmt.Errorf("fetch index %s: %v: %w", indexURL, err, domain.ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Candidate{}, fmt.Errorf("index %s returned %s: %w", indexURL, resp.Status, domain.ErrNetwork)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Candidate{}, fmt.Errorf("parse index: %w", domain.ErrParse)
	}

	candidate, found := p.firstBulletinLink(doc)
	if !found {
		return Candidate{}, fmt.Errorf("no bulletin link on index %s: %w", indexURL, domain.ErrParse)
	}

	return candidate, nil
}

func (p *Planner) firstBulletinLink(doc *goquery.Document) (Candidate, bool) {
	var (
		candidate Candidate
		found     bool
	)

	doc.Find("a[href]").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		match := bulletinHrefExpr.FindStringSubmatch(strings.ToLower(href))
		if match == nil {
			return true
		}

		month, ok := monthNames[match[1]]
		if !ok {
			return true
		}
		year, err := strconv.Atoi(match[2])
		if err != nil {
			return true
		}

		candidate = Candidate{
			FiscalYear: domain.FiscalYear(year, month),
			Month:      month,
			Year:       year,
			URL:        p.BulletinURL(domain.FiscalYear(year, month), month, year),
		}
		found = true
		return false
	})

	return candidate, found
}
