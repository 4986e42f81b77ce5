package parser

import (
	"strings"

	"BulletinTracker/internal/domain"
)

// canonCategory maps the raw first-column label of a bulletin row to a
// canonical category. The State Department has used ordinal labels,
// EB-style codes, and spelled-out names across two decades of bulletins.
func canonCategory(label string) (domain.Category, bool) {
	normalized := strings.ToLower(collapseSpaces(label))
	if normalized == "" {
		return "", false
	}

	// "Other Workers" must win over the generic 3rd-preference match.
	if strings.Contains(normalized, "other worker") {
		return domain.CategoryEB3OtherWorkers, true
	}

	switch normalized {
	case "f1", "f2a", "f2b", "f3", "f4":
		cat, err := domain.ParseCategory(strings.ToUpper(normalized))
		if err != nil {
			return "", false
		}
		return cat, true
	}

	switch {
	case hasAnyPrefix(normalized, "1st", "eb-1", "eb1") || strings.Contains(normalized, "priority workers"):
		return domain.CategoryEB1, true
	case hasAnyPrefix(normalized, "2nd", "eb-2", "eb2") || strings.Contains(normalized, "advanced degree"):
		return domain.CategoryEB2, true
	case hasAnyPrefix(normalized, "3rd", "eb-3", "eb3") || strings.Contains(normalized, "skilled workers"):
		return domain.CategoryEB3, true
	case hasAnyPrefix(normalized, "4th", "eb-4", "eb4") ||
		strings.Contains(normalized, "special immigrants") ||
		strings.Contains(normalized, "religious workers"):
		return domain.CategoryEB4, true
	case hasAnyPrefix(normalized, "5th", "eb-5", "eb5", "employment 5th") ||
		strings.Contains(normalized, "investor"):
		return domain.CategoryEB5, true
	}

	return "", false
}

// canonCountry maps a column header to a chargeability area. Extra columns
// such as the El Salvador/Guatemala/Honduras grouping are outside the
// tracked set and reported as unknown.
func canonCountry(label string) (domain.Country, bool) {
	normalized := strings.ToLower(collapseSpaces(label))
	if normalized == "" {
		return "", false
	}

	switch {
	case strings.Contains(normalized, "china"):
		return domain.CountryChina, true
	case strings.Contains(normalized, "india"):
		return domain.CountryIndia, true
	case strings.Contains(normalized, "mexico"):
		return domain.CountryMexico, true
	case strings.Contains(normalized, "philippines"):
		return domain.CountryPhilippines, true
	case strings.Contains(normalized, "worldwide"),
		strings.Contains(normalized, "all chargeability"),
		strings.Contains(normalized, "all others"),
		strings.Contains(normalized, "rest of world"),
		normalized == "row":
		return domain.CountryWorldwide, true
	}

	return "", false
}

var categoryKeywords = []string{
	"employment", "family", "eb-", "1st", "2nd", "3rd", "4th", "5th",
	"other workers", "f1", "f2a", "f2b", "f3", "f4", "preference",
}

var countryKeywords = []string{
	"worldwide", "all chargeability", "china", "india", "mexico", "philippines",
}

// headerSignals counts category and country signals in a header row.
func headerSignals(cells []string) (categoryHits, countryHits int) {
	for _, cell := range cells {
		normalized := strings.ToLower(cell)
		for _, kw := range categoryKeywords {
			if strings.Contains(normalized, kw) {
				categoryHits++
				break
			}
		}
		for _, kw := range countryKeywords {
			if strings.Contains(normalized, kw) {
				countryHits++
				break
			}
		}
	}
	return categoryHits, countryHits
}

func hasAnyPrefix(value string, prefixes ...string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}

// collapseSpaces trims a cell and folds NBSP and runs of whitespace into
// single spaces.
func collapseSpaces(value string) string {
	value = strings.ReplaceAll(value, "\u00a0", " ")
	return strings.Join(strings.Fields(value), " ")
}
