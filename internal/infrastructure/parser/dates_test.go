package parser

import (
	"testing"
	"time"
)

func TestParseCutoffDateForms(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want time.Time
	}{
		{"01JAN15", time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"15AUG98", time.Date(1998, time.August, 15, 0, 0, 0, 0, time.UTC)},
		{"8SEP22", time.Date(2022, time.September, 8, 0, 0, 0, 0, time.UTC)},
		{"JAN 1, 2015", time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"January 1, 2015", time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"1 JAN 2015", time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"01/01/2015", time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"1/1/15", time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"  01jan15  ", time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		got, ok := parseCutoffDate(tc.in)
		if !ok {
			t.Fatalf("parseCutoffDate(%q) did not match", tc.in)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("parseCutoffDate(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestParseCutoffDatePivot(t *testing.T) {
	t.Parallel()

	got, ok := parseCutoffDate("01JAN50")
	if !ok || got.Year() != 1950 {
		t.Fatalf("YY=50 should expand to 1950, got %v (ok=%v)", got, ok)
	}

	got, ok = parseCutoffDate("01JAN49")
	if !ok || got.Year() != 2049 {
		t.Fatalf("YY=49 should expand to 2049, got %v (ok=%v)", got, ok)
	}
}

func TestParseCutoffDateRejects(t *testing.T) {
	t.Parallel()

	rejected := []string{
		"", "C", "U", "CURRENT", "31FEB15", "00JAN15", "13/01/2015", "01XYZ15", "soon",
	}
	for _, in := range rejected {
		if _, ok := parseCutoffDate(in); ok {
			t.Fatalf("parseCutoffDate(%q) unexpectedly matched", in)
		}
	}
}
