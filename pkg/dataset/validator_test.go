package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func loadSeries(t *testing.T, csv string) *Series {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	series, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return series
}

func TestValidateAcceptsCleanSeries(t *testing.T) {
	series := loadSeries(t, string(priceCSV(10)))
	if msgs := Validate(series, 5, 100); len(msgs) != 0 {
		t.Fatalf("expected no failures, got %v", msgs)
	}
}

func TestValidateReportsAllFailuresAtOnce(t *testing.T) {
	csv := "date,open,high,low,close,volume\n" +
		"2024-01-01,100,99,101,100,-5\n" + // high below low, negative volume
		"2024-01-01,0,102,98,100,1000\n" + // duplicate date, non-positive open
		"not-a-date,100,102,98,100,1000\n"
	series := loadSeries(t, csv)

	msgs := Validate(series, 1, 100)
	joined := strings.Join(msgs, "; ")
	for _, want := range []string{"unparseable dates", "duplicate dates", "negative values", "non-positive", "high below low"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in failures, got %v", want, msgs)
		}
	}
}

func TestValidateReportsNonNumericColumn(t *testing.T) {
	csv := "date,open,high,low,close,volume\n" +
		"2024-01-01,100,102,98,abc,1000\n" +
		"2024-01-02,100,102,98,101,1000\n"
	series := loadSeries(t, csv)

	msgs := Validate(series, 1, 100)
	joined := strings.Join(msgs, "; ")
	if !strings.Contains(joined, "column close has 1 non-numeric values") {
		t.Fatalf("expected non-numeric close failure, got %v", msgs)
	}
}

func TestValidateMissingColumnsShortCircuitContentChecks(t *testing.T) {
	csv := "date,close\nnot-a-date,100\n"
	series := loadSeries(t, csv)

	msgs := Validate(series, 1, 100)
	joined := strings.Join(msgs, "; ")
	if !strings.Contains(joined, "missing required column") {
		t.Fatalf("expected missing-column failure, got %v", msgs)
	}
	if strings.Contains(joined, "unparseable dates") {
		t.Fatalf("content checks should not run with missing columns, got %v", msgs)
	}
}

func TestIndexAtOrAfter(t *testing.T) {
	series := loadSeries(t, string(priceCSV(5)))

	idx := series.IndexAtOrAfter(series.Dates[2])
	if idx != 2 {
		t.Fatalf("expected exact match at 2, got %d", idx)
	}
	idx = series.IndexAtOrAfter(series.Dates[4].AddDate(0, 0, 1))
	if idx != -1 {
		t.Fatalf("expected -1 past the end, got %d", idx)
	}
}
