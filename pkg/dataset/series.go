// Package dataset loads, validates and manages uploaded price CSVs.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/stockcast/platform/pkg/common/dateutil"
)

// RequiredColumns is the guaranteed schema of a validated price CSV.
var RequiredColumns = []string{"date", "open", "high", "low", "close", "volume"}

// Series is an in-memory tabular time series. Values holds every column
// that parsed fully numeric; columns with parse failures are tracked so
// validation can report them, and are unusable as features.
type Series struct {
	Columns []string
	Dates   []time.Time
	Values  map[string][]float64

	rowCount       int
	badDates       []int // 1-based data row numbers
	duplicateDates int
	badCells       map[string]int
}

func LoadCSV(path string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unable to read CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, errors.New("CSV contains no data rows")
	}

	header := make([]string, len(records[0]))
	for i, name := range records[0] {
		header[i] = strings.TrimSpace(name)
	}
	rows := records[1:]

	s := &Series{
		Columns:  header,
		Values:   make(map[string][]float64),
		rowCount: len(rows),
		badCells: make(map[string]int),
	}

	for col, name := range header {
		if name == "date" {
			s.parseDates(rows, col)
			continue
		}
		s.parseNumeric(rows, col, name)
	}
	return s, nil
}

func (s *Series) parseDates(rows [][]string, col int) {
	s.Dates = make([]time.Time, len(rows))
	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		raw := strings.TrimSpace(row[col])
		parsed, err := dateutil.Parse(raw)
		if err != nil {
			s.badDates = append(s.badDates, i+1)
			continue
		}
		s.Dates[i] = parsed
		key := dateutil.FormatISO(parsed)
		if seen[key] {
			s.duplicateDates++
		}
		seen[key] = true
	}
}

func (s *Series) parseNumeric(rows [][]string, col int, name string) {
	values := make([]float64, len(rows))
	bad := 0
	for i, row := range rows {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
		if err != nil {
			bad++
			continue
		}
		values[i] = v
	}
	if bad > 0 {
		s.badCells[name] = bad
		return
	}
	s.Values[name] = values
}

func (s *Series) Len() int {
	return s.rowCount
}

func (s *Series) HasColumn(name string) bool {
	for _, col := range s.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// Matrix assembles the selected feature columns into an N x F matrix in
// the given column order.
func (s *Series) Matrix(features []string) (*mat.Dense, error) {
	if len(features) == 0 {
		return nil, errors.New("no feature columns selected")
	}
	m := mat.NewDense(s.rowCount, len(features), nil)
	for j, name := range features {
		values, ok := s.Values[name]
		if !ok {
			return nil, fmt.Errorf("column %s is not numeric", name)
		}
		for i, v := range values {
			m.Set(i, j, v)
		}
	}
	return m, nil
}

// IndexAtOrAfter returns the first row whose date is at or after target,
// or -1 when no such row exists.
func (s *Series) IndexAtOrAfter(target time.Time) int {
	for i, d := range s.Dates {
		if d.IsZero() {
			continue
		}
		if !d.Before(target) {
			return i
		}
	}
	return -1
}

func (s *Series) CloseAt(i int) float64 {
	return s.Values["close"][i]
}

// DateRange returns the inclusive calendar range of the parsed dates.
func (s *Series) DateRange() (time.Time, time.Time, error) {
	var start, end time.Time
	for _, d := range s.Dates {
		if d.IsZero() {
			continue
		}
		if start.IsZero() || d.Before(start) {
			start = d
		}
		if end.IsZero() || d.After(end) {
			end = d
		}
	}
	if start.IsZero() {
		return time.Time{}, time.Time{}, errors.New("no parseable dates")
	}
	return start, end, nil
}
