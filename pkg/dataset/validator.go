package dataset

import "fmt"

// Validate runs every content check over a loaded series and returns all
// failure messages rather than stopping at the first, so an upload
// rejection names everything wrong with the file.
func Validate(s *Series, minRows, maxRows int) []string {
	var errs []string

	missing := missingRequired(s)
	for _, name := range missing {
		errs = append(errs, fmt.Sprintf("missing required column %q", name))
	}

	if s.rowCount < minRows {
		errs = append(errs, fmt.Sprintf("not enough rows: need at least %d, got %d", minRows, s.rowCount))
	}
	if s.rowCount > maxRows {
		errs = append(errs, fmt.Sprintf("too many rows: at most %d supported, got %d", maxRows, s.rowCount))
	}

	if len(missing) > 0 {
		return errs
	}

	if n := len(s.badDates); n > 0 {
		errs = append(errs, fmt.Sprintf("%d unparseable dates (first at row %d)", n, s.badDates[0]))
	}
	if s.duplicateDates > 0 {
		errs = append(errs, fmt.Sprintf("%d duplicate dates", s.duplicateDates))
	}

	for _, name := range RequiredColumns[1:] {
		if bad, ok := s.badCells[name]; ok {
			errs = append(errs, fmt.Sprintf("column %s has %d non-numeric values", name, bad))
			continue
		}
		values := s.Values[name]
		if name == "volume" {
			if n := countBelow(values, 0); n > 0 {
				errs = append(errs, fmt.Sprintf("column volume has %d negative values", n))
			}
			continue
		}
		if n := countNotAbove(values, 0); n > 0 {
			errs = append(errs, fmt.Sprintf("column %s has %d non-positive values (prices must be > 0)", name, n))
		}
	}

	if highOK(s) && lowOK(s) {
		inverted := 0
		high, low := s.Values["high"], s.Values["low"]
		for i := range high {
			if high[i] < low[i] {
				inverted++
			}
		}
		if inverted > 0 {
			errs = append(errs, fmt.Sprintf("%d rows with high below low", inverted))
		}
	}

	return errs
}

func missingRequired(s *Series) []string {
	var missing []string
	for _, name := range RequiredColumns {
		if !s.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

func countBelow(values []float64, limit float64) int {
	n := 0
	for _, v := range values {
		if v < limit {
			n++
		}
	}
	return n
}

func countNotAbove(values []float64, limit float64) int {
	n := 0
	for _, v := range values {
		if v <= limit {
			n++
		}
	}
	return n
}

func highOK(s *Series) bool {
	_, ok := s.Values["high"]
	return ok
}

func lowOK(s *Series) bool {
	_, ok := s.Values["low"]
	return ok
}
