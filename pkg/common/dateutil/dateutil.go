// Package dateutil parses and formats the calendar dates carried by price
// series and metadata records.
package dateutil

import (
	"fmt"
	"strings"
	"time"
)

const ISODate = "2006-01-02"

// Layouts accepted for incoming dates. Go's numeric layout verbs match both
// padded and unpadded components, so these cover 2025-01-01 and 2025/1/1.
var layouts = []string{
	"2006-1-2",
	"2006/1/2",
}

func Parse(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

func FormatISO(t time.Time) string {
	return t.Format(ISODate)
}

// InRange reports whether target falls within [start, end], inclusive.
func InRange(target, start, end time.Time) bool {
	return !target.Before(start) && !target.After(end)
}

func NowISO() string {
	return time.Now().Format(time.RFC3339)
}
