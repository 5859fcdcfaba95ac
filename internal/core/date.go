package core

import (
	"strings"
	"time"
)

// dayFirstLayouts are tried in order. Bank exports in the supported locale
// write dates day-first; ISO dates are accepted as a fallback because some
// exports switch convention between sheets.
var dayFirstLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"2.1.2006",
	"2006-01-02",
	"02/01/06",
}

// ParseDayFirstDate parses a cell value as a day-first calendar date.
// The time portion, if any, is discarded; the result is a UTC midnight.
func ParseDayFirstDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	// Strip a trailing time component ("02/01/2006 15:04").
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOnly(t), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}
