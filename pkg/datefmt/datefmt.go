// Package datefmt renders and parses the display timestamps stored on
// query history entries and shown in article result lists.
package datefmt

import (
	"strings"
	"time"
)

// Layouts used for display strings.
const (
	DayFirstLayout  = "02-01-2006"
	YearFirstLayout = "2006-01-02"
	TimeLayout      = "3:04:05 PM"
)

// Options controls how Format renders a timestamp.
type Options struct {
	YearFirst bool // "YYYY-MM-DD" instead of "DD-MM-YYYY".
	OmitTime  bool // Drop the ", <time>" suffix.
}

// Format renders t as "DD-MM-YYYY, 3:04:05 PM" by default.
func Format(t time.Time, opts Options) string {
	layout := DayFirstLayout
	if opts.YearFirst {
		layout = YearFirstLayout
	}
	if opts.OmitTime {
		return t.Format(layout)
	}
	return t.Format(layout) + ", " + t.Format(TimeLayout)
}

var parseLayouts = []string{
	DayFirstLayout + ", " + TimeLayout,
	YearFirstLayout + ", " + TimeLayout,
	DayFirstLayout,
	YearFirstLayout,
}

// Parse reverses Format for any combination of Options. The result is
// interpreted in the local time zone.
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParsePublished parses an article publish timestamp as delivered by
// search providers (RFC 3339, with or without fractional seconds).
func ParsePublished(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.RFC1123Z, time.RFC1123} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
