package model

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// relativeTimePattern matches phrases like "3 days ago", "an hour ago",
// "2 weeks ago" that scraped "updated" fields commonly use in place of a
// real timestamp.
var relativeTimePattern = regexp.MustCompile(`(?i)^\s*(a|an|\d+)\s+(second|minute|hour|day|week|month|year)s?\s+ago\s*$`)

var relativeUnit = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
	"month":  30 * 24 * time.Hour,
	"year":   365 * 24 * time.Hour,
}

// ParseDateOrRelativeTime tries format first (a Go reference-time layout,
// e.g. time.RFC3339), falling back to relative-time phrases such as
// "3 days ago" resolved against time.Now().
func ParseDateOrRelativeTime(s, format string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if format != "" {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if m := relativeTimePattern.FindStringSubmatch(s); m != nil {
		n := 1
		if m[1] != "a" && m[1] != "an" {
			if parsed, err := strconv.Atoi(m[1]); err == nil {
				n = parsed
			}
		}
		unit := relativeUnit[strings.ToLower(m[2])]
		return time.Now().Add(-time.Duration(n) * unit), true
	}
	return time.Time{}, false
}
