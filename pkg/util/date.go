package util

import (
	"time"
)

// DateLayout is the wire format for narrative dates (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date string. Returns (t, true) if it worked.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseDateDefault parses a date or returns default if empty/invalid.
func ParseDateDefault(s string, def time.Time) time.Time {
	if t, ok := ParseDate(s); ok {
		return t
	}
	return def
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// RangeDays returns the number of whole days between from and to.
// Negative when to precedes from.
func RangeDays(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// PeriodRange returns (start, end) for a named period preset ending at end.
// Supported: "30d", "90d", "180d", "365d". Anything else defaults to 180d.
func PeriodRange(period string, end time.Time) (time.Time, time.Time) {
	var days int
	switch period {
	case "30d":
		days = 30
	case "90d":
		days = 90
	case "180d":
		days = 180
	case "365d":
		days = 365
	default:
		days = 180
	}
	return end.AddDate(0, 0, -days), end
}
