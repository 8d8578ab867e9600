package util

import (
	"strings"
	"time"
)

// ParseDate parses an ISO date (2006-01-02) as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), time.UTC)
}

// FormatDate is the inverse of ParseDate.
func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

// MonthsSpanned returns how many calendar months the range [from, to] touches.
// Returns 0 when to is before from.
func MonthsSpanned(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}

	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month()) + 1
}
