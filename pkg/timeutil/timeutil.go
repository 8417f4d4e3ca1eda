// Package timeutil provides calendar helpers that work in an explicit
// time zone. Wallet daily bonuses are decided by calendar day, and the day
// boundary depends on the zone the wallet is configured for.
package timeutil

import (
	"fmt"
	"time"
)

// LoadLocation resolves a zone name. Empty means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timeutil: load location %q: %w", name, err)
	}
	return loc, nil
}

// StartOfDay returns 00:00:00 of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// IsLaterDay reports whether later's calendar day is strictly after
// earlier's calendar day in loc.
func IsLaterDay(later, earlier time.Time, loc *time.Location) bool {
	return StartOfDay(later, loc).After(StartOfDay(earlier, loc))
}

// FormatDate formats t as YYYY-MM-DD in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02")
}
