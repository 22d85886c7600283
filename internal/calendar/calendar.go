// Package calendar computes run dates in the market's time zone.
package calendar

import (
	"time"

	"github.com/rxtech-lab/ohlcv-sync/internal/types"
)

// Cutoff returns the last date a run fetches up to: yesterday in loc, moved
// back to Friday when yesterday falls on a weekend. Compute it once per run.
func Cutoff(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}

	cutoff := types.AddDays(types.DateOf(now, loc), -1)
	for IsWeekend(cutoff) {
		cutoff = types.AddDays(cutoff, -1)
	}

	return cutoff
}

// IsWeekend reports whether date is a Saturday or Sunday.
func IsWeekend(date time.Time) bool {
	return date.Weekday() == time.Saturday || date.Weekday() == time.Sunday
}
