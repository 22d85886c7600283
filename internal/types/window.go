package types

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
)

// FetchWindow is the inclusive date range requested from the upstream source for one ticker.
type FetchWindow struct {
	Ticker    string
	StartDate time.Time
	EndDate   time.Time
	// Expected is set when the window was requested for exactly one period.
	// Rows outside that period are dropped during partitioning.
	Expected optional.Option[PeriodKey]
}

// Validate checks the window invariants.
func (w FetchWindow) Validate() error {
	if w.Ticker == "" {
		return errors.New(errors.ErrCodeMissingParameter, "fetch window has no ticker")
	}

	if w.StartDate.After(w.EndDate) {
		return errors.Newf(errors.ErrCodeInvalidParameter, "fetch window for %s starts after it ends: %s > %s",
			w.Ticker, w.StartDate.Format(DateLayout), w.EndDate.Format(DateLayout))
	}

	return nil
}

// Contains reports whether date lies in [StartDate, EndDate].
func (w FetchWindow) Contains(date time.Time) bool {
	return !date.Before(w.StartDate) && !date.After(w.EndDate)
}

// Days returns the number of calendar days covered by the window.
func (w FetchWindow) Days() int {
	return int(w.EndDate.Sub(w.StartDate).Hours()/24) + 1
}

// String renders the window for logs.
func (w FetchWindow) String() string {
	s := w.Ticker + " [" + w.StartDate.Format(DateLayout) + ", " + w.EndDate.Format(DateLayout) + "]"
	if w.Expected.IsSome() {
		s += " period " + string(w.Expected.Unwrap())
	}

	return s
}
