// Package planner computes the per-ticker fetch windows for a run.
package planner

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/ohlcv-sync/internal/logger"
	"github.com/rxtech-lab/ohlcv-sync/internal/types"
	"github.com/rxtech-lab/ohlcv-sync/internal/warehouse"
	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
)

// DefaultLookbackDays is how far back a ticker with no history is fetched from.
const DefaultLookbackDays = 730

// Planner turns high-water marks into fetch windows.
type Planner struct {
	marks        warehouse.HighWaterMarkStore
	lookbackDays int
	logger       *logger.Logger
}

// NewPlanner creates a Planner. A non-positive lookback uses DefaultLookbackDays.
func NewPlanner(marks warehouse.HighWaterMarkStore, lookbackDays int, log *logger.Logger) *Planner {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Planner{
		marks:        marks,
		lookbackDays: lookbackDays,
		logger:       log,
	}
}

// LookbackFloor returns the first date fetched for a ticker with no history.
func (p *Planner) LookbackFloor(cutoff time.Time) time.Time {
	return types.AddDays(cutoff, -p.lookbackDays)
}

// Plan returns one window per ticker that is behind cutoff, in the order tickers are given.
// Tickers already current are left out. Any high-water mark failure fails the whole plan.
func (p *Planner) Plan(ctx context.Context, tickers []string, cutoff time.Time) ([]types.FetchWindow, error) {
	cutoff = types.TruncateDate(cutoff)

	var windows []types.FetchWindow

	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeRunCancelled, "planning cancelled", err)
		}

		mark, err := p.marks.MaxDate(ctx, ticker)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodePlanningFailed, err, "failed to read high-water mark for %s", ticker)
		}

		start := p.startDate(mark, cutoff)
		if start.After(cutoff) {
			p.logger.Debug("Ticker is current", zap.String("ticker", ticker), zap.Time("high_water_mark", mark.Unwrap()))

			continue
		}

		windows = append(windows, types.FetchWindow{
			Ticker:    ticker,
			StartDate: start,
			EndDate:   cutoff,
		})
	}

	p.logger.Info("Sync planned",
		zap.Int("tickers", len(tickers)),
		zap.Int("windows", len(windows)),
		zap.String("cutoff", cutoff.Format(types.DateLayout)),
	)

	return windows, nil
}

func (p *Planner) startDate(mark optional.Option[time.Time], cutoff time.Time) time.Time {
	if mark.IsSome() {
		return types.AddDays(types.TruncateDate(mark.Unwrap()), 1)
	}

	return p.LookbackFloor(cutoff)
}

// SplitByPeriod cuts window into one sub-window per calendar period it touches.
// Each sub-window carries its period as Expected so partitioning drops overshoot.
func SplitByPeriod(window types.FetchWindow, granularity types.Granularity) ([]types.FetchWindow, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}

	if err := granularity.Validate(); err != nil {
		return nil, err
	}

	var windows []types.FetchWindow

	for start := window.StartDate; !start.After(window.EndDate); {
		period := types.PeriodOf(start, granularity)

		_, last, err := period.Bounds()
		if err != nil {
			return nil, err
		}

		end := last
		if end.After(window.EndDate) {
			end = window.EndDate
		}

		windows = append(windows, types.FetchWindow{
			Ticker:    window.Ticker,
			StartDate: start,
			EndDate:   end,
			Expected:  optional.Some(period),
		})

		start = types.AddDays(last, 1)
	}

	return windows, nil
}
