package provider

import (
	"context"

	"github.com/rxtech-lab/ohlcv-sync/internal/types"
)

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderPolygon ProviderType = "polygon"
)

// ResultStatus tags the variant held by a Result.
type ResultStatus string

const (
	// ResultOK means at least one bar was returned inside the window.
	ResultOK ResultStatus = "OK"
	// ResultNoData means the upstream answered but had nothing for the window.
	// Holidays, delisted symbols and unsupported ranges all land here. It is not an error.
	ResultNoData ResultStatus = "NO_DATA"
	// ResultFailed means the request itself failed (transport, timeout, non-2xx).
	ResultFailed ResultStatus = "FAILED"
)

// Result is the outcome of one fetch: Ok(bars), NoData or Failed(err).
type Result struct {
	Status ResultStatus
	// Bars is only set for ResultOK. Every bar's trade date lies inside the requested window.
	Bars []types.PriceBar
	// Dropped counts upstream rows discarded because they fell outside the window.
	Dropped int
	// Err is only set for ResultFailed.
	Err error
}

// Ok returns a successful result. An empty slice is reported as NoData.
func Ok(bars []types.PriceBar, dropped int) Result {
	if len(bars) == 0 {
		return Result{Status: ResultNoData, Dropped: dropped}
	}

	return Result{Status: ResultOK, Bars: bars, Dropped: dropped}
}

// NoData returns the benign empty result.
func NoData() Result {
	return Result{Status: ResultNoData}
}

// Failed returns a fetch failure carrying err.
func Failed(err error) Result {
	return Result{Status: ResultFailed, Err: err}
}

// Source fetches daily bars for one ticker over one window.
//
// Fetch consumes one unit of the upstream quota; callers space calls with a rate limiter.
type Source interface {
	Fetch(ctx context.Context, window types.FetchWindow) Result
}
