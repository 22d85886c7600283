// Package partition groups daily bars into calendar-period buckets.
package partition

import (
	"slices"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/ohlcv-sync/internal/types"
	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
)

// Stats reports what partitioning did with its input.
type Stats struct {
	Input int
	// Contaminated counts rows dropped because they fell outside the expected period.
	Contaminated int
	// Duplicates counts rows collapsed because another row had the same (ticker, date).
	Duplicates int
}

// Partition groups bars by the period of their trade date.
//
// When expected is set, every bar outside that period is dropped instead of
// opening a neighbouring bucket. Empty buckets are never returned. The result
// does not depend on the order of bars: rows inside a bucket are sorted by
// trade date and rows sharing (ticker, trade date) collapse to the one with
// the latest event time.
func Partition(bars []types.PriceBar, granularity types.Granularity, expected optional.Option[types.PeriodKey]) (map[types.PeriodKey]types.PeriodBucket, Stats, error) {
	stats := Stats{Input: len(bars)}

	if err := granularity.Validate(); err != nil {
		return nil, stats, err
	}

	if expected.IsSome() {
		key := expected.Unwrap()
		if _, err := types.ParsePeriodKey(string(key)); err != nil {
			return nil, stats, err
		}

		if key.Granularity() != granularity {
			return nil, stats, errors.Newf(errors.ErrCodeInvalidPeriod,
				"expected period %s does not match granularity %s", key, granularity)
		}
	}

	type rowKey struct {
		ticker string
		date   int64
	}

	latest := make(map[rowKey]types.PriceBar, len(bars))

	for _, bar := range bars {
		period := types.PeriodOf(bar.TradeDate, granularity)
		if expected.IsSome() && period != expected.Unwrap() {
			stats.Contaminated++

			continue
		}

		k := rowKey{ticker: bar.Ticker, date: bar.TradeDate.Unix()}

		existing, ok := latest[k]
		if !ok {
			latest[k] = bar

			continue
		}

		stats.Duplicates++

		if existing.Less(bar) {
			latest[k] = bar
		}
	}

	buckets := make(map[types.PeriodKey]types.PeriodBucket)

	for _, bar := range latest {
		period := types.PeriodOf(bar.TradeDate, granularity)
		bucket := buckets[period]
		bucket.Key = period
		bucket.Bars = append(bucket.Bars, bar)
		buckets[period] = bucket
	}

	for key, bucket := range buckets {
		slices.SortFunc(bucket.Bars, compareBars)
		buckets[key] = bucket
	}

	return buckets, stats, nil
}

// SortedKeys returns the bucket keys in ascending order.
func SortedKeys(buckets map[types.PeriodKey]types.PeriodBucket) []types.PeriodKey {
	keys := make([]types.PeriodKey, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys
}

func compareBars(a, b types.PriceBar) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}
