package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
)

// Granularity is the calendar period an artifact covers.
type Granularity string

const (
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

// Validate reports whether g is a known granularity.
func (g Granularity) Validate() error {
	switch g {
	case GranularityMonth, GranularityYear:
		return nil
	default:
		return errors.Newf(errors.ErrCodeInvalidPeriod, "unsupported granularity: %q", string(g))
	}
}

// PeriodKey identifies one calendar period: "2024-03" for a month, "2024" for a year.
type PeriodKey string

// PeriodOf returns the key of the period containing date.
func PeriodOf(date time.Time, g Granularity) PeriodKey {
	if g == GranularityYear {
		return PeriodKey(fmt.Sprintf("%04d", date.Year()))
	}

	return PeriodKey(fmt.Sprintf("%04d-%02d", date.Year(), int(date.Month())))
}

// ParsePeriodKey parses and validates a period key.
func ParsePeriodKey(s string) (PeriodKey, error) {
	key := PeriodKey(s)
	if _, _, err := key.parse(); err != nil {
		return "", err
	}

	return key, nil
}

func (k PeriodKey) parse() (year int, month time.Month, err error) {
	parts := strings.Split(string(k), "-")
	if len(parts) > 2 || len(parts[0]) != 4 {
		return 0, 0, errors.Newf(errors.ErrCodeInvalidPeriod, "invalid period key: %q", string(k))
	}

	year, err = strconv.Atoi(parts[0])
	if err != nil || year < 1 {
		return 0, 0, errors.Newf(errors.ErrCodeInvalidPeriod, "invalid period key: %q", string(k))
	}

	if len(parts) == 1 {
		return year, 0, nil
	}

	m, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 || m < 1 || m > 12 {
		return 0, 0, errors.Newf(errors.ErrCodeInvalidPeriod, "invalid period key: %q", string(k))
	}

	return year, time.Month(m), nil
}

// Granularity returns the granularity encoded by the key's shape.
func (k PeriodKey) Granularity() Granularity {
	if strings.Contains(string(k), "-") {
		return GranularityMonth
	}

	return GranularityYear
}

// Bounds returns the first and last calendar date of the period.
func (k PeriodKey) Bounds() (first time.Time, last time.Time, err error) {
	year, month, err := k.parse()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	if month == 0 {
		first = Date(year, time.January, 1)

		return first, AddDays(first.AddDate(1, 0, 0), -1), nil
	}

	first = Date(year, month, 1)

	return first, AddDays(first.AddDate(0, 1, 0), -1), nil
}

// Contains reports whether date falls inside the period.
func (k PeriodKey) Contains(date time.Time) bool {
	return PeriodOf(date, k.Granularity()) == k
}

// FileSuffix renders the key the way artifact names carry it: "2024_03" or "2024".
func (k PeriodKey) FileSuffix() string {
	return strings.ReplaceAll(string(k), "-", "_")
}

// PeriodBucket is the set of bars of one ticker whose trade date lies inside one period.
type PeriodBucket struct {
	Key  PeriodKey
	Bars []PriceBar
}
