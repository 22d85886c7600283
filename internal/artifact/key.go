package artifact

import (
	"regexp"
	"strings"

	"github.com/rxtech-lab/ohlcv-sync/internal/types"
	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
)

// Extension is the file extension every artifact key ends with.
const Extension = ".parquet"

var (
	monthKeyPattern = regexp.MustCompile(`^(.+)_(\d{4})_(\d{2})$`)
	yearKeyPattern  = regexp.MustCompile(`^(.+)_(\d{4})$`)
)

// Key returns the staging key for (ticker, period). It is a pure function of its arguments.
func Key(prefix string, ticker string, period types.PeriodKey) string {
	return prefix + ticker + "_" + period.FileSuffix() + Extension
}

// ParseKey recovers (ticker, period) from a key produced by Key.
func ParseKey(prefix string, key string) (string, types.PeriodKey, error) {
	name, ok := strings.CutPrefix(key, prefix)
	if !ok {
		return "", "", errors.Newf(errors.ErrCodeInvalidIdentifier, "key %q is outside prefix %q", key, prefix)
	}

	name, ok = strings.CutSuffix(name, Extension)
	if !ok {
		return "", "", errors.Newf(errors.ErrCodeInvalidIdentifier, "key %q is not a parquet artifact", key)
	}

	var period string

	if m := monthKeyPattern.FindStringSubmatch(name); m != nil {
		name, period = m[1], m[2]+"-"+m[3]
	} else if m := yearKeyPattern.FindStringSubmatch(name); m != nil {
		name, period = m[1], m[2]
	} else {
		return "", "", errors.Newf(errors.ErrCodeInvalidIdentifier, "key %q does not carry a period", key)
	}

	parsed, err := types.ParsePeriodKey(period)
	if err != nil {
		return "", "", err
	}

	return name, parsed, nil
}
