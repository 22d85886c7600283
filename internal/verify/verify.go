// Package verify audits staged artifacts against the invariants the sync promises.
package verify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/ohlcv-sync/internal/artifact"
	"github.com/rxtech-lab/ohlcv-sync/internal/logger"
	"github.com/rxtech-lab/ohlcv-sync/internal/staging"
	"github.com/rxtech-lab/ohlcv-sync/internal/types"
	"github.com/rxtech-lab/ohlcv-sync/internal/version"
	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
	"github.com/rxtech-lab/ohlcv-sync/pkg/marketdata/writer"
)

// FreshnessWindow is how recent an object must be to count as fresh.
const FreshnessWindow = 24 * time.Hour

// Issue kinds reported by the verifier.
const (
	IssueUnparseableKey = "unparseable_key"
	IssueUnreadable     = "unreadable"
	IssueSchema         = "schema"
	IssueVersion        = "schema_version"
	IssueTicker         = "ticker"
	IssueContamination  = "contamination"
	IssueDuplicate      = "duplicate"
	IssueEmpty          = "empty"
)

// Issue is one problem found in one object.
type Issue struct {
	Key     string `yaml:"key"`
	Kind    string `yaml:"kind"`
	Message string `yaml:"message"`
}

// Report is the outcome of one verification pass.
type Report struct {
	Prefix    string    `yaml:"prefix"`
	CheckedAt time.Time `yaml:"checked_at"`
	Objects   int       `yaml:"objects"`
	TotalSize int64     `yaml:"total_bytes"`
	Sampled   int       `yaml:"sampled"`
	Rows      int       `yaml:"rows"`
	// Fresh counts objects modified within FreshnessWindow of CheckedAt.
	Fresh   int            `yaml:"fresh"`
	Tickers map[string]int `yaml:"tickers"`
	Issues  []Issue        `yaml:"issues,omitempty"`
}

// OK reports whether no issue was found.
func (r Report) OK() bool {
	return len(r.Issues) == 0
}

// WriteReport writes the report to path as YAML.
func WriteReport(path string, report Report) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal verify report to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write verify report to file: %w", err)
	}

	return nil
}

// Verifier reads artifacts back from the store and checks them.
type Verifier struct {
	store  staging.Store
	prefix string
	logger *logger.Logger
	now    func() time.Time
}

// NewVerifier creates a Verifier for artifacts under prefix.
func NewVerifier(store staging.Store, prefix string, log *logger.Logger) *Verifier {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Verifier{
		store:  store,
		prefix: prefix,
		logger: log,
		now:    time.Now,
	}
}

// Verify lists every artifact under the prefix and decodes up to sample of them.
// A non-positive sample decodes every artifact. Listing failures are returned as
// errors; problems with individual objects are reported as issues.
func (v *Verifier) Verify(ctx context.Context, sample int) (Report, error) {
	report := Report{
		Prefix:    v.prefix,
		CheckedAt: v.now(),
		Tickers:   make(map[string]int),
	}

	objects, err := v.store.List(ctx, v.prefix)
	if err != nil {
		return report, errors.Wrap(errors.ErrCodeStagingFailed, "failed to list staged artifacts", err)
	}

	report.Objects = len(objects)

	for _, object := range objects {
		report.TotalSize += object.Size

		if report.CheckedAt.Sub(object.LastModified) <= FreshnessWindow {
			report.Fresh++
		}
	}

	for _, object := range sampleObjects(objects, sample) {
		if err := ctx.Err(); err != nil {
			return report, errors.Wrap(errors.ErrCodeRunCancelled, "verification cancelled", err)
		}

		report.Sampled++
		report.Issues = append(report.Issues, v.check(ctx, object.Key, &report)...)
	}

	v.logger.Info("Verification finished",
		zap.String("prefix", v.prefix),
		zap.Int("objects", report.Objects),
		zap.Int("sampled", report.Sampled),
		zap.Int("fresh", report.Fresh),
		zap.Int("issues", len(report.Issues)),
	)

	return report, nil
}

func (v *Verifier) check(ctx context.Context, key string, report *Report) []Issue {
	ticker, period, err := artifact.ParseKey(v.prefix, key)
	if err != nil {
		return []Issue{{Key: key, Kind: IssueUnparseableKey, Message: err.Error()}}
	}

	decoded, err := v.read(ctx, key)
	if err != nil {
		return []Issue{{Key: key, Kind: IssueUnreadable, Message: err.Error()}}
	}

	report.Rows += len(decoded.Bars)
	report.Tickers[ticker] += len(decoded.Bars)

	var issues []Issue

	if !slices.Equal(decoded.Columns, writer.Columns) {
		issues = append(issues, Issue{Key: key, Kind: IssueSchema, Message: fmt.Sprintf("columns %v, want %v", decoded.Columns, writer.Columns)})
	}

	if err := version.CheckSchemaCompatibility(writer.SchemaVersion, decoded.SchemaVersion); err != nil {
		issues = append(issues, Issue{Key: key, Kind: IssueVersion, Message: err.Error()})
	}

	if len(decoded.Bars) == 0 {
		issues = append(issues, Issue{Key: key, Kind: IssueEmpty, Message: "artifact has no rows"})
	}

	seen := make(map[time.Time]bool, len(decoded.Bars))

	for _, bar := range decoded.Bars {
		if bar.Ticker != ticker {
			issues = append(issues, Issue{Key: key, Kind: IssueTicker, Message: fmt.Sprintf("row for %s in %s artifact", bar.Ticker, ticker)})
		}

		if !period.Contains(bar.TradeDate) {
			issues = append(issues, Issue{Key: key, Kind: IssueContamination, Message: fmt.Sprintf("row dated %s outside period %s", bar.TradeDate.Format(types.DateLayout), period)})
		}

		if seen[bar.TradeDate] {
			issues = append(issues, Issue{Key: key, Kind: IssueDuplicate, Message: fmt.Sprintf("duplicate row for %s", bar.TradeDate.Format(types.DateLayout))})
		}

		seen[bar.TradeDate] = true
	}

	return issues
}

func (v *Verifier) read(ctx context.Context, key string) (writer.Decoded, error) {
	body, err := v.store.Get(ctx, key)
	if err != nil {
		return writer.Decoded{}, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return writer.Decoded{}, err
	}

	return writer.Decode(bytes.NewReader(data), int64(len(data)))
}

// sampleObjects picks up to n objects spread evenly over the sorted listing.
func sampleObjects(objects []staging.Object, n int) []staging.Object {
	if n <= 0 || n >= len(objects) {
		return objects
	}

	picked := make([]staging.Object, 0, n)
	for i := range n {
		picked = append(picked, objects[i*len(objects)/n])
	}

	return picked
}
