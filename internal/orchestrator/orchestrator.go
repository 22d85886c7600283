// Package orchestrator drives a sync run: rate-limited fetch, partition and write, one ticker at a time.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rxtech-lab/ohlcv-sync/internal/artifact"
	"github.com/rxtech-lab/ohlcv-sync/internal/logger"
	"github.com/rxtech-lab/ohlcv-sync/internal/partition"
	"github.com/rxtech-lab/ohlcv-sync/internal/planner"
	"github.com/rxtech-lab/ohlcv-sync/internal/ratelimit"
	"github.com/rxtech-lab/ohlcv-sync/internal/types"
	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
	"github.com/rxtech-lab/ohlcv-sync/pkg/marketdata/provider"
)

// FetchMode selects how a ticker's window is requested upstream.
type FetchMode string

const (
	// FetchModeWindow issues one request per ticker for the whole window.
	FetchModeWindow FetchMode = "window"
	// FetchModePeriod issues one request per calendar period inside the window.
	FetchModePeriod FetchMode = "period"
)

// Config configures an Orchestrator.
type Config struct {
	Granularity types.Granularity
	Mode        FetchMode
}

// Orchestrator runs planned windows to completion sequentially.
type Orchestrator struct {
	limiter   ratelimit.Limiter
	source    provider.Source
	writer    artifact.Writer
	config    Config
	callbacks LifecycleCallbacks
	logger    *logger.Logger
	now       func() time.Time
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(limiter ratelimit.Limiter, source provider.Source, writer artifact.Writer, config Config, log *logger.Logger) (*Orchestrator, error) {
	if limiter == nil || source == nil || writer == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "orchestrator requires a limiter, a source and a writer")
	}

	if err := config.Granularity.Validate(); err != nil {
		return nil, err
	}

	switch config.Mode {
	case FetchModeWindow, FetchModePeriod:
	case "":
		config.Mode = FetchModeWindow
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported fetch mode: %q", string(config.Mode))
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Orchestrator{
		limiter: limiter,
		source:  source,
		writer:  writer,
		config:  config,
		logger:  log,
		now:     time.Now,
	}, nil
}

// SetCallbacks replaces the lifecycle callbacks.
func (o *Orchestrator) SetCallbacks(callbacks LifecycleCallbacks) {
	o.callbacks = callbacks
}

// Run processes windows in order and returns the run summary.
//
// Per-ticker failures are recorded in the summary and never stop the run.
// When ctx is cancelled no further ticker is started; the summary covers the
// tickers attempted so far and the returned error has ErrCodeRunCancelled.
func (o *Orchestrator) Run(ctx context.Context, windows []types.FetchWindow, cutoff time.Time) (types.RunSummary, error) {
	summary := types.RunSummary{
		RunID:     uuid.NewString(),
		Cutoff:    cutoff.Format(types.DateLayout),
		StartedAt: o.now(),
		Planned:   len(windows),
	}

	log := &logger.Logger{Logger: o.logger.With(zap.String("run_id", summary.RunID))}
	log.Info("Sync run started", zap.Int("planned", summary.Planned), zap.String("cutoff", summary.Cutoff))

	if o.callbacks.OnRunStart != nil {
		(*o.callbacks.OnRunStart)(summary.RunID, summary.Planned)
	}

	var runErr error

	for i, window := range windows {
		if err := ctx.Err(); err != nil {
			runErr = errors.Wrapf(errors.ErrCodeRunCancelled, err, "run cancelled after %d of %d tickers", i, len(windows))

			break
		}

		if o.callbacks.OnEntityStart != nil {
			(*o.callbacks.OnEntityStart)(i, window)
		}

		result, attempted := o.syncEntity(ctx, log, window)
		if !attempted {
			runErr = errors.Wrapf(errors.ErrCodeRunCancelled, ctx.Err(), "run cancelled after %d of %d tickers", i, len(windows))

			break
		}

		summary.Record(result)

		if o.callbacks.OnEntityEnd != nil {
			(*o.callbacks.OnEntityEnd)(i, result)
		}

		if o.callbacks.OnProgress != nil {
			(*o.callbacks.OnProgress)(i+1, len(windows), window.Ticker)
		}
	}

	summary.FinishedAt = o.now()

	log.Info("Sync run finished",
		zap.Int("attempted", summary.Attempted),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("no_data", summary.NoData),
		zap.Int("failed", summary.Failed),
		zap.Int("artifacts", summary.ArtifactsWritten),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)

	if o.callbacks.OnRunEnd != nil {
		(*o.callbacks.OnRunEnd)(summary)
	}

	return summary, runErr
}

// outcome is the result of one upstream request and the writes it produced.
type outcome struct {
	status        types.EntityStatus
	rows          int
	dropped       int
	artifacts     []types.ArtifactRef
	failedPeriods []types.PeriodKey
	reasons       []string
}

// entityState walks one upstream request through the entity status machine.
// The first illegal step is kept in err and every later step is ignored.
type entityState struct {
	ticker   string
	status   types.EntityStatus
	err      error
	onChange *OnEntityStatusCallback
}

func (o *Orchestrator) newEntityState(ticker string) *entityState {
	return &entityState{
		ticker:   ticker,
		status:   types.EntityStatusPending,
		onChange: o.callbacks.OnEntityStatus,
	}
}

func (s *entityState) advance(next types.EntityStatus) {
	if s.err != nil {
		return
	}

	if !s.status.CanTransition(next) {
		s.err = errors.Newf(errors.ErrCodeIllegalTransition, "illegal status transition for %s: %s -> %s", s.ticker, s.status, next)

		return
	}

	from := s.status
	s.status = next

	if s.onChange != nil {
		(*s.onChange)(s.ticker, from, next)
	}
}

// finish stamps the walked status on out. A walk that ended early or took an
// illegal step is reported as a failure instead of the status it claimed.
func (s *entityState) finish(out outcome) outcome {
	if s.err == nil && !s.status.IsTerminal() {
		s.err = errors.Newf(errors.ErrCodeIllegalTransition, "request for %s stopped in %s", s.ticker, s.status)
	}

	if s.err != nil {
		out.reasons = append(out.reasons, s.err.Error())
		out.status = types.EntityStatusFetchFailed

		if len(out.artifacts) > 0 {
			out.status = types.EntityStatusPartialFailure
		}

		return out
	}

	out.status = s.status

	return out
}

// failRequest walks a request that never reached the source to FETCH_FAILED.
func (o *Orchestrator) failRequest(ticker string, reason string) outcome {
	state := o.newEntityState(ticker)
	state.advance(types.EntityStatusFetching)
	state.advance(types.EntityStatusFetchFailed)

	return state.finish(outcome{reasons: []string{reason}})
}

// syncEntity returns attempted=false when ctx ended before the ticker's first request.
func (o *Orchestrator) syncEntity(ctx context.Context, log *logger.Logger, window types.FetchWindow) (types.EntityResult, bool) {
	result := types.EntityResult{
		Ticker:    window.Ticker,
		StartDate: window.StartDate.Format(types.DateLayout),
		EndDate:   window.EndDate.Format(types.DateLayout),
		Status:    types.EntityStatusPending,
	}

	requests := []types.FetchWindow{window}

	var outcomes []outcome

	if o.config.Mode == FetchModePeriod && window.Expected.IsNone() {
		split, err := planner.SplitByPeriod(window, o.config.Granularity)
		if err != nil {
			outcomes = append(outcomes, o.failRequest(window.Ticker, "split: "+err.Error()))
			requests = nil
		} else {
			requests = split
		}
	}

	for i, request := range requests {
		if err := o.limiter.Wait(ctx); err != nil {
			if i == 0 {
				return result, false
			}

			outcomes = append(outcomes, o.failRequest(request.Ticker, err.Error()))

			break
		}

		outcomes = append(outcomes, o.fetchAndWrite(ctx, log, request))
	}

	merge(&result, outcomes)

	fields := []zap.Field{
		zap.String("ticker", result.Ticker),
		zap.String("status", string(result.Status)),
		zap.Int("rows", result.Rows),
		zap.Int("artifacts", len(result.Artifacts)),
	}

	if result.Status.IsFailure() {
		log.Warn("Ticker sync failed", append(fields, zap.String("reason", result.Reason))...)
	} else {
		log.Info("Ticker synced", fields...)
	}

	return result, true
}

func (o *Orchestrator) fetchAndWrite(ctx context.Context, log *logger.Logger, window types.FetchWindow) outcome {
	state := o.newEntityState(window.Ticker)
	state.advance(types.EntityStatusFetching)

	fetched := o.source.Fetch(ctx, window)

	switch fetched.Status {
	case provider.ResultNoData:
		state.advance(types.EntityStatusNoData)

		return state.finish(outcome{dropped: fetched.Dropped})
	case provider.ResultFailed:
		reason := "fetch failed"
		if fetched.Err != nil {
			reason = fetched.Err.Error()
		}

		log.Warn("Fetch failed",
			zap.String("window", window.String()),
			zap.String("category", errors.Category(fetched.Err)),
			zap.Error(fetched.Err),
		)

		state.advance(types.EntityStatusFetchFailed)

		return state.finish(outcome{reasons: []string{reason}})
	}

	state.advance(types.EntityStatusPartitioning)

	buckets, stats, err := partition.Partition(fetched.Bars, o.config.Granularity, window.Expected)
	if err != nil {
		log.Error("Failed to partition fetched bars",
			zap.String("window", window.String()),
			zap.String("category", errors.Category(err)),
			zap.Error(err),
		)

		state.advance(types.EntityStatusPartialFailure)

		return state.finish(outcome{reasons: []string{"partition: " + err.Error()}})
	}

	out := outcome{dropped: fetched.Dropped + stats.Contaminated}

	if stats.Contaminated > 0 {
		log.Warn("Dropped rows outside the requested period",
			zap.String("window", window.String()),
			zap.Int("dropped", stats.Contaminated),
		)
	}

	if len(buckets) == 0 {
		state.advance(types.EntityStatusNoData)

		return state.finish(out)
	}

	state.advance(types.EntityStatusWriting)

	for _, key := range partition.SortedKeys(buckets) {
		bucket := buckets[key]

		ref, err := o.writer.Write(ctx, window.Ticker, key, bucket)
		if err != nil {
			log.Error("Failed to write artifact",
				zap.String("ticker", window.Ticker),
				zap.String("period", string(key)),
				zap.String("category", errors.Category(err)),
				zap.Error(err),
			)

			out.failedPeriods = append(out.failedPeriods, key)
			out.reasons = append(out.reasons, err.Error())

			continue
		}

		out.rows += ref.Rows
		out.artifacts = append(out.artifacts, ref)
	}

	if len(out.failedPeriods) > 0 {
		state.advance(types.EntityStatusPartialFailure)
	} else {
		state.advance(types.EntityStatusDone)
	}

	return state.finish(out)
}

// merge folds the outcomes of a ticker's requests into its result.
//
// A ticker is DONE when at least one artifact was written and nothing failed,
// NO_DATA when every request came back empty, FETCH_FAILED when a request
// failed and nothing was written, and PARTIAL_FAILURE otherwise.
func merge(result *types.EntityResult, outcomes []outcome) {
	var (
		fetchFailed bool
		writeFailed bool
		reasons     []string
	)

	for _, out := range outcomes {
		result.Rows += out.rows
		result.Dropped += out.dropped
		result.Artifacts = append(result.Artifacts, out.artifacts...)
		result.FailedPeriods = append(result.FailedPeriods, out.failedPeriods...)
		reasons = append(reasons, out.reasons...)

		switch out.status {
		case types.EntityStatusFetchFailed:
			fetchFailed = true
		case types.EntityStatusPartialFailure:
			writeFailed = true
		}
	}

	result.Reason = strings.Join(reasons, "; ")

	switch {
	case writeFailed || (fetchFailed && len(result.Artifacts) > 0):
		result.Status = types.EntityStatusPartialFailure
	case fetchFailed:
		result.Status = types.EntityStatusFetchFailed
	case len(result.Artifacts) == 0:
		result.Status = types.EntityStatusNoData
	default:
		result.Status = types.EntityStatusDone
	}
}
