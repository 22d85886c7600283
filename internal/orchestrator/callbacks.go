package orchestrator

import "github.com/rxtech-lab/ohlcv-sync/internal/types"

// Lifecycle callback types for a sync run.

// OnRunStartCallback is called once before the first ticker is fetched.
type OnRunStartCallback func(runID string, planned int)

// OnEntityStartCallback is called before a ticker's first fetch.
type OnEntityStartCallback func(index int, window types.FetchWindow)

// OnEntityStatusCallback is called on every status step of a ticker's request.
// In period mode each request walks the status machine from PENDING on its own.
type OnEntityStatusCallback func(ticker string, from types.EntityStatus, to types.EntityStatus)

// OnEntityEndCallback is called with a ticker's terminal result.
type OnEntityEndCallback func(index int, result types.EntityResult)

// OnProgressCallback is called after every ticker with the number of tickers processed so far.
type OnProgressCallback func(done int, total int, ticker string)

// OnRunEndCallback is called once with the final summary, also when the run was cancelled.
type OnRunEndCallback func(summary types.RunSummary)

// LifecycleCallbacks holds the callbacks a run invokes.
// All fields are pointers - nil means no callback will be invoked.
type LifecycleCallbacks struct {
	OnRunStart     *OnRunStartCallback
	OnEntityStart  *OnEntityStartCallback
	OnEntityStatus *OnEntityStatusCallback
	OnEntityEnd    *OnEntityEndCallback
	OnProgress     *OnProgressCallback
	OnRunEnd       *OnRunEndCallback
}
