package staging

import (
	"context"
	"slices"

	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
)

// OnClearProgress is called after every deleted batch with the running total.
type OnClearProgress = func(deleted int, total int)

// Clear deletes every object under prefix in batches and checks that nothing is left.
// It returns the number of objects deleted.
func Clear(ctx context.Context, store Store, prefix string, onProgress OnClearProgress) (int, error) {
	objects, err := store.List(ctx, prefix)
	if err != nil {
		return 0, err
	}

	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		keys = append(keys, obj.Key)
	}

	deleted := 0

	for batch := range slices.Chunk(keys, MaxDeleteBatch) {
		if err := store.Delete(ctx, batch...); err != nil {
			return deleted, err
		}

		deleted += len(batch)

		if onProgress != nil {
			onProgress(deleted, len(keys))
		}
	}

	remaining, err := store.List(ctx, prefix)
	if err != nil {
		return deleted, err
	}

	if len(remaining) > 0 {
		return deleted, errors.Newf(errors.ErrCodeStagingFailed, "%d objects remain under %q after cleanup", len(remaining), prefix)
	}

	return deleted, nil
}
