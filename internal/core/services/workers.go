package services

import (
	"context"
	"runtime"
	"sync"

	"github.com/openhydrology/hydroprep-cli/internal/core/domain"
	"github.com/openhydrology/hydroprep-cli/internal/core/ports/driven"
	"github.com/openhydrology/hydroprep-cli/internal/logger"
)

// defaultWorkers sizes the download pool. The remote services throttle
// aggressive clients, so stay well below the machine's parallelism.
func defaultWorkers() int {
	n := runtime.NumCPU() / 4
	if n < 1 {
		n = 1
	}
	return n
}

// fetchTiles downloads every tile through the pool, then gives failed tiles
// one more sequential pass; transient faults often clear once the parallel
// load stops. Successful results come back in tile order. The returned
// counts are tiles fetched and tiles still failing after the retry pass.
func fetchTiles[T any](
	ctx context.Context,
	tiles []domain.Extent,
	workers int,
	progress driven.ProgressReporter,
	stage string,
	fetch func(context.Context, domain.Extent) (T, error),
) ([]T, int, int, error) {
	if workers <= 0 {
		workers = defaultWorkers()
	}
	if workers > len(tiles) {
		workers = len(tiles)
	}

	progress.StartStage(stage, len(tiles))
	defer progress.FinishStage()

	values := make([]T, len(tiles))
	errs := make([]error, len(tiles))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				values[i], errs[i] = fetch(ctx, tiles[i])
				progress.Advance(1, tiles[i].String())
			}
		}()
	}

feed:
	for i := range tiles {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, 0, 0, err
	}

	// Sequential second chance for the stragglers.
	for i, err := range errs {
		if err == nil {
			continue
		}
		logger.Warn("tile %s failed, retrying sequentially: %v", tiles[i], err)
		values[i], errs[i] = fetch(ctx, tiles[i])
		if ctx.Err() != nil {
			return nil, 0, 0, ctx.Err()
		}
	}

	out := make([]T, 0, len(tiles))
	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			logger.Error("tile %s failed permanently: %v", tiles[i], err)
			continue
		}
		out = append(out, values[i])
	}
	return out, len(tiles) - failed, failed, nil
}
