package wizard

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"
)

// FetchCoordinator dispatches a stage's slow external call to a bounded
// worker pool and resumes its completion onto the controller's run loop.
//
// It enforces single-flight per stage: while a fetch is pending, a second
// trigger for the same stage is rejected with ErrFetchInProgress. Stale
// completions are detected through the state's per-stage generation
// counter, captured at fetch start; a completion whose generation no
// longer matches is discarded without touching PipelineState.
type FetchCoordinator struct {
	sem    *semaphore.Weighted
	resume func(func())
	logger *slog.Logger

	// inflight is read and written only on the controller loop.
	inflight map[Stage]bool
}

// NewFetchCoordinator creates a coordinator with the given pool size.
// resume must schedule its argument onto the controller's run loop.
func NewFetchCoordinator(workers int64, resume func(func()), logger *slog.Logger) *FetchCoordinator {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FetchCoordinator{
		sem:      semaphore.NewWeighted(workers),
		resume:   resume,
		logger:   logger.With(slog.String("component", "wizard.fetch")),
		inflight: make(map[Stage]bool),
	}
}

// InFlight reports whether the stage's single-flight slot is held. Loop
// only.
func (c *FetchCoordinator) InFlight(stage Stage) bool {
	return c.inflight[stage]
}

// Start begins a fetch for the stage. It must be called on the controller
// loop. fetch runs on a pool worker; complete runs back on the loop, and
// only if the stage's generation is unchanged since Start. On a stale
// completion the result is dropped, success or failure alike.
func (c *FetchCoordinator) Start(
	ctx context.Context,
	stage Stage,
	state *PipelineState,
	fetch func(ctx context.Context) (any, error),
	complete func(result any, err error),
) error {
	if c.inflight[stage] {
		return ErrFetchInProgress
	}
	gen := state.Generation(stage)
	c.inflight[stage] = true

	go func() {
		start := time.Now()
		result, err := c.call(ctx, fetch)
		elapsed := time.Since(start)

		c.resume(func() {
			c.inflight[stage] = false
			observeFetch(stage, err, elapsed)

			if state.Generation(stage) != gen {
				staleFetchesTotal.Inc()
				c.logger.Debug("discarding stale fetch result",
					slog.String("stage", stage.String()),
					slog.Uint64("started_generation", gen),
					slog.Uint64("current_generation", state.Generation(stage)))
				return
			}
			complete(result, err)
		})
	}()
	return nil
}

func (c *FetchCoordinator) call(ctx context.Context, fetch func(ctx context.Context) (any, error)) (any, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)
	return fetch(ctx)
}
