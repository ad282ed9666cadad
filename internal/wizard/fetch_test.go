package wizard_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sportsbet/internal/wizard"
)

// testLoop is a minimal stand-in for the controller's run loop.
type testLoop struct {
	actions chan func()
	quit    chan struct{}
}

func newTestLoop(t *testing.T) *testLoop {
	l := &testLoop{actions: make(chan func(), 64), quit: make(chan struct{})}
	go func() {
		for {
			select {
			case fn := <-l.actions:
				fn()
			case <-l.quit:
				return
			}
		}
	}()
	t.Cleanup(func() { close(l.quit) })
	return l
}

func (l *testLoop) post(fn func()) {
	select {
	case l.actions <- fn:
	case <-l.quit:
	}
}

// run executes fn on the loop and waits for it.
func (l *testLoop) run(t *testing.T, fn func()) {
	t.Helper()
	done := make(chan struct{})
	l.post(func() { fn(); close(done) })
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("loop action timed out")
	}
}

func TestCoordinatorSingleFlightPerStage(t *testing.T) {
	loop := newTestLoop(t)
	state := wizard.NewPipelineState(wizard.NewBus())
	coord := wizard.NewFetchCoordinator(2, loop.post, discardLogger())

	gate := make(chan struct{})
	completions := make(chan error, 2)

	loop.run(t, func() {
		err := coord.Start(context.Background(), wizard.StageSportSelect, state,
			func(ctx context.Context) (any, error) {
				<-gate
				return "result", nil
			},
			func(result any, err error) { completions <- err })
		require.NoError(t, err)
		require.True(t, coord.InFlight(wizard.StageSportSelect))

		// Second trigger for the same stage is rejected, not queued.
		err = coord.Start(context.Background(), wizard.StageSportSelect, state,
			func(ctx context.Context) (any, error) { return nil, nil },
			func(result any, err error) { completions <- err })
		assert.ErrorIs(t, err, wizard.ErrFetchInProgress)

		// A different stage is unaffected.
		err = coord.Start(context.Background(), wizard.StageFilterSelect, state,
			func(ctx context.Context) (any, error) { return nil, nil },
			func(result any, err error) {})
		assert.NoError(t, err)
	})

	close(gate)
	select {
	case err := <-completions:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("fetch never completed")
	}

	// Exactly one completion ran for the stage.
	loop.run(t, func() {
		assert.False(t, coord.InFlight(wizard.StageSportSelect))
	})
	assert.Empty(t, completions)
}

func TestCoordinatorReleasesSlotAfterCompletion(t *testing.T) {
	loop := newTestLoop(t)
	state := wizard.NewPipelineState(wizard.NewBus())
	coord := wizard.NewFetchCoordinator(1, loop.post, discardLogger())

	done := make(chan struct{})
	loop.run(t, func() {
		require.NoError(t, coord.Start(context.Background(), wizard.StageSportSelect, state,
			func(ctx context.Context) (any, error) { return nil, nil },
			func(any, error) { close(done) }))
	})
	<-done

	// The stage can fetch again once the first flight finished.
	loop.run(t, func() {
		assert.NoError(t, coord.Start(context.Background(), wizard.StageSportSelect, state,
			func(ctx context.Context) (any, error) { return nil, nil },
			func(any, error) {}))
	})
}

func TestCoordinatorDiscardsStaleGeneration(t *testing.T) {
	loop := newTestLoop(t)
	state := wizard.NewPipelineState(wizard.NewBus())
	coord := wizard.NewFetchCoordinator(2, loop.post, discardLogger())

	gate := make(chan struct{})
	completed := make(chan struct{}, 1)

	loop.run(t, func() {
		require.NoError(t, coord.Start(context.Background(), wizard.StageFilterSelect, state,
			func(ctx context.Context) (any, error) {
				<-gate
				return "stale", nil
			},
			func(any, error) { completed <- struct{}{} }))
	})

	// Invalidate the owning stage while the fetch is pending.
	loop.run(t, func() { state.InvalidateFrom(wizard.StageFilterSelect) })
	close(gate)

	select {
	case <-completed:
		t.Fatal("stale completion must not run")
	case <-time.After(200 * time.Millisecond):
	}

	// The slot is free again even though the result was discarded.
	loop.run(t, func() {
		assert.False(t, coord.InFlight(wizard.StageFilterSelect))
	})
}

func TestCoordinatorPropagatesFailure(t *testing.T) {
	loop := newTestLoop(t)
	state := wizard.NewPipelineState(wizard.NewBus())
	coord := wizard.NewFetchCoordinator(2, loop.post, discardLogger())

	cause := errors.New("connection refused")
	got := make(chan error, 1)
	loop.run(t, func() {
		require.NoError(t, coord.Start(context.Background(), wizard.StageSportSelect, state,
			func(ctx context.Context) (any, error) { return nil, cause },
			func(result any, err error) {
				assert.Nil(t, result)
				got <- err
			}))
	})

	select {
	case err := <-got:
		assert.ErrorIs(t, err, cause)
	case <-time.After(waitTimeout):
		t.Fatal("failure never propagated")
	}
}
