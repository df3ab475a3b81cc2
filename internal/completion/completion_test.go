package completion

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhenAllCompletedOrAnyFailed_AllSucceed(t *testing.T) {
	var ran atomic.Int32
	task := func(ctx context.Context) error {
		ran.Add(1)
		return nil
	}

	err := WhenAllCompletedOrAnyFailed(context.Background(),
		Task{Name: "server", Run: task},
		Task{Name: "client", Run: task},
		Task{Name: "extra", Run: task},
	)

	require.NoError(t, err)
	assert.Equal(t, int32(3), ran.Load())
}

func TestWhenAllCompletedOrAnyFailed_NoTasks(t *testing.T) {
	assert.NoError(t, WhenAllCompletedOrAnyFailed(context.Background()))
}

func TestWhenAllCompletedOrAnyFailed_NilRun(t *testing.T) {
	var ran atomic.Bool
	err := WhenAllCompletedOrAnyFailed(context.Background(),
		Task{Name: "server", Run: func(context.Context) error {
			ran.Store(true)
			return nil
		}},
		Task{Name: "client"},
	)

	require.ErrorIs(t, err, ErrNilTask)
	assert.Contains(t, err.Error(), "client")
	assert.False(t, ran.Load())
}

func TestWhenAllCompletedOrAnyFailed_WaitsForSlowSuccess(t *testing.T) {
	start := time.Now()
	err := WhenAllCompletedOrAnyFailed(context.Background(),
		Task{Name: "fast", Run: func(context.Context) error { return nil }},
		Task{Name: "slow", Run: func(context.Context) error {
			time.Sleep(50 * time.Millisecond)
			return nil
		}},
	)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestWhenAllCompletedOrAnyFailed_FirstFailureUnblocks(t *testing.T) {
	boom := errors.New("handshake failed")
	release := make(chan struct{})
	cancelled := make(chan struct{})
	defer close(release)

	errCh := make(chan error, 1)
	go func() {
		errCh <- WhenAllCompletedOrAnyFailed(context.Background(),
			Task{Name: "server", Run: func(context.Context) error { return boom }},
			Task{Name: "client", Run: func(ctx context.Context) error {
				// Ignores cancellation until released, like a peer stuck in I/O.
				<-ctx.Done()
				close(cancelled)
				<-release
				return ctx.Err()
			}},
		)
	}()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)

		var taskErr *TaskError
		require.ErrorAs(t, err, &taskErr)
		assert.Equal(t, "server", taskErr.Task)
	case <-time.After(2 * time.Second):
		t.Fatal("caller stayed blocked on the slower task")
	}

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("slower task was not cancelled")
	}
}

func TestWhenAllCompletedOrAnyFailed_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WhenAllCompletedOrAnyFailed(ctx,
		Task{Name: "blocked", Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestWhenAllCompletedOrAnyFailed_UnnamedTask(t *testing.T) {
	err := WhenAllCompletedOrAnyFailed(context.Background(),
		Task{Run: func(context.Context) error { return errors.New("x") }},
	)

	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, "task-0", taskErr.Task)
}

func TestEvaluate(t *testing.T) {
	ok := Evaluate(context.Background(), Task{Name: "a", Run: func(context.Context) error { return nil }})
	assert.True(t, ok.Succeeded)
	assert.NoError(t, ok.Err)

	failed := Evaluate(context.Background(), Task{Name: "client", Run: func(context.Context) error { return errors.New("refused") }})
	assert.False(t, failed.Succeeded)
	assert.Equal(t, "client", failed.Failed)
	assert.Error(t, failed.Err)
}
