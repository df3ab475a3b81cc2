// Package completion joins independent concurrent operations with
// first-failure-wins semantics.
package completion

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ErrNilTask is returned before anything starts when a Task has no Run.
var ErrNilTask = errors.New("task has no run function")

// Task is one named operation. Run must return promptly once ctx is
// cancelled so abandoned tasks release their resources.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// TaskError identifies which task failed first.
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// WhenAllCompletedOrAnyFailed runs every task concurrently. It returns nil
// once all tasks succeed, or the first failure as a *TaskError as soon as it
// is observed. On failure the remaining tasks are cancelled through their
// context and left to finish in the background; the caller is not blocked
// on them.
func WhenAllCompletedOrAnyFailed(ctx context.Context, tasks ...Task) error {
	if len(tasks) == 0 {
		return nil
	}

	for i, task := range tasks {
		if task.Run == nil {
			return fmt.Errorf("%w: task %d (%q)", ErrNilTask, i, task.Name)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	failed := make(chan error, 1)

	for i, task := range tasks {
		name := task.Name
		if name == "" {
			name = fmt.Sprintf("task-%d", i)
		}
		run := task.Run
		g.Go(func() error {
			if err := run(gctx); err != nil {
				taskErr := &TaskError{Task: name, Err: err}
				select {
				case failed <- taskErr:
				default:
				}
				return taskErr
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-failed:
		return err
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Outcome is the joint result of a set of tasks, suitable for reports.
type Outcome struct {
	Succeeded bool
	Failed    string
	Err       error
}

// Evaluate runs WhenAllCompletedOrAnyFailed and folds the result into an
// Outcome.
func Evaluate(ctx context.Context, tasks ...Task) Outcome {
	err := WhenAllCompletedOrAnyFailed(ctx, tasks...)
	if err == nil {
		return Outcome{Succeeded: true}
	}

	out := Outcome{Err: err}
	var taskErr *TaskError
	if errors.As(err, &taskErr) {
		out.Failed = taskErr.Task
	}
	return out
}
