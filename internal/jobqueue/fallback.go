package jobqueue

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"adreact/internal/logging"
)

// ErrFallbackSaturated reports that the bounded fallback capacity is
// exhausted; callers should surface the condition rather than queue more
// inline work.
var ErrFallbackSaturated = errors.New("fallback executor at capacity")

// FallbackExecutor runs job handlers inline when the queue worker is
// confirmed not running. Tasks are detached from the caller's request but
// tracked in a bounded in-flight set so shutdown can await them.
type FallbackExecutor struct {
	logger *slog.Logger
	group  *errgroup.Group

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewFallbackExecutor constructs an executor allowing at most limit
// concurrent tasks.
func NewFallbackExecutor(limit int, logger *slog.Logger) *FallbackExecutor {
	if limit < 1 {
		limit = 1
	}
	group := new(errgroup.Group)
	group.SetLimit(limit)
	return &FallbackExecutor{
		logger:   logging.NewComponentLogger(logger, "fallback"),
		group:    group,
		inflight: make(map[string]struct{}),
	}
}

// Run launches task as a tracked concurrent execution. The task receives a
// context detached from the caller's request lifetime so an early client
// disconnect does not abort processing. Returns ErrFallbackSaturated when
// the bounded capacity is full.
func (f *FallbackExecutor) Run(base context.Context, label string, task func(ctx context.Context) error) error {
	f.mu.Lock()
	if _, exists := f.inflight[label]; exists {
		f.mu.Unlock()
		return errors.New("fallback task already in flight: " + label)
	}
	f.inflight[label] = struct{}{}
	f.mu.Unlock()

	// Detach from caller cancellation so neither a client disconnect nor
	// the daemon's signal context aborts a task shutdown is waiting on.
	taskCtx := context.WithoutCancel(base)

	started := f.group.TryGo(func() error {
		defer func() {
			f.mu.Lock()
			delete(f.inflight, label)
			f.mu.Unlock()
		}()

		f.logger.Info("fallback execution started", logging.String("task", label))
		if err := task(taskCtx); err != nil {
			f.logger.Error("fallback execution failed",
				logging.String("task", label),
				logging.Error(err),
			)
			// The failure is persisted by the task itself; don't poison
			// the group for unrelated tasks.
			return nil
		}
		f.logger.Info("fallback execution finished", logging.String("task", label))
		return nil
	})
	if !started {
		f.mu.Lock()
		delete(f.inflight, label)
		f.mu.Unlock()
		return ErrFallbackSaturated
	}
	return nil
}

// InFlight returns the labels of currently running tasks.
func (f *FallbackExecutor) InFlight() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	labels := make([]string, 0, len(f.inflight))
	for label := range f.inflight {
		labels = append(labels, label)
	}
	return labels
}

// Wait blocks until all tracked tasks finish or ctx expires.
func (f *FallbackExecutor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		_ = f.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
