package jobqueue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"adreact/internal/jobqueue"
	"adreact/internal/logging"
)

func TestFallbackSaturationRejectsWork(t *testing.T) {
	executor := jobqueue.NewFallbackExecutor(1, logging.NewNop())
	release := make(chan struct{})

	err := executor.Run(context.Background(), "first", func(ctx context.Context) error {
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}

	err = executor.Run(context.Background(), "second", func(ctx context.Context) error {
		return nil
	})
	if !errors.Is(err, jobqueue.ErrFallbackSaturated) {
		t.Fatalf("expected ErrFallbackSaturated, got %v", err)
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := executor.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	// Capacity is free again after the first task finished.
	if err := executor.Run(context.Background(), "third", func(ctx context.Context) error {
		return nil
	}); err != nil {
		t.Fatalf("Run after drain: %v", err)
	}
	if err := executor.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestFallbackRejectsDuplicateLabels(t *testing.T) {
	executor := jobqueue.NewFallbackExecutor(2, logging.NewNop())
	release := make(chan struct{})
	defer close(release)

	if err := executor.Run(context.Background(), "same", func(ctx context.Context) error {
		<-release
		return nil
	}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := executor.Run(context.Background(), "same", func(ctx context.Context) error {
		return nil
	}); err == nil {
		t.Fatal("expected duplicate label rejection")
	}
}

func TestFallbackTaskSurvivesCallerCancellation(t *testing.T) {
	executor := jobqueue.NewFallbackExecutor(1, logging.NewNop())
	base, cancel := context.WithCancel(context.Background())

	var sawCancel atomic.Bool
	started := make(chan struct{})
	err := executor.Run(base, "detached", func(ctx context.Context) error {
		close(started)
		select {
		case <-ctx.Done():
			sawCancel.Store(true)
		case <-time.After(200 * time.Millisecond):
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	<-started
	cancel()

	ctx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := executor.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if sawCancel.Load() {
		t.Fatal("task context was cancelled by the caller's context")
	}
}

func TestFallbackInFlightTracking(t *testing.T) {
	executor := jobqueue.NewFallbackExecutor(2, logging.NewNop())
	release := make(chan struct{})

	if err := executor.Run(context.Background(), "tracked", func(ctx context.Context) error {
		<-release
		return nil
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	labels := executor.InFlight()
	if len(labels) != 1 || labels[0] != "tracked" {
		t.Fatalf("unexpected in-flight set: %v", labels)
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := executor.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(executor.InFlight()) != 0 {
		t.Fatal("expected empty in-flight set after drain")
	}
}
