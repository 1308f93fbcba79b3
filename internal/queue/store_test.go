package queue_test

import (
	"context"
	"errors"
	"testing"

	"adreact/internal/queue"
	"adreact/internal/testsupport"
)

func TestEnqueueAndGet(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job, err := store.Enqueue(ctx, queue.TypeReaction, `{"reaction_id":"abc"}`)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("expected pending, got %s", job.Status)
	}
	if job.Type != queue.TypeReaction {
		t.Fatalf("expected reaction type, got %s", job.Type)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched == nil || fetched.Payload != job.Payload {
		t.Fatalf("fetched job mismatch: %+v", fetched)
	}
}

func TestGetUnknownJobReturnsNil(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	job, err := store.GetByID(context.Background(), 9999)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil job, got %+v", job)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job, err := store.Enqueue(ctx, queue.TypeReaction, "{}")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := store.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	current, _ := store.GetByID(ctx, job.ID)
	if current.Status != queue.StatusProcessing {
		t.Fatalf("expected processing, got %s", current.Status)
	}
	if current.StartedAt == nil {
		t.Fatal("expected started_at to be set")
	}

	if err := store.MarkCompleted(ctx, job.ID); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	current, _ = store.GetByID(ctx, job.ID)
	if current.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s", current.Status)
	}
	if current.FinishedAt == nil {
		t.Fatal("expected finished_at to be set")
	}
}

func TestTerminalStatusIsImmutable(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job, err := store.Enqueue(ctx, queue.TypeReaction, "{}")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := store.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := store.MarkCompleted(ctx, job.ID); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	if err := store.MarkFailed(ctx, job.ID, queue.KindTransient, "boom"); err == nil {
		t.Fatal("expected MarkFailed on completed job to error")
	}
	if err := store.MarkProcessing(ctx, job.ID); err == nil {
		t.Fatal("expected MarkProcessing on completed job to error")
	}

	current, _ := store.GetByID(ctx, job.ID)
	if current.Status != queue.StatusCompleted {
		t.Fatalf("terminal status changed to %s", current.Status)
	}
}

func TestMarkProcessingRequiresPending(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job, err := store.Enqueue(ctx, queue.TypeReaction, "{}")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := store.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := store.MarkProcessing(ctx, job.ID); err == nil {
		t.Fatal("expected second MarkProcessing to error")
	}
}

func TestRetryOnlyFailedJobs(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job, err := store.Enqueue(ctx, queue.TypeReaction, "{}")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if _, err := store.Retry(ctx, job.ID); !errors.Is(err, queue.ErrNotRetryable) {
		t.Fatalf("expected ErrNotRetryable for pending job, got %v", err)
	}

	if err := store.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := store.MarkFailed(ctx, job.ID, queue.KindTransient, "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	retried, err := store.Retry(ctx, job.ID)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if retried.Status != queue.StatusPending {
		t.Fatalf("expected pending after retry, got %s", retried.Status)
	}
	if retried.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", retried.RetryCount)
	}
	if retried.Error != "" {
		t.Fatalf("expected cleared error, got %q", retried.Error)
	}
}

func TestResetProcessingResumesInFlightJobs(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first, _ := store.Enqueue(ctx, queue.TypeReaction, "{}")
	second, _ := store.Enqueue(ctx, queue.TypeVideoAnalysis, "{}")
	if err := store.MarkProcessing(ctx, first.ID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}

	resumable, err := store.CountResumable(ctx)
	if err != nil {
		t.Fatalf("CountResumable: %v", err)
	}
	if resumable != 2 {
		t.Fatalf("expected 2 resumable jobs, got %d", resumable)
	}

	reset, err := store.ResetProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetProcessing: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected 1 reset job, got %d", reset)
	}

	current, _ := store.GetByID(ctx, first.ID)
	if current.Status != queue.StatusPending {
		t.Fatalf("expected pending after reset, got %s", current.Status)
	}
	current, _ = store.GetByID(ctx, second.ID)
	if current.Status != queue.StatusPending {
		t.Fatalf("untouched job changed status: %s", current.Status)
	}
}

func TestNextPendingReturnsOldestFirst(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first, _ := store.Enqueue(ctx, queue.TypeReaction, "first")
	if _, err := store.Enqueue(ctx, queue.TypeReaction, "second"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	next, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected job %d first, got %+v", first.ID, next)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	pending, _ := store.Enqueue(ctx, queue.TypeReaction, "{}")
	done, _ := store.Enqueue(ctx, queue.TypeReaction, "{}")
	if err := store.MarkProcessing(ctx, done.ID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := store.MarkCompleted(ctx, done.ID); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	jobs, err := store.List(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != pending.ID {
		t.Fatalf("expected only pending job, got %d jobs", len(jobs))
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(all))
	}
}

func TestHealthCountsPerStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, queue.TypeReaction, "{}"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	failed, _ := store.Enqueue(ctx, queue.TypeReaction, "{}")
	if err := store.MarkProcessing(ctx, failed.ID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := store.MarkFailed(ctx, failed.ID, queue.KindFatal, "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 2 || health.Pending != 1 || health.Failed != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}
}

func TestClearCompleted(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	done, _ := store.Enqueue(ctx, queue.TypeReaction, "{}")
	if err := store.MarkProcessing(ctx, done.ID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := store.MarkCompleted(ctx, done.ID); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if _, err := store.Enqueue(ctx, queue.TypeReaction, "{}"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	removed, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	remaining, _ := store.List(ctx)
	if len(remaining) != 1 {
		t.Fatalf("expected 1 remaining job, got %d", len(remaining))
	}
}
