package reactions_test

import (
	"context"
	"testing"

	"adreact/internal/queue"
	"adreact/internal/reactions"
	"adreact/internal/testsupport"
)

func newStores(t *testing.T) (*queue.Store, *reactions.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	return store, testsupport.NewReactionStore(t, store)
}

func TestCreateQueuedReaction(t *testing.T) {
	_, reactionStore := newStores(t)
	ctx := context.Background()

	rec, err := reactionStore.Create(ctx, reactions.CreateOptions{RecordingPath: "/tmp/rec.mp4"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Status != reactions.StatusQueued {
		t.Fatalf("expected queued, got %s", rec.Status)
	}
	if rec.QueueJobID != nil {
		t.Fatalf("expected nil queue job id, got %d", *rec.QueueJobID)
	}
	if rec.ReactionID == "" {
		t.Fatal("expected generated reaction id")
	}
}

func TestCreateFallbackReaction(t *testing.T) {
	_, reactionStore := newStores(t)

	rec, err := reactionStore.Create(context.Background(), reactions.CreateOptions{
		RecordingPath: "/tmp/rec.mp4",
		Fallback:      true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Status != reactions.StatusProcessingFallback {
		t.Fatalf("expected processing_fallback, got %s", rec.Status)
	}
	if rec.QueueJobID != nil {
		t.Fatal("fallback reaction must not reference a queue job")
	}
}

func TestBindQueueJob(t *testing.T) {
	store, reactionStore := newStores(t)
	ctx := context.Background()

	rec, job := testsupport.NewQueuedReaction(t, store, reactionStore, "/tmp/rec.mp4")
	if rec.QueueJobID == nil || *rec.QueueJobID != job.ID {
		t.Fatalf("expected queue job %d bound, got %+v", job.ID, rec.QueueJobID)
	}

	found, err := reactionStore.FindByQueueJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("FindByQueueJob: %v", err)
	}
	if found == nil || found.ReactionID != rec.ReactionID {
		t.Fatalf("expected reaction %s, got %+v", rec.ReactionID, found)
	}
}

func TestBindQueueJobAfterWorkerPickup(t *testing.T) {
	store, reactionStore := newStores(t)
	ctx := context.Background()

	rec, err := reactionStore.Create(ctx, reactions.CreateOptions{RecordingPath: "/tmp/rec.mp4"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	job, err := store.Enqueue(ctx, queue.TypeReaction, "{}")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// The worker popped the job and moved the reaction on before the
	// upload path recorded the binding. The bind must still land.
	if err := reactionStore.MarkProcessing(ctx, rec.ReactionID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := reactionStore.BindQueueJob(ctx, rec.ReactionID, job.ID); err != nil {
		t.Fatalf("BindQueueJob: %v", err)
	}

	current, _ := reactionStore.GetByID(ctx, rec.ReactionID)
	if current.Status != reactions.StatusProcessing {
		t.Fatalf("bind changed status to %s", current.Status)
	}
	if current.QueueJobID == nil || *current.QueueJobID != job.ID {
		t.Fatalf("expected queue job %d bound, got %+v", job.ID, current.QueueJobID)
	}

	// Even a reaction the worker already finished keeps its job reference.
	if err := reactionStore.Complete(ctx, rec.ReactionID, `{"size_bytes":1}`); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := reactionStore.BindQueueJob(ctx, rec.ReactionID, job.ID); err != nil {
		t.Fatalf("BindQueueJob after complete: %v", err)
	}
}

func TestBindQueueJobRejectsFallbackReaction(t *testing.T) {
	store, reactionStore := newStores(t)
	ctx := context.Background()

	rec, err := reactionStore.Create(ctx, reactions.CreateOptions{RecordingPath: "/tmp/rec.mp4", Fallback: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	job, err := store.Enqueue(ctx, queue.TypeReaction, "{}")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := reactionStore.BindQueueJob(ctx, rec.ReactionID, job.ID); err == nil {
		t.Fatal("expected bind on fallback reaction to error")
	}
	current, _ := reactionStore.GetByID(ctx, rec.ReactionID)
	if current.QueueJobID != nil {
		t.Fatal("fallback reaction must not reference a queue job")
	}
}

func TestMarkProcessingKeepsFallbackStatus(t *testing.T) {
	_, reactionStore := newStores(t)
	ctx := context.Background()

	rec, err := reactionStore.Create(ctx, reactions.CreateOptions{
		RecordingPath: "/tmp/rec.mp4",
		Fallback:      true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := reactionStore.MarkProcessing(ctx, rec.ReactionID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}

	current, _ := reactionStore.GetByID(ctx, rec.ReactionID)
	if current.Status != reactions.StatusProcessingFallback {
		t.Fatalf("fallback status changed to %s", current.Status)
	}
}

func TestCompleteAndTerminalImmutability(t *testing.T) {
	_, reactionStore := newStores(t)
	ctx := context.Background()

	rec, err := reactionStore.Create(ctx, reactions.CreateOptions{RecordingPath: "/tmp/rec.mp4"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := reactionStore.MarkProcessing(ctx, rec.ReactionID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := reactionStore.Complete(ctx, rec.ReactionID, `{"size_bytes":1}`); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if err := reactionStore.Fail(ctx, rec.ReactionID, "late", "late"); err == nil {
		t.Fatal("expected Fail on completed reaction to error")
	}
	current, _ := reactionStore.GetByID(ctx, rec.ReactionID)
	if current.Status != reactions.StatusCompleted {
		t.Fatalf("terminal status changed to %s", current.Status)
	}
	if current.SummaryJSON == "" {
		t.Fatal("expected summary to be stored")
	}
}

func TestFailRecordsUserMessage(t *testing.T) {
	_, reactionStore := newStores(t)
	ctx := context.Background()

	rec, err := reactionStore.Create(ctx, reactions.CreateOptions{RecordingPath: "/tmp/rec.mp4"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := reactionStore.Fail(ctx, rec.ReactionID, "internal detail", "user facing"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	current, _ := reactionStore.GetByID(ctx, rec.ReactionID)
	if current.Status != reactions.StatusFailed {
		t.Fatalf("expected failed, got %s", current.Status)
	}
	if current.Error != "internal detail" || current.ErrorUserMessage != "user facing" {
		t.Fatalf("unexpected error fields: %q / %q", current.Error, current.ErrorUserMessage)
	}
}

func TestRequeueFailedReaction(t *testing.T) {
	store, reactionStore := newStores(t)
	ctx := context.Background()

	rec, job := testsupport.NewQueuedReaction(t, store, reactionStore, "/tmp/rec.mp4")
	if err := reactionStore.Fail(ctx, rec.ReactionID, "boom", "user"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if err := reactionStore.Requeue(ctx, rec.ReactionID, job.ID); err != nil {
		t.Fatalf("Requeue: %v", err)
	}

	current, _ := reactionStore.GetByID(ctx, rec.ReactionID)
	if current.Status != reactions.StatusQueued {
		t.Fatalf("expected queued after requeue, got %s", current.Status)
	}
	if current.Error != "" || current.ErrorUserMessage != "" {
		t.Fatal("expected errors cleared on requeue")
	}
}

func TestMarkFallbackReroutesQueuedReaction(t *testing.T) {
	store, reactionStore := newStores(t)
	ctx := context.Background()

	rec, _ := testsupport.NewQueuedReaction(t, store, reactionStore, "/tmp/rec.mp4")
	if err := reactionStore.MarkFallback(ctx, rec.ReactionID); err != nil {
		t.Fatalf("MarkFallback: %v", err)
	}

	current, _ := reactionStore.GetByID(ctx, rec.ReactionID)
	if current.Status != reactions.StatusProcessingFallback {
		t.Fatalf("expected processing_fallback, got %s", current.Status)
	}
	if current.QueueJobID != nil {
		t.Fatal("expected queue job binding cleared")
	}
}

func TestListFiltersByStatus(t *testing.T) {
	_, reactionStore := newStores(t)
	ctx := context.Background()

	if _, err := reactionStore.Create(ctx, reactions.CreateOptions{RecordingPath: "/tmp/a.mp4"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	fallback, err := reactionStore.Create(ctx, reactions.CreateOptions{RecordingPath: "/tmp/b.mp4", Fallback: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	listed, err := reactionStore.List(ctx, reactions.StatusProcessingFallback)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 1 || listed[0].ReactionID != fallback.ReactionID {
		t.Fatalf("expected only fallback reaction, got %d", len(listed))
	}
}
