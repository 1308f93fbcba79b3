package reactions_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"

	"adreact/internal/logging"
	"adreact/internal/queue"
	"adreact/internal/reactions"
	"adreact/internal/testsupport"
)

func TestProcessCompletesReaction(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	reactionStore := testsupport.NewReactionStore(t, store)
	ctx := context.Background()

	content := []byte("fake recording bytes")
	path := testsupport.WriteRecording(t, cfg, "ok.mp4", content)
	rec, err := reactionStore.Create(ctx, reactions.CreateOptions{RecordingPath: path})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	processor := reactions.NewProcessor(reactionStore, logging.NewNop())
	if err := processor.Process(ctx, rec.ReactionID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	current, _ := reactionStore.GetByID(ctx, rec.ReactionID)
	if current.Status != reactions.StatusCompleted {
		t.Fatalf("expected completed, got %s", current.Status)
	}

	var summary reactions.Summary
	if err := json.Unmarshal([]byte(current.SummaryJSON), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.SizeBytes != int64(len(content)) {
		t.Fatalf("expected size %d, got %d", len(content), summary.SizeBytes)
	}
	sum := sha256.Sum256(content)
	if summary.SHA256 != hex.EncodeToString(sum[:]) {
		t.Fatalf("sha mismatch: %s", summary.SHA256)
	}
}

func TestProcessMissingRecordingIsFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	reactionStore := testsupport.NewReactionStore(t, store)
	ctx := context.Background()

	rec, err := reactionStore.Create(ctx, reactions.CreateOptions{RecordingPath: "/nonexistent/rec.mp4"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	processor := reactions.NewProcessor(reactionStore, logging.NewNop())
	err = processor.Process(ctx, rec.ReactionID)
	if err == nil {
		t.Fatal("expected processing error")
	}
	var procErr *reactions.ProcessingError
	if !errors.As(err, &procErr) || procErr.ErrorKind() != queue.KindFatal {
		t.Fatalf("expected fatal classification, got %v", err)
	}

	current, _ := reactionStore.GetByID(ctx, rec.ReactionID)
	if current.Status != reactions.StatusFailed {
		t.Fatalf("expected failed, got %s", current.Status)
	}
	if current.ErrorUserMessage != reactions.UserMessageProcessingFailed {
		t.Fatalf("unexpected user message: %q", current.ErrorUserMessage)
	}
}

func TestProcessSkipsTerminalReaction(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	reactionStore := testsupport.NewReactionStore(t, store)
	ctx := context.Background()

	rec, err := reactionStore.Create(ctx, reactions.CreateOptions{RecordingPath: "/nonexistent/rec.mp4"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := reactionStore.Fail(ctx, rec.ReactionID, "boom", "user"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	processor := reactions.NewProcessor(reactionStore, logging.NewNop())
	if err := processor.Process(ctx, rec.ReactionID); err != nil {
		t.Fatalf("expected terminal skip without error, got %v", err)
	}

	current, _ := reactionStore.GetByID(ctx, rec.ReactionID)
	if current.Status != reactions.StatusFailed || current.Error != "boom" {
		t.Fatalf("terminal reaction mutated: %+v", current)
	}
}

func TestHandleJobDecodesPayload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	reactionStore := testsupport.NewReactionStore(t, store)
	ctx := context.Background()

	path := testsupport.WriteRecording(t, cfg, "ok.mp4", []byte("bytes"))
	rec, job := testsupport.NewQueuedReaction(t, store, reactionStore, path)

	processor := reactions.NewProcessor(reactionStore, logging.NewNop())
	if err := processor.HandleJob(ctx, job); err != nil {
		t.Fatalf("HandleJob: %v", err)
	}

	current, _ := reactionStore.GetByID(ctx, rec.ReactionID)
	if current.Status != reactions.StatusCompleted {
		t.Fatalf("expected completed, got %s", current.Status)
	}
}

func TestHandleJobRejectsBadPayload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	reactionStore := testsupport.NewReactionStore(t, store)

	job, err := store.Enqueue(context.Background(), queue.TypeReaction, "not json")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	processor := reactions.NewProcessor(reactionStore, logging.NewNop())
	err = processor.HandleJob(context.Background(), job)
	var procErr *reactions.ProcessingError
	if !errors.As(err, &procErr) || procErr.ErrorKind() != queue.KindFatal {
		t.Fatalf("expected fatal payload error, got %v", err)
	}
}
