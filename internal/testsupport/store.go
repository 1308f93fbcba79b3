package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"adreact/internal/config"
	"adreact/internal/queue"
	"adreact/internal/reactions"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewReactionStore wraps the queue store's database for reaction tests.
func NewReactionStore(t testing.TB, store *queue.Store) *reactions.Store {
	t.Helper()
	return reactions.NewStore(store.DB())
}

// WriteRecording creates a recording file with content and returns its path.
func WriteRecording(t testing.TB, cfg *config.Config, name string, content []byte) string {
	t.Helper()

	dir := cfg.RecordingsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir recordings: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write recording: %v", err)
	}
	return path
}

// NewQueuedReaction creates a reaction record backed by a queue job.
func NewQueuedReaction(t testing.TB, store *queue.Store, reactionStore *reactions.Store, recordingPath string) (*reactions.Reaction, *queue.Job) {
	t.Helper()

	ctx := context.Background()
	rec, err := reactionStore.Create(ctx, reactions.CreateOptions{RecordingPath: recordingPath})
	if err != nil {
		t.Fatalf("create reaction: %v", err)
	}
	payload, err := reactions.EncodePayload(rec.ReactionID)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	job, err := store.Enqueue(ctx, queue.TypeReaction, payload)
	if err != nil {
		t.Fatalf("enqueue job: %v", err)
	}
	if err := reactionStore.BindQueueJob(ctx, rec.ReactionID, job.ID); err != nil {
		t.Fatalf("bind queue job: %v", err)
	}
	rec, err = reactionStore.GetByID(ctx, rec.ReactionID)
	if err != nil {
		t.Fatalf("reload reaction: %v", err)
	}
	return rec, job
}
