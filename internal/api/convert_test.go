package api_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"adreact/internal/api"
	"adreact/internal/queue"
	"adreact/internal/reactions"
)

func TestQueueItemFromJob(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	started := created.Add(time.Second)
	job := &queue.Job{
		ID:         42,
		Type:       queue.TypeReaction,
		Status:     queue.StatusProcessing,
		RetryCount: 1,
		CreatedAt:  created,
		UpdatedAt:  started,
		StartedAt:  &started,
	}

	item := api.QueueItemFromJob(job)
	if item.ID != 42 || item.Status != "processing" || item.RetryCount != 1 {
		t.Fatalf("unexpected item %+v", item)
	}
	if item.CreatedAt != "2026-03-14T09:26:53.000Z" {
		t.Fatalf("unexpected createdAt %q", item.CreatedAt)
	}
	if item.StartedAt == "" || item.FinishedAt != "" {
		t.Fatalf("unexpected timestamps %+v", item)
	}

	if got := api.QueueItemFromJob(nil); got.ID != 0 {
		t.Fatalf("nil job should produce zero item, got %+v", got)
	}
}

func TestReactionViewSummaryPassthrough(t *testing.T) {
	rec := &reactions.Reaction{
		ReactionID:  "r-1",
		Status:      reactions.StatusCompleted,
		SummaryJSON: `{"sizeBytes":42}`,
	}

	view := api.ReactionViewFromRecord(rec)
	if string(view.Summary) != `{"sizeBytes":42}` {
		t.Fatalf("summary not passed through: %q", view.Summary)
	}

	rec.SummaryJSON = "{broken"
	view = api.ReactionViewFromRecord(rec)
	if view.Summary != nil {
		t.Fatalf("invalid summary must be dropped, got %q", view.Summary)
	}
}

func TestReactionViewQueueJobIDOmittedWhenNil(t *testing.T) {
	view := api.ReactionViewFromRecord(&reactions.Reaction{
		ReactionID: "r-2",
		Status:     reactions.StatusProcessingFallback,
	})

	encoded, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(encoded), "queueJobId") {
		t.Fatalf("nil queue job id must be omitted: %s", encoded)
	}

	jobID := int64(7)
	view.QueueJobID = &jobID
	encoded, err = json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(encoded), `"queueJobId":7`) {
		t.Fatalf("queue job id missing: %s", encoded)
	}
}
