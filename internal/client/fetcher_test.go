package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"adreact/internal/api"
	"adreact/internal/client"
	"adreact/internal/polling"
)

// fakeDaemon serves canned reaction and queue responses and counts queue
// endpoint hits.
type fakeDaemon struct {
	reaction    api.ReactionView
	reaction404 bool
	job         api.QueueItem
	job404      bool

	queueHits atomic.Int64
}

func (f *fakeDaemon) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/reactions/", func(w http.ResponseWriter, r *http.Request) {
		if f.reaction404 {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(api.ErrorResponse{Error: "reaction not found"})
			return
		}
		json.NewEncoder(w).Encode(api.ReactionResponse{Reaction: f.reaction})
	})
	mux.HandleFunc("/api/queue/", func(w http.ResponseWriter, r *http.Request) {
		f.queueHits.Add(1)
		if f.job404 {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(api.ErrorResponse{Error: "queue job not found"})
			return
		}
		json.NewEncoder(w).Encode(api.QueueItemResponse{Item: f.job})
	})
	return mux
}

func newFakeDaemon(t *testing.T, daemon *fakeDaemon) *client.Client {
	t.Helper()
	server := httptest.NewServer(daemon.handler())
	t.Cleanup(server.Close)
	return client.New(server.URL)
}

func TestFetchQueueBackedReactionIncludesJobDetail(t *testing.T) {
	daemon := &fakeDaemon{
		reaction: api.ReactionView{ReactionID: "r-1", Status: "processing"},
		job:      api.QueueItem{ID: 7, Status: "processing", RetryCount: 2},
	}
	c := newFakeDaemon(t, daemon)

	jobID := int64(7)
	fetch := client.ReactionStatusFetch(c, "r-1", &jobID)

	snapshot, err := fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if snapshot.Terminal {
		t.Fatal("processing must not be terminal")
	}
	if !strings.Contains(snapshot.Detail, "retry 2") {
		t.Fatalf("expected retry detail, got %q", snapshot.Detail)
	}
	if daemon.queueHits.Load() != 1 {
		t.Fatalf("expected 1 queue hit, got %d", daemon.queueHits.Load())
	}
}

func TestFetchFallbackReactionNeverTouchesQueue(t *testing.T) {
	daemon := &fakeDaemon{
		reaction: api.ReactionView{ReactionID: "r-2", Status: "processing_fallback"},
	}
	c := newFakeDaemon(t, daemon)

	fetch := client.ReactionStatusFetch(c, "r-2", nil)

	for i := 0; i < 3; i++ {
		snapshot, err := fetch(context.Background())
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if snapshot.Status != "processing_fallback" {
			t.Fatalf("unexpected status %q", snapshot.Status)
		}
	}
	if daemon.queueHits.Load() != 0 {
		t.Fatalf("fallback polling hit the queue endpoint %d times", daemon.queueHits.Load())
	}
}

func TestFetchSkipsQueueOnceTerminal(t *testing.T) {
	daemon := &fakeDaemon{
		reaction: api.ReactionView{
			ReactionID:       "r-3",
			Status:           "failed",
			ErrorUserMessage: "We couldn't process your reaction.",
		},
		job: api.QueueItem{ID: 9, Status: "failed"},
	}
	c := newFakeDaemon(t, daemon)

	jobID := int64(9)
	fetch := client.ReactionStatusFetch(c, "r-3", &jobID)

	snapshot, err := fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !snapshot.Terminal {
		t.Fatal("failed must be terminal")
	}
	if snapshot.Detail != "We couldn't process your reaction." {
		t.Fatalf("terminal detail must come from the reaction, got %q", snapshot.Detail)
	}
	if daemon.queueHits.Load() != 0 {
		t.Fatal("terminal snapshot must not consult the queue")
	}
}

func TestFetchToleratesClearedQueueJob(t *testing.T) {
	daemon := &fakeDaemon{
		reaction: api.ReactionView{ReactionID: "r-4", Status: "queued"},
		job404:   true,
	}
	c := newFakeDaemon(t, daemon)

	jobID := int64(11)
	fetch := client.ReactionStatusFetch(c, "r-4", &jobID)

	snapshot, err := fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if snapshot.Status != "queued" {
		t.Fatalf("unexpected status %q", snapshot.Status)
	}
}

func TestFetchMapsMissingReactionToNotFound(t *testing.T) {
	daemon := &fakeDaemon{reaction404: true}
	c := newFakeDaemon(t, daemon)

	fetch := client.ReactionStatusFetch(c, "gone", nil)

	_, err := fetch(context.Background())
	if !errors.Is(err, polling.ErrNotFound) {
		t.Fatalf("expected polling.ErrNotFound, got %v", err)
	}
}
