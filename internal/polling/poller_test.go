package polling_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"adreact/internal/logging"
	"adreact/internal/polling"
)

// warnCapture records the consecutive-failure count carried by each
// warning-level log record.
type warnCapture struct {
	mu    sync.Mutex
	warns []int64
}

func (h *warnCapture) Enabled(context.Context, slog.Level) bool { return true }

func (h *warnCapture) Handle(_ context.Context, record slog.Record) error {
	if record.Level < slog.LevelWarn {
		return nil
	}
	failures := int64(-1)
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == "consecutive_failures" {
			failures = attr.Value.Int64()
		}
		return true
	})
	h.mu.Lock()
	h.warns = append(h.warns, failures)
	h.mu.Unlock()
	return nil
}

func (h *warnCapture) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *warnCapture) WithGroup(string) slog.Handler      { return h }

func (h *warnCapture) captured() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int64(nil), h.warns...)
}

func TestPollerStopsOnTerminalSnapshot(t *testing.T) {
	var calls atomic.Int64
	fetch := func(ctx context.Context) (polling.Snapshot, error) {
		if calls.Add(1) < 3 {
			return polling.Snapshot{Status: "processing"}, nil
		}
		return polling.Snapshot{Status: "completed", Terminal: true}, nil
	}

	var mu sync.Mutex
	var updates []string
	var terminal *polling.Snapshot
	callbacks := polling.Callbacks{
		OnUpdate: func(s polling.Snapshot) {
			mu.Lock()
			updates = append(updates, s.Status)
			mu.Unlock()
		},
		OnTerminal: func(s polling.Snapshot) {
			mu.Lock()
			terminal = &s
			mu.Unlock()
		},
	}

	poller := polling.NewPoller(fetch, 10*time.Millisecond, callbacks, logging.NewNop())
	poller.Start(context.Background())

	select {
	case <-poller.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("poller never stopped")
	}

	mu.Lock()
	defer mu.Unlock()
	if terminal == nil || terminal.Status != "completed" {
		t.Fatalf("expected terminal completed, got %+v", terminal)
	}
	if len(updates) != 3 {
		t.Fatalf("expected 3 updates, got %d", len(updates))
	}
}

func TestPollerStopsWhenItemDisappears(t *testing.T) {
	fetch := func(ctx context.Context) (polling.Snapshot, error) {
		return polling.Snapshot{}, polling.ErrNotFound
	}

	var gone atomic.Bool
	poller := polling.NewPoller(fetch, 10*time.Millisecond, polling.Callbacks{
		OnGone: func() { gone.Store(true) },
	}, logging.NewNop())
	poller.Start(context.Background())

	select {
	case <-poller.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("poller never stopped")
	}
	if !gone.Load() {
		t.Fatal("OnGone not invoked")
	}
}

func TestPollerSurvivesTransientFailures(t *testing.T) {
	var calls atomic.Int64
	fetch := func(ctx context.Context) (polling.Snapshot, error) {
		n := calls.Add(1)
		if n <= 5 {
			return polling.Snapshot{}, errors.New("server busy")
		}
		return polling.Snapshot{Status: "completed", Terminal: true}, nil
	}

	poller := polling.NewPoller(fetch, 5*time.Millisecond, polling.Callbacks{}, logging.NewNop())
	poller.Start(context.Background())

	select {
	case <-poller.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("poller gave up on transient failures")
	}

	last := poller.Last()
	if last == nil || last.Status != "completed" {
		t.Fatalf("expected final snapshot, got %+v", last)
	}
}

func TestPollerFailureWarningLadder(t *testing.T) {
	var calls atomic.Int64
	fetch := func(ctx context.Context) (polling.Snapshot, error) {
		if calls.Add(1) <= 10 {
			return polling.Snapshot{}, errors.New("server busy")
		}
		return polling.Snapshot{Status: "completed", Terminal: true}, nil
	}

	capture := &warnCapture{}
	poller := polling.NewPoller(fetch, time.Millisecond, polling.Callbacks{}, slog.New(capture))
	poller.Start(context.Background())

	select {
	case <-poller.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("poller never finished")
	}

	// Ten straight failures: one warning at the 3rd, one escalation at the
	// 9th, silence in between and after.
	warns := capture.captured()
	if len(warns) != 2 || warns[0] != 3 || warns[1] != 9 {
		t.Fatalf("expected warnings at failures 3 and 9, got %v", warns)
	}
}

func TestPollerStop(t *testing.T) {
	fetch := func(ctx context.Context) (polling.Snapshot, error) {
		return polling.Snapshot{Status: "processing"}, nil
	}

	poller := polling.NewPoller(fetch, 10*time.Millisecond, polling.Callbacks{}, logging.NewNop())
	poller.Start(context.Background())
	poller.Stop()

	select {
	case <-poller.Done():
	case <-time.After(time.Second):
		t.Fatal("Done channel not closed after Stop")
	}

	// Stop again is safe.
	poller.Stop()
}

func TestPollerDefaultInterval(t *testing.T) {
	poller := polling.NewPoller(func(ctx context.Context) (polling.Snapshot, error) {
		return polling.Snapshot{Terminal: true}, nil
	}, 0, polling.Callbacks{}, logging.NewNop())
	poller.Start(context.Background())

	select {
	case <-poller.Done():
	case <-time.After(time.Second):
		t.Fatal("first poll should happen immediately regardless of interval")
	}
}
