package polling

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"adreact/internal/logging"
)

// ErrNotFound is returned by a FetchFunc when the watched item no longer
// exists on the server. It terminates polling.
var ErrNotFound = errors.New("watched item not found")

// Snapshot is one observed state of the watched item.
type Snapshot struct {
	Status   string
	Detail   string
	Terminal bool
}

// FetchFunc retrieves the current state of the watched item. Returning
// ErrNotFound stops the poller; any other error counts as a transient
// failure.
type FetchFunc func(ctx context.Context) (Snapshot, error)

// Callbacks observe poller activity. Any field may be nil.
type Callbacks struct {
	OnUpdate   func(Snapshot)
	OnTerminal func(Snapshot)
	OnGone     func()
}

// Consecutive-failure thresholds. The first warning fires on the third
// straight failure, then repeats every sixth failure after that.
const (
	warnAfterFailures  = 3
	escalateEveryAfter = 6
)

// Poller repeatedly fetches the status of one item until it reaches a
// terminal state, disappears, or is stopped.
type Poller struct {
	fetch    FetchFunc
	interval time.Duration
	cb       Callbacks
	logger   *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	failures int
	last     *Snapshot
}

// NewPoller constructs a poller. A non-positive interval falls back to
// four seconds.
func NewPoller(fetch FetchFunc, interval time.Duration, cb Callbacks, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 4 * time.Second
	}
	return &Poller{
		fetch:    fetch,
		interval: interval,
		cb:       cb,
		logger:   logging.NewComponentLogger(logger, "polling"),
	}
}

// Start launches the polling loop. The first fetch happens immediately;
// subsequent fetches wait one interval. Start is a no-op if the poller is
// already running.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(runCtx, p.done)
}

// Stop halts polling and waits for the loop to exit. Safe to call more
// than once and safe after the poller stopped on its own.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Done returns a channel closed when the polling loop has exited, or nil
// if the poller was never started.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Last returns the most recent successfully fetched snapshot, if any.
func (p *Poller) Last() *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if stop := p.poll(ctx); stop {
			return
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// poll performs one fetch and reports whether the loop should stop.
func (p *Poller) poll(ctx context.Context) bool {
	snapshot, err := p.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		if errors.Is(err, ErrNotFound) {
			p.logger.Warn("watched item disappeared, stopping poll")
			if p.cb.OnGone != nil {
				p.cb.OnGone()
			}
			return true
		}
		p.recordFailure(err)
		return false
	}

	p.mu.Lock()
	p.failures = 0
	p.last = &snapshot
	p.mu.Unlock()

	if p.cb.OnUpdate != nil {
		p.cb.OnUpdate(snapshot)
	}
	if snapshot.Terminal {
		if p.cb.OnTerminal != nil {
			p.cb.OnTerminal(snapshot)
		}
		return true
	}
	return false
}

// recordFailure tracks consecutive fetch failures. Polling keeps going
// indefinitely; only the log volume changes so slow servers do not flood
// the output.
func (p *Poller) recordFailure(err error) {
	p.mu.Lock()
	p.failures++
	failures := p.failures
	p.mu.Unlock()

	switch {
	case failures == warnAfterFailures:
		p.logger.Warn("status fetch failing repeatedly",
			logging.Int("consecutive_failures", failures),
			logging.Error(err),
		)
	case failures > warnAfterFailures && (failures-warnAfterFailures)%escalateEveryAfter == 0:
		p.logger.Warn("status fetch still failing",
			logging.Int("consecutive_failures", failures),
			logging.Error(err),
		)
	default:
		p.logger.Debug("status fetch failed",
			logging.Int("consecutive_failures", failures),
			logging.Error(err),
		)
	}
}
