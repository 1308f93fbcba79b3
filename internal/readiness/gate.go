package readiness

import (
	"context"
	"fmt"
	"time"
)

// ReadyState mirrors the buffering levels a media handle reports.
type ReadyState int

const (
	HaveNothing     ReadyState = 0
	HaveMetadata    ReadyState = 1
	HaveCurrentData ReadyState = 2
	HaveFutureData  ReadyState = 3
	HaveEnoughData  ReadyState = 4
)

// EventKind identifies a readiness-changing event.
type EventKind string

const (
	EventCanPlay        EventKind = "canplay"
	EventCanPlayThrough EventKind = "canplaythrough"
	EventError          EventKind = "error"
)

// Event is delivered by a handle's subscription channel.
type Event struct {
	Kind EventKind
	Err  error
}

// Handle is a playable media resource whose buffering state can be
// observed. Subscribe returns a channel of readiness events and a cancel
// function that releases the subscription.
type Handle interface {
	ReadyState() ReadyState
	Subscribe() (<-chan Event, func())
}

// Phase markers passed to the optional progress callback so callers can
// instrument the handshake without coupling to its internals.
type Phase string

const (
	PhaseSubscribed   Phase = "subscribed"
	PhaseInitialCheck Phase = "initial-check"
	PhaseEventWait    Phase = "event-wait"
	PhaseReady        Phase = "ready"
)

// ProgressFunc observes gate phases. May be nil.
type ProgressFunc func(Phase)

// TimeoutError reports that the handle never reached a playable state
// within the allowed window.
type TimeoutError struct {
	Timeout time.Duration
}

// Code returns the stable classification string for timeout failures.
func (e *TimeoutError) Code() string { return "timeout" }

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("playback readiness timed out after %s", e.Timeout)
}

// HandshakeError reports a non-timeout playback failure during the wait.
type HandshakeError struct {
	Err error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("playback readiness handshake: %v", e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// Wait blocks until handle reports enough buffered data to play through,
// the timeout elapses, or ctx is cancelled. The subscription is released
// on every return path.
func Wait(ctx context.Context, handle Handle, timeout time.Duration, progress ProgressFunc) error {
	report := func(phase Phase) {
		if progress != nil {
			progress(phase)
		}
	}

	events, cancel := handle.Subscribe()
	defer cancel()
	report(PhaseSubscribed)

	// The canplaythrough event may have fired before we subscribed; check
	// the current state synchronously so we never wait on a stale handle.
	report(PhaseInitialCheck)
	if handle.ReadyState() >= HaveEnoughData {
		report(PhaseReady)
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	report(PhaseEventWait)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return &HandshakeError{Err: fmt.Errorf("readiness subscription closed")}
			}
			switch event.Kind {
			case EventCanPlayThrough:
				report(PhaseReady)
				return nil
			case EventError:
				return &HandshakeError{Err: event.Err}
			default:
				if handle.ReadyState() >= HaveEnoughData {
					report(PhaseReady)
					return nil
				}
			}
		case <-timer.C:
			return &TimeoutError{Timeout: timeout}
		case <-ctx.Done():
			return &HandshakeError{Err: ctx.Err()}
		}
	}
}
