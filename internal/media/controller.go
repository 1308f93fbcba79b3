package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"adreact/internal/logging"
)

// Controller owns the camera stream attached to the visible surface. At
// most one stream is attached at any time; callers never stop tracks
// directly.
type Controller struct {
	device  Device
	surface Surface
	logger  *slog.Logger

	mu              sync.Mutex
	preview         *Stream
	recording       *Stream
	playbackBlocked bool
	closed          bool
}

// NewController constructs a controller bound to one device and surface.
func NewController(device Device, surface Surface, logger *slog.Logger) *Controller {
	return &Controller{
		device:  device,
		surface: surface,
		logger:  logging.NewComponentLogger(logger, "media"),
	}
}

// StartPreview acquires a video-only stream and attaches it. On failure the
// prior state is left untouched.
func (c *Controller) StartPreview(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("media controller closed")
	}
	if c.preview != nil {
		return nil
	}

	stream, err := c.device.Acquire(ctx, AcquireOptions{Audio: false})
	if err != nil {
		return &AcquisitionError{Err: fmt.Errorf("acquire preview: %w", err)}
	}

	c.preview = stream
	c.attachAndPlayLocked(ctx, stream)
	return nil
}

// StartRecording acquires a video+audio stream, stops and discards the
// preview stream, attaches the new stream, and returns it. A partial
// acquisition is rolled back before the error is returned.
func (c *Controller) StartRecording(ctx context.Context) (*Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("media controller closed")
	}
	if c.recording != nil {
		return c.recording, nil
	}

	stream, err := c.device.Acquire(ctx, AcquireOptions{Audio: true})
	if err != nil {
		return nil, &AcquisitionError{Err: fmt.Errorf("acquire recording stream: %w", err)}
	}
	if !stream.HasAudio() {
		// Partial acquisition: roll the new stream back, keep the preview.
		stream.Stop()
		return nil, &AcquisitionError{Err: errors.New("recording stream missing audio track")}
	}

	if c.preview != nil {
		c.preview.Stop()
		c.preview = nil
	}

	c.recording = stream
	c.attachAndPlayLocked(ctx, stream)
	return stream, nil
}

// StopRecording idempotently stops the recording stream and clears it.
func (c *Controller) StopRecording() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recording == nil {
		return
	}
	c.surface.Detach()
	c.recording.Stop()
	c.recording = nil
}

// StopPreview idempotently stops the preview stream and clears it.
func (c *Controller) StopPreview() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.preview == nil {
		return
	}
	c.surface.Detach()
	c.preview.Stop()
	c.preview = nil
}

// PlaybackBlocked reports whether the last play attempt was rejected
// pending a user gesture.
func (c *Controller) PlaybackBlocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playbackBlocked
}

// ResumePlayback retries playback from a user gesture.
func (c *Controller) ResumePlayback(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.surface.Play(ctx); err != nil {
		if errors.Is(err, ErrPlaybackBlocked) {
			c.playbackBlocked = true
			return nil
		}
		return fmt.Errorf("resume playback: %w", err)
	}
	c.playbackBlocked = false
	return nil
}

// ActiveStream returns the currently attached stream, if any.
func (c *Controller) ActiveStream() *Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recording != nil {
		return c.recording
	}
	return c.preview
}

// Close stops every owned stream. Safe to call repeatedly.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.surface.Detach()
	if c.recording != nil {
		c.recording.Stop()
		c.recording = nil
	}
	if c.preview != nil {
		c.preview.Stop()
		c.preview = nil
	}
}

// attachAndPlayLocked attaches a stream and attempts playback. A rejected
// play is recorded as the playbackBlocked flag, never an error.
func (c *Controller) attachAndPlayLocked(ctx context.Context, stream *Stream) {
	c.surface.Attach(stream)
	if err := c.surface.Play(ctx); err != nil {
		if errors.Is(err, ErrPlaybackBlocked) {
			c.playbackBlocked = true
			c.logger.Info("playback blocked, awaiting user gesture")
			return
		}
		c.logger.Warn("surface play failed", logging.Error(err))
		return
	}
	c.playbackBlocked = false
}
