package media

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPlaybackBlocked reports that a surface refused to start playback
// without a user gesture. Controllers surface it as a flag, not a failure.
var ErrPlaybackBlocked = errors.New("playback blocked pending user gesture")

// AcquisitionError reports a failed stream acquisition: permission denied,
// missing device, or a partially acquired stream that was rolled back.
type AcquisitionError struct {
	Err error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("media acquisition: %v", e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// Track is a single media track within a stream. Stop releases the
// underlying device resource; implementations may assume it is called at
// most once (Stream enforces that).
type Track interface {
	Kind() string
	Stop()
}

// Stream bundles the tracks acquired in one device request. Stopping a
// stream stops every track exactly once regardless of how many callers
// race the teardown.
type Stream struct {
	tracks   []Track
	hasAudio bool
	stopOnce sync.Once
}

// NewStream builds a stream from acquired tracks.
func NewStream(hasAudio bool, tracks ...Track) *Stream {
	return &Stream{tracks: tracks, hasAudio: hasAudio}
}

// Tracks returns the stream's tracks.
func (s *Stream) Tracks() []Track {
	if s == nil {
		return nil
	}
	return s.tracks
}

// HasAudio reports whether the stream carries an audio track.
func (s *Stream) HasAudio() bool {
	return s != nil && s.hasAudio
}

// Stop stops every track exactly once. Safe to call repeatedly.
func (s *Stream) Stop() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		for _, track := range s.tracks {
			track.Stop()
		}
	})
}

// AcquireOptions selects the tracks a device request asks for.
type AcquireOptions struct {
	Audio bool
}

// Device acquires camera streams. Implementations must either return a
// fully acquired stream or clean up any partially acquired tracks and
// return an error.
type Device interface {
	Acquire(ctx context.Context, opts AcquireOptions) (*Stream, error)
}

// Surface is the visual element a stream attaches to. Play may return
// ErrPlaybackBlocked when the host requires a user gesture.
type Surface interface {
	Attach(stream *Stream)
	Detach()
	Play(ctx context.Context) error
}
