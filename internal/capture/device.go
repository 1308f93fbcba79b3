package capture

import (
	"context"
	"fmt"
	"os"
	"strings"

	"adreact/internal/media"
)

// Config locates the capture binary and device nodes.
type Config struct {
	FFmpegBinary string
	VideoDevice  string
	AudioDevice  string
	OutputDir    string
}

// Device implements media.Device over local capture nodes. Acquisition is
// logical: the device verifies the nodes exist and hands out a stream
// whose tracks are released by Stream.Stop. Exclusive access is enforced
// by the capture process itself.
type Device struct {
	cfg Config
}

// NewDevice constructs a device from capture configuration.
func NewDevice(cfg Config) *Device {
	return &Device{cfg: cfg}
}

// Acquire verifies the requested device nodes and returns a stream. When
// audio is requested but the audio node is unavailable, any acquired video
// track is released and an error is returned; a stream is never returned
// partially acquired.
func (d *Device) Acquire(ctx context.Context, opts media.AcquireOptions) (*media.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkNode(d.cfg.VideoDevice); err != nil {
		return nil, fmt.Errorf("video device: %w", err)
	}
	tracks := []media.Track{&nodeTrack{kind: "video", node: d.cfg.VideoDevice}}

	if opts.Audio {
		if err := checkAudioNode(d.cfg.AudioDevice); err != nil {
			for _, track := range tracks {
				track.Stop()
			}
			return nil, fmt.Errorf("audio device: %w", err)
		}
		tracks = append(tracks, &nodeTrack{kind: "audio", node: d.cfg.AudioDevice})
	}

	return media.NewStream(opts.Audio, tracks...), nil
}

// checkNode stats a filesystem device node.
func checkNode(node string) error {
	if node == "" {
		return fmt.Errorf("not configured")
	}
	if _, err := os.Stat(node); err != nil {
		return err
	}
	return nil
}

// checkAudioNode accepts ALSA names ("default", "hw:0,0") that have no
// filesystem presence, and stats everything else.
func checkAudioNode(node string) error {
	if node == "" {
		return fmt.Errorf("not configured")
	}
	if node == "default" || strings.HasPrefix(node, "hw:") || strings.HasPrefix(node, "plughw:") {
		return nil
	}
	return checkNode(node)
}

// nodeTrack is a logical track over a device node.
type nodeTrack struct {
	kind string
	node string
}

func (t *nodeTrack) Kind() string { return t.kind }

// Stop releases the logical claim. The capture process holds the real
// handle and is stopped separately by the recorder.
func (t *nodeTrack) Stop() {}
