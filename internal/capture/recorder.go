package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"adreact/internal/logging"
	"adreact/internal/media"
	"adreact/internal/recorder"
)

// stopGrace bounds how long Stop waits for ffmpeg to finalize the
// container after the interrupt before killing it.
const stopGrace = 10 * time.Second

// Recorder implements recorder.ChunkRecorder by running one ffmpeg
// process per session. The process writes directly to the output file and
// finalizes the container when interrupted.
type Recorder struct {
	cfg    Config
	logger *slog.Logger

	mu   sync.Mutex
	cmd  *exec.Cmd
	path string
}

// NewRecorder constructs a recorder writing into cfg.OutputDir.
func NewRecorder(cfg Config, logger *slog.Logger) *Recorder {
	return &Recorder{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "capture"),
	}
}

// Start launches the capture process for the given stream. The stream
// decides whether an audio input is wired in.
func (r *Recorder) Start(ctx context.Context, stream *media.Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil {
		return errors.New("capture already running")
	}

	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(r.cfg.OutputDir, fmt.Sprintf("reaction-%s.mp4", uuid.NewString()))

	binary := r.cfg.FFmpegBinary
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.Command(binary, r.buildArgs(stream.HasAudio(), path)...)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start capture process: %w", err)
	}

	r.cmd = cmd
	r.path = path
	r.logger.Info("capture started",
		logging.String("output", path),
		logging.Bool("audio", stream.HasAudio()),
		logging.Int("pid", cmd.Process.Pid),
	)
	return nil
}

// Stop interrupts the capture process, waits for the container to be
// finalized, and returns the assembled artifact.
func (r *Recorder) Stop(ctx context.Context) (*recorder.Artifact, error) {
	r.mu.Lock()
	cmd := r.cmd
	path := r.path
	r.cmd = nil
	r.path = ""
	r.mu.Unlock()

	if cmd == nil {
		return nil, errors.New("capture not running")
	}

	// SIGINT makes ffmpeg flush and write the moov atom; SIGKILL would
	// leave an unplayable file.
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		r.logger.Warn("capture interrupt failed", logging.Error(err))
	}

	waitErr := r.awaitExit(ctx, cmd)
	if waitErr != nil {
		r.logger.Warn("capture process exit", logging.Error(waitErr))
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("capture produced no artifact: %w", err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("capture artifact is empty: %s", path)
	}

	r.logger.Info("capture stopped",
		logging.String("output", path),
		logging.Int64("size_bytes", info.Size()),
	)
	return &recorder.Artifact{Path: path, SizeBytes: info.Size()}, nil
}

func (r *Recorder) awaitExit(ctx context.Context, cmd *exec.Cmd) error {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	grace := time.NewTimer(stopGrace)
	defer grace.Stop()

	select {
	case err := <-done:
		return err
	case <-grace.C:
	case <-ctx.Done():
	}

	if err := cmd.Process.Kill(); err != nil {
		r.logger.Warn("capture kill failed", logging.Error(err))
	}
	return <-done
}

// buildArgs assembles the ffmpeg invocation. Video comes from the v4l2
// node; audio, when present, from the ALSA device.
func (r *Recorder) buildArgs(audio bool, output string) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "v4l2",
		"-i", r.cfg.VideoDevice,
	}
	if audio {
		args = append(args,
			"-f", "alsa",
			"-i", r.cfg.AudioDevice,
			"-c:a", "aac",
		)
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-movflags", "+faststart",
		"-y",
		output,
	)
	return args
}
