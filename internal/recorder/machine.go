package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"adreact/internal/logging"
	"adreact/internal/media"
	"adreact/internal/readiness"
)

// User-facing messages surfaced when a session fails before recording.
const (
	UserMessageAdTimeout    = "The ad is taking too long to load. Check your connection and try again."
	UserMessageAdFailed     = "The ad failed to load. Please try again."
	UserMessageCameraFailed = "We couldn't access your camera. Check permissions and try again."
)

// ErrNotIdle reports a start attempt while a session is already underway.
var ErrNotIdle = errors.New("recorder is not idle")

// ErrNotRecording reports a stop attempt outside the recording phase.
var ErrNotRecording = errors.New("recorder is not recording")

// Artifact is the assembled recording produced by a finished session.
type Artifact struct {
	Path      string
	SizeBytes int64
	Duration  time.Duration
}

// ChunkRecorder accumulates data from a recording stream and assembles it
// into a single artifact on stop.
type ChunkRecorder interface {
	Start(ctx context.Context, stream *media.Stream) error
	Stop(ctx context.Context) (*Artifact, error)
}

// Fullscreen requests fullscreen on the whole viewport. Enter returns a
// channel that is closed when entry is confirmed; confirmation is not
// reliably observable on every runtime, so callers must not depend on it
// firing.
type Fullscreen interface {
	Enter(ctx context.Context) (<-chan struct{}, error)
	Exit(ctx context.Context) error
	Active() bool
}

// Player reasserts playback on a media surface after the fullscreen
// transition.
type Player interface {
	Play(ctx context.Context) error
}

// Config carries the session timing knobs.
type Config struct {
	ReadinessTimeout   time.Duration
	FullscreenFallback time.Duration
	SettleDelay        time.Duration
}

// Callbacks observe phase changes and user-visible failures. Either field
// may be nil.
type Callbacks struct {
	OnPhase     func(Phase)
	OnUserError func(string)
}

// Machine drives one capture session at a time through the phase sequence.
type Machine struct {
	cfg        Config
	cb         Callbacks
	media      *media.Controller
	ad         readiness.Handle
	adPlayer   Player
	fullscreen Fullscreen
	rec        ChunkRecorder
	logger     *slog.Logger

	mu        sync.Mutex
	phase     Phase
	startedAt time.Time
	artifact  *Artifact
	closed    bool
}

// NewMachine constructs a session orchestrator.
func NewMachine(cfg Config, ctrl *media.Controller, ad readiness.Handle, adPlayer Player, fs Fullscreen, rec ChunkRecorder, cb Callbacks, logger *slog.Logger) *Machine {
	if cfg.ReadinessTimeout <= 0 {
		cfg.ReadinessTimeout = 6 * time.Second
	}
	if cfg.FullscreenFallback <= 0 {
		cfg.FullscreenFallback = 2 * time.Second
	}
	return &Machine{
		cfg:        cfg,
		cb:         cb,
		media:      ctrl,
		ad:         ad,
		adPlayer:   adPlayer,
		fullscreen: fs,
		rec:        rec,
		logger:     logging.NewComponentLogger(logger, "recorder"),
		phase:      PhaseIdle,
	}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Artifact returns the recording assembled by the last completed session.
func (m *Machine) Artifact() *Artifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.artifact
}

// Elapsed reports the wall-clock duration of the in-flight recording.
func (m *Machine) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startedAt.IsZero() {
		return 0
	}
	return time.Since(m.startedAt)
}

// Start runs the session up to the recording phase: readiness gate, camera
// arming, fullscreen entry with its fallback timer, and playback reassert.
// On failure the machine returns to idle with a user-visible message.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("recorder closed")
	}
	if m.phase != PhaseIdle {
		m.mu.Unlock()
		return fmt.Errorf("%w: phase %s", ErrNotIdle, m.phase)
	}
	m.artifact = nil
	m.startedAt = time.Time{}
	m.setPhaseLocked(PhasePreparing)
	m.mu.Unlock()

	if err := m.prepare(ctx); err != nil {
		return err
	}
	if err := m.arm(ctx); err != nil {
		return err
	}
	m.enterFullscreen(ctx)
	if err := ctx.Err(); err != nil {
		// Cancelled mid-transition with the recorder already armed; the
		// session must not surface as an active recording.
		m.abortArmed()
		return fmt.Errorf("enter fullscreen: %w", err)
	}

	m.mu.Lock()
	m.setPhaseLocked(PhaseRecording)
	m.mu.Unlock()
	return nil
}

// abortArmed tears down a session cancelled after the recorder was armed:
// the chunk recorder is stopped and discarded, fullscreen exited, the
// recording stream released, and the preview restored.
func (m *Machine) abortArmed() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := m.rec.Stop(ctx); err != nil {
		m.logger.Warn("recorder teardown stop failed", logging.Error(err))
	}
	if m.fullscreen.Active() {
		if err := m.fullscreen.Exit(ctx); err != nil {
			m.logger.Warn("fullscreen exit failed", logging.Error(err))
		}
	}
	m.media.StopRecording()
	if err := m.media.StartPreview(ctx); err != nil {
		m.logger.Warn("preview re-acquire failed", logging.Error(err))
	}

	m.mu.Lock()
	m.startedAt = time.Time{}
	m.setPhaseLocked(PhaseIdle)
	m.mu.Unlock()
}

// Stop ends the session: it stops the recorder and the clock, assembles
// the artifact, exits fullscreen, releases the recording stream, restores
// the preview, and returns to idle.
func (m *Machine) Stop(ctx context.Context) (*Artifact, error) {
	m.mu.Lock()
	if m.phase != PhaseRecording {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: phase %s", ErrNotRecording, m.phase)
	}
	m.setPhaseLocked(PhaseStopping)
	started := m.startedAt
	m.mu.Unlock()

	artifact, err := m.rec.Stop(ctx)
	if err != nil {
		m.logger.Error("recorder stop failed", logging.Error(err))
	}
	if artifact != nil && !started.IsZero() {
		artifact.Duration = time.Since(started)
	}

	if m.fullscreen.Active() {
		if exitErr := m.fullscreen.Exit(ctx); exitErr != nil {
			m.logger.Warn("fullscreen exit failed", logging.Error(exitErr))
		}
	}

	m.media.StopRecording()
	if previewErr := m.media.StartPreview(ctx); previewErr != nil {
		m.logger.Warn("preview re-acquire failed", logging.Error(previewErr))
	}

	m.mu.Lock()
	m.artifact = artifact
	m.startedAt = time.Time{}
	m.setPhaseLocked(PhaseIdle)
	m.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("stop recording: %w", err)
	}
	return artifact, nil
}

// AdEnded handles the advertisement's natural end: an in-flight recording
// is stopped exactly as if the user clicked stop.
func (m *Machine) AdEnded(ctx context.Context) (*Artifact, error) {
	if m.Phase() != PhaseRecording {
		return nil, nil
	}
	return m.Stop(ctx)
}

// Close tears the session down from any phase. Timers are already scoped
// to Start; this releases media resources.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	inFlight := m.phase == PhaseRecording || m.phase == PhaseEnteringFullscreen
	m.setPhaseLocked(PhaseIdle)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if inFlight {
		if _, err := m.rec.Stop(ctx); err != nil {
			m.logger.Warn("recorder teardown stop failed", logging.Error(err))
		}
	}
	if m.fullscreen.Active() {
		if err := m.fullscreen.Exit(ctx); err != nil {
			m.logger.Warn("fullscreen exit failed", logging.Error(err))
		}
	}
	m.media.Close()
}

func (m *Machine) prepare(ctx context.Context) error {
	progress := func(phase readiness.Phase) {
		m.logger.Debug("readiness gate progress", logging.String("gate_phase", string(phase)))
	}
	if err := readiness.Wait(ctx, m.ad, m.cfg.ReadinessTimeout, progress); err != nil {
		var timeout *readiness.TimeoutError
		if errors.As(err, &timeout) {
			m.failToIdle(UserMessageAdTimeout)
		} else {
			m.failToIdle(UserMessageAdFailed)
		}
		return fmt.Errorf("readiness gate: %w", err)
	}
	return nil
}

func (m *Machine) arm(ctx context.Context) error {
	m.mu.Lock()
	m.setPhaseLocked(PhaseArming)
	m.mu.Unlock()

	stream, err := m.media.StartRecording(ctx)
	if err != nil {
		m.failToIdle(UserMessageCameraFailed)
		return fmt.Errorf("start recording stream: %w", err)
	}
	if err := m.rec.Start(ctx, stream); err != nil {
		// No partial state stays armed: release the recording stream and
		// restore the preview before reporting failure.
		m.media.StopRecording()
		if previewErr := m.media.StartPreview(ctx); previewErr != nil {
			m.logger.Warn("preview re-acquire failed", logging.Error(previewErr))
		}
		m.failToIdle(UserMessageCameraFailed)
		return fmt.Errorf("start chunk recorder: %w", err)
	}

	m.mu.Lock()
	m.startedAt = time.Now()
	m.mu.Unlock()
	return nil
}

// enterFullscreen requests fullscreen and waits for confirmation, bounded
// by the fallback window. Fullscreen failures never fail the session.
func (m *Machine) enterFullscreen(ctx context.Context) {
	m.mu.Lock()
	m.setPhaseLocked(PhaseEnteringFullscreen)
	m.mu.Unlock()

	confirmed, err := m.fullscreen.Enter(ctx)
	if err != nil {
		m.logger.Warn("fullscreen request failed, proceeding without confirmation",
			logging.Error(err),
			logging.String(logging.FieldEventType, "fullscreen_failed"),
		)
	}

	// Confirmation is not reliably observable; the timer guarantees the
	// session never hangs in entering-fullscreen.
	fallback := time.NewTimer(m.cfg.FullscreenFallback)
	defer fallback.Stop()
	if confirmed != nil && err == nil {
		select {
		case <-confirmed:
		case <-fallback.C:
			m.logger.Info("fullscreen confirmation missed, forcing transition")
		case <-ctx.Done():
			return
		}
	}

	if m.cfg.SettleDelay > 0 {
		select {
		case <-time.After(m.cfg.SettleDelay):
		case <-ctx.Done():
			return
		}
	}

	// Some runtimes pause media during the fullscreen transition; reassert
	// playback on both surfaces. Failures are logged, never fatal.
	if m.adPlayer != nil {
		if playErr := m.adPlayer.Play(ctx); playErr != nil {
			m.logger.Warn("ad playback reassert failed", logging.Error(playErr))
		}
	}
	if playErr := m.media.ResumePlayback(ctx); playErr != nil {
		m.logger.Warn("camera playback reassert failed", logging.Error(playErr))
	}
}

func (m *Machine) failToIdle(userMessage string) {
	m.mu.Lock()
	m.setPhaseLocked(PhaseIdle)
	m.startedAt = time.Time{}
	m.mu.Unlock()
	if m.cb.OnUserError != nil {
		m.cb.OnUserError(userMessage)
	}
}

func (m *Machine) setPhaseLocked(phase Phase) {
	if m.phase == phase {
		return
	}
	m.phase = phase
	m.logger.Debug("phase transition", logging.String(logging.FieldPhase, string(phase)))
	if m.cb.OnPhase != nil {
		m.cb.OnPhase(phase)
	}
}
