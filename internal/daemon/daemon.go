package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"adreact/internal/config"
	"adreact/internal/jobqueue"
	"adreact/internal/logging"
	"adreact/internal/queue"
	"adreact/internal/reactions"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	reactions *reactions.Store
	processor *reactions.Processor
	jobs      *jobqueue.Service

	lockPath string
	lock     *flock.Flock

	api *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running          bool
	PID              int
	QueueDBPath      string
	LockFilePath     string
	WorkerRunning    bool
	FallbackInFlight int
	Queue            queue.HealthSummary
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, reactionStore *reactions.Store, processor *reactions.Processor, jobs *jobqueue.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || reactionStore == nil || processor == nil || jobs == nil || logger == nil {
		return nil, errors.New("daemon requires config, stores, processor, jobqueue, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "adreactd.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		reactions: reactionStore,
		processor: processor,
		jobs:      jobs,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, launches the job-queue worker, and
// starts the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another adreact daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.jobs.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start job queue: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.stopJobs()
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("adreact daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock. Fallback
// tasks in flight are awaited so no recording is abandoned mid-process.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.stopJobs()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("adreact daemon stopped")
}

func (d *Daemon) stopJobs() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.jobs.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("job queue shutdown incomplete", logging.Error(err))
	}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports daemon runtime information.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:          d.running.Load(),
		PID:              os.Getpid(),
		QueueDBPath:      d.cfg.QueueDBPath(),
		LockFilePath:     d.lockPath,
		WorkerRunning:    d.jobs.WorkerRunning(),
		FallbackInFlight: len(d.jobs.FallbackInFlight()),
	}
	if health, err := d.store.Health(ctx); err == nil {
		status.Queue = health
	}
	return status
}

// SubmitResult describes how an uploaded recording was routed.
type SubmitResult struct {
	Reaction *reactions.Reaction
	Fallback bool
}

// SubmitRecording persists an uploaded recording and routes it for
// processing. With a live worker the recording gets a durable queue job;
// when no worker can run, processing happens inline through the fallback
// executor and the reaction carries no queue job reference.
func (d *Daemon) SubmitRecording(ctx context.Context, content io.Reader) (*SubmitResult, error) {
	path, err := d.saveRecording(content)
	if err != nil {
		return nil, err
	}

	if workerErr := d.jobs.EnsureWorker(); workerErr != nil {
		if !errors.Is(workerErr, jobqueue.ErrWorkerUnavailable) {
			return nil, workerErr
		}
		return d.submitFallback(ctx, path)
	}

	rec, err := d.reactions.Create(ctx, reactions.CreateOptions{RecordingPath: path})
	if err != nil {
		return nil, err
	}
	payload, err := reactions.EncodePayload(rec.ReactionID)
	if err != nil {
		return nil, err
	}

	job, err := d.jobs.Enqueue(ctx, queue.TypeReaction, payload)
	if errors.Is(err, jobqueue.ErrWorkerUnavailable) {
		// Worker died between the health check and the enqueue.
		if markErr := d.reactions.MarkFallback(ctx, rec.ReactionID); markErr != nil {
			return nil, markErr
		}
		return d.runFallback(ctx, rec.ReactionID)
	}
	if err != nil {
		return nil, err
	}
	if err := d.reactions.BindQueueJob(ctx, rec.ReactionID, job.ID); err != nil {
		return nil, err
	}

	rec, err = d.reactions.GetByID(ctx, rec.ReactionID)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{Reaction: rec}, nil
}

func (d *Daemon) submitFallback(ctx context.Context, path string) (*SubmitResult, error) {
	rec, err := d.reactions.Create(ctx, reactions.CreateOptions{RecordingPath: path, Fallback: true})
	if err != nil {
		return nil, err
	}
	return d.runFallback(ctx, rec.ReactionID)
}

func (d *Daemon) runFallback(ctx context.Context, reactionID string) (*SubmitResult, error) {
	err := d.jobs.RunFallback(reactionID, func(taskCtx context.Context) error {
		return d.processor.Process(taskCtx, reactionID)
	})
	if err != nil {
		failMsg := fmt.Sprintf("fallback execution rejected: %v", err)
		if failErr := d.reactions.Fail(ctx, reactionID, failMsg, reactions.UserMessageProcessingFailed); failErr != nil {
			d.logger.Error("persist fallback rejection failed",
				logging.String(logging.FieldReaction, reactionID),
				logging.Error(failErr),
			)
		}
		return nil, err
	}

	rec, err := d.reactions.GetByID(ctx, reactionID)
	if err != nil {
		return nil, err
	}
	d.logger.Warn("recording routed to fallback execution",
		logging.String(logging.FieldReaction, reactionID),
		logging.String(logging.FieldEventType, "fallback_execution"),
	)
	return &SubmitResult{Reaction: rec, Fallback: true}, nil
}

func (d *Daemon) saveRecording(content io.Reader) (string, error) {
	dir := d.cfg.RecordingsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create recordings dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("reaction-%s.mp4", uuid.NewString()))

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create recording file: %w", err)
	}
	if _, err := io.Copy(file, content); err != nil {
		file.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write recording: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close recording: %w", err)
	}
	return path, nil
}

// Reaction fetches a reaction by identifier.
func (d *Daemon) Reaction(ctx context.Context, reactionID string) (*reactions.Reaction, error) {
	return d.reactions.GetByID(ctx, reactionID)
}

// ListQueue returns queue jobs filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Job, error) {
	return d.store.List(ctx, statuses...)
}

// QueueJob fetches a queue job by identifier.
func (d *Daemon) QueueJob(ctx context.Context, jobID int64) (*queue.Job, error) {
	return d.store.GetByID(ctx, jobID)
}

// RetryQueueJob resets a failed job to pending and requeues its backing
// reaction, if any.
func (d *Daemon) RetryQueueJob(ctx context.Context, jobID int64) (*queue.Job, error) {
	job, err := d.jobs.Retry(ctx, jobID)
	if err != nil || job == nil {
		return job, err
	}
	rec, recErr := d.reactions.FindByQueueJob(ctx, jobID)
	if recErr != nil {
		return job, recErr
	}
	if rec != nil && rec.Status == reactions.StatusFailed {
		if err := d.reactions.Requeue(ctx, rec.ReactionID, jobID); err != nil {
			return job, err
		}
	}
	return job, nil
}

// ClearCompleted removes completed queue jobs.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	return d.store.ClearCompleted(ctx)
}
