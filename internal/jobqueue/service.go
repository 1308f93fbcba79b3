package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"adreact/internal/config"
	"adreact/internal/logging"
	"adreact/internal/notifications"
	"adreact/internal/queue"
)

// ErrWorkerUnavailable reports that no worker is running and none can be
// started. Upload paths use it to route processing through the fallback
// executor instead of failing the request.
var ErrWorkerUnavailable = errors.New("queue worker unavailable")

// ErrNoHandler reports a job type with no registered handler.
var ErrNoHandler = errors.New("no handler registered for job type")

// Handler processes one queue job. The returned error decides the job's
// terminal status; errors implementing queue.ErrorClassifier control the
// persisted error kind.
type Handler func(ctx context.Context, job *queue.Job) error

// Service coordinates the durable queue: it persists jobs, owns the single
// worker task, and tracks fallback executions.
type Service struct {
	store              *queue.Store
	logger             *slog.Logger
	notifier           notifications.Service
	pollInterval       time.Duration
	errorRetryInterval time.Duration

	fallback *FallbackExecutor

	mu         sync.Mutex
	handlers   map[queue.Type]Handler
	baseCtx    context.Context
	started    bool
	closed     bool
	cancel     context.CancelFunc
	workerDone chan struct{}
	sessionID  string

	resumeOnce sync.Once
}

// NewService constructs a queue service. Start must be called before jobs
// are enqueued.
func NewService(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Service {
	if notifier == nil {
		notifier = notifications.NewNop()
	}
	return &Service{
		store:              store,
		logger:             logging.NewComponentLogger(logger, "jobqueue"),
		notifier:           notifier,
		pollInterval:       time.Duration(cfg.Queue.PollInterval) * time.Second,
		errorRetryInterval: time.Duration(cfg.Queue.ErrorRetryInterval) * time.Second,
		fallback:           NewFallbackExecutor(cfg.Queue.FallbackLimit, logger),
		handlers:           make(map[queue.Type]Handler),
	}
}

// RegisterHandler binds a job type to its handler. Registration after Start
// is allowed but racing an in-flight dispatch of the same type is not.
func (s *Service) RegisterHandler(jobType queue.Type, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[jobType] = handler
}

// Start binds the service to its execution context and launches the worker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("jobqueue service closed")
	}
	if s.started {
		s.mu.Unlock()
		return errors.New("jobqueue service already started")
	}
	s.baseCtx = ctx
	s.started = true
	s.mu.Unlock()

	return s.EnsureWorker()
}

// EnsureWorker guarantees exactly one live worker task. It is idempotent
// and safe to call concurrently: a live worker is left alone, a dead or
// absent one is replaced by exactly one new task. Returns
// ErrWorkerUnavailable when the service cannot host a worker.
func (s *Service) EnsureWorker() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.started || s.baseCtx == nil || s.baseCtx.Err() != nil {
		return ErrWorkerUnavailable
	}
	if s.workerAliveLocked() {
		return nil
	}

	restarted := s.workerDone != nil
	workerCtx, cancel := context.WithCancel(s.baseCtx)
	done := make(chan struct{})
	sessionID := uuid.NewString()

	s.cancel = cancel
	s.workerDone = done
	s.sessionID = sessionID

	go s.runWorker(workerCtx, done, sessionID)

	if restarted {
		s.logger.Warn("queue worker was dead, restarted",
			logging.String("worker_session", sessionID),
			logging.String(logging.FieldEventType, "worker_restarted"),
		)
	} else {
		s.logger.Info("queue worker started",
			logging.String("worker_session", sessionID),
		)
	}
	return nil
}

// WorkerRunning reports whether the worker task is currently alive.
func (s *Service) WorkerRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workerAliveLocked()
}

func (s *Service) workerAliveLocked() bool {
	if s.workerDone == nil {
		return false
	}
	select {
	case <-s.workerDone:
		return false
	default:
		return true
	}
}

// Enqueue persists a job in pending state and ensures a worker is running
// before returning. Callers that receive ErrWorkerUnavailable should route
// the work through RunFallback instead; no queue job is persisted then.
func (s *Service) Enqueue(ctx context.Context, jobType queue.Type, payload string) (*queue.Job, error) {
	if err := s.EnsureWorker(); err != nil {
		return nil, err
	}
	job, err := s.store.Enqueue(ctx, jobType, payload)
	if err != nil {
		return nil, err
	}
	s.logger.Info("job enqueued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobType, string(job.Type)),
	)
	return job, nil
}

// Retry resets a failed job to pending, increments its retry count, and
// ensures a worker will pick it up. Only failed jobs are retryable.
func (s *Service) Retry(ctx context.Context, jobID int64) (*queue.Job, error) {
	job, err := s.store.Retry(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	s.logger.Info("job retry requested",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Int("retry_count", job.RetryCount),
	)
	if err := s.EnsureWorker(); err != nil {
		return job, err
	}
	return job, nil
}

// RunFallback executes a task inline, outside the persisted queue. See
// FallbackExecutor for tracking semantics.
func (s *Service) RunFallback(label string, task func(ctx context.Context) error) error {
	s.mu.Lock()
	base := s.baseCtx
	closed := s.closed
	s.mu.Unlock()
	if closed || base == nil {
		return errors.New("jobqueue service not running")
	}
	return s.fallback.Run(base, label, task)
}

// FallbackInFlight reports the labels of currently running fallback tasks.
func (s *Service) FallbackInFlight() []string {
	return s.fallback.InFlight()
}

// Health reports aggregated queue counts.
func (s *Service) Health(ctx context.Context) (queue.HealthSummary, error) {
	return s.store.Health(ctx)
}

// Shutdown stops the worker and waits for it and all tracked fallback tasks
// to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	done := s.workerDone
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("await worker: %w", ctx.Err())
		}
	}
	if err := s.fallback.Wait(ctx); err != nil {
		return fmt.Errorf("await fallback tasks: %w", err)
	}
	s.logger.Info("jobqueue service stopped")
	return nil
}

func (s *Service) runWorker(ctx context.Context, done chan struct{}, sessionID string) {
	defer close(done)

	logger := s.logger.With(logging.String("worker_session", sessionID))

	// Resume exactly once per service lifetime: jobs a prior process left
	// behind are reset to pending before any new work is accepted.
	s.resumeOnce.Do(func() {
		resumable, err := s.store.CountResumable(ctx)
		if err != nil {
			logger.Error("count resumable jobs", logging.Error(err))
			return
		}
		reset, err := s.store.ResetProcessing(ctx)
		if err != nil {
			logger.Error("reset processing jobs", logging.Error(err))
			return
		}
		if resumable > 0 {
			logger.Info("resuming unfinished jobs from prior run",
				logging.Int("resumable", resumable),
				logging.Int64("reset_from_processing", reset),
			)
			if err := s.notifier.NotifyWorkerRestarted(ctx, sessionID, int64(resumable)); err != nil {
				logger.Warn("worker restart notification failed", logging.Error(err))
			}
		}
	})

	for {
		select {
		case <-ctx.Done():
			logger.Info("queue worker stopping")
			return
		default:
		}

		job, err := s.store.NextPending(ctx)
		if err != nil {
			logger.Error("fetch next job failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			if !sleepCtx(ctx, s.errorRetryInterval) {
				return
			}
			continue
		}
		if job == nil {
			if !sleepCtx(ctx, s.pollInterval) {
				return
			}
			continue
		}

		s.processJob(ctx, logger, job)
	}
}

func (s *Service) processJob(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	jobLogger := logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobType, string(job.Type)),
	)

	if err := s.store.MarkProcessing(ctx, job.ID); err != nil {
		jobLogger.Error("mark job processing failed", logging.Error(err))
		return
	}
	jobLogger.Info("job processing started")

	handler := s.handlerFor(job.Type)
	var handlerErr error
	if handler == nil {
		handlerErr = fmt.Errorf("%w: %s", ErrNoHandler, job.Type)
	} else {
		handlerErr = handler(ctx, job)
	}

	if handlerErr != nil {
		if errors.Is(handlerErr, context.Canceled) {
			// Shutdown mid-job: leave the job in processing so the next
			// worker startup resumes it.
			jobLogger.Info("job interrupted by shutdown")
			return
		}
		kind := queue.ClassifyError(handlerErr)
		if err := s.store.MarkFailed(ctx, job.ID, kind, handlerErr.Error()); err != nil {
			jobLogger.Error("mark job failed errored", logging.Error(err))
			return
		}
		jobLogger.Error("job failed",
			logging.Error(handlerErr),
			logging.String("error_kind", kind),
		)
		if err := s.notifier.NotifyJobFailed(ctx, string(job.Type), job.ID, handlerErr.Error()); err != nil {
			jobLogger.Warn("job failure notification failed", logging.Error(err))
		}
		return
	}

	if err := s.store.MarkCompleted(ctx, job.ID); err != nil {
		jobLogger.Error("mark job completed failed", logging.Error(err))
		return
	}
	jobLogger.Info("job completed")
	if err := s.notifier.NotifyJobCompleted(ctx, string(job.Type), job.ID); err != nil {
		jobLogger.Warn("job completion notification failed", logging.Error(err))
	}
}

func (s *Service) handlerFor(jobType queue.Type) Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlers[jobType]
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
