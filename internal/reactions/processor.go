package reactions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"adreact/internal/logging"
	"adreact/internal/queue"
)

// UserMessageProcessingFailed is the user-facing message persisted when a
// recording cannot be processed.
const UserMessageProcessingFailed = "We couldn't process your reaction. Please try recording again."

// Payload is the queue job payload for reaction processing.
type Payload struct {
	ReactionID string `json:"reaction_id"`
}

// EncodePayload serializes a reaction payload for enqueueing.
func EncodePayload(reactionID string) (string, error) {
	data, err := json.Marshal(Payload{ReactionID: reactionID})
	if err != nil {
		return "", fmt.Errorf("encode reaction payload: %w", err)
	}
	return string(data), nil
}

// ProcessingError classifies a processing failure for retry eligibility.
type ProcessingError struct {
	Kind string
	Err  error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("reaction processing (%s): %v", e.Kind, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// ErrorKind implements queue.ErrorClassifier.
func (e *ProcessingError) ErrorKind() string { return e.Kind }

func fatal(err error) error     { return &ProcessingError{Kind: queue.KindFatal, Err: err} }
func transient(err error) error { return &ProcessingError{Kind: queue.KindTransient, Err: err} }

// Processor is the handler for reaction-type queue jobs. It drives the
// reaction record through processing to a terminal status; the queue job's
// own status is managed by the caller.
type Processor struct {
	store  *Store
	logger *slog.Logger
}

// NewProcessor constructs a reaction processor.
func NewProcessor(store *Store, logger *slog.Logger) *Processor {
	return &Processor{
		store:  store,
		logger: logging.NewComponentLogger(logger, "reaction-processor"),
	}
}

// HandleJob processes a reaction queue job.
func (p *Processor) HandleJob(ctx context.Context, job *queue.Job) error {
	var payload Payload
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
		return fatal(fmt.Errorf("decode payload: %w", err))
	}
	return p.Process(ctx, payload.ReactionID)
}

// Process analyzes the recording behind a reaction and moves the reaction
// to completed or failed. It is shared by the queue worker and the fallback
// executor.
func (p *Processor) Process(ctx context.Context, reactionID string) error {
	reaction, err := p.store.GetByID(ctx, reactionID)
	if err != nil {
		return transient(err)
	}
	if reaction == nil {
		return fatal(fmt.Errorf("reaction %s not found", reactionID))
	}
	if reaction.Status.IsTerminal() {
		p.logger.Info("reaction already terminal, skipping",
			logging.String(logging.FieldReaction, reactionID),
			logging.String("status", string(reaction.Status)),
		)
		return nil
	}

	if err := p.store.MarkProcessing(ctx, reactionID); err != nil {
		return transient(err)
	}

	summary, err := analyzeRecording(ctx, reaction.RecordingPath)
	if err != nil {
		if failErr := p.store.Fail(ctx, reactionID, err.Error(), UserMessageProcessingFailed); failErr != nil {
			p.logger.Error("persist reaction failure",
				logging.String(logging.FieldReaction, reactionID),
				logging.Error(failErr),
			)
		}
		return err
	}

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fatal(fmt.Errorf("encode summary: %w", err))
	}
	if err := p.store.Complete(ctx, reactionID, string(summaryJSON)); err != nil {
		return transient(err)
	}

	p.logger.Info("reaction processed",
		logging.String(logging.FieldReaction, reactionID),
		logging.Int64("size_bytes", summary.SizeBytes),
	)
	return nil
}

// analyzeRecording validates the stored artifact and extracts media facts.
// A missing or empty recording is fatal; read errors are transient.
func analyzeRecording(ctx context.Context, path string) (*Summary, error) {
	if path == "" {
		return nil, fatal(errors.New("reaction has no recording path"))
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fatal(fmt.Errorf("recording missing: %w", err))
		}
		return nil, transient(fmt.Errorf("stat recording: %w", err))
	}
	if info.Size() == 0 {
		return nil, fatal(fmt.Errorf("recording %s is empty", path))
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, transient(fmt.Errorf("open recording: %w", err))
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, contextReader{ctx: ctx, r: file}); err != nil {
		return nil, transient(fmt.Errorf("hash recording: %w", err))
	}

	return &Summary{
		SizeBytes:  info.Size(),
		SHA256:     hex.EncodeToString(hasher.Sum(nil)),
		CapturedAt: info.ModTime().UTC().Format(time.RFC3339),
	}, nil
}

// contextReader aborts a long copy when the context is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
