package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"adreact/internal/config"
)

const userAgent = "adreact/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyJobCompleted(ctx context.Context, jobType string, jobID int64) error
	NotifyJobFailed(ctx context.Context, jobType string, jobID int64, message string) error
	NotifyWorkerRestarted(ctx context.Context, sessionID string, resumed int64) error
	NotifyFallbackExecution(ctx context.Context, reactionID string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		jobEvents: cfg.Notifications.JobEvents,
		errors:    cfg.Notifications.Errors,
	}
}

// NewNop returns a Service that discards every notification.
func NewNop() Service {
	return noopService{}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	jobEvents bool
	errors    bool
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, jobType string, jobID int64) error {
	if !n.jobEvents {
		return nil
	}
	data := payload{
		title:   "adreact - Job Complete",
		message: fmt.Sprintf("Job %d (%s) completed", jobID, jobType),
		tags:    []string{"adreact", "job", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, jobType string, jobID int64, message string) error {
	if !n.jobEvents {
		return nil
	}
	message = strings.TrimSpace(message)
	data := payload{
		title:    "adreact - Job Failed",
		message:  fmt.Sprintf("Job %d (%s) failed: %s", jobID, jobType, message),
		tags:     []string{"adreact", "job", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyWorkerRestarted(ctx context.Context, sessionID string, resumed int64) error {
	if !n.jobEvents {
		return nil
	}
	data := payload{
		title:   "adreact - Worker Restarted",
		message: fmt.Sprintf("Queue worker restarted (session %s), resumed %d jobs", sessionID, resumed),
		tags:    []string{"adreact", "worker", "restarted"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyFallbackExecution(ctx context.Context, reactionID string) error {
	if !n.jobEvents {
		return nil
	}
	data := payload{
		title:   "adreact - Fallback Execution",
		message: fmt.Sprintf("Reaction %s is processing inline because no worker is running", reactionID),
		tags:    []string{"adreact", "fallback"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "adreact - Error",
		message:  builder.String(),
		tags:     []string{"adreact", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "adreact - Test",
		message:  "Notification system test",
		tags:     []string{"adreact", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, string, int64) error      { return nil }
func (noopService) NotifyJobFailed(context.Context, string, int64, string) error { return nil }
func (noopService) NotifyWorkerRestarted(context.Context, string, int64) error   { return nil }
func (noopService) NotifyFallbackExecution(context.Context, string) error        { return nil }
func (noopService) NotifyError(context.Context, error, string) error             { return nil }
func (noopService) TestNotification(context.Context) error                       { return nil }
