package api

import (
	"encoding/json"
	"time"

	"adreact/internal/queue"
	"adreact/internal/reactions"
)

// QueueItemFromJob converts a stored queue job into its transport shape.
func QueueItemFromJob(job *queue.Job) QueueItem {
	if job == nil {
		return QueueItem{}
	}
	return QueueItem{
		ID:           job.ID,
		Type:         string(job.Type),
		Status:       string(job.Status),
		RetryCount:   job.RetryCount,
		ErrorKind:    job.ErrorKind,
		ErrorMessage: job.Error,
		CreatedAt:    formatTime(job.CreatedAt),
		UpdatedAt:    formatTime(job.UpdatedAt),
		StartedAt:    formatTimePtr(job.StartedAt),
		FinishedAt:   formatTimePtr(job.FinishedAt),
	}
}

// QueueItemsFromJobs converts a slice of stored jobs.
func QueueItemsFromJobs(jobs []*queue.Job) []QueueItem {
	items := make([]QueueItem, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, QueueItemFromJob(job))
	}
	return items
}

// ReactionViewFromRecord converts a stored reaction into its transport
// shape. The stored summary is passed through verbatim when it is valid
// JSON and dropped otherwise.
func ReactionViewFromRecord(rec *reactions.Reaction) ReactionView {
	if rec == nil {
		return ReactionView{}
	}
	view := ReactionView{
		ReactionID:       rec.ReactionID,
		Status:           string(rec.Status),
		QueueJobID:       rec.QueueJobID,
		RecordingPath:    rec.RecordingPath,
		ErrorMessage:     rec.Error,
		ErrorUserMessage: rec.ErrorUserMessage,
		CreatedAt:        formatTime(rec.CreatedAt),
		UpdatedAt:        formatTime(rec.UpdatedAt),
	}
	if rec.SummaryJSON != "" && json.Valid([]byte(rec.SummaryJSON)) {
		view.Summary = json.RawMessage(rec.SummaryJSON)
	}
	return view
}

// QueueHealthFromSummary converts aggregated queue counts.
func QueueHealthFromSummary(summary queue.HealthSummary) QueueHealth {
	return QueueHealth{
		Total:      summary.Total,
		Pending:    summary.Pending,
		Processing: summary.Processing,
		Completed:  summary.Completed,
		Failed:     summary.Failed,
	}
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(dateTimeFormat)
}

func formatTimePtr(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return formatTime(*ts)
}
