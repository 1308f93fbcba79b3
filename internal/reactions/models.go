package reactions

import (
	"strings"
	"time"
)

// Status represents the user-visible lifecycle of a reaction job.
type Status string

const (
	StatusQueued             Status = "queued"
	StatusProcessing         Status = "processing"
	StatusProcessingFallback Status = "processing_fallback"
	StatusCompleted          Status = "completed"
	StatusFailed             Status = "failed"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusProcessingFallback,
	StatusCompleted,
	StatusFailed,
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range allStatuses {
		if s == normalized {
			return s, true
		}
	}
	return "", false
}

// IsTerminal reports whether a status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Reaction represents a reaction job persisted in SQLite.
//
// QueueJobID is nil for reactions processed via fallback execution; callers
// must poll the reaction record directly in that case.
type Reaction struct {
	ReactionID       string
	Status           Status
	QueueJobID       *int64
	RecordingPath    string
	SummaryJSON      string
	Error            string
	ErrorUserMessage string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Summary captures the media facts extracted from a processed recording.
type Summary struct {
	SizeBytes  int64  `json:"size_bytes"`
	SHA256     string `json:"sha256"`
	CapturedAt string `json:"captured_at,omitempty"`
}
