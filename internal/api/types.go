package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a queue job in a transport-friendly format.
type QueueItem struct {
	ID           int64  `json:"id"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	RetryCount   int    `json:"retryCount"`
	ErrorKind    string `json:"errorKind,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
	StartedAt    string `json:"startedAt,omitempty"`
	FinishedAt   string `json:"finishedAt,omitempty"`
}

// ReactionView describes a reaction job for API consumers.
type ReactionView struct {
	ReactionID       string          `json:"reactionId"`
	Status           string          `json:"status"`
	QueueJobID       *int64          `json:"queueJobId,omitempty"`
	RecordingPath    string          `json:"recordingPath,omitempty"`
	Summary          json.RawMessage `json:"summary,omitempty"`
	ErrorMessage     string          `json:"errorMessage,omitempty"`
	ErrorUserMessage string          `json:"errorUserMessage,omitempty"`
	CreatedAt        string          `json:"createdAt,omitempty"`
	UpdatedAt        string          `json:"updatedAt,omitempty"`
}

// UploadResponse is returned when a recording is submitted. Fallback
// reports that the recording bypassed the durable queue because the worker
// was unavailable.
type UploadResponse struct {
	Reaction ReactionView `json:"reaction"`
	Fallback bool         `json:"fallback"`
}

// ReactionResponse wraps a single reaction.
type ReactionResponse struct {
	Reaction ReactionView `json:"reaction"`
}

// QueueListResponse wraps a collection of queue items.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single queue item.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}

// WorkerStatus summarizes job-queue worker state.
type WorkerStatus struct {
	Running          bool `json:"running"`
	FallbackInFlight int  `json:"fallbackInFlight"`
}

// QueueHealth aggregates queue counts per lifecycle state.
type QueueHealth struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool         `json:"running"`
	PID          int          `json:"pid"`
	QueueDBPath  string       `json:"queueDbPath"`
	LockFilePath string       `json:"lockFilePath"`
	Worker       WorkerStatus `json:"worker"`
	Queue        QueueHealth  `json:"queue"`
}

// AdInfo describes the advertisement asset served by the daemon. Token
// changes whenever the underlying file does, so clients can bust caches.
type AdInfo struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
