package queue

import "errors"

// Error kinds persisted alongside failed jobs. Transient failures are
// meaningful to retry; fatal ones need a changed input to succeed.
const (
	KindTransient = "transient"
	KindFatal     = "fatal"
)

// ErrorClassifier allows errors to declare their classification.
// Handler errors that implement this interface influence whether a failed
// job is presented as retryable.
type ErrorClassifier interface {
	ErrorKind() string
}

// ClassifyError maps a handler error to the persisted error kind. Errors
// that do not classify themselves are treated as transient so a manual
// retry stays meaningful.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		switch classifier.ErrorKind() {
		case KindFatal:
			return KindFatal
		case KindTransient:
			return KindTransient
		}
	}
	return KindTransient
}
