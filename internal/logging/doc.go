// Package logging builds the slog loggers used across adreact and defines
// the shared attribute vocabulary.
//
// New constructs a logger from explicit options; NewFromConfig derives those
// options from application configuration, teeing output to stdout and the
// daemon log file. Attribute helpers keep field names consistent between the
// daemon, the queue worker, and the recorder so log consumers can filter on
// component, event_type, and job identifiers.
package logging
