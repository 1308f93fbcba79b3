// Package reactions owns the reaction job records that wrap queue jobs for
// the capture pipeline.
//
// A reaction job is created at upload time and tracks the user-visible
// lifecycle of one recording: queued, processing, processing_fallback,
// completed, or failed. It references the queue job that backs it when one
// exists; reactions processed by the fallback executor have no queue job
// and are polled directly.
//
// The Processor is the registered handler for reaction-type queue jobs. It
// validates the stored recording, extracts basic media facts, and drives the
// reaction record to a terminal status.
package reactions
