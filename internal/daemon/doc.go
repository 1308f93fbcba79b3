// Package daemon hosts the long-running adreact process: it enforces
// single-instance execution with a lock file, owns the job-queue service
// and the stores, and exposes the HTTP API that clients upload recordings
// to and poll status from.
//
// The upload path decides between durable queue processing and inline
// fallback execution based on worker health, so a recording is never lost
// to a dead worker.
package daemon
