// Package jobqueue drives the durable queue with a single background worker
// and an inline fallback path for when that worker is unavailable.
//
// The Service owns the worker task handle and its liveness state.
// EnsureWorker is idempotent and safe to call concurrently from multiple
// enqueue paths: it starts exactly one worker, restarts a dead one, and
// never duplicates the task. The worker drains jobs sequentially, persists
// every status transition, and on startup resumes jobs left pending or
// processing by a prior run exactly once before accepting new work.
//
// The FallbackExecutor runs a job handler inline, bypassing the persisted
// queue, when the worker is confirmed not running. Fallback tasks are
// tracked in a bounded in-flight set so shutdown can await them instead of
// dropping them; they intentionally run concurrently with each other and
// with the worker, trading sequencing for availability.
package jobqueue
