// Package queue persists processing jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, and the status transitions the worker relies on. Job status is
// monotonic: once a job reaches completed or failed it never moves backward;
// retrying a failed job is an explicit transition back to pending that
// increments the retry counter.
//
// The database is treated as transient storage for in-flight jobs rather
// than a long-term archive. Schema changes bump the version in schema.go;
// users clear the database to adopt the new schema.
package queue
