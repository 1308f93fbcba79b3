// Package client provides typed HTTP access to the daemon API: recording
// upload, reaction and queue status lookups, retry, and the advertisement
// URL. The CLI and the status poller build on it.
package client
