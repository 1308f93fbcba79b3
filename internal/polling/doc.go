// Package polling implements the client-side status poller that tracks a
// submitted reaction through the server pipeline. It polls on a fixed
// interval, tolerates transient fetch failures with escalating warnings,
// and stops on its own once the watched item reaches a terminal state or
// disappears from the server.
package polling
