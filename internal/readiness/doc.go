// Package readiness waits for a playable media handle to buffer enough to
// begin playback.
//
// Wait subscribes to readiness events and also checks the initial state
// synchronously, so an event that fired before subscription is never
// missed. Timeouts and playback errors are reported as distinct error
// types; every subscription is released on both success and failure paths.
package readiness
