// Package recorder orchestrates one reaction capture session: it drives
// the phase machine from idle through preparing, arming,
// entering-fullscreen, recording, and stopping, coordinating the readiness
// gate, the media controller, the fullscreen surface, and the chunk
// recorder.
//
// Phase transitions are strictly sequential; a failure while preparing or
// arming routes back to idle with a user-visible message rather than
// leaving a partially armed session. Fullscreen confirmation is treated as
// unreliable: a fallback timer forces the transition to recording so the
// session can never hang in entering-fullscreen.
//
// Phase is a plain value with pure derivation functions for the action
// button and loading overlay, independent of any rendering mechanism.
package recorder
