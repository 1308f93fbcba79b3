// Package media owns the camera stream lifecycle for the capture client.
//
// The Controller is the only component allowed to acquire or release
// streams: a video-only preview stream while idle, swapped atomically for a
// video+audio recording stream when recording starts. Every acquired
// stream's tracks are stopped exactly once on every exit path, including
// teardown.
//
// Devices and surfaces are interfaces so the controller works against a
// real capture host (the ffmpeg-backed implementations in this package) or
// test doubles.
package media
