// Package capture provides the ffmpeg-backed implementations of the media
// device and chunk recorder contracts. The device hands out logical
// streams after verifying the configured capture nodes exist; the recorder
// spawns an ffmpeg subprocess per session and finalizes the container on
// stop.
package capture
