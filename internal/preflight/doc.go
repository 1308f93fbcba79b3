// Package preflight validates the runtime environment before the daemon
// starts accepting work: directory permissions, the advertisement asset,
// and the capture toolchain.
package preflight
