// Package api defines the transport representations exchanged between the
// daemon's HTTP surface and its clients, plus the converters from storage
// models. Handlers and clients share these types so both sides agree on
// field names and timestamp formats.
package api
