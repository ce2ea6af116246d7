// Package api defines wire-format types and converters for the HTTP surface.
// It translates tracker and history models into transport-friendly DTOs that
// editor plugins and the CLI can consume without coupling to internal types.
//
// # Key Types
//
// WorkingRequest: body of /set-is-working and /set-not-working. Field names
// match what existing editor plugins already send.
//
// MaxIdleTimeRequest: body of /max-idle-time. Time accepts a JSON number or a
// numeric string.
//
// ShouldTrackResponse: threshold advertised to polling clients; encodes as {}
// while tracking is disabled.
//
// StatusResponse/HistoryResponse: read-only views served under /api.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Worker ids are always the redacted form.
// Timestamps use RFC3339 with milliseconds.
package api
