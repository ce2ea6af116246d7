// Package config loads, normalizes, and validates asrtt configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the environment fallbacks the
// server has always accepted: PORT for the listen port and
// MAX_IDLE_TIME_PASSWORD for the control-plane secret. The Config type
// centralizes every knob the server and CLI need so collaborator endpoints,
// timeouts, and paths are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
