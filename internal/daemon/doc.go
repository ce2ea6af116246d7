// Package daemon coordinates the long-running asrtt server process.
//
// It wires configuration, the tracker, and the optional history journal into
// a single lifecycle with flock-based locking to prevent multiple instances,
// and serves the HTTP surface editor plugins talk to: /should-track,
// /set-is-working, /set-not-working, and /max-idle-time, plus read-only
// /api/status and /api/history views for the CLI.
//
// Keep orchestration logic here: state-machine rules live in the tracker and
// collaborator calls live in their service packages while the daemon focuses
// on startup, shutdown, and request plumbing.
package daemon
