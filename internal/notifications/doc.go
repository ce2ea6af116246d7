// Package notifications delivers tracker events via ntfy.
//
// The default implementation publishes to the ntfy topic configured in
// config.toml and degrades to a no-op when no topic is set. Individual events
// can be suppressed through the notifications section. The Notify* helpers
// satisfy the tracker's notifier contract so the state machine never deals
// with HTTP glue.
package notifications
