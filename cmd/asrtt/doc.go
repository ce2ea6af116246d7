// Package main hosts the asrtt CLI entrypoint and command graph.
//
// `asrtt serve` runs the tracking server in the foreground. The remaining
// commands talk to a running server over HTTP (threshold, status, history)
// or work on local files (config, notify).
package main
