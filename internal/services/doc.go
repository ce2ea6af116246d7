// Package services defines shared utilities consumed by the tracker and the
// external collaborator clients.
//
// Key responsibilities:
//   - Context helpers that stamp correlation identifiers and redacted worker
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so collaborator clients
//     report failures in a uniform, classifiable way.
//   - Credential redaction so tokens never reach log output.
package services
