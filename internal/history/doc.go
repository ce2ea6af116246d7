// Package history keeps a SQLite journal of closed tracking sessions.
//
// The journal is write-mostly: the tracker appends one row per stopped
// session and the API reads the most recent rows back for display. Nothing
// in the journal is ever used to rebuild tracker state after a restart.
// Schema changes bump schemaVersion; an existing database with a different
// version is rejected and must be deleted.
package history
