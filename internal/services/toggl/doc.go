// Package toggl talks to the Toggl Track v9 API.
//
// Client is a thin, error-returning wrapper over the endpoints the tracker
// needs: workspaces, workspace projects, and starting, reading, and stopping
// time entries. Service adapts Client to the tracker's collaborator contract:
// it resolves a project name to a project id across workspaces, logs every
// failure with the worker's redacted token, and degrades to "no result" so
// remote errors never interrupt a state transition.
package toggl
