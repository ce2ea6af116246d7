// Package tracker owns the per-worker idle-timeout state machine.
//
// Every worker (keyed by the opaque token its client sends) gets a lazily
// created entry holding a serial task queue, an idle timer, and the
// last-known branch and issue-tracker target. Activity signals, explicit
// stops, idle timeouts, and the disable sweep are all executed as tasks on
// the worker's queue, so at most one start or stop for a worker is ever in
// flight against the time-tracking service.
//
// The process-wide idle threshold lives on Tracker. Setting it to zero
// force-stops every working worker and declines new signals until it is
// raised again. Collaborators (time tracking, issue tracking, the history
// journal, notifications) are consumed through small interfaces defined
// here; none of them can fail a state transition.
package tracker
