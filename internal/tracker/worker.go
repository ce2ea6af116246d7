package tracker

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Activity is an inbound signal from a worker's client.
type Activity struct {
	// Worker is the opaque worker id. It doubles as the time-tracking token.
	Worker  string
	Branch  string
	Project string
	Host    string
	Token   string
}

func (a Activity) trimmed() Activity {
	return Activity{
		Worker:  strings.TrimSpace(a.Worker),
		Branch:  strings.TrimSpace(a.Branch),
		Project: strings.TrimSpace(a.Project),
		Host:    strings.TrimSpace(a.Host),
		Token:   strings.TrimSpace(a.Token),
	}
}

func (a Activity) require(fields ...string) error {
	values := map[string]string{
		"worker":  a.Worker,
		"branch":  a.Branch,
		"project": a.Project,
		"host":    a.Host,
		"token":   a.Token,
	}
	var missing []string
	for _, field := range fields {
		if values[field] == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

// target is where a session's time is logged.
type target struct {
	Branch  string
	Project string
	Host    string
	Token   string
}

func targetOf(a Activity) target {
	return target{Branch: a.Branch, Project: a.Project, Host: a.Host, Token: a.Token}
}

type workerEntry struct {
	id    string
	label string
	queue *serialQueue
	timer idleTimer

	mu      sync.Mutex
	working bool
	target  target
	since   time.Time
}

func (e *workerEntry) isWorking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.working
}

func (e *workerEntry) state() (bool, target) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.working, e.target
}

// begin marks the entry working on tgt.
func (e *workerEntry) begin(tgt target, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.working = true
	e.target = tgt
	e.since = now
}

// refresh updates the issue-tracker credentials without touching the session.
func (e *workerEntry) refresh(tgt target) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.target = tgt
}

// end marks the entry idle and returns when the session began.
func (e *workerEntry) end() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.working = false
	since := e.since
	e.since = time.Time{}
	return since
}

// WorkerSnapshot is a point-in-time view of one worker.
type WorkerSnapshot struct {
	Worker     string
	Working    bool
	Branch     string
	Project    string
	Host       string
	Since      time.Time
	TimerArmed bool
	Deadline   time.Time
	Pending    int
}

func (e *workerEntry) snapshot() WorkerSnapshot {
	e.mu.Lock()
	snap := WorkerSnapshot{
		Worker:  e.label,
		Working: e.working,
		Branch:  e.target.Branch,
		Project: e.target.Project,
		Host:    e.target.Host,
		Since:   e.since,
	}
	e.mu.Unlock()
	snap.Deadline, snap.TimerArmed = e.timer.Deadline()
	snap.Pending = e.queue.Pending()
	return snap
}
