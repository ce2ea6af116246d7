package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"asrtt/internal/logging"
)

const testSecret = "s3cret"

type fakeTimeTracking struct {
	mu         sync.Mutex
	events     []string
	open       map[string]bool
	inFlight   map[string]int
	violations []string
	elapsed    time.Duration
	stopFails  bool
	delay      time.Duration
	stops      chan string
}

func newFakeTimeTracking() *fakeTimeTracking {
	return &fakeTimeTracking{
		open:     make(map[string]bool),
		inFlight: make(map[string]int),
		elapsed:  90 * time.Second,
		stops:    make(chan string, 32),
	}
}

func (f *fakeTimeTracking) enter(token string) {
	f.mu.Lock()
	f.inFlight[token]++
	if f.inFlight[token] > 1 {
		f.violations = append(f.violations, "overlapping calls for "+token)
	}
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
}

func (f *fakeTimeTracking) exit(token string) {
	f.mu.Lock()
	f.inFlight[token]--
	f.mu.Unlock()
}

func (f *fakeTimeTracking) Start(_ context.Context, token, project, description string) (int64, bool) {
	f.enter(token)
	defer f.exit(token)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open[token] {
		f.violations = append(f.violations, "second session opened for "+token)
	}
	f.open[token] = true
	f.events = append(f.events, "start "+project+" "+description)
	return 1, true
}

func (f *fakeTimeTracking) Current(_ context.Context, token string) (int64, bool) {
	f.enter(token)
	defer f.exit(token)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "current")
	if f.open[token] {
		return 1, true
	}
	return 0, false
}

func (f *fakeTimeTracking) Stop(_ context.Context, token string) (time.Duration, bool) {
	f.enter(token)
	defer f.exit(token)
	f.mu.Lock()
	f.events = append(f.events, "stop")
	wasOpen := f.open[token]
	f.open[token] = false
	fails := f.stopFails
	elapsed := f.elapsed
	f.mu.Unlock()
	f.stops <- token
	if !wasOpen || fails {
		return 0, false
	}
	return elapsed, true
}

func (f *fakeTimeTracking) setOpen(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open[token] = true
}

// calls returns recorded events without "current" lookups.
func (f *fakeTimeTracking) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		if e != "current" {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeTimeTracking) count(prefix string) int {
	n := 0
	for _, e := range f.calls() {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (f *fakeTimeTracking) problems() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.violations...)
}

type logCall struct {
	elapsed time.Duration
	host    string
	token   string
	project string
	branch  string
}

type fakeIssues struct {
	mu    sync.Mutex
	calls []logCall
}

func (f *fakeIssues) LogTime(_ context.Context, elapsed time.Duration, host, token, project, branch string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, logCall{elapsed, host, token, project, branch})
}

func (f *fakeIssues) snapshot() []logCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]logCall(nil), f.calls...)
}

type fakeJournal struct {
	mu       sync.Mutex
	sessions []Session
}

func (f *fakeJournal) Record(_ context.Context, s Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, s)
	return nil
}

func (f *fakeJournal) snapshot() []Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Session(nil), f.sessions...)
}

type fakeNotifier struct {
	mu       sync.Mutex
	idle     []string
	disabled []int
	enabled  []int
}

func (f *fakeNotifier) NotifyIdleStop(_ context.Context, branch, _ string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idle = append(f.idle, branch)
	return nil
}

func (f *fakeNotifier) NotifyTrackingDisabled(_ context.Context, active int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabled = append(f.disabled, active)
	return nil
}

func (f *fakeNotifier) NotifyTrackingEnabled(_ context.Context, threshold int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = append(f.enabled, threshold)
	return nil
}

type harness struct {
	tracker  *Tracker
	toggl    *fakeTimeTracking
	issues   *fakeIssues
	journal  *fakeJournal
	notifier *fakeNotifier
}

func newHarness(t *testing.T, configure ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		toggl:    newFakeTimeTracking(),
		issues:   &fakeIssues{},
		journal:  &fakeJournal{},
		notifier: &fakeNotifier{},
	}
	opts := Options{
		TimeTracking: h.toggl,
		IssueTracker: h.issues,
		Journal:      h.journal,
		Notifier:     h.notifier,
		Logger:       logging.NewNop(),
		Secret:       testSecret,
		Threshold:    DefaultThreshold,
	}
	for _, fn := range configure {
		fn(&opts)
	}
	tr, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.tracker = tr
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = tr.Shutdown(ctx, false)
	})
	return h
}

func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.tracker.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}

func (h *harness) waitStop(t *testing.T) {
	t.Helper()
	select {
	case <-h.toggl.stops:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stop")
	}
}

func activity(worker, branch, project string) Activity {
	return Activity{
		Worker:  worker,
		Branch:  branch,
		Project: project,
		Host:    "gitlab.example.com",
		Token:   "glpat-" + worker,
	}
}
