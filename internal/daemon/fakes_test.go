package daemon

import (
	"context"
	"sync"
	"time"
)

type stubTimeTracking struct {
	mu     sync.Mutex
	open   map[string]bool
	starts []string
	stops  int
}

func newStubTimeTracking() *stubTimeTracking {
	return &stubTimeTracking{open: make(map[string]bool)}
}

func (s *stubTimeTracking) Start(_ context.Context, token, _, description string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open[token] = true
	s.starts = append(s.starts, description)
	return 1, true
}

func (s *stubTimeTracking) Current(_ context.Context, token string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return 1, s.open[token]
}

func (s *stubTimeTracking) Stop(_ context.Context, token string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open[token] {
		return 0, false
	}
	s.open[token] = false
	s.stops++
	return time.Minute, true
}

func (s *stubTimeTracking) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.starts), s.stops
}

type stubIssues struct {
	mu       sync.Mutex
	branches []string
}

func (s *stubIssues) LogTime(_ context.Context, _ time.Duration, _, _, _, branch string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches = append(s.branches, branch)
}

func (s *stubIssues) logged() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.branches...)
}
