package tracker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"asrtt/internal/logging"
)

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for queue")
	}
}

func TestSerialQueueRunsInOrderOneAtATime(t *testing.T) {
	q := newSerialQueue(context.Background(), logging.NewNop())

	var (
		mu      sync.Mutex
		order   []int
		active  atomic.Int32
		overlap atomic.Bool
	)
	for i := 0; i < 50; i++ {
		q.Enqueue(func(context.Context) {
			if active.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(100 * time.Microsecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			active.Add(-1)
		})
	}
	waitClosed(t, q.Barrier())

	if overlap.Load() {
		t.Fatal("tasks overlapped")
	}
	mu.Lock()
	defer mu.Unlock()
	for i, got := range order {
		if got != i {
			t.Fatalf("order[%d] = %d", i, got)
		}
	}
	if len(order) != 50 {
		t.Fatalf("expected 50 tasks, got %d", len(order))
	}
}

func TestSerialQueueConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	q := newSerialQueue(context.Background(), logging.NewNop())
	var (
		mu   sync.Mutex
		seen = map[int][]int{}
	)
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				q.Enqueue(func(context.Context) {
					mu.Lock()
					seen[p] = append(seen[p], i)
					mu.Unlock()
				})
			}
		}(p)
	}
	wg.Wait()
	waitClosed(t, q.Barrier())

	mu.Lock()
	defer mu.Unlock()
	for p, values := range seen {
		if len(values) != 25 {
			t.Fatalf("producer %d ran %d tasks", p, len(values))
		}
		for i, v := range values {
			if v != i {
				t.Fatalf("producer %d out of order at %d: %d", p, i, v)
			}
		}
	}
}

func TestSerialQueueSurvivesPanic(t *testing.T) {
	q := newSerialQueue(context.Background(), logging.NewNop())
	var ran atomic.Bool
	q.Enqueue(func(context.Context) { panic("boom") })
	q.Enqueue(func(context.Context) { ran.Store(true) })
	waitClosed(t, q.Barrier())
	if !ran.Load() {
		t.Fatal("task after panic did not run")
	}
}

func TestIdleTimerGenerations(t *testing.T) {
	var timer idleTimer
	first := timer.Reset(time.Hour, func(uint64) {})
	second := timer.Reset(time.Hour, func(uint64) {})
	if timer.Expire(first) {
		t.Fatal("stale generation expired the timer")
	}
	if !timer.Expire(second) {
		t.Fatal("current generation did not expire the timer")
	}
	if timer.Expire(second) {
		t.Fatal("timer expired twice")
	}

	third := timer.Reset(time.Hour, func(uint64) {})
	timer.Cancel()
	timer.Cancel()
	if timer.Expire(third) {
		t.Fatal("cancelled timer expired")
	}
	if _, armed := timer.Deadline(); armed {
		t.Fatal("cancelled timer reports a deadline")
	}
}

func TestIdleTimerFires(t *testing.T) {
	var timer idleTimer
	fired := make(chan uint64, 1)
	gen := timer.Reset(5*time.Millisecond, func(g uint64) { fired <- g })
	select {
	case got := <-fired:
		if got != gen {
			t.Fatalf("fired with generation %d, want %d", got, gen)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestParseThreshold(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"0", 0, true},
		{"180", 180, true},
		{" 42 ", 42, true},
		{"", 0, false},
		{"12abc", 0, false},
		{"-5", 0, false},
		{"3.0", 0, false},
		{"9223372036", 9223372036, true},
		{"9223372037", 0, false},
		{"10000000000", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseThreshold(tt.raw)
		if (err == nil) != tt.ok || got != tt.want {
			t.Fatalf("ParseThreshold(%q) = %d, %v", tt.raw, got, err)
		}
	}
}
