package utils

import (
	"sync"
	"time"
)

// WorkerPool runs best-effort background jobs with bounded concurrency.
// Jobs submitted while every worker is busy and the queue is full are dropped.
type WorkerPool struct {
	jobs chan func()
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewWorkerPool starts maxWorkers goroutines fed by a queue of queueSize jobs.
func NewWorkerPool(maxWorkers, queueSize int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	wp := &WorkerPool{jobs: make(chan func(), queueSize)}
	for i := 0; i < maxWorkers; i++ {
		wp.wg.Add(1)
		go func() {
			defer wp.wg.Done()
			for job := range wp.jobs {
				job()
			}
		}()
	}
	return wp
}

// TrySubmit enqueues job without blocking. It reports false when the job was
// dropped because the pool is saturated or closed.
func (wp *WorkerPool) TrySubmit(job func()) bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.closed {
		return false
	}
	select {
	case wp.jobs <- job:
		return true
	default:
		return false
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (wp *WorkerPool) Close() {
	wp.mu.Lock()
	if !wp.closed {
		wp.closed = true
		close(wp.jobs)
	}
	wp.mu.Unlock()
	wp.wg.Wait()
}

// maxThrottleKeys caps the keys a ClickThrottle remembers. When a burst of
// distinct keys inside one window reaches it, the table starts over.
const maxThrottleKeys = 10000

// ClickThrottle suppresses repeated actions on the same key within a window.
// Keys older than the window are swept out at most once per window.
type ClickThrottle struct {
	window time.Duration

	mu        sync.Mutex
	last      map[string]time.Time
	lastSweep time.Time
}

// NewClickThrottle creates a throttle with the given window.
func NewClickThrottle(window time.Duration) *ClickThrottle {
	return &ClickThrottle{window: window, last: make(map[string]time.Time)}
}

// Allow returns true if key was not accepted within the window before now,
// and records now as its latest accepted time.
func (t *ClickThrottle) Allow(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.lastSweep) >= t.window {
		t.sweep(now)
	}
	if prev, ok := t.last[key]; ok && now.Sub(prev) < t.window {
		return false
	}
	if len(t.last) >= maxThrottleKeys {
		t.sweep(now)
		if len(t.last) >= maxThrottleKeys {
			t.last = make(map[string]time.Time)
		}
	}
	t.last[key] = now
	return true
}

func (t *ClickThrottle) sweep(now time.Time) {
	for k, prev := range t.last {
		if now.Sub(prev) >= t.window {
			delete(t.last, k)
		}
	}
	t.lastSweep = now
}

// Size returns the number of keys tracked.
func (t *ClickThrottle) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}
