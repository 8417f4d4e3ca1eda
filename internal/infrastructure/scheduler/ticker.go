package scheduler

import (
	"errors"
	"sync"
	"time"
)

// DefaultTickInterval is the session timer period.
const DefaultTickInterval = time.Second

// ErrTimerRunning is returned by Start on a running timer.
var ErrTimerRunning = errors.New("scheduler: timer already running")

// IntervalTimer calls a callback at a fixed interval on its own goroutine.
// Callbacks never overlap. Stop is idempotent and returns only after the
// goroutine has exited, so no callback runs after Stop returns. Stop must
// not be called from inside the callback.
type IntervalTimer struct {
	interval time.Duration
	onTick   func()

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewIntervalTimer creates a stopped timer. A non-positive interval means
// DefaultTickInterval.
func NewIntervalTimer(interval time.Duration, onTick func()) *IntervalTimer {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &IntervalTimer{interval: interval, onTick: onTick}
}

// Interval returns the tick period.
func (t *IntervalTimer) Interval() time.Duration {
	return t.interval
}

// Start begins ticking. A stopped timer can be started again.
func (t *IntervalTimer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return ErrTimerRunning
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(t.stop, t.done)
	return nil
}

// Stop halts the timer and waits for an in-flight callback to finish.
func (t *IntervalTimer) Stop() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Running reports whether the timer is ticking.
func (t *IntervalTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

func (t *IntervalTimer) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Both cases may be ready at once; stop wins.
			select {
			case <-stop:
				return
			default:
			}
			if t.onTick != nil {
				t.onTick()
			}
		}
	}
}
