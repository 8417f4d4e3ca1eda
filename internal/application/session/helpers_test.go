package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alem-hub/coursequest/internal/application/progression"
	"github.com/alem-hub/coursequest/internal/domain/shared"
)

// manualTimer fires only when the test calls fire.
type manualTimer struct {
	mu      sync.Mutex
	onTick  func()
	running bool
	starts  int
	stops   int
}

func (t *manualTimer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = true
	t.starts++
	return nil
}

func (t *manualTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	t.stops++
}

// fire runs n ticks; ticks on a stopped timer are dropped.
func (t *manualTimer) fire(n int) {
	for i := 0; i < n; i++ {
		t.mu.Lock()
		running := t.running
		t.mu.Unlock()
		if running {
			t.onTick()
		}
	}
}

type timers struct {
	mu  sync.Mutex
	all []*manualTimer
}

func (ts *timers) factory(_ time.Duration, onTick func()) Timer {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t := &manualTimer{onTick: onTick}
	ts.all = append(ts.all, t)
	return t
}

func (ts *timers) last() *manualTimer {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.all[len(ts.all)-1]
}

type recordCall struct {
	user    shared.UserID
	course  shared.CourseID
	seconds int64
}

type fakeEngine struct {
	mu        sync.Mutex
	records   []recordCall
	completes []shared.ModuleID
	failSave  bool
	result    *progression.CompletionResult

	// When block is set, saves announce themselves on entered and wait
	// until block is closed.
	block   chan struct{}
	entered chan struct{}
}

func (e *fakeEngine) RecordSessionTime(_ context.Context, userID shared.UserID, courseID shared.CourseID, seconds int64) error {
	if e.block != nil {
		select {
		case e.entered <- struct{}{}:
		default:
		}
		<-e.block
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failSave {
		return errors.New("store unavailable")
	}
	e.records = append(e.records, recordCall{userID, courseID, seconds})
	return nil
}

func (e *fakeEngine) CompleteModule(_ context.Context, _ shared.UserID, moduleID shared.ModuleID, _ shared.CourseID) (*progression.CompletionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completes = append(e.completes, moduleID)
	if e.result != nil {
		return e.result, nil
	}
	return &progression.CompletionResult{Outcome: progression.OutcomeOK, ModuleCompleted: true}, nil
}

func (e *fakeEngine) total() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	var sum int64
	for _, r := range e.records {
		sum += r.seconds
	}
	return sum
}

func (e *fakeEngine) saves() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.records)
}
