package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alem-hub/coursequest/internal/application/progression"
	"github.com/alem-hub/coursequest/internal/domain/shared"
	"github.com/alem-hub/coursequest/pkg/logger"
)

type key struct {
	user   shared.UserID
	course shared.CourseID
}

// Manager owns the open course sessions, one per (user, course).
type Manager struct {
	engine   Engine
	newTimer TimerFactory
	clock    shared.Clock
	cfg      Config
	log      *logger.Logger

	mu       sync.Mutex
	sessions map[key]*CourseSession
}

// NewManager creates a Manager. It panics if engine, newTimer or clock is nil.
func NewManager(engine Engine, newTimer TimerFactory, clock shared.Clock, cfg Config, log *logger.Logger) *Manager {
	if engine == nil || newTimer == nil || clock == nil {
		panic("session: NewManager requires engine, timer factory and clock")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		engine:   engine,
		newTimer: newTimer,
		clock:    clock,
		cfg:      cfg.normalize(),
		log:      log.Named("session"),
		sessions: make(map[key]*CourseSession),
	}
}

// Start opens (or restarts) the session for a course view.
func (m *Manager) Start(userID shared.UserID, courseID shared.CourseID) (*CourseSession, error) {
	m.mu.Lock()
	k := key{userID, courseID}
	s, ok := m.sessions[k]
	if !ok {
		s = newCourseSession(userID, courseID, m.engine, m.newTimer, m.clock, m.cfg, m.log)
		m.sessions[k] = s
	}
	m.mu.Unlock()

	if err := s.Start(); err != nil {
		// A failed restart leaves the running session in place.
		m.mu.Lock()
		if m.sessions[k] == s && !s.Running() {
			delete(m.sessions, k)
		}
		m.mu.Unlock()
		return nil, err
	}
	return s, nil
}

// Get returns the open session, if any.
func (m *Manager) Get(userID shared.UserID, courseID shared.CourseID) (*CourseSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key{userID, courseID}]
	return s, ok
}

// Touch marks the session as in use and reports whether one is open.
func (m *Manager) Touch(userID shared.UserID, courseID shared.CourseID) bool {
	s, ok := m.Get(userID, courseID)
	if ok {
		s.Touch()
	}
	return ok
}

// Stop closes and forgets the session. It reports whether one was open.
func (m *Manager) Stop(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (bool, error) {
	m.mu.Lock()
	k := key{userID, courseID}
	s, ok := m.sessions[k]
	delete(m.sessions, k)
	m.mu.Unlock()

	if !ok {
		return false, nil
	}
	return true, s.Close(ctx)
}

// CompleteModule completes through the open session, flushing its time
// first. Without a session the engine is called directly.
func (m *Manager) CompleteModule(ctx context.Context, userID shared.UserID, courseID shared.CourseID, moduleID shared.ModuleID) (*progression.CompletionResult, error) {
	if s, ok := m.Get(userID, courseID); ok {
		return s.CompleteModule(ctx, moduleID)
	}
	return m.engine.CompleteModule(ctx, userID, moduleID, courseID)
}

// OnCourseEnrolled starts timing the freshly enrolled course. It is meant
// to be subscribed to shared.EventCourseEnrolled.
func (m *Manager) OnCourseEnrolled(event shared.Event) error {
	var ev shared.CourseEnrolledEvent
	switch e := event.(type) {
	case shared.CourseEnrolledEvent:
		ev = e
	case *shared.CourseEnrolledEvent:
		ev = *e
	default:
		return fmt.Errorf("session: unexpected event %T", event)
	}
	_, err := m.Start(ev.UserID, ev.CourseID)
	return err
}

// ReapIdle closes sessions not touched within the idle timeout and returns
// how many were closed.
func (m *Manager) ReapIdle(ctx context.Context) (int, error) {
	cutoff := m.clock.Now().Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	var idle []*CourseSession
	for k, s := range m.sessions {
		if s.IdleSince().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, k)
		}
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range idle {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(idle) > 0 {
		m.log.Info("idle sessions closed", logger.Int("count", len(idle)))
	}
	return len(idle), errors.Join(errs...)
}

// CloseAll closes every session. Used on shutdown.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	all := make([]*CourseSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[key]*CourseSession)
	m.mu.Unlock()

	var errs []error
	for _, s := range all {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
