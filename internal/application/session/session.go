// Package session tracks time spent in an open course view. A CourseSession
// owns one periodic timer: each tick adds to the seconds pending since the
// last save and every few ticks the pending delta is written through the
// progression engine. Closing a session stops the timer first and then
// flushes, so a late tick can never race the final save.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alem-hub/coursequest/internal/application/progression"
	"github.com/alem-hub/coursequest/internal/domain/shared"
	"github.com/alem-hub/coursequest/pkg/logger"
)

// Timer is a periodic tick source. Stop must be idempotent and no tick may
// run after it returns.
type Timer interface {
	Start() error
	Stop()
}

// TimerFactory builds a stopped Timer that calls onTick every interval.
type TimerFactory func(interval time.Duration, onTick func()) Timer

// Engine is the part of the progression engine a session drives.
type Engine interface {
	RecordSessionTime(ctx context.Context, userID shared.UserID, courseID shared.CourseID, elapsedSeconds int64) error
	CompleteModule(ctx context.Context, userID shared.UserID, moduleID shared.ModuleID, courseID shared.CourseID) (*progression.CompletionResult, error)
}

// Config controls a session's timing.
type Config struct {
	TickInterval   time.Duration
	SaveEveryTicks int
	NoticeTTL      time.Duration
	IdleTimeout    time.Duration
}

// DefaultConfig ticks every second and saves every 10 ticks.
func DefaultConfig() Config {
	return Config{
		TickInterval:   time.Second,
		SaveEveryTicks: 10,
		NoticeTTL:      3 * time.Second,
		IdleTimeout:    2 * time.Minute,
	}
}

func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.SaveEveryTicks < 1 {
		c.SaveEveryTicks = d.SaveEveryTicks
	}
	if c.NoticeTTL <= 0 {
		c.NoticeTTL = d.NoticeTTL
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	return c
}

// saveTimeout bounds the flushes started by the timer, which have no
// caller context.
const saveTimeout = 5 * time.Second

// State is a point-in-time view of a session.
type State struct {
	UserID         shared.UserID   `json:"user_id"`
	CourseID       shared.CourseID `json:"course_id"`
	Running        bool            `json:"running"`
	StartedAt      time.Time       `json:"started_at"`
	LastTouchedAt  time.Time       `json:"last_touched_at"`
	ElapsedSeconds int64           `json:"elapsed_seconds"`
	PendingSeconds int64           `json:"pending_seconds"`
	Notices        []Notice        `json:"notices"`
}

// CourseSession accumulates time for one user in one course.
type CourseSession struct {
	userID   shared.UserID
	courseID shared.CourseID
	engine   Engine
	clock    shared.Clock
	cfg      Config
	notices  *NoticeBoard
	log      *logger.Logger

	newTimer TimerFactory

	// saveMu serializes flushes so a delta is never written twice.
	saveMu sync.Mutex

	mu        sync.Mutex
	timer     Timer
	running   bool
	ticks     int
	pending   time.Duration
	elapsed   time.Duration
	startedAt time.Time
	touchedAt time.Time
}

func newCourseSession(userID shared.UserID, courseID shared.CourseID, engine Engine, newTimer TimerFactory, clock shared.Clock, cfg Config, log *logger.Logger) *CourseSession {
	return &CourseSession{
		userID:   userID,
		courseID: courseID,
		engine:   engine,
		clock:    clock,
		cfg:      cfg,
		notices:  NewNoticeBoard(cfg.NoticeTTL),
		newTimer: newTimer,
		log: log.With(
			logger.Int64("user_id", int64(userID)),
			logger.Int64("course_id", int64(courseID)),
		),
	}
}

// UserID returns the session owner.
func (s *CourseSession) UserID() shared.UserID { return s.userID }

// CourseID returns the tracked course.
func (s *CourseSession) CourseID() shared.CourseID { return s.courseID }

// Notices returns the session's notice board.
func (s *CourseSession) Notices() *NoticeBoard { return s.notices }

// Start resets the time baseline to zero and starts the timer. On a
// running session the whole seconds still pending are saved before the
// reset; if that save fails the session is left untouched.
func (s *CourseSession) Start() error {
	// Holding saveMu keeps an in-flight flush from subtracting its delta
	// from the fresh baseline.
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.flushLocked(ctx); err != nil {
		return fmt.Errorf("save session time before restart: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.ticks = 0
	s.pending = 0
	s.elapsed = 0
	s.startedAt = now
	s.touchedAt = now

	if s.running {
		return nil
	}
	timer := s.newTimer(s.cfg.TickInterval, s.tick)
	if err := timer.Start(); err != nil {
		return fmt.Errorf("start session timer: %w", err)
	}
	s.timer = timer
	s.running = true
	s.log.Debug("session started")
	return nil
}

// Touch marks the session as in use.
func (s *CourseSession) Touch() {
	s.mu.Lock()
	s.touchedAt = s.clock.Now()
	s.mu.Unlock()
}

// IdleSince reports when the session was last touched.
func (s *CourseSession) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedAt
}

// Running reports whether the timer is ticking.
func (s *CourseSession) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// tick is the timer callback.
func (s *CourseSession) tick() {
	now := s.clock.Now()
	s.notices.Expire(now)

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.ticks++
	s.pending += s.cfg.TickInterval
	s.elapsed += s.cfg.TickInterval
	save := s.ticks%s.cfg.SaveEveryTicks == 0
	s.mu.Unlock()

	if !save {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		s.log.Error("periodic session save failed", logger.Err(err))
	}
}

// Flush writes the whole seconds pending since the last save. Sub-second
// remainders carry over. On error the pending time is kept for the next
// flush.
func (s *CourseSession) Flush(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.flushLocked(ctx)
}

// flushLocked requires saveMu.
func (s *CourseSession) flushLocked(ctx context.Context) error {
	s.mu.Lock()
	seconds := int64(s.pending / time.Second)
	s.mu.Unlock()
	if seconds <= 0 {
		return nil
	}

	if err := s.engine.RecordSessionTime(ctx, s.userID, s.courseID, seconds); err != nil {
		return err
	}

	s.mu.Lock()
	s.pending -= time.Duration(seconds) * time.Second
	s.mu.Unlock()
	return nil
}

// Close stops the timer and then flushes the pending delta. It is safe to
// call more than once.
func (s *CourseSession) Close(ctx context.Context) error {
	s.mu.Lock()
	timer := s.timer
	s.timer = nil
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if err := s.Flush(ctx); err != nil {
		return fmt.Errorf("flush session time: %w", err)
	}
	if wasRunning {
		s.log.Debug("session closed")
	}
	return nil
}

// CompleteModule flushes pending time so the timed reward sees it, then
// completes the module and posts notices for what was granted.
func (s *CourseSession) CompleteModule(ctx context.Context, moduleID shared.ModuleID) (*progression.CompletionResult, error) {
	s.Touch()
	if err := s.Flush(ctx); err != nil {
		return nil, fmt.Errorf("flush session time: %w", err)
	}

	res, err := s.engine.CompleteModule(ctx, s.userID, moduleID, s.courseID)
	if err != nil {
		return nil, err
	}
	s.postResultNotices(res)
	return res, nil
}

func (s *CourseSession) postResultNotices(res *progression.CompletionResult) {
	now := s.clock.Now()
	switch {
	case res.Outcome == progression.OutcomeModuleLocked:
		s.notices.Post(NoticeWarning, "Complete the previous module first", now)
	case res.ModuleCompleted:
		s.notices.Post(NoticeProgress, fmt.Sprintf("Module completed (%d/%d)", res.CompletedCount, res.RequiredCount), now)
	}
	if res.CourseCompleted {
		s.notices.Post(NoticeProgress, "Course completed", now)
	}
	if res.CompletionRewardGranted {
		s.notices.Post(NoticeReward, "Completion reward granted", now)
	}
	if res.TimedRewardGranted {
		s.notices.Post(NoticeReward, "Finished within the time limit: bonus granted", now)
	}
}

// State returns a snapshot of the session.
func (s *CourseSession) State() State {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		UserID:         s.userID,
		CourseID:       s.courseID,
		Running:        s.running,
		StartedAt:      s.startedAt,
		LastTouchedAt:  s.touchedAt,
		ElapsedSeconds: int64(s.elapsed / time.Second),
		PendingSeconds: int64(s.pending / time.Second),
		Notices:        s.notices.Visible(now),
	}
}
