package shared

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID identifies a learner. The service is single-user per process, so
// callers that have no identity use DefaultUserID.
type UserID int64

// DefaultUserID is the identity used when none is supplied.
const DefaultUserID UserID = 0

// String returns the decimal representation.
func (u UserID) String() string { return strconv.FormatInt(int64(u), 10) }

// ParseUserID parses a decimal user id.
func ParseUserID(s string) (UserID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, WrapError("shared", "ParseUserID", ErrInvalidID, "invalid user id", err)
	}
	return UserID(v), nil
}

// CourseID identifies a course.
type CourseID int64

// IsValid reports whether the id is positive.
func (c CourseID) IsValid() bool { return c > 0 }

func (c CourseID) String() string { return strconv.FormatInt(int64(c), 10) }

// ModuleID identifies a module.
type ModuleID int64

// IsValid reports whether the id is positive.
func (m ModuleID) IsValid() bool { return m > 0 }

func (m ModuleID) String() string { return strconv.FormatInt(int64(m), 10) }

// TagID identifies a catalog tag.
type TagID int64

// ═══════════════════════════════════════════════════════════════════════════
// Clock
// ═══════════════════════════════════════════════════════════════════════════

// Clock supplies the current time for daily-login comparisons and
// completion timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock is a settable clock for tests and replays.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t}
}

// Now implements Clock.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ═══════════════════════════════════════════════════════════════════════════
// Transactions
// ═══════════════════════════════════════════════════════════════════════════

// Transactor runs fn as one atomic unit against the data store. Repository
// calls made with the ctx passed to fn take part in the same transaction.
// A nested InTx joins the outer transaction. If fn returns an error every
// write made inside it is discarded.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
