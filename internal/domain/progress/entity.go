// Package progress records what a learner has done: enrollments, module
// states, accumulated time, and course completions with their one-time
// reward flags. It also holds the unlock policy derived from those facts.
package progress

import (
	"strings"
	"time"

	"github.com/alem-hub/coursequest/internal/domain/shared"
)

// ModuleStatus only ever advances: NotOpened, Open, Completed.
type ModuleStatus int

const (
	StatusNotOpened ModuleStatus = iota
	StatusOpen
	StatusCompleted
)

// String returns the wire name of the status.
func (s ModuleStatus) String() string {
	switch s {
	case StatusNotOpened:
		return "not_opened"
	case StatusOpen:
		return "open"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// IsValid checks the status value.
func (s ModuleStatus) IsValid() bool {
	return s >= StatusNotOpened && s <= StatusCompleted
}

// AtLeast reports whether s has reached other.
func (s ModuleStatus) AtLeast(other ModuleStatus) bool {
	return s >= other
}

// ParseModuleStatus parses a wire name.
func ParseModuleStatus(v string) (ModuleStatus, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "not_opened", "":
		return StatusNotOpened, nil
	case "open":
		return StatusOpen, nil
	case "completed":
		return StatusCompleted, nil
	}
	return StatusNotOpened, shared.ErrInvalidStatus
}

// ModuleProgress is a user's state for one module. A missing record means
// NotOpened with the image not clicked.
type ModuleProgress struct {
	UserID       shared.UserID
	CourseID     shared.CourseID
	ModuleID     shared.ModuleID
	Status       ModuleStatus
	ImageClicked bool
	OpenedAt     *time.Time
	CompletedAt  *time.Time
}

// Enrollment exists iff the user is enrolled in the course.
type Enrollment struct {
	UserID     shared.UserID
	CourseID   shared.CourseID
	EnrolledAt time.Time
	// TimeSpent is accumulated seconds, never negative.
	TimeSpent int64
}

// CourseCompletion is created once, when every normal module is completed.
// Both claim flags move false to true at most once.
type CourseCompletion struct {
	UserID                  shared.UserID
	CourseID                shared.CourseID
	CompletionRewardClaimed bool
	TimedRewardClaimed      bool
	CompletedAt             time.Time
}

// ClaimKind selects one of the completion reward flags.
type ClaimKind string

const (
	ClaimCompletionReward ClaimKind = "completion_reward"
	ClaimTimedReward      ClaimKind = "timed_reward"
)

// IsValid checks the claim kind.
func (k ClaimKind) IsValid() bool {
	return k == ClaimCompletionReward || k == ClaimTimedReward
}

// Claimed reports the flag for kind.
func (c *CourseCompletion) Claimed(kind ClaimKind) bool {
	switch kind {
	case ClaimCompletionReward:
		return c.CompletionRewardClaimed
	case ClaimTimedReward:
		return c.TimedRewardClaimed
	}
	return false
}
