package progress

import (
	"context"

	"github.com/alem-hub/coursequest/internal/domain/catalog"
	"github.com/alem-hub/coursequest/internal/domain/shared"
)

// Snapshot is a point-in-time copy of a user's progress in one course.
// It satisfies Reader so the unlock policy can run over it without
// further store round trips.
type Snapshot struct {
	UserID     shared.UserID
	CourseID   shared.CourseID
	Enrollment *Enrollment
	Modules    map[shared.ModuleID]*ModuleProgress
	Completion *CourseCompletion
}

// Status returns the recorded status, NotOpened if absent.
func (s *Snapshot) Status(moduleID shared.ModuleID) ModuleStatus {
	if p, ok := s.Modules[moduleID]; ok {
		return p.Status
	}
	return StatusNotOpened
}

// ImageClicked reports the image flag for a module.
func (s *Snapshot) ImageClicked(moduleID shared.ModuleID) bool {
	if p, ok := s.Modules[moduleID]; ok {
		return p.ImageClicked
	}
	return false
}

// CompletedCount counts completed modules among the given ones.
func (s *Snapshot) CompletedCount(modules []*catalog.Module) int {
	n := 0
	for _, m := range modules {
		if s.Status(m.ID) == StatusCompleted {
			n++
		}
	}
	return n
}

// TimeSpent returns accumulated seconds, 0 if not enrolled.
func (s *Snapshot) TimeSpent() int64 {
	if s.Enrollment == nil {
		return 0
	}
	return s.Enrollment.TimeSpent
}

// IsEnrolled implements Reader.
func (s *Snapshot) IsEnrolled(_ context.Context, userID shared.UserID, courseID shared.CourseID) (bool, error) {
	return userID == s.UserID && courseID == s.CourseID && s.Enrollment != nil, nil
}

// IsOpen implements Reader.
func (s *Snapshot) IsOpen(_ context.Context, userID shared.UserID, moduleID shared.ModuleID) (bool, error) {
	return userID == s.UserID && s.Status(moduleID).AtLeast(StatusOpen), nil
}

// IsCompleted implements Reader.
func (s *Snapshot) IsCompleted(_ context.Context, userID shared.UserID, moduleID shared.ModuleID) (bool, error) {
	return userID == s.UserID && s.Status(moduleID) == StatusCompleted, nil
}
