package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/alem-hub/coursequest/internal/domain/catalog"
	"github.com/alem-hub/coursequest/internal/domain/shared"
)

// Store answers progress questions for a user by combining the progress
// repository with the catalog.
type Store struct {
	repo    Repository
	catalog catalog.Repository
	clock   shared.Clock
}

// NewStore creates a Store.
func NewStore(repo Repository, cat catalog.Repository, clock shared.Clock) *Store {
	if repo == nil || cat == nil || clock == nil {
		panic("progress: NewStore requires repository, catalog and clock")
	}
	return &Store{repo: repo, catalog: cat, clock: clock}
}

// Repository exposes the underlying repository for conditional writes
// that the engine composes into transactions.
func (s *Store) Repository() Repository {
	return s.repo
}

// ════════════════════════════════════════════════════════════════════════════
// Enrollment
// ════════════════════════════════════════════════════════════════════════════

// IsEnrolled reports whether the user is enrolled in the course.
func (s *Store) IsEnrolled(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (bool, error) {
	_, err := s.repo.GetEnrollment(ctx, userID, courseID)
	if errors.Is(err, shared.ErrEnrollmentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get enrollment: %w", err)
	}
	return true, nil
}

// Enrollments returns the user's enrollments.
func (s *Store) Enrollments(ctx context.Context, userID shared.UserID) ([]*Enrollment, error) {
	return s.repo.ListEnrollments(ctx, userID)
}

// EnrolledCourseIDs returns the set of courses the user is enrolled in.
func (s *Store) EnrolledCourseIDs(ctx context.Context, userID shared.UserID) (map[shared.CourseID]bool, error) {
	list, err := s.repo.ListEnrollments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	out := make(map[shared.CourseID]bool, len(list))
	for _, e := range list {
		out[e.CourseID] = true
	}
	return out, nil
}

// RecordTimeSpent adds delta seconds to the enrollment. Non-positive deltas
// and unknown enrollments are a no-op.
func (s *Store) RecordTimeSpent(ctx context.Context, userID shared.UserID, courseID shared.CourseID, delta int64) error {
	if delta <= 0 {
		return nil
	}
	if _, err := s.repo.AddTimeSpent(ctx, userID, courseID, delta); err != nil {
		return fmt.Errorf("add time spent: %w", err)
	}
	return nil
}

// GetTimeSpent returns accumulated seconds, 0 if not enrolled.
func (s *Store) GetTimeSpent(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (int64, error) {
	e, err := s.repo.GetEnrollment(ctx, userID, courseID)
	if errors.Is(err, shared.ErrEnrollmentNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get enrollment: %w", err)
	}
	return e.TimeSpent, nil
}

// ════════════════════════════════════════════════════════════════════════════
// Module state
// ════════════════════════════════════════════════════════════════════════════

// Status returns the module's status for the user.
func (s *Store) Status(ctx context.Context, userID shared.UserID, moduleID shared.ModuleID) (ModuleStatus, error) {
	p, err := s.repo.GetModuleProgress(ctx, userID, moduleID)
	if err != nil {
		return StatusNotOpened, fmt.Errorf("get module progress: %w", err)
	}
	return p.Status, nil
}

// IsOpen reports whether the module has been opened. Completed modules
// count as open.
func (s *Store) IsOpen(ctx context.Context, userID shared.UserID, moduleID shared.ModuleID) (bool, error) {
	st, err := s.Status(ctx, userID, moduleID)
	return st.AtLeast(StatusOpen), err
}

// IsCompleted reports whether the module is completed.
func (s *Store) IsCompleted(ctx context.Context, userID shared.UserID, moduleID shared.ModuleID) (bool, error) {
	st, err := s.Status(ctx, userID, moduleID)
	return st.AtLeast(StatusCompleted), err
}

// Open marks the module open. Opening an open or completed module changes
// nothing and reports false.
func (s *Store) Open(ctx context.Context, userID shared.UserID, moduleID shared.ModuleID) (bool, error) {
	return s.advance(ctx, userID, moduleID, StatusOpen)
}

// Complete marks the module completed. Repeating it reports false.
func (s *Store) Complete(ctx context.Context, userID shared.UserID, moduleID shared.ModuleID) (bool, error) {
	return s.advance(ctx, userID, moduleID, StatusCompleted)
}

func (s *Store) advance(ctx context.Context, userID shared.UserID, moduleID shared.ModuleID, to ModuleStatus) (bool, error) {
	m, err := s.catalog.GetModule(ctx, moduleID)
	if err != nil {
		return false, err
	}
	changed, err := s.repo.AdvanceModule(ctx, userID, m.CourseID, moduleID, to, s.clock.Now())
	if err != nil {
		return false, fmt.Errorf("advance module to %s: %w", to, err)
	}
	return changed, nil
}

// ════════════════════════════════════════════════════════════════════════════
// Counts
// ════════════════════════════════════════════════════════════════════════════

// GetRequiredModuleCount returns the number of normal modules in the course.
func (s *Store) GetRequiredModuleCount(ctx context.Context, courseID shared.CourseID) (int, error) {
	modules, err := s.catalog.ListModules(ctx, courseID)
	if err != nil {
		return 0, fmt.Errorf("list modules: %w", err)
	}
	return len(catalog.NormalModules(modules)), nil
}

// GetCompletedModuleCount returns the number of completed normal modules.
func (s *Store) GetCompletedModuleCount(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (int, error) {
	modules, err := s.catalog.ListModules(ctx, courseID)
	if err != nil {
		return 0, fmt.Errorf("list modules: %w", err)
	}
	snap, err := s.Snapshot(ctx, userID, courseID)
	if err != nil {
		return 0, err
	}
	return snap.CompletedCount(catalog.NormalModules(modules)), nil
}

// Snapshot loads everything the user has recorded for a course in one read.
func (s *Store) Snapshot(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (*Snapshot, error) {
	snap := &Snapshot{
		UserID:   userID,
		CourseID: courseID,
		Modules:  make(map[shared.ModuleID]*ModuleProgress),
	}

	e, err := s.repo.GetEnrollment(ctx, userID, courseID)
	switch {
	case err == nil:
		snap.Enrollment = e
	case !errors.Is(err, shared.ErrEnrollmentNotFound):
		return nil, fmt.Errorf("get enrollment: %w", err)
	}

	list, err := s.repo.ListModuleProgress(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("list module progress: %w", err)
	}
	for _, p := range list {
		snap.Modules[p.ModuleID] = p
	}

	c, err := s.repo.GetCompletion(ctx, userID, courseID)
	switch {
	case err == nil:
		snap.Completion = c
	case !errors.Is(err, shared.ErrCompletionNotFound):
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return snap, nil
}

// ════════════════════════════════════════════════════════════════════════════
// Completion
// ════════════════════════════════════════════════════════════════════════════

// Completion returns the course completion, or nil if the course is not
// complete for the user.
func (s *Store) Completion(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (*CourseCompletion, error) {
	c, err := s.repo.GetCompletion(ctx, userID, courseID)
	if errors.Is(err, shared.ErrCompletionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}
