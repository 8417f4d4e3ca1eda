package progress

import (
	"context"
	"time"

	"github.com/alem-hub/coursequest/internal/domain/shared"
)

// Repository persists progress facts. Every method that reports a bool
// performs a conditional write and says whether it changed anything, so
// repeating a call is always a no-op.
type Repository interface {
	// Module progress

	// GetModuleProgress returns the record, or a NotOpened record if none exists.
	GetModuleProgress(ctx context.Context, userID shared.UserID, moduleID shared.ModuleID) (*ModuleProgress, error)

	// ListModuleProgress returns every record the user has in a course.
	ListModuleProgress(ctx context.Context, userID shared.UserID, courseID shared.CourseID) ([]*ModuleProgress, error)

	// AdvanceModule raises the status to `to` if it is currently lower.
	// Targeting StatusNotOpened fails with shared.ErrStatusRegression.
	AdvanceModule(ctx context.Context, userID shared.UserID, courseID shared.CourseID, moduleID shared.ModuleID, to ModuleStatus, at time.Time) (bool, error)

	// MarkImageClicked sets the image flag if it is not set yet.
	MarkImageClicked(ctx context.Context, userID shared.UserID, courseID shared.CourseID, moduleID shared.ModuleID) (bool, error)

	// Enrollments

	// CreateEnrollment inserts the record unless one exists.
	CreateEnrollment(ctx context.Context, e *Enrollment) (bool, error)

	// GetEnrollment returns the record or shared.ErrEnrollmentNotFound.
	GetEnrollment(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (*Enrollment, error)

	// ListEnrollments returns all enrollments of a user ordered by course id.
	ListEnrollments(ctx context.Context, userID shared.UserID) ([]*Enrollment, error)

	// AddTimeSpent increments accumulated seconds. Reports false when the
	// user is not enrolled.
	AddTimeSpent(ctx context.Context, userID shared.UserID, courseID shared.CourseID, delta int64) (bool, error)

	// Completions

	// CreateCompletion inserts the record unless one exists.
	CreateCompletion(ctx context.Context, c *CourseCompletion) (bool, error)

	// GetCompletion returns the record or shared.ErrCompletionNotFound.
	GetCompletion(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (*CourseCompletion, error)

	// ClaimCompletionFlag flips the flag false to true. Reports false when
	// the flag was already set or no completion exists.
	ClaimCompletionFlag(ctx context.Context, userID shared.UserID, courseID shared.CourseID, kind ClaimKind) (bool, error)
}
