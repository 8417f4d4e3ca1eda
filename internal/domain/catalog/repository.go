package catalog

import (
	"context"

	"github.com/alem-hub/coursequest/internal/domain/shared"
)

// Repository gives read access to the catalog.
// Missing entities are reported as shared.ErrCourseNotFound or
// shared.ErrModuleNotFound.
type Repository interface {
	// GetCourse returns a course by id.
	GetCourse(ctx context.Context, id shared.CourseID) (*Course, error)

	// ListCourses returns every course ordered by id.
	ListCourses(ctx context.Context) ([]*Course, error)

	// GetModule returns a module by id.
	GetModule(ctx context.Context, id shared.ModuleID) (*Module, error)

	// ListModules returns all modules of a course ordered by position.
	ListModules(ctx context.Context, courseID shared.CourseID) ([]*Module, error)

	// ListTags returns every tag ordered by id.
	ListTags(ctx context.Context) ([]*Tag, error)
}

// Writer loads catalog data. Used by administrative seeding only.
type Writer interface {
	UpsertTag(ctx context.Context, tag *Tag) error
	UpsertCourse(ctx context.Context, course *Course) error
	UpsertModule(ctx context.Context, module *Module) error
}
