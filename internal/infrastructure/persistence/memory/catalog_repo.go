package memory

import (
	"context"
	"sort"

	"github.com/alem-hub/coursequest/internal/domain/catalog"
	"github.com/alem-hub/coursequest/internal/domain/shared"
)

// CatalogRepo implements catalog.Repository and catalog.Writer.
type CatalogRepo struct{ s *Store }

var (
	_ catalog.Repository = (*CatalogRepo)(nil)
	_ catalog.Writer     = (*CatalogRepo)(nil)
)

func copyCourse(c *catalog.Course) *catalog.Course {
	cp := *c
	cp.TagIDs = append([]shared.TagID(nil), c.TagIDs...)
	return &cp
}

func copyModule(m *catalog.Module) *catalog.Module {
	cp := *m
	return &cp
}

// GetCourse implements catalog.Repository.
func (r *CatalogRepo) GetCourse(ctx context.Context, id shared.CourseID) (*catalog.Course, error) {
	var out *catalog.Course
	err := r.s.with(ctx, func(st *state) error {
		c, ok := st.courses[id]
		if !ok {
			return shared.ErrCourseNotFound
		}
		out = copyCourse(c)
		return nil
	})
	return out, err
}

// ListCourses implements catalog.Repository.
func (r *CatalogRepo) ListCourses(ctx context.Context) ([]*catalog.Course, error) {
	var out []*catalog.Course
	err := r.s.with(ctx, func(st *state) error {
		out = make([]*catalog.Course, 0, len(st.courses))
		for _, c := range st.courses {
			out = append(out, copyCourse(c))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// GetModule implements catalog.Repository.
func (r *CatalogRepo) GetModule(ctx context.Context, id shared.ModuleID) (*catalog.Module, error) {
	var out *catalog.Module
	err := r.s.with(ctx, func(st *state) error {
		m, ok := st.modules[id]
		if !ok {
			return shared.ErrModuleNotFound
		}
		out = copyModule(m)
		return nil
	})
	return out, err
}

// ListModules implements catalog.Repository.
func (r *CatalogRepo) ListModules(ctx context.Context, courseID shared.CourseID) ([]*catalog.Module, error) {
	var out []*catalog.Module
	err := r.s.with(ctx, func(st *state) error {
		for _, m := range st.modules {
			if m.CourseID == courseID {
				out = append(out, copyModule(m))
			}
		}
		return nil
	})
	catalog.SortByPosition(out)
	return out, err
}

// ListTags implements catalog.Repository.
func (r *CatalogRepo) ListTags(ctx context.Context) ([]*catalog.Tag, error) {
	var out []*catalog.Tag
	err := r.s.with(ctx, func(st *state) error {
		for _, t := range st.tags {
			cp := *t
			out = append(out, &cp)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// UpsertTag implements catalog.Writer.
func (r *CatalogRepo) UpsertTag(ctx context.Context, tag *catalog.Tag) error {
	cp := *tag
	return r.s.with(ctx, func(st *state) error {
		st.tags[tag.ID] = &cp
		return nil
	})
}

// UpsertCourse implements catalog.Writer.
func (r *CatalogRepo) UpsertCourse(ctx context.Context, course *catalog.Course) error {
	if err := course.Validate(); err != nil {
		return err
	}
	cp := copyCourse(course)
	return r.s.with(ctx, func(st *state) error {
		st.courses[course.ID] = cp
		return nil
	})
}

// UpsertModule implements catalog.Writer.
func (r *CatalogRepo) UpsertModule(ctx context.Context, module *catalog.Module) error {
	if err := module.Validate(); err != nil {
		return err
	}
	cp := copyModule(module)
	return r.s.with(ctx, func(st *state) error {
		if _, ok := st.courses[module.CourseID]; !ok {
			return shared.ErrCourseNotFound
		}
		for id, m := range st.modules {
			if id != module.ID && m.CourseID == module.CourseID && m.Position == module.Position {
				return shared.ErrDuplicatePosition
			}
		}
		st.modules[module.ID] = cp
		return nil
	})
}
