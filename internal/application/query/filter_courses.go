// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/alem-hub/coursequest/internal/domain/catalog"
	"github.com/alem-hub/coursequest/internal/domain/progress"
	"github.com/alem-hub/coursequest/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// FILTER COURSES
// Narrows the catalog by title text, tier, enrollment and tags. Every
// criterion is an independent predicate and they combine with AND.
// ══════════════════════════════════════════════════════════════════════════════

// CourseFilter lists the criteria. The zero value keeps every course.
type CourseFilter struct {
	// SearchText matches titles case-insensitively. Blank means no filter.
	SearchText string

	PremiumOnly bool
	FreeOnly    bool

	EnrolledOnly    bool
	NotEnrolledOnly bool

	// RequiredTagIDs keeps courses tagged with every listed tag.
	RequiredTagIDs []shared.TagID
}

// Contradictory reports whether the filter can never match.
func (f CourseFilter) Contradictory() bool {
	return (f.PremiumOnly && f.FreeOnly) || (f.EnrolledOnly && f.NotEnrolledOnly)
}

// Matches reports whether one course passes the filter. enrolled reports
// whether the user is enrolled in the course.
func (f CourseFilter) Matches(c *catalog.Course, enrolled bool) bool {
	if f.Contradictory() {
		return false
	}
	if text := strings.TrimSpace(f.SearchText); text != "" {
		if !strings.Contains(strings.ToLower(c.Title), strings.ToLower(text)) {
			return false
		}
	}
	if f.PremiumOnly && !c.IsPremium() {
		return false
	}
	if f.FreeOnly && c.IsPremium() {
		return false
	}
	if f.EnrolledOnly && !enrolled {
		return false
	}
	if f.NotEnrolledOnly && enrolled {
		return false
	}
	for _, tag := range f.RequiredTagIDs {
		if !c.HasTag(tag) {
			return false
		}
	}
	return true
}

// FilterCourses returns the courses that pass f, in input order.
// enrolled is the set of course ids the user is enrolled in.
func FilterCourses(courses []*catalog.Course, f CourseFilter, enrolled map[shared.CourseID]bool) []*catalog.Course {
	out := make([]*catalog.Course, 0, len(courses))
	if f.Contradictory() {
		return out
	}
	for _, c := range courses {
		if f.Matches(c, enrolled[c.ID]) {
			out = append(out, c)
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// GET FILTERED COURSES QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetFilteredCoursesQuery asks for the catalog as seen by one user.
type GetFilteredCoursesQuery struct {
	UserID shared.UserID
	Filter CourseFilter
}

// CourseDTO is a catalog entry with the user's enrollment flag.
type CourseDTO struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tier        string   `json:"tier"`
	Cost        int64    `json:"cost"`
	Difficulty  string   `json:"difficulty,omitempty"`
	ImageRef    string   `json:"image_ref,omitempty"`
	TimeLimit   int64    `json:"time_limit"`
	Tags        []string `json:"tags"`
	Enrolled    bool     `json:"enrolled"`
}

// GetFilteredCoursesHandler handles GetFilteredCoursesQuery.
type GetFilteredCoursesHandler struct {
	catalog  catalog.Repository
	progress *progress.Store
}

// NewGetFilteredCoursesHandler creates the handler.
func NewGetFilteredCoursesHandler(cat catalog.Repository, store *progress.Store) *GetFilteredCoursesHandler {
	return &GetFilteredCoursesHandler{catalog: cat, progress: store}
}

// Handle runs the query.
func (h *GetFilteredCoursesHandler) Handle(ctx context.Context, q GetFilteredCoursesQuery) ([]CourseDTO, error) {
	if q.Filter.Contradictory() {
		return []CourseDTO{}, nil
	}

	courses, err := h.catalog.ListCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	enrolled, err := h.progress.EnrolledCourseIDs(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	tagNames, err := loadTagNames(ctx, h.catalog)
	if err != nil {
		return nil, err
	}

	matched := FilterCourses(courses, q.Filter, enrolled)
	out := make([]CourseDTO, 0, len(matched))
	for _, c := range matched {
		out = append(out, toCourseDTO(c, enrolled[c.ID], tagNames))
	}
	return out, nil
}

func loadTagNames(ctx context.Context, cat catalog.Repository) (map[shared.TagID]string, error) {
	tags, err := cat.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	names := make(map[shared.TagID]string, len(tags))
	for _, t := range tags {
		names[t.ID] = t.Name
	}
	return names, nil
}

func toCourseDTO(c *catalog.Course, enrolled bool, tagNames map[shared.TagID]string) CourseDTO {
	tags := make([]string, 0, len(c.TagIDs))
	for _, id := range c.TagIDs {
		if name, ok := tagNames[id]; ok {
			tags = append(tags, name)
		}
	}
	return CourseDTO{
		ID:          int64(c.ID),
		Title:       c.Title,
		Description: c.Description,
		Tier:        string(c.Tier),
		Cost:        c.EnrollmentCost(),
		Difficulty:  string(c.Difficulty),
		ImageRef:    c.ImageRef,
		TimeLimit:   c.TimeLimit,
		Tags:        tags,
		Enrolled:    enrolled,
	}
}
