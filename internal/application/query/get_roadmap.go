package query

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/coursequest/internal/domain/catalog"
	"github.com/alem-hub/coursequest/internal/domain/progress"
	"github.com/alem-hub/coursequest/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ROADMAP QUERY
// Renders a course's module list for one user with status and lock state.
// Lock state is derived from progress facts on every call.
// ══════════════════════════════════════════════════════════════════════════════

// GetRoadmapQuery asks for one course roadmap.
type GetRoadmapQuery struct {
	UserID   shared.UserID
	CourseID shared.CourseID
}

// ModuleViewDTO is one roadmap entry.
type ModuleViewDTO struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Position     int    `json:"position"`
	Kind         string `json:"kind"`
	UnlockCost   int64  `json:"unlock_cost,omitempty"`
	ImageRef     string `json:"image_ref,omitempty"`
	Status       string `json:"status"`
	Unlocked     bool   `json:"unlocked"`
	ImageClicked bool   `json:"image_clicked"`
}

// CompletionDTO is the course completion state.
type CompletionDTO struct {
	CompletedAt             time.Time `json:"completed_at"`
	CompletionRewardClaimed bool      `json:"completion_reward_claimed"`
	TimedRewardClaimed      bool      `json:"timed_reward_claimed"`
}

// RoadmapDTO is the whole roadmap.
type RoadmapDTO struct {
	Course         CourseDTO       `json:"course"`
	Enrolled       bool            `json:"enrolled"`
	Modules        []ModuleViewDTO `json:"modules"`
	CompletedCount int             `json:"completed_count"`
	RequiredCount  int             `json:"required_count"`
	TimeSpent      int64           `json:"time_spent"`
	// TimeRemaining is nil when the course has no time limit.
	TimeRemaining *int64         `json:"time_remaining,omitempty"`
	Completion    *CompletionDTO `json:"completion,omitempty"`
}

// GetRoadmapHandler handles GetRoadmapQuery.
type GetRoadmapHandler struct {
	catalog  catalog.Repository
	progress *progress.Store
}

// NewGetRoadmapHandler creates the handler.
func NewGetRoadmapHandler(cat catalog.Repository, store *progress.Store) *GetRoadmapHandler {
	return &GetRoadmapHandler{catalog: cat, progress: store}
}

// Handle runs the query. Unknown courses return shared.ErrCourseNotFound.
func (h *GetRoadmapHandler) Handle(ctx context.Context, q GetRoadmapQuery) (*RoadmapDTO, error) {
	course, err := h.catalog.GetCourse(ctx, q.CourseID)
	if err != nil {
		return nil, err
	}
	modules, err := h.catalog.ListModules(ctx, q.CourseID)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	snap, err := h.progress.Snapshot(ctx, q.UserID, q.CourseID)
	if err != nil {
		return nil, err
	}
	tagNames, err := loadTagNames(ctx, h.catalog)
	if err != nil {
		return nil, err
	}

	normal := catalog.NormalModules(modules)
	views := make([]ModuleViewDTO, 0, len(modules))
	for _, m := range modules {
		unlocked, err := progress.IsModuleUnlocked(ctx, q.UserID, m, normal, snap)
		if err != nil {
			return nil, err
		}
		views = append(views, ModuleViewDTO{
			ID:           int64(m.ID),
			Title:        m.Title,
			Description:  m.Description,
			Position:     m.Position,
			Kind:         string(m.Kind),
			UnlockCost:   m.UnlockCost,
			ImageRef:     m.ImageRef,
			Status:       snap.Status(m.ID).String(),
			Unlocked:     unlocked,
			ImageClicked: snap.ImageClicked(m.ID),
		})
	}

	enrolled := snap.Enrollment != nil
	out := &RoadmapDTO{
		Course:         toCourseDTO(course, enrolled, tagNames),
		Enrolled:       enrolled,
		Modules:        views,
		CompletedCount: snap.CompletedCount(normal),
		RequiredCount:  len(normal),
		TimeSpent:      snap.TimeSpent(),
	}
	if course.HasTimedReward() {
		remaining := course.TimeLimit - snap.TimeSpent()
		if remaining < 0 {
			remaining = 0
		}
		out.TimeRemaining = &remaining
	}
	if c := snap.Completion; c != nil {
		out.Completion = &CompletionDTO{
			CompletedAt:             c.CompletedAt,
			CompletionRewardClaimed: c.CompletionRewardClaimed,
			TimedRewardClaimed:      c.TimedRewardClaimed,
		}
	}
	return out, nil
}
