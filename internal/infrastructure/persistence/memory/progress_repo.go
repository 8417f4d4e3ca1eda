package memory

import (
	"context"
	"sort"
	"time"

	"github.com/alem-hub/coursequest/internal/domain/progress"
	"github.com/alem-hub/coursequest/internal/domain/shared"
)

// ProgressRepo implements progress.Repository.
type ProgressRepo struct{ s *Store }

var _ progress.Repository = (*ProgressRepo)(nil)

func (st *state) moduleProgress(userID shared.UserID, courseID shared.CourseID, moduleID shared.ModuleID) *progress.ModuleProgress {
	k := moduleKey{userID, moduleID}
	p, ok := st.moduleState[k]
	if !ok {
		p = &progress.ModuleProgress{UserID: userID, CourseID: courseID, ModuleID: moduleID}
		st.moduleState[k] = p
	}
	return p
}

// GetModuleProgress implements progress.Repository.
func (r *ProgressRepo) GetModuleProgress(ctx context.Context, userID shared.UserID, moduleID shared.ModuleID) (*progress.ModuleProgress, error) {
	out := &progress.ModuleProgress{UserID: userID, ModuleID: moduleID}
	err := r.s.with(ctx, func(st *state) error {
		if p, ok := st.moduleState[moduleKey{userID, moduleID}]; ok {
			cp := *p
			out = &cp
		}
		return nil
	})
	return out, err
}

// ListModuleProgress implements progress.Repository.
func (r *ProgressRepo) ListModuleProgress(ctx context.Context, userID shared.UserID, courseID shared.CourseID) ([]*progress.ModuleProgress, error) {
	var out []*progress.ModuleProgress
	err := r.s.with(ctx, func(st *state) error {
		for k, p := range st.moduleState {
			if k.user == userID && p.CourseID == courseID {
				cp := *p
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleID < out[j].ModuleID })
	return out, err
}

// AdvanceModule implements progress.Repository.
func (r *ProgressRepo) AdvanceModule(ctx context.Context, userID shared.UserID, courseID shared.CourseID, moduleID shared.ModuleID, to progress.ModuleStatus, at time.Time) (bool, error) {
	if !to.IsValid() {
		return false, shared.ErrInvalidStatus
	}
	if to == progress.StatusNotOpened {
		return false, shared.ErrStatusRegression
	}
	var changed bool
	err := r.s.with(ctx, func(st *state) error {
		p := st.moduleProgress(userID, courseID, moduleID)
		if p.Status >= to {
			return nil
		}
		t := at
		if p.OpenedAt == nil && to >= progress.StatusOpen {
			p.OpenedAt = &t
		}
		if to == progress.StatusCompleted {
			p.CompletedAt = &t
		}
		p.Status = to
		changed = true
		return nil
	})
	return changed, err
}

// MarkImageClicked implements progress.Repository.
func (r *ProgressRepo) MarkImageClicked(ctx context.Context, userID shared.UserID, courseID shared.CourseID, moduleID shared.ModuleID) (bool, error) {
	var changed bool
	err := r.s.with(ctx, func(st *state) error {
		p := st.moduleProgress(userID, courseID, moduleID)
		if p.ImageClicked {
			return nil
		}
		p.ImageClicked = true
		changed = true
		return nil
	})
	return changed, err
}

// CreateEnrollment implements progress.Repository.
func (r *ProgressRepo) CreateEnrollment(ctx context.Context, e *progress.Enrollment) (bool, error) {
	var created bool
	err := r.s.with(ctx, func(st *state) error {
		k := enrollKey{e.UserID, e.CourseID}
		if _, ok := st.enrollments[k]; ok {
			return nil
		}
		cp := *e
		st.enrollments[k] = &cp
		created = true
		return nil
	})
	return created, err
}

// GetEnrollment implements progress.Repository.
func (r *ProgressRepo) GetEnrollment(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (*progress.Enrollment, error) {
	var out *progress.Enrollment
	err := r.s.with(ctx, func(st *state) error {
		e, ok := st.enrollments[enrollKey{userID, courseID}]
		if !ok {
			return shared.ErrEnrollmentNotFound
		}
		cp := *e
		out = &cp
		return nil
	})
	return out, err
}

// ListEnrollments implements progress.Repository.
func (r *ProgressRepo) ListEnrollments(ctx context.Context, userID shared.UserID) ([]*progress.Enrollment, error) {
	var out []*progress.Enrollment
	err := r.s.with(ctx, func(st *state) error {
		for k, e := range st.enrollments {
			if k.user == userID {
				cp := *e
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out, err
}

// AddTimeSpent implements progress.Repository.
func (r *ProgressRepo) AddTimeSpent(ctx context.Context, userID shared.UserID, courseID shared.CourseID, delta int64) (bool, error) {
	if delta < 0 {
		return false, shared.ErrNegativeValue
	}
	var ok bool
	err := r.s.with(ctx, func(st *state) error {
		e, exists := st.enrollments[enrollKey{userID, courseID}]
		if !exists {
			return nil
		}
		e.TimeSpent += delta
		ok = true
		return nil
	})
	return ok, err
}

// CreateCompletion implements progress.Repository.
func (r *ProgressRepo) CreateCompletion(ctx context.Context, c *progress.CourseCompletion) (bool, error) {
	var created bool
	err := r.s.with(ctx, func(st *state) error {
		k := enrollKey{c.UserID, c.CourseID}
		if _, ok := st.completions[k]; ok {
			return nil
		}
		cp := *c
		st.completions[k] = &cp
		created = true
		return nil
	})
	return created, err
}

// GetCompletion implements progress.Repository.
func (r *ProgressRepo) GetCompletion(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (*progress.CourseCompletion, error) {
	var out *progress.CourseCompletion
	err := r.s.with(ctx, func(st *state) error {
		c, ok := st.completions[enrollKey{userID, courseID}]
		if !ok {
			return shared.ErrCompletionNotFound
		}
		cp := *c
		out = &cp
		return nil
	})
	return out, err
}

// ClaimCompletionFlag implements progress.Repository.
func (r *ProgressRepo) ClaimCompletionFlag(ctx context.Context, userID shared.UserID, courseID shared.CourseID, kind progress.ClaimKind) (bool, error) {
	if !kind.IsValid() {
		return false, shared.ErrInvalidInput
	}
	var claimed bool
	err := r.s.with(ctx, func(st *state) error {
		c, ok := st.completions[enrollKey{userID, courseID}]
		if !ok || c.Claimed(kind) {
			return nil
		}
		switch kind {
		case progress.ClaimCompletionReward:
			c.CompletionRewardClaimed = true
		case progress.ClaimTimedReward:
			c.TimedRewardClaimed = true
		}
		claimed = true
		return nil
	})
	return claimed, err
}
