package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/coursequest/internal/domain/progress"
	"github.com/alem-hub/coursequest/internal/domain/shared"
)

// ProgressRepository implements progress.Repository.
type ProgressRepository struct {
	conn *Connection
}

var _ progress.Repository = (*ProgressRepository)(nil)

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Module progress
// ─────────────────────────────────────────────────────────────────────────────

// GetModuleProgress implements progress.Repository.
func (r *ProgressRepository) GetModuleProgress(ctx context.Context, userID shared.UserID, moduleID shared.ModuleID) (*progress.ModuleProgress, error) {
	p := &progress.ModuleProgress{UserID: userID, ModuleID: moduleID}
	var courseID int64
	var status int16
	err := r.conn.q(ctx).QueryRow(ctx, `
		SELECT course_id, status, image_clicked, opened_at, completed_at
		FROM module_progress WHERE user_id = $1 AND module_id = $2`,
		int64(userID), int64(moduleID),
	).Scan(&courseID, &status, &p.ImageClicked, &p.OpenedAt, &p.CompletedAt)
	if IsNoRows(err) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get module progress: %w", err)
	}
	p.CourseID = shared.CourseID(courseID)
	p.Status = progress.ModuleStatus(status)
	return p, nil
}

// ListModuleProgress implements progress.Repository.
func (r *ProgressRepository) ListModuleProgress(ctx context.Context, userID shared.UserID, courseID shared.CourseID) ([]*progress.ModuleProgress, error) {
	rows, err := r.conn.q(ctx).Query(ctx, `
		SELECT module_id, status, image_clicked, opened_at, completed_at
		FROM module_progress WHERE user_id = $1 AND course_id = $2 ORDER BY module_id`,
		int64(userID), int64(courseID))
	if err != nil {
		return nil, fmt.Errorf("list module progress: %w", err)
	}
	defer rows.Close()

	var out []*progress.ModuleProgress
	for rows.Next() {
		p := &progress.ModuleProgress{UserID: userID, CourseID: courseID}
		var moduleID int64
		var status int16
		if err := rows.Scan(&moduleID, &status, &p.ImageClicked, &p.OpenedAt, &p.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan module progress: %w", err)
		}
		p.ModuleID = shared.ModuleID(moduleID)
		p.Status = progress.ModuleStatus(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

// AdvanceModule implements progress.Repository. The status only moves
// forward: the upsert is guarded by status < $4.
func (r *ProgressRepository) AdvanceModule(ctx context.Context, userID shared.UserID, courseID shared.CourseID, moduleID shared.ModuleID, to progress.ModuleStatus, at time.Time) (bool, error) {
	if !to.IsValid() {
		return false, shared.ErrInvalidStatus
	}
	if to == progress.StatusNotOpened {
		return false, shared.ErrStatusRegression
	}
	var completedAt *time.Time
	if to == progress.StatusCompleted {
		completedAt = &at
	}

	tag, err := r.conn.q(ctx).Exec(ctx, `
		INSERT INTO module_progress (user_id, module_id, course_id, status, opened_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, module_id) DO UPDATE SET
			status = EXCLUDED.status,
			opened_at = COALESCE(module_progress.opened_at, EXCLUDED.opened_at),
			completed_at = COALESCE(EXCLUDED.completed_at, module_progress.completed_at)
		WHERE module_progress.status < EXCLUDED.status`,
		int64(userID), int64(moduleID), int64(courseID), int16(to), at, completedAt)
	if err != nil {
		return false, fmt.Errorf("advance module: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkImageClicked implements progress.Repository.
func (r *ProgressRepository) MarkImageClicked(ctx context.Context, userID shared.UserID, courseID shared.CourseID, moduleID shared.ModuleID) (bool, error) {
	tag, err := r.conn.q(ctx).Exec(ctx, `
		INSERT INTO module_progress (user_id, module_id, course_id, image_clicked)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (user_id, module_id) DO UPDATE SET image_clicked = TRUE
		WHERE NOT module_progress.image_clicked`,
		int64(userID), int64(moduleID), int64(courseID))
	if err != nil {
		return false, fmt.Errorf("mark image clicked: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Enrollments
// ─────────────────────────────────────────────────────────────────────────────

// CreateEnrollment implements progress.Repository.
func (r *ProgressRepository) CreateEnrollment(ctx context.Context, e *progress.Enrollment) (bool, error) {
	tag, err := r.conn.q(ctx).Exec(ctx, `
		INSERT INTO enrollments (user_id, course_id, enrolled_at, time_spent_seconds)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, course_id) DO NOTHING`,
		int64(e.UserID), int64(e.CourseID), e.EnrolledAt, e.TimeSpent)
	if err != nil {
		return false, fmt.Errorf("create enrollment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetEnrollment implements progress.Repository.
func (r *ProgressRepository) GetEnrollment(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (*progress.Enrollment, error) {
	e := &progress.Enrollment{UserID: userID, CourseID: courseID}
	err := r.conn.q(ctx).QueryRow(ctx, `
		SELECT enrolled_at, time_spent_seconds FROM enrollments WHERE user_id = $1 AND course_id = $2`,
		int64(userID), int64(courseID),
	).Scan(&e.EnrolledAt, &e.TimeSpent)
	if IsNoRows(err) {
		return nil, shared.ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return e, nil
}

// ListEnrollments implements progress.Repository.
func (r *ProgressRepository) ListEnrollments(ctx context.Context, userID shared.UserID) ([]*progress.Enrollment, error) {
	rows, err := r.conn.q(ctx).Query(ctx, `
		SELECT course_id, enrolled_at, time_spent_seconds FROM enrollments
		WHERE user_id = $1 ORDER BY course_id`, int64(userID))
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var out []*progress.Enrollment
	for rows.Next() {
		e := &progress.Enrollment{UserID: userID}
		var courseID int64
		if err := rows.Scan(&courseID, &e.EnrolledAt, &e.TimeSpent); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		e.CourseID = shared.CourseID(courseID)
		out = append(out, e)
	}
	return out, rows.Err()
}

// AddTimeSpent implements progress.Repository.
func (r *ProgressRepository) AddTimeSpent(ctx context.Context, userID shared.UserID, courseID shared.CourseID, delta int64) (bool, error) {
	if delta < 0 {
		return false, shared.ErrNegativeValue
	}
	tag, err := r.conn.q(ctx).Exec(ctx, `
		UPDATE enrollments SET time_spent_seconds = time_spent_seconds + $3
		WHERE user_id = $1 AND course_id = $2`,
		int64(userID), int64(courseID), delta)
	if err != nil {
		return false, fmt.Errorf("add time spent: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Completions
// ─────────────────────────────────────────────────────────────────────────────

// CreateCompletion implements progress.Repository.
func (r *ProgressRepository) CreateCompletion(ctx context.Context, c *progress.CourseCompletion) (bool, error) {
	tag, err := r.conn.q(ctx).Exec(ctx, `
		INSERT INTO course_completions (user_id, course_id, completion_reward_claimed, timed_reward_claimed, completed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, course_id) DO NOTHING`,
		int64(c.UserID), int64(c.CourseID), c.CompletionRewardClaimed, c.TimedRewardClaimed, c.CompletedAt)
	if err != nil {
		return false, fmt.Errorf("create completion: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetCompletion implements progress.Repository.
func (r *ProgressRepository) GetCompletion(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (*progress.CourseCompletion, error) {
	c := &progress.CourseCompletion{UserID: userID, CourseID: courseID}
	err := r.conn.q(ctx).QueryRow(ctx, `
		SELECT completion_reward_claimed, timed_reward_claimed, completed_at
		FROM course_completions WHERE user_id = $1 AND course_id = $2`,
		int64(userID), int64(courseID),
	).Scan(&c.CompletionRewardClaimed, &c.TimedRewardClaimed, &c.CompletedAt)
	if IsNoRows(err) {
		return nil, shared.ErrCompletionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

// ClaimCompletionFlag implements progress.Repository.
func (r *ProgressRepository) ClaimCompletionFlag(ctx context.Context, userID shared.UserID, courseID shared.CourseID, kind progress.ClaimKind) (bool, error) {
	var query string
	switch kind {
	case progress.ClaimCompletionReward:
		query = `UPDATE course_completions SET completion_reward_claimed = TRUE
			WHERE user_id = $1 AND course_id = $2 AND NOT completion_reward_claimed`
	case progress.ClaimTimedReward:
		query = `UPDATE course_completions SET timed_reward_claimed = TRUE
			WHERE user_id = $1 AND course_id = $2 AND NOT timed_reward_claimed`
	default:
		return false, shared.ErrInvalidInput
	}

	tag, err := r.conn.q(ctx).Exec(ctx, query, int64(userID), int64(courseID))
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", kind, err)
	}
	return tag.RowsAffected() == 1, nil
}
