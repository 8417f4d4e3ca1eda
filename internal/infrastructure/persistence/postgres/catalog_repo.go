package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/coursequest/internal/domain/catalog"
	"github.com/alem-hub/coursequest/internal/domain/shared"
)

// CatalogRepository implements catalog.Repository and catalog.Writer.
type CatalogRepository struct {
	conn *Connection
}

var (
	_ catalog.Repository = (*CatalogRepository)(nil)
	_ catalog.Writer     = (*CatalogRepository)(nil)
)

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(conn *Connection) *CatalogRepository {
	return &CatalogRepository{conn: conn}
}

const courseColumns = `
	c.id, c.title, c.description, c.tier, c.cost, c.difficulty, c.image_ref, c.time_limit_seconds,
	COALESCE(ARRAY(SELECT ct.tag_id FROM course_tags ct WHERE ct.course_id = c.id ORDER BY ct.tag_id), '{}')`

func scanCourse(row pgx.Row) (*catalog.Course, error) {
	var (
		c      catalog.Course
		id     int64
		tier   string
		diff   string
		tagIDs []int64
	)
	if err := row.Scan(&id, &c.Title, &c.Description, &tier, &c.Cost, &diff, &c.ImageRef, &c.TimeLimit, &tagIDs); err != nil {
		return nil, err
	}
	c.ID = shared.CourseID(id)
	c.Tier = catalog.Tier(tier)
	c.Difficulty = catalog.Difficulty(diff)
	for _, t := range tagIDs {
		c.TagIDs = append(c.TagIDs, shared.TagID(t))
	}
	return &c, nil
}

// GetCourse implements catalog.Repository.
func (r *CatalogRepository) GetCourse(ctx context.Context, id shared.CourseID) (*catalog.Course, error) {
	row := r.conn.q(ctx).QueryRow(ctx, `SELECT `+courseColumns+` FROM courses c WHERE c.id = $1`, int64(id))
	c, err := scanCourse(row)
	if IsNoRows(err) {
		return nil, shared.ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	return c, nil
}

// ListCourses implements catalog.Repository.
func (r *CatalogRepository) ListCourses(ctx context.Context) ([]*catalog.Course, error) {
	rows, err := r.conn.q(ctx).Query(ctx, `SELECT `+courseColumns+` FROM courses c ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const moduleColumns = `id, course_id, title, description, position, kind, unlock_cost, image_ref`

func scanModule(row pgx.Row) (*catalog.Module, error) {
	var (
		m       catalog.Module
		id, cid int64
		kind    string
	)
	if err := row.Scan(&id, &cid, &m.Title, &m.Description, &m.Position, &kind, &m.UnlockCost, &m.ImageRef); err != nil {
		return nil, err
	}
	m.ID = shared.ModuleID(id)
	m.CourseID = shared.CourseID(cid)
	m.Kind = catalog.ModuleKind(kind)
	return &m, nil
}

// GetModule implements catalog.Repository.
func (r *CatalogRepository) GetModule(ctx context.Context, id shared.ModuleID) (*catalog.Module, error) {
	row := r.conn.q(ctx).QueryRow(ctx, `SELECT `+moduleColumns+` FROM modules WHERE id = $1`, int64(id))
	m, err := scanModule(row)
	if IsNoRows(err) {
		return nil, shared.ErrModuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get module: %w", err)
	}
	return m, nil
}

// ListModules implements catalog.Repository.
func (r *CatalogRepository) ListModules(ctx context.Context, courseID shared.CourseID) ([]*catalog.Module, error) {
	rows, err := r.conn.q(ctx).Query(ctx,
		`SELECT `+moduleColumns+` FROM modules WHERE course_id = $1 ORDER BY position`, int64(courseID))
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Module
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListTags implements catalog.Repository.
func (r *CatalogRepository) ListTags(ctx context.Context) ([]*catalog.Tag, error) {
	rows, err := r.conn.q(ctx).Query(ctx, `SELECT id, name FROM tags ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Tag
	for rows.Next() {
		var id int64
		t := &catalog.Tag{}
		if err := rows.Scan(&id, &t.Name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		t.ID = shared.TagID(id)
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertTag implements catalog.Writer.
func (r *CatalogRepository) UpsertTag(ctx context.Context, tag *catalog.Tag) error {
	_, err := r.conn.q(ctx).Exec(ctx, `
		INSERT INTO tags (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		int64(tag.ID), tag.Name)
	if err != nil {
		return fmt.Errorf("upsert tag: %w", err)
	}
	return nil
}

// UpsertCourse implements catalog.Writer. The course's tag links are
// replaced.
func (r *CatalogRepository) UpsertCourse(ctx context.Context, course *catalog.Course) error {
	if err := course.Validate(); err != nil {
		return err
	}
	return r.conn.InTx(ctx, func(ctx context.Context) error {
		_, err := r.conn.q(ctx).Exec(ctx, `
			INSERT INTO courses (id, title, description, tier, cost, difficulty, image_ref, time_limit_seconds)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title, description = EXCLUDED.description, tier = EXCLUDED.tier,
				cost = EXCLUDED.cost, difficulty = EXCLUDED.difficulty, image_ref = EXCLUDED.image_ref,
				time_limit_seconds = EXCLUDED.time_limit_seconds`,
			int64(course.ID), course.Title, course.Description, string(course.Tier), course.Cost,
			string(course.Difficulty), course.ImageRef, course.TimeLimit)
		if err != nil {
			return fmt.Errorf("upsert course: %w", err)
		}

		if _, err := r.conn.q(ctx).Exec(ctx, `DELETE FROM course_tags WHERE course_id = $1`, int64(course.ID)); err != nil {
			return fmt.Errorf("clear course tags: %w", err)
		}
		for _, tagID := range course.TagIDs {
			_, err := r.conn.q(ctx).Exec(ctx,
				`INSERT INTO course_tags (course_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				int64(course.ID), int64(tagID))
			if err != nil {
				return fmt.Errorf("link course tag %d: %w", tagID, err)
			}
		}
		return nil
	})
}

// UpsertModule implements catalog.Writer.
func (r *CatalogRepository) UpsertModule(ctx context.Context, module *catalog.Module) error {
	if err := module.Validate(); err != nil {
		return err
	}
	_, err := r.conn.q(ctx).Exec(ctx, `
		INSERT INTO modules (id, course_id, title, description, position, kind, unlock_cost, image_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			course_id = EXCLUDED.course_id, title = EXCLUDED.title, description = EXCLUDED.description,
			position = EXCLUDED.position, kind = EXCLUDED.kind, unlock_cost = EXCLUDED.unlock_cost,
			image_ref = EXCLUDED.image_ref`,
		int64(module.ID), int64(module.CourseID), module.Title, module.Description, module.Position,
		string(module.Kind), module.UnlockCost, module.ImageRef)
	switch {
	case err == nil:
		return nil
	case IsForeignKeyViolation(err):
		return shared.ErrCourseNotFound
	case IsUniqueViolation(err):
		return shared.ErrDuplicatePosition
	default:
		return fmt.Errorf("upsert module: %w", err)
	}
}
