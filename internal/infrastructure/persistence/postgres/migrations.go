package postgres

import (
	"context"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration is one versioned schema change.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies embedded migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a migrator with the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: GetMigrations(), tableName: "schema_migrations"}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.conn.q(ctx).Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`, m.tableName))
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.q(ctx).Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var at time.Time
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("scan migration row: %w", err)
		}
		out[version] = at
	}
	return out, rows.Err()
}

// Migrate applies every pending migration, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		err := m.conn.InTx(ctx, func(ctx context.Context) error {
			if _, err := m.conn.q(ctx).Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := m.conn.q(ctx).Exec(ctx,
				fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName),
				mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// Rollback reverts the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	last := 0
	for v := range applied {
		if v > last {
			last = v
		}
	}
	if last == 0 {
		return nil
	}

	var mig *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			mig = &m.migrations[i]
		}
	}
	if mig == nil || mig.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	return m.conn.InTx(ctx, func(ctx context.Context) error {
		if _, err := m.conn.q(ctx).Exec(ctx, mig.DownSQL); err != nil {
			return fmt.Errorf("rollback migration %d: %w", last, err)
		}
		_, err := m.conn.q(ctx).Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last)
		return err
	})
}

// Status reports which migrations are applied.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Migration, len(m.migrations))
	copy(out, m.migrations)
	for i := range out {
		if at, ok := applied[out[i].Version]; ok {
			out[i].IsApplied = true
			out[i].AppliedAt = at
		}
	}
	return out, nil
}

// GetMigrations returns all embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_catalog", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_wallets", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_progress", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CATALOG
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS tags (
    id BIGINT PRIMARY KEY,
    name VARCHAR(100) NOT NULL
);

CREATE TABLE IF NOT EXISTS courses (
    id BIGINT PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    tier VARCHAR(20) NOT NULL,
    cost BIGINT NOT NULL DEFAULT 0,
    difficulty VARCHAR(30) NOT NULL DEFAULT '',
    image_ref TEXT NOT NULL DEFAULT '',
    time_limit_seconds BIGINT NOT NULL DEFAULT 0,

    CONSTRAINT valid_tier CHECK (tier IN ('free', 'premium')),
    CONSTRAINT valid_cost CHECK (cost >= 0)
);

CREATE TABLE IF NOT EXISTS course_tags (
    course_id BIGINT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    tag_id BIGINT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    PRIMARY KEY (course_id, tag_id)
);

CREATE TABLE IF NOT EXISTS modules (
    id BIGINT PRIMARY KEY,
    course_id BIGINT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    position INTEGER NOT NULL,
    kind VARCHAR(20) NOT NULL,
    unlock_cost BIGINT NOT NULL DEFAULT 0,
    image_ref TEXT NOT NULL DEFAULT '',

    CONSTRAINT valid_kind CHECK (kind IN ('normal', 'bonus')),
    CONSTRAINT valid_unlock_cost CHECK (unlock_cost >= 0),
    CONSTRAINT unique_position UNIQUE (course_id, position)
);

CREATE INDEX IF NOT EXISTS idx_modules_course ON modules(course_id, position);
`

const migration001Down = `
DROP TABLE IF EXISTS modules;
DROP TABLE IF EXISTS course_tags;
DROP TABLE IF EXISTS courses;
DROP TABLE IF EXISTS tags;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: WALLETS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS wallets (
    user_id BIGINT PRIMARY KEY,
    balance BIGINT NOT NULL DEFAULT 0,
    last_login_at TIMESTAMP WITH TIME ZONE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT non_negative_balance CHECK (balance >= 0)
);

CREATE TABLE IF NOT EXISTS wallet_entries (
    id UUID PRIMARY KEY,
    user_id BIGINT NOT NULL,
    direction VARCHAR(10) NOT NULL,
    reason VARCHAR(40) NOT NULL,
    amount BIGINT NOT NULL,
    balance_after BIGINT NOT NULL,
    reference TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    seq BIGSERIAL,

    CONSTRAINT valid_direction CHECK (direction IN ('credit', 'debit')),
    CONSTRAINT positive_amount CHECK (amount > 0)
);

CREATE INDEX IF NOT EXISTS idx_wallet_entries_user ON wallet_entries(user_id, seq DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS wallet_entries;
DROP TABLE IF EXISTS wallets;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS module_progress (
    user_id BIGINT NOT NULL,
    module_id BIGINT NOT NULL,
    course_id BIGINT NOT NULL,
    status SMALLINT NOT NULL DEFAULT 0,
    image_clicked BOOLEAN NOT NULL DEFAULT FALSE,
    opened_at TIMESTAMP WITH TIME ZONE,
    completed_at TIMESTAMP WITH TIME ZONE,

    PRIMARY KEY (user_id, module_id),
    CONSTRAINT valid_status CHECK (status BETWEEN 0 AND 2)
);

CREATE INDEX IF NOT EXISTS idx_module_progress_course ON module_progress(user_id, course_id);

CREATE TABLE IF NOT EXISTS enrollments (
    user_id BIGINT NOT NULL,
    course_id BIGINT NOT NULL,
    enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL,
    time_spent_seconds BIGINT NOT NULL DEFAULT 0,

    PRIMARY KEY (user_id, course_id),
    CONSTRAINT non_negative_time CHECK (time_spent_seconds >= 0)
);

CREATE TABLE IF NOT EXISTS course_completions (
    user_id BIGINT NOT NULL,
    course_id BIGINT NOT NULL,
    completion_reward_claimed BOOLEAN NOT NULL DEFAULT FALSE,
    timed_reward_claimed BOOLEAN NOT NULL DEFAULT FALSE,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL,

    PRIMARY KEY (user_id, course_id)
);
`

const migration003Down = `
DROP TABLE IF EXISTS course_completions;
DROP TABLE IF EXISTS enrollments;
DROP TABLE IF EXISTS module_progress;
`
