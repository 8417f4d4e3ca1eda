package progress_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/coursequest/internal/domain/catalog"
	"github.com/alem-hub/coursequest/internal/domain/progress"
	"github.com/alem-hub/coursequest/internal/domain/shared"
	"github.com/alem-hub/coursequest/internal/infrastructure/persistence/memory"
)

const user shared.UserID = 1

type fixture struct {
	store   *progress.Store
	repo    progress.Repository
	modules []*catalog.Module
}

// newFixture seeds course 1 with normal modules 11..13 at positions 1..3
// and bonus module 19 at position 4.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := memory.New()
	cat := mem.Catalog()

	require.NoError(t, cat.UpsertCourse(ctx, &catalog.Course{ID: 1, Title: "Go", Tier: catalog.TierFree}))
	mods := []*catalog.Module{
		{ID: 11, CourseID: 1, Title: "m1", Position: 1, Kind: catalog.KindNormal},
		{ID: 12, CourseID: 1, Title: "m2", Position: 2, Kind: catalog.KindNormal},
		{ID: 13, CourseID: 1, Title: "m3", Position: 3, Kind: catalog.KindNormal},
		{ID: 19, CourseID: 1, Title: "bonus", Position: 4, Kind: catalog.KindBonus, UnlockCost: 30},
	}
	for _, m := range mods {
		require.NoError(t, cat.UpsertModule(ctx, m))
	}

	clock := shared.NewFixedClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	return &fixture{
		store:   progress.NewStore(mem.Progress(), cat, clock),
		repo:    mem.Progress(),
		modules: mods,
	}
}

func (f *fixture) enroll(t *testing.T) {
	t.Helper()
	_, err := f.repo.CreateEnrollment(context.Background(), &progress.Enrollment{UserID: user, CourseID: 1})
	require.NoError(t, err)
}

func TestStore_OpenAndCompleteAreIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	changed, err := f.store.Open(ctx, user, 19)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = f.store.Open(ctx, user, 19)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = f.store.Complete(ctx, user, 11)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = f.store.Complete(ctx, user, 11)
	require.NoError(t, err)
	assert.False(t, changed)

	// Opening a completed module does not regress it.
	changed, err = f.store.Open(ctx, user, 11)
	require.NoError(t, err)
	assert.False(t, changed)

	done, err := f.store.IsCompleted(ctx, user, 11)
	require.NoError(t, err)
	assert.True(t, done)
	open, err := f.store.IsOpen(ctx, user, 11)
	require.NoError(t, err)
	assert.True(t, open)
}

func TestStore_OpenUnknownModule(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Open(context.Background(), user, 404)
	assert.ErrorIs(t, err, shared.ErrModuleNotFound)
}

func TestStore_Counts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	required, err := f.store.GetRequiredModuleCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, required)

	_, err = f.store.Complete(ctx, user, 11)
	require.NoError(t, err)
	_, err = f.store.Complete(ctx, user, 19) // bonus does not count
	require.NoError(t, err)

	completed, err := f.store.GetCompletedModuleCount(ctx, user, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, completed)
}

func TestStore_TimeSpent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Not enrolled: ignored.
	require.NoError(t, f.store.RecordTimeSpent(ctx, user, 1, 30))
	spent, err := f.store.GetTimeSpent(ctx, user, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), spent)

	f.enroll(t)
	require.NoError(t, f.store.RecordTimeSpent(ctx, user, 1, 30))
	require.NoError(t, f.store.RecordTimeSpent(ctx, user, 1, -10))
	require.NoError(t, f.store.RecordTimeSpent(ctx, user, 1, 0))
	require.NoError(t, f.store.RecordTimeSpent(ctx, user, 1, 15))

	spent, err = f.store.GetTimeSpent(ctx, user, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(45), spent)
}

func TestStore_SnapshotAndCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enroll(t)
	_, err := f.store.Complete(ctx, user, 11)
	require.NoError(t, err)

	c, err := f.store.Completion(ctx, user, 1)
	require.NoError(t, err)
	assert.Nil(t, c)

	snap, err := f.store.Snapshot(ctx, user, 1)
	require.NoError(t, err)
	assert.NotNil(t, snap.Enrollment)
	assert.Equal(t, progress.StatusCompleted, snap.Status(11))
	assert.Equal(t, progress.StatusNotOpened, snap.Status(12))
	assert.Nil(t, snap.Completion)
}

func TestParseModuleStatus(t *testing.T) {
	for _, s := range []progress.ModuleStatus{progress.StatusNotOpened, progress.StatusOpen, progress.StatusCompleted} {
		got, err := progress.ParseModuleStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := progress.ParseModuleStatus("paused")
	assert.ErrorIs(t, err, shared.ErrInvalidStatus)
}
