package progress_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/coursequest/internal/domain/catalog"
	"github.com/alem-hub/coursequest/internal/domain/progress"
)

func unlocked(t *testing.T, f *fixture, r progress.Reader) []bool {
	t.Helper()
	normal := catalog.NormalModules(f.modules)
	out := make([]bool, 0, len(f.modules))
	for _, m := range f.modules {
		ok, err := progress.IsModuleUnlocked(context.Background(), user, m, normal, r)
		require.NoError(t, err)
		out = append(out, ok)
	}
	return out
}

func TestIsModuleUnlocked_NotEnrolledLocksNormalModules(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []bool{false, false, false, false}, unlocked(t, f, f.store))
}

func TestIsModuleUnlocked_ChainFollowsCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enroll(t)

	assert.Equal(t, []bool{true, false, false, false}, unlocked(t, f, f.store))

	_, err := f.store.Complete(ctx, user, 11)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, false, false}, unlocked(t, f, f.store))

	_, err = f.store.Complete(ctx, user, 12)
	require.NoError(t, err)
	// Completing module 2 keeps module 1 and 2 unlocked.
	assert.Equal(t, []bool{true, true, true, false}, unlocked(t, f, f.store))
}

func TestIsModuleUnlocked_SkippingAheadDoesNotUnlockGap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enroll(t)

	// Module 3's predecessor is module 2, which is not completed.
	_, err := f.store.Complete(ctx, user, 13)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false, false}, unlocked(t, f, f.store))
}

func TestIsModuleUnlocked_BonusDependsOnlyOnOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Open(ctx, user, 19)
	require.NoError(t, err)
	// Bonus is unlocked without enrollment.
	assert.Equal(t, []bool{false, false, false, true}, unlocked(t, f, f.store))
}

func TestIsModuleUnlocked_SnapshotAgreesWithStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enroll(t)
	_, err := f.store.Complete(ctx, user, 11)
	require.NoError(t, err)
	_, err = f.store.Open(ctx, user, 19)
	require.NoError(t, err)

	snap, err := f.store.Snapshot(ctx, user, 1)
	require.NoError(t, err)
	assert.Equal(t, unlocked(t, f, f.store), unlocked(t, f, snap))
}

func TestIsModuleUnlocked_ModuleOutsideChain(t *testing.T) {
	f := newFixture(t)
	f.enroll(t)
	stray := &catalog.Module{ID: 77, CourseID: 1, Position: 9, Kind: catalog.KindNormal}

	ok, err := progress.IsModuleUnlocked(context.Background(), user, stray, catalog.NormalModules(f.modules), f.store)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = progress.IsModuleUnlocked(context.Background(), user, nil, nil, f.store)
	require.NoError(t, err)
	assert.False(t, ok)
}
