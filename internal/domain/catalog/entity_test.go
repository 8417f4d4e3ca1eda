package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/coursequest/internal/domain/shared"
)

func TestCourse_EnrollmentCost(t *testing.T) {
	premium := &Course{ID: 1, Title: "Go", Tier: TierPremium, Cost: 100}
	free := &Course{ID: 2, Title: "Intro", Tier: TierFree, Cost: 100}

	assert.Equal(t, int64(100), premium.EnrollmentCost())
	assert.Equal(t, int64(0), free.EnrollmentCost())
}

func TestCourse_Validate(t *testing.T) {
	ok := &Course{ID: 1, Title: "Go", Tier: TierFree}
	require.NoError(t, ok.Validate())

	assert.ErrorIs(t, (&Course{ID: 0, Title: "x", Tier: TierFree}).Validate(), shared.ErrInvalidID)
	assert.ErrorIs(t, (&Course{ID: 1, Title: " ", Tier: TierFree}).Validate(), shared.ErrEmptyValue)
	assert.ErrorIs(t, (&Course{ID: 1, Title: "x", Tier: "gold"}).Validate(), shared.ErrInvalidInput)
	assert.ErrorIs(t, (&Course{ID: 1, Title: "x", Tier: TierFree, TimeLimit: -1}).Validate(), shared.ErrNegativeValue)

	err := (&Course{ID: 1, Title: "x", Tier: "gold"}).Validate()
	assert.ErrorIs(t, err, shared.ErrInvalidCourse)
	assert.NotErrorIs(t, err, shared.ErrInvalidModule)
	assert.True(t, shared.IsValidation(err))
}

func TestModule_Validate(t *testing.T) {
	ok := &Module{ID: 1, CourseID: 1, Title: "Intro", Position: 1, Kind: KindNormal}
	require.NoError(t, ok.Validate())

	err := (&Module{ID: 1, CourseID: 1, Title: "Intro", Position: 0, Kind: KindNormal}).Validate()
	assert.ErrorIs(t, err, shared.ErrInvalidModule)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
	assert.NotErrorIs(t, err, shared.ErrInvalidCourse)

	err = ValidateModuleSet([]*Module{ok, {ID: 2, CourseID: 1, Title: "x", Position: 1, Kind: "secret"}})
	assert.ErrorIs(t, err, shared.ErrInvalidModule)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestNormalModules_FiltersAndOrders(t *testing.T) {
	modules := []*Module{
		{ID: 3, CourseID: 1, Position: 3, Kind: KindNormal},
		{ID: 9, CourseID: 1, Position: 2, Kind: KindBonus},
		{ID: 1, CourseID: 1, Position: 1, Kind: KindNormal},
	}

	got := NormalModules(modules)
	require.Len(t, got, 2)
	assert.Equal(t, shared.ModuleID(1), got[0].ID)
	assert.Equal(t, shared.ModuleID(3), got[1].ID)
	// input order untouched
	assert.Equal(t, shared.ModuleID(3), modules[0].ID)
}

func TestValidateModuleSet_RejectsDuplicatePositions(t *testing.T) {
	modules := []*Module{
		{ID: 1, CourseID: 1, Title: "a", Position: 1, Kind: KindNormal},
		{ID: 2, CourseID: 1, Title: "b", Position: 1, Kind: KindBonus},
	}
	assert.ErrorIs(t, ValidateModuleSet(modules), shared.ErrAlreadyExists)

	modules[1].CourseID = 2
	assert.NoError(t, ValidateModuleSet(modules))
}
