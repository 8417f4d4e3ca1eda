// Package catalog contains the course catalog: courses, their ordered
// modules, and tags. Catalog entities are read-only to the learner flows;
// they change only through administrative loading.
package catalog

import (
	"sort"
	"strconv"
	"strings"

	"github.com/alem-hub/coursequest/internal/domain/shared"
)

// Tier is the pricing tier of a course.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// IsValid checks the tier value.
func (t Tier) IsValid() bool {
	return t == TierFree || t == TierPremium
}

// Difficulty is a free-form level label such as "beginner".
type Difficulty string

// Course is a catalog entry made of ordered modules.
type Course struct {
	ID          shared.CourseID
	Title       string
	Description string
	Tier        Tier
	// Cost is the enrollment price in coins. Only meaningful for premium courses.
	Cost       int64
	Difficulty Difficulty
	ImageRef   string
	// TimeLimit is the timed-reward budget in seconds. Zero means no timed reward.
	TimeLimit int64
	TagIDs    []shared.TagID
}

// IsPremium reports whether enrollment must be paid for.
func (c *Course) IsPremium() bool {
	return c.Tier == TierPremium
}

// EnrollmentCost is what enrollment debits from the wallet.
func (c *Course) EnrollmentCost() int64 {
	if !c.IsPremium() {
		return 0
	}
	return c.Cost
}

// HasTimedReward reports whether the course carries a positive time budget.
func (c *Course) HasTimedReward() bool {
	return c.TimeLimit > 0
}

// HasTag reports whether the course is tagged with id.
func (c *Course) HasTag(id shared.TagID) bool {
	for _, t := range c.TagIDs {
		if t == id {
			return true
		}
	}
	return false
}

// Validate checks the course invariants. Failures match
// shared.ErrInvalidCourse and the specific cause.
func (c *Course) Validate() error {
	if !c.ID.IsValid() {
		return shared.WrapError("catalog", "Validate", shared.ErrInvalidCourse, "course id must be positive", shared.ErrInvalidID)
	}
	if strings.TrimSpace(c.Title) == "" {
		return shared.WrapError("catalog", "Validate", shared.ErrInvalidCourse, "course title is required", shared.ErrEmptyValue)
	}
	if !c.Tier.IsValid() {
		return shared.WrapError("catalog", "Validate", shared.ErrInvalidCourse, "unknown tier "+string(c.Tier), nil)
	}
	if c.Cost < 0 || c.TimeLimit < 0 {
		return shared.WrapError("catalog", "Validate", shared.ErrInvalidCourse, "cost and time limit must not be negative", shared.ErrNegativeValue)
	}
	return nil
}

// ModuleKind distinguishes the required chain from optional purchases.
type ModuleKind string

const (
	// KindNormal modules form the strict prerequisite chain.
	KindNormal ModuleKind = "normal"
	// KindBonus modules sit outside the chain and are bought with coins.
	KindBonus ModuleKind = "bonus"
)

// IsValid checks the module kind.
func (k ModuleKind) IsValid() bool {
	return k == KindNormal || k == KindBonus
}

// Module is one step of a course.
type Module struct {
	ID          shared.ModuleID
	CourseID    shared.CourseID
	Title       string
	Description string
	// Position is 1-based and unique within the course.
	Position int
	Kind     ModuleKind
	// UnlockCost is the purchase price of a bonus module.
	UnlockCost int64
	ImageRef   string
}

// IsBonus reports whether the module is a purchasable bonus module.
func (m *Module) IsBonus() bool {
	return m.Kind == KindBonus
}

// Validate checks the module invariants. Failures match
// shared.ErrInvalidModule and the specific cause.
func (m *Module) Validate() error {
	if !m.ID.IsValid() || !m.CourseID.IsValid() {
		return shared.WrapError("catalog", "Validate", shared.ErrInvalidModule, "module and course ids must be positive", shared.ErrInvalidID)
	}
	if strings.TrimSpace(m.Title) == "" {
		return shared.WrapError("catalog", "Validate", shared.ErrInvalidModule, "module title is required", shared.ErrEmptyValue)
	}
	if m.Position < 1 {
		return shared.WrapError("catalog", "Validate", shared.ErrInvalidModule, "module position is 1-based", shared.ErrValueOutOfRange)
	}
	if !m.Kind.IsValid() {
		return shared.WrapError("catalog", "Validate", shared.ErrInvalidModule, "unknown module kind "+string(m.Kind), nil)
	}
	if m.UnlockCost < 0 {
		return shared.WrapError("catalog", "Validate", shared.ErrInvalidModule, "unlock cost must not be negative", shared.ErrNegativeValue)
	}
	return nil
}

// Tag labels courses for filtering.
type Tag struct {
	ID   shared.TagID
	Name string
}

// SortByPosition orders modules by ascending position in place.
func SortByPosition(modules []*Module) {
	sort.SliceStable(modules, func(i, j int) bool {
		return modules[i].Position < modules[j].Position
	})
}

// NormalModules returns the normal modules of a course in position order.
// The input is not modified.
func NormalModules(modules []*Module) []*Module {
	out := make([]*Module, 0, len(modules))
	for _, m := range modules {
		if m.Kind == KindNormal {
			out = append(out, m)
		}
	}
	SortByPosition(out)
	return out
}

// ValidateModuleSet checks that positions are unique within each course.
func ValidateModuleSet(modules []*Module) error {
	seen := make(map[shared.CourseID]map[int]shared.ModuleID)
	for _, m := range modules {
		if err := m.Validate(); err != nil {
			return err
		}
		byPos, ok := seen[m.CourseID]
		if !ok {
			byPos = make(map[int]shared.ModuleID)
			seen[m.CourseID] = byPos
		}
		if other, dup := byPos[m.Position]; dup {
			return shared.WrapError("catalog", "Validate", shared.ErrDuplicatePosition,
				"position "+strconv.Itoa(m.Position)+" used by modules "+other.String()+" and "+m.ID.String()+" in course "+m.CourseID.String(), nil)
		}
		byPos[m.Position] = m.ID
	}
	return nil
}
