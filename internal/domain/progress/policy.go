package progress

import (
	"context"

	"github.com/alem-hub/coursequest/internal/domain/catalog"
	"github.com/alem-hub/coursequest/internal/domain/shared"
)

// Reader is the read side the unlock policy needs. Both Store and Snapshot
// implement it.
type Reader interface {
	IsEnrolled(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (bool, error)
	IsOpen(ctx context.Context, userID shared.UserID, moduleID shared.ModuleID) (bool, error)
	IsCompleted(ctx context.Context, userID shared.UserID, moduleID shared.ModuleID) (bool, error)
}

// IsModuleUnlocked decides whether module is accessible to the user. The
// answer is derived from progress facts on every call and never stored.
//
// A bonus module is unlocked exactly when it is open for the user; enrollment
// does not matter. A normal module needs enrollment in its course; the first
// in orderedNormal is then unlocked, and any later one is unlocked when its
// predecessor is completed. A normal module missing from orderedNormal is
// locked.
func IsModuleUnlocked(ctx context.Context, userID shared.UserID, module *catalog.Module, orderedNormal []*catalog.Module, r Reader) (bool, error) {
	if module == nil {
		return false, nil
	}
	if module.IsBonus() {
		return r.IsOpen(ctx, userID, module.ID)
	}

	enrolled, err := r.IsEnrolled(ctx, userID, module.CourseID)
	if err != nil || !enrolled {
		return false, err
	}

	idx := -1
	for i, m := range orderedNormal {
		if m.ID == module.ID {
			idx = i
			break
		}
	}
	switch {
	case idx < 0:
		return false, nil
	case idx == 0:
		return true, nil
	default:
		return r.IsCompleted(ctx, userID, orderedNormal[idx-1].ID)
	}
}
