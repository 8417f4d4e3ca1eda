package progression

import (
	"context"
	"fmt"

	"github.com/alem-hub/coursequest/internal/domain/catalog"
	"github.com/alem-hub/coursequest/internal/domain/progress"
	"github.com/alem-hub/coursequest/internal/domain/shared"
	"github.com/alem-hub/coursequest/pkg/logger"
)

// CompletionResult describes what CompleteModule changed.
type CompletionResult struct {
	Outcome Outcome

	// ModuleCompleted is true if this call moved the module to Completed.
	ModuleCompleted bool

	CompletedCount int
	RequiredCount  int

	// CourseCompleted is true if this call created the course completion.
	CourseCompleted bool

	CompletionRewardGranted bool
	TimedRewardGranted      bool
}

// CompleteModule marks a module completed and, when that finishes the
// course, records the completion and grants the completion reward and,
// if the time budget was kept, the timed reward.
//
// A normal module must be unlocked for the user. A bonus module must be open.
func (e *Engine) CompleteModule(ctx context.Context, userID shared.UserID, moduleID shared.ModuleID, courseID shared.CourseID) (*CompletionResult, error) {
	module, err := e.loadModule(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if module == nil || module.CourseID != courseID {
		return &CompletionResult{Outcome: OutcomeModuleNotFound}, nil
	}
	course, err := e.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return &CompletionResult{Outcome: OutcomeCourseNotFound}, nil
	}

	modules, err := e.catalog.ListModules(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	normal := catalog.NormalModules(modules)

	if gate, err := e.checkAccess(ctx, userID, module, normal); err != nil || !gate.OK() {
		return &CompletionResult{Outcome: gate}, err
	}

	res := &CompletionResult{Outcome: OutcomeOK, RequiredCount: len(normal)}
	err = e.inTx(ctx, func(ctx context.Context) error {
		changed, err := e.progress.Complete(ctx, userID, moduleID)
		if err != nil {
			return err
		}
		res.ModuleCompleted = changed

		res.CompletedCount, err = e.progress.GetCompletedModuleCount(ctx, userID, courseID)
		if err != nil {
			return err
		}
		if res.RequiredCount == 0 || res.CompletedCount != res.RequiredCount {
			return nil
		}
		res.CourseCompleted, err = e.progress.Repository().CreateCompletion(ctx, &progress.CourseCompletion{
			UserID:      userID,
			CourseID:    courseID,
			CompletedAt: e.clock.Now(),
		})
		if err != nil {
			return fmt.Errorf("create completion: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := e.log.With(
		logger.Int64("user_id", int64(userID)),
		logger.Int64("course_id", int64(courseID)),
		logger.Int64("module_id", int64(moduleID)),
	)
	now := e.clock.Now()
	if res.ModuleCompleted {
		log.Info("module completed", logger.Int("completed", res.CompletedCount), logger.Int("required", res.RequiredCount))
		e.publish(shared.NewModuleCompletedEvent(userID, courseID, moduleID, res.CompletedCount, res.RequiredCount, now))
	}
	if !res.ModuleCompleted && !res.CourseCompleted {
		res.Outcome = OutcomeAlreadyCompleted
		return res, nil
	}
	if !res.CourseCompleted {
		return res, nil
	}

	spent, err := e.progress.GetTimeSpent(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	log.Info("course completed", logger.Int64("time_spent", spent))
	e.publish(shared.NewCourseCompletedEvent(userID, courseID, spent, now))

	// The completion record now exists; a failed claim below can be
	// retried through the claim operations.
	claim, err := e.ClaimCompletionReward(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	res.CompletionRewardGranted = claim.OK()

	if course.TimeLimit-spent > 0 {
		claim, err = e.ClaimTimedReward(ctx, userID, courseID, spent)
		if err != nil {
			return nil, err
		}
		res.TimedRewardGranted = claim.OK()
	}
	return res, nil
}

// checkAccess applies the unlock policy and maps a refusal to an outcome.
func (e *Engine) checkAccess(ctx context.Context, userID shared.UserID, module *catalog.Module, normal []*catalog.Module) (Outcome, error) {
	unlocked, err := progress.IsModuleUnlocked(ctx, userID, module, normal, e.progress)
	if err != nil {
		return "", err
	}
	if unlocked {
		return OutcomeOK, nil
	}
	if !module.IsBonus() {
		enrolled, err := e.progress.IsEnrolled(ctx, userID, module.CourseID)
		if err != nil {
			return "", err
		}
		if !enrolled {
			return OutcomeNotEnrolled, nil
		}
	}
	return OutcomeModuleLocked, nil
}
