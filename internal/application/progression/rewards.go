package progression

import (
	"context"
	"fmt"

	"github.com/alem-hub/coursequest/internal/domain/progress"
	"github.com/alem-hub/coursequest/internal/domain/shared"
	"github.com/alem-hub/coursequest/internal/domain/wallet"
	"github.com/alem-hub/coursequest/pkg/logger"
)

// ClaimCompletionReward credits the completion reward once per course.
// Without a course completion the claim is a no-op reporting NotCompleted.
func (e *Engine) ClaimCompletionReward(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (Outcome, error) {
	return e.claim(ctx, userID, courseID, progress.ClaimCompletionReward, e.cfg.CompletionReward, wallet.ReasonCompletionReward)
}

// ClaimTimedReward credits the timed reward once per course, provided
// timeSpentSeconds does not exceed the course time limit. A course without
// a positive time limit has no timed reward.
func (e *Engine) ClaimTimedReward(ctx context.Context, userID shared.UserID, courseID shared.CourseID, timeSpentSeconds int64) (Outcome, error) {
	if timeSpentSeconds < 0 {
		return "", shared.WrapError("progress", "ClaimTimedReward", shared.ErrNegativeValue, "time spent must not be negative", nil)
	}
	course, err := e.loadCourse(ctx, courseID)
	if err != nil {
		return "", err
	}
	if course == nil {
		return OutcomeCourseNotFound, nil
	}
	if !course.HasTimedReward() {
		return OutcomeNoTimeLimit, nil
	}
	if timeSpentSeconds > course.TimeLimit {
		return OutcomeTimeLimitExceeded, nil
	}
	return e.claim(ctx, userID, courseID, progress.ClaimTimedReward, e.cfg.TimedReward, wallet.ReasonTimedReward)
}

// claim flips a completion flag and credits amount in one transaction.
func (e *Engine) claim(ctx context.Context, userID shared.UserID, courseID shared.CourseID, kind progress.ClaimKind, amount int64, reason wallet.Reason) (Outcome, error) {
	outcome := OutcomeOK
	var balance int64
	err := e.inTx(ctx, func(ctx context.Context) error {
		c, err := e.progress.Completion(ctx, userID, courseID)
		if err != nil {
			return err
		}
		if c == nil {
			outcome = OutcomeNotCompleted
			return nil
		}
		claimed, err := e.progress.Repository().ClaimCompletionFlag(ctx, userID, courseID, kind)
		if err != nil {
			return fmt.Errorf("claim %s: %w", kind, err)
		}
		if !claimed {
			outcome = OutcomeAlreadyClaimed
			return nil
		}
		balance, err = e.ledger.Credit(ctx, userID, amount, reason, "course:"+courseID.String())
		return err
	})
	if err != nil {
		return "", err
	}

	log := e.log.With(
		logger.Int64("user_id", int64(userID)),
		logger.Int64("course_id", int64(courseID)),
		logger.String("reward", string(kind)),
	)
	if !outcome.OK() {
		log.Debug("reward not granted", logger.String("outcome", outcome.String()))
		return outcome, nil
	}
	log.Info("reward granted", logger.Int64("amount", amount), logger.Int64("balance", balance))
	e.publish(shared.NewRewardGrantedEvent(userID, courseID, 0, string(reason), amount, balance, e.clock.Now()))
	return OutcomeOK, nil
}

// ClickModuleImage grants the image micro-reward once per module.
func (e *Engine) ClickModuleImage(ctx context.Context, userID shared.UserID, moduleID shared.ModuleID) (Outcome, error) {
	module, err := e.loadModule(ctx, moduleID)
	if err != nil {
		return "", err
	}
	if module == nil {
		return OutcomeModuleNotFound, nil
	}

	outcome := OutcomeOK
	var balance int64
	err = e.inTx(ctx, func(ctx context.Context) error {
		marked, err := e.progress.Repository().MarkImageClicked(ctx, userID, module.CourseID, moduleID)
		if err != nil {
			return fmt.Errorf("mark image clicked: %w", err)
		}
		if !marked {
			outcome = OutcomeAlreadyClaimed
			return nil
		}
		balance, err = e.ledger.Credit(ctx, userID, e.cfg.ImageClickReward, wallet.ReasonImageClick, "module:"+moduleID.String())
		return err
	})
	if err != nil {
		return "", err
	}
	if !outcome.OK() {
		return outcome, nil
	}

	e.log.Info("image reward granted",
		logger.Int64("user_id", int64(userID)),
		logger.Int64("module_id", int64(moduleID)),
		logger.Int64("balance", balance),
	)
	e.publish(shared.NewRewardGrantedEvent(userID, module.CourseID, moduleID, string(wallet.ReasonImageClick), e.cfg.ImageClickReward, balance, e.clock.Now()))
	return OutcomeOK, nil
}

// ClaimDailyLoginBonus grants the login bonus at most once per calendar day.
func (e *Engine) ClaimDailyLoginBonus(ctx context.Context, userID shared.UserID) (Outcome, error) {
	now := e.clock.Now()
	granted, err := e.ledger.ApplyDailyLoginBonus(ctx, userID, e.cfg.DailyLoginBonus, now)
	if err != nil {
		return "", err
	}
	if !granted {
		return OutcomeAlreadyClaimed, nil
	}

	balance, err := e.ledger.GetBalance(ctx, userID)
	if err != nil {
		return "", err
	}
	e.log.Info("daily login bonus granted",
		logger.Int64("user_id", int64(userID)),
		logger.Int64("amount", e.cfg.DailyLoginBonus),
		logger.Int64("balance", balance),
	)
	e.publish(shared.NewDailyBonusGrantedEvent(userID, e.cfg.DailyLoginBonus, balance, now))
	return OutcomeOK, nil
}
