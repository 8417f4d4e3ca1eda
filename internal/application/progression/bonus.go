package progression

import (
	"context"

	"github.com/alem-hub/coursequest/internal/domain/shared"
	"github.com/alem-hub/coursequest/internal/domain/wallet"
	"github.com/alem-hub/coursequest/pkg/logger"
)

// BuyBonusModule pays for and opens a bonus module. The debit happens
// before the open in one transaction, so a failed debit never opens the
// module and an already-open module is never paid for twice. Enrollment
// is not required.
func (e *Engine) BuyBonusModule(ctx context.Context, userID shared.UserID, moduleID shared.ModuleID, courseID shared.CourseID) (Outcome, error) {
	module, err := e.loadModule(ctx, moduleID)
	if err != nil {
		return "", err
	}
	if module == nil || module.CourseID != courseID {
		return OutcomeModuleNotFound, nil
	}
	if !module.IsBonus() {
		return OutcomeNotBonus, nil
	}
	open, err := e.progress.IsOpen(ctx, userID, moduleID)
	if err != nil {
		return "", err
	}
	if open {
		return OutcomeAlreadyOpen, nil
	}
	course, err := e.loadCourse(ctx, courseID)
	if err != nil {
		return "", err
	}
	if course == nil {
		return OutcomeCourseNotFound, nil
	}

	outcome := OutcomeOK
	err = e.inTx(ctx, func(ctx context.Context) error {
		if module.UnlockCost > 0 {
			ok, err := e.ledger.TryDebit(ctx, userID, module.UnlockCost, wallet.ReasonBonusModule, "module:"+moduleID.String())
			if err != nil {
				return err
			}
			if !ok {
				outcome = OutcomeInsufficientFunds
				return nil
			}
		}
		opened, err := e.progress.Open(ctx, userID, moduleID)
		if err != nil {
			return err
		}
		if !opened {
			// Opened concurrently; refund by rolling back.
			outcome = OutcomeAlreadyOpen
			return errAbort
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	log := e.log.With(logger.Int64("user_id", int64(userID)), logger.Int64("module_id", int64(moduleID)))
	if !outcome.OK() {
		log.Debug("bonus purchase rejected", logger.String("outcome", outcome.String()))
		return outcome, nil
	}
	log.Info("bonus module bought", logger.Int64("cost", module.UnlockCost))
	e.publish(shared.NewModuleOpenedEvent(userID, courseID, moduleID, module.UnlockCost, e.clock.Now()))
	return OutcomeOK, nil
}
