package progression

import (
	"context"
	"fmt"

	"github.com/alem-hub/coursequest/internal/domain/progress"
	"github.com/alem-hub/coursequest/internal/domain/shared"
	"github.com/alem-hub/coursequest/internal/domain/wallet"
	"github.com/alem-hub/coursequest/pkg/logger"
)

// EnrollInCourse enrolls the user. Premium courses are paid for first; if
// the debit fails there is no enrollment. On success a CourseEnrolledEvent
// is published so session tracking can start from zero.
func (e *Engine) EnrollInCourse(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (Outcome, error) {
	enrolled, err := e.progress.IsEnrolled(ctx, userID, courseID)
	if err != nil {
		return "", err
	}
	if enrolled {
		return OutcomeAlreadyEnrolled, nil
	}

	course, err := e.loadCourse(ctx, courseID)
	if err != nil {
		return "", err
	}
	if course == nil {
		return OutcomeCourseNotFound, nil
	}

	cost := course.EnrollmentCost()
	outcome := OutcomeOK
	err = e.inTx(ctx, func(ctx context.Context) error {
		if cost > 0 {
			ok, err := e.ledger.TryDebit(ctx, userID, cost, wallet.ReasonEnrollment, "course:"+courseID.String())
			if err != nil {
				return err
			}
			if !ok {
				outcome = OutcomeInsufficientFunds
				return nil
			}
		}

		created, err := e.progress.Repository().CreateEnrollment(ctx, &progress.Enrollment{
			UserID:     userID,
			CourseID:   courseID,
			EnrolledAt: e.clock.Now(),
		})
		if err != nil {
			return fmt.Errorf("create enrollment: %w", err)
		}
		if !created {
			// A concurrent enroll won; undo our debit.
			outcome = OutcomeAlreadyEnrolled
			return errAbort
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	log := e.log.With(logger.Int64("user_id", int64(userID)), logger.Int64("course_id", int64(courseID)))
	if !outcome.OK() {
		log.Debug("enrollment rejected", logger.String("outcome", outcome.String()))
		return outcome, nil
	}

	log.Info("enrolled in course", logger.Int64("paid", cost))
	e.publish(shared.NewCourseEnrolledEvent(userID, courseID, cost, e.clock.Now()))
	return OutcomeOK, nil
}
