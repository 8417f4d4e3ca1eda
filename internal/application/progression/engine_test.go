package progression

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/coursequest/internal/domain/progress"
	"github.com/alem-hub/coursequest/internal/domain/shared"
)

func TestPremiumCourseLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, 150)

	out, err := h.engine.EnrollInCourse(ctx, user, premiumCourse)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, out)
	assert.Equal(t, int64(50), h.balance(t))

	require.NoError(t, h.engine.RecordSessionTime(ctx, user, premiumCourse, 1800))

	res, err := h.engine.CompleteModule(ctx, user, m1, premiumCourse)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.True(t, res.ModuleCompleted)
	assert.False(t, res.CourseCompleted)
	assert.Equal(t, 1, res.CompletedCount)
	assert.Equal(t, 2, res.RequiredCount)
	assert.Equal(t, int64(50), h.balance(t))

	res, err = h.engine.CompleteModule(ctx, user, m2, premiumCourse)
	require.NoError(t, err)
	assert.True(t, res.CourseCompleted)
	assert.True(t, res.CompletionRewardGranted)
	assert.True(t, res.TimedRewardGranted)
	assert.Equal(t, int64(400), h.balance(t))

	assert.Equal(t, []shared.EventType{
		shared.EventCourseEnrolled,
		shared.EventModuleCompleted,
		shared.EventModuleCompleted,
		shared.EventCourseCompleted,
		shared.EventRewardGranted,
		shared.EventRewardGranted,
	}, h.events.types())
}

func TestCompleteModule_OverTimeSkipsTimedReward(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, 100)

	_, err := h.engine.EnrollInCourse(ctx, user, premiumCourse)
	require.NoError(t, err)
	require.NoError(t, h.engine.RecordSessionTime(ctx, user, premiumCourse, 4000))

	_, err = h.engine.CompleteModule(ctx, user, m1, premiumCourse)
	require.NoError(t, err)
	res, err := h.engine.CompleteModule(ctx, user, m2, premiumCourse)
	require.NoError(t, err)

	assert.True(t, res.CompletionRewardGranted)
	assert.False(t, res.TimedRewardGranted)
	assert.Equal(t, int64(50), h.balance(t))
}

func TestCompleteModule_RepeatGrantsNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.EnrollInCourse(ctx, user, freeCourse)
	require.NoError(t, err)
	res, err := h.engine.CompleteModule(ctx, user, free1, freeCourse)
	require.NoError(t, err)
	assert.True(t, res.CourseCompleted)
	assert.True(t, res.CompletionRewardGranted)
	assert.False(t, res.TimedRewardGranted, "free course has no time limit")
	assert.Equal(t, int64(50), h.balance(t))

	res, err = h.engine.CompleteModule(ctx, user, free1, freeCourse)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyCompleted, res.Outcome)
	assert.False(t, res.CourseCompleted)
	assert.Equal(t, int64(50), h.balance(t))
}

func TestEnrollInCourse_Outcomes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.engine.EnrollInCourse(ctx, user, 404)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCourseNotFound, out)

	h.fund(t, 99)
	out, err = h.engine.EnrollInCourse(ctx, user, premiumCourse)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInsufficientFunds, out)
	assert.Equal(t, int64(99), h.balance(t))
	enrolled, err := h.store.IsEnrolled(ctx, user, premiumCourse)
	require.NoError(t, err)
	assert.False(t, enrolled)

	out, err = h.engine.EnrollInCourse(ctx, user, freeCourse)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, out)
	assert.Equal(t, int64(99), h.balance(t), "free enrollment costs nothing")

	out, err = h.engine.EnrollInCourse(ctx, user, freeCourse)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyEnrolled, out)
}

func TestEnrollInCourse_ConcurrentPaysOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, 1000)

	var wg sync.WaitGroup
	results := make([]Outcome, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := h.engine.EnrollInCourse(ctx, user, premiumCourse)
			assert.NoError(t, err)
			results[i] = out
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, r := range results {
		if r.OK() {
			ok++
		} else {
			assert.Equal(t, OutcomeAlreadyEnrolled, r)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, int64(900), h.balance(t))
}

func TestCompleteModule_Gates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, 100)

	res, err := h.engine.CompleteModule(ctx, user, m1, premiumCourse)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotEnrolled, res.Outcome)

	_, err = h.engine.EnrollInCourse(ctx, user, premiumCourse)
	require.NoError(t, err)

	res, err = h.engine.CompleteModule(ctx, user, m2, premiumCourse)
	require.NoError(t, err)
	assert.Equal(t, OutcomeModuleLocked, res.Outcome)

	res, err = h.engine.CompleteModule(ctx, user, bonus, premiumCourse)
	require.NoError(t, err)
	assert.Equal(t, OutcomeModuleLocked, res.Outcome, "bonus module must be bought first")

	res, err = h.engine.CompleteModule(ctx, user, m1, freeCourse)
	require.NoError(t, err)
	assert.Equal(t, OutcomeModuleNotFound, res.Outcome, "module belongs to another course")

	res, err = h.engine.CompleteModule(ctx, user, 999, premiumCourse)
	require.NoError(t, err)
	assert.Equal(t, OutcomeModuleNotFound, res.Outcome)
}

func TestCompleteModule_BonusDoesNotCountTowardCompletion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, 130)

	_, err := h.engine.EnrollInCourse(ctx, user, premiumCourse)
	require.NoError(t, err)
	out, err := h.engine.BuyBonusModule(ctx, user, bonus, premiumCourse)
	require.NoError(t, err)
	require.Equal(t, OutcomeOK, out)

	res, err := h.engine.CompleteModule(ctx, user, bonus, premiumCourse)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.True(t, res.ModuleCompleted)
	assert.Equal(t, 0, res.CompletedCount)
	assert.False(t, res.CourseCompleted)
}

func TestClaimCompletionReward_ExactlyOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.engine.ClaimCompletionReward(ctx, user, freeCourse)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotCompleted, out)

	// Create the completion without going through CompleteModule's auto-claim.
	_, err = h.store.Repository().CreateCompletion(ctx, &progress.CourseCompletion{UserID: user, CourseID: freeCourse})
	require.NoError(t, err)

	out, err = h.engine.ClaimCompletionReward(ctx, user, freeCourse)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, out)
	out, err = h.engine.ClaimCompletionReward(ctx, user, freeCourse)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyClaimed, out)

	assert.Equal(t, int64(50), h.balance(t))
}

func TestClaimTimedReward(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.store.Repository().CreateCompletion(ctx, &progress.CourseCompletion{UserID: user, CourseID: premiumCourse})
	require.NoError(t, err)

	out, err := h.engine.ClaimTimedReward(ctx, user, premiumCourse, 3601)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimeLimitExceeded, out)
	assert.Equal(t, int64(0), h.balance(t))

	out, err = h.engine.ClaimTimedReward(ctx, user, premiumCourse, 3600)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, out)
	assert.Equal(t, int64(300), h.balance(t))

	out, err = h.engine.ClaimTimedReward(ctx, user, premiumCourse, 10)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyClaimed, out)
	assert.Equal(t, int64(300), h.balance(t))

	out, err = h.engine.ClaimTimedReward(ctx, user, freeCourse, 10)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoTimeLimit, out)

	out, err = h.engine.ClaimTimedReward(ctx, user, emptyCourse, 10)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotCompleted, out)

	_, err = h.engine.ClaimTimedReward(ctx, user, premiumCourse, -1)
	assert.ErrorIs(t, err, shared.ErrNegativeValue)
}

func TestBuyBonusModule(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, 20)

	out, err := h.engine.BuyBonusModule(ctx, user, bonus, premiumCourse)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInsufficientFunds, out)
	assert.Equal(t, int64(20), h.balance(t))
	st, err := h.store.Status(ctx, user, bonus)
	require.NoError(t, err)
	assert.Equal(t, progress.StatusNotOpened, st)

	h.fund(t, 40)
	out, err = h.engine.BuyBonusModule(ctx, user, bonus, premiumCourse)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, out, "enrollment is not required")
	assert.Equal(t, int64(30), h.balance(t))

	out, err = h.engine.BuyBonusModule(ctx, user, bonus, premiumCourse)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyOpen, out)
	assert.Equal(t, int64(30), h.balance(t), "no double debit")

	out, err = h.engine.BuyBonusModule(ctx, user, m1, premiumCourse)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotBonus, out)

	out, err = h.engine.BuyBonusModule(ctx, user, 999, premiumCourse)
	require.NoError(t, err)
	assert.Equal(t, OutcomeModuleNotFound, out)
}

func TestBuyBonusModule_ConcurrentPaysOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, 300)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.BuyBonusModule(ctx, user, bonus, premiumCourse)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(270), h.balance(t))
}

func TestClickModuleImage_ExactlyOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.engine.ClickModuleImage(ctx, user, m1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, out)
	out, err = h.engine.ClickModuleImage(ctx, user, m1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyClaimed, out)
	out, err = h.engine.ClickModuleImage(ctx, user, 999)
	require.NoError(t, err)
	assert.Equal(t, OutcomeModuleNotFound, out)

	assert.Equal(t, int64(10), h.balance(t))
}

func TestClaimDailyLoginBonus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.engine.ClaimDailyLoginBonus(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, out)
	out, err = h.engine.ClaimDailyLoginBonus(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyClaimed, out)
	assert.Equal(t, int64(100), h.balance(t))

	h.clock.Advance(24 * time.Hour)
	out, err = h.engine.ClaimDailyLoginBonus(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, out)
	assert.Equal(t, int64(200), h.balance(t))
}

func TestRecordSessionTime_IgnoresNonPositive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.engine.EnrollInCourse(ctx, user, freeCourse)
	require.NoError(t, err)

	require.NoError(t, h.engine.RecordSessionTime(ctx, user, freeCourse, 0))
	require.NoError(t, h.engine.RecordSessionTime(ctx, user, freeCourse, -5))
	require.NoError(t, h.engine.RecordSessionTime(ctx, user, freeCourse, 12))

	spent, err := h.store.GetTimeSpent(ctx, user, freeCourse)
	require.NoError(t, err)
	assert.Equal(t, int64(12), spent)
}

func TestNewEngine_PanicsWithoutCollaborators(t *testing.T) {
	assert.Panics(t, func() { NewEngine(Dependencies{}, DefaultConfig()) })
}
