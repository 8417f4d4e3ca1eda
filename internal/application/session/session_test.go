package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/coursequest/internal/application/progression"
	"github.com/alem-hub/coursequest/internal/domain/shared"
)

const (
	user   shared.UserID   = 7
	course shared.CourseID = 3
)

func newTestManager(cfg Config) (*Manager, *fakeEngine, *timers, *shared.FixedClock) {
	eng := &fakeEngine{}
	ts := &timers{}
	clock := shared.NewFixedClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	return NewManager(eng, ts.factory, clock, cfg, nil), eng, ts, clock
}

func TestCourseSession_SavesDeltaEveryNTicks(t *testing.T) {
	m, eng, ts, _ := newTestManager(Config{TickInterval: time.Second, SaveEveryTicks: 10})
	_, err := m.Start(user, course)
	require.NoError(t, err)

	ts.last().fire(25)
	assert.Equal(t, 2, eng.saves())
	assert.Equal(t, int64(20), eng.total(), "each save writes only the delta")

	_, err = m.Stop(context.Background(), user, course)
	require.NoError(t, err)
	assert.Equal(t, int64(25), eng.total())
	assert.Equal(t, 3, eng.saves())
}

func TestCourseSession_StopThenFlush(t *testing.T) {
	m, eng, ts, _ := newTestManager(Config{TickInterval: time.Second, SaveEveryTicks: 100})
	s, err := m.Start(user, course)
	require.NoError(t, err)
	timer := ts.last()
	timer.fire(4)

	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 1, timer.stops)
	assert.Equal(t, int64(4), eng.total())

	// Ticks after close are ignored and a second close writes nothing.
	timer.fire(5)
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, int64(4), eng.total())
	assert.False(t, s.Running())
}

func TestCourseSession_CarriesSubSecondRemainder(t *testing.T) {
	m, eng, ts, _ := newTestManager(Config{TickInterval: 400 * time.Millisecond, SaveEveryTicks: 3})
	_, err := m.Start(user, course)
	require.NoError(t, err)

	ts.last().fire(6) // 2.4s, saved at 1.2s and 2.4s
	assert.Equal(t, int64(2), eng.total())

	s, _ := m.Get(user, course)
	assert.Equal(t, int64(2), s.State().ElapsedSeconds)
}

func TestCourseSession_FailedSaveIsRetried(t *testing.T) {
	m, eng, ts, _ := newTestManager(Config{TickInterval: time.Second, SaveEveryTicks: 2})
	s, err := m.Start(user, course)
	require.NoError(t, err)

	eng.failSave = true
	ts.last().fire(2)
	assert.Equal(t, int64(2), s.State().PendingSeconds)

	eng.failSave = false
	ts.last().fire(2)
	assert.Equal(t, int64(4), eng.total())
	assert.Equal(t, int64(0), s.State().PendingSeconds)
}

func TestCourseSession_CompleteModuleFlushesFirst(t *testing.T) {
	m, eng, ts, _ := newTestManager(Config{TickInterval: time.Second, SaveEveryTicks: 100})
	eng.result = &progression.CompletionResult{
		Outcome:                 progression.OutcomeOK,
		ModuleCompleted:         true,
		CompletedCount:          2,
		RequiredCount:           2,
		CourseCompleted:         true,
		CompletionRewardGranted: true,
		TimedRewardGranted:      true,
	}
	_, err := m.Start(user, course)
	require.NoError(t, err)
	ts.last().fire(7)

	res, err := m.CompleteModule(context.Background(), user, course, 42)
	require.NoError(t, err)
	assert.True(t, res.CourseCompleted)
	assert.Equal(t, int64(7), eng.total(), "time saved before completion")
	assert.Equal(t, []shared.ModuleID{42}, eng.completes)

	s, _ := m.Get(user, course)
	assert.Len(t, s.State().Notices, 4)
}

func TestCourseSession_StartResetsBaseline(t *testing.T) {
	m, eng, ts, _ := newTestManager(Config{TickInterval: time.Second, SaveEveryTicks: 100})
	s, err := m.Start(user, course)
	require.NoError(t, err)
	ts.last().fire(5)

	require.NoError(t, s.Start())
	assert.Len(t, ts.all, 1, "running session keeps its timer")
	assert.Equal(t, int64(0), s.State().ElapsedSeconds)

	assert.Equal(t, int64(5), eng.total(), "pending seconds saved before the reset")

	ts.last().fire(3)
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, int64(8), eng.total())
}

func TestCourseSession_RestartKeepsPendingWhenSaveFails(t *testing.T) {
	m, eng, ts, _ := newTestManager(Config{TickInterval: time.Second, SaveEveryTicks: 100})
	s, err := m.Start(user, course)
	require.NoError(t, err)
	ts.last().fire(4)

	eng.failSave = true
	_, err = m.Start(user, course)
	require.Error(t, err)
	got, ok := m.Get(user, course)
	require.True(t, ok, "running session survives a failed restart")
	assert.Same(t, s, got)
	assert.True(t, s.Running())
	assert.Equal(t, int64(4), s.State().PendingSeconds)
	assert.Equal(t, int64(4), s.State().ElapsedSeconds)

	eng.failSave = false
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, int64(4), eng.total())
}

func TestCourseSession_RestartWaitsForInFlightSave(t *testing.T) {
	m, eng, ts, _ := newTestManager(Config{TickInterval: time.Second, SaveEveryTicks: 100})
	s, err := m.Start(user, course)
	require.NoError(t, err)
	ts.last().fire(10)

	eng.block = make(chan struct{})
	eng.entered = make(chan struct{}, 1)

	flushed := make(chan error, 1)
	go func() { flushed <- s.Flush(context.Background()) }()
	<-eng.entered

	restarted := make(chan error, 1)
	go func() { restarted <- s.Start() }()
	assert.Never(t, func() bool { return len(restarted) > 0 }, 50*time.Millisecond, 5*time.Millisecond,
		"restart must wait for the save in flight")

	close(eng.block)
	require.NoError(t, <-flushed)
	require.NoError(t, <-restarted)
	assert.Equal(t, int64(0), s.State().PendingSeconds)

	ts.last().fire(5)
	assert.Equal(t, int64(5), s.State().PendingSeconds)
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, int64(15), eng.total())
}

func TestNoticeBoard_ExpiresOnTick(t *testing.T) {
	m, _, ts, clock := newTestManager(Config{TickInterval: time.Second, SaveEveryTicks: 100, NoticeTTL: 3 * time.Second})
	s, err := m.Start(user, course)
	require.NoError(t, err)

	s.Notices().Post(NoticeReward, "+10", clock.Now())
	ts.last().fire(1)
	assert.Len(t, s.State().Notices, 1)

	clock.Advance(3 * time.Second)
	ts.last().fire(1)
	assert.Empty(t, s.Notices().Visible(clock.Now()))
	assert.Equal(t, 0, s.Notices().Expire(clock.Now()))
}

func TestNoticeBoard_VisibleOrder(t *testing.T) {
	b := NewNoticeBoard(0)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.Post(NoticeProgress, "second", now.Add(time.Second))
	b.Post(NoticeProgress, "first", now)

	got := b.Visible(now.Add(time.Second))
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Message)
	assert.Equal(t, 1, b.Expire(now.Add(3*time.Second)))

	b.Clear()
	assert.Empty(t, b.Visible(now))
}

func TestManager_OnCourseEnrolledStartsSession(t *testing.T) {
	m, _, ts, clock := newTestManager(DefaultConfig())
	require.NoError(t, m.OnCourseEnrolled(shared.NewCourseEnrolledEvent(user, course, 100, clock.Now())))

	s, ok := m.Get(user, course)
	require.True(t, ok)
	assert.True(t, s.Running())
	assert.Equal(t, 1, ts.last().starts)

	assert.Error(t, m.OnCourseEnrolled(shared.NewDailyBonusGrantedEvent(user, 100, 100, clock.Now())))
}

func TestManager_ReapIdle(t *testing.T) {
	m, eng, ts, clock := newTestManager(Config{TickInterval: time.Second, SaveEveryTicks: 100, IdleTimeout: time.Minute})
	_, err := m.Start(user, course)
	require.NoError(t, err)
	_, err = m.Start(user, course+1)
	require.NoError(t, err)
	ts.all[0].fire(5)

	clock.Advance(30 * time.Second)
	assert.True(t, m.Touch(user, course+1))
	clock.Advance(45 * time.Second)

	n, err := m.ReapIdle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, int64(5), eng.total(), "reaped session flushed")

	_, ok := m.Get(user, course)
	assert.False(t, ok)
}

func TestManager_StopAndCloseAll(t *testing.T) {
	m, _, _, _ := newTestManager(DefaultConfig())
	ctx := context.Background()

	found, err := m.Stop(ctx, user, course)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = m.Start(user, course)
	require.NoError(t, err)
	_, err = m.Start(user+1, course)
	require.NoError(t, err)

	require.NoError(t, m.CloseAll(ctx))
	assert.Equal(t, 0, m.Len())
}

func TestManager_CompleteWithoutSession(t *testing.T) {
	m, eng, _, _ := newTestManager(DefaultConfig())
	res, err := m.CompleteModule(context.Background(), user, course, 5)
	require.NoError(t, err)
	assert.True(t, res.Outcome.OK())
	assert.Equal(t, []shared.ModuleID{5}, eng.completes)
	assert.Equal(t, 0, eng.saves())
}

func TestNewManager_PanicsWithoutCollaborators(t *testing.T) {
	assert.Panics(t, func() { NewManager(nil, nil, nil, DefaultConfig(), nil) })
}
