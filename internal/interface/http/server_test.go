package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/coursequest/internal/application/progression"
	"github.com/alem-hub/coursequest/internal/application/query"
	"github.com/alem-hub/coursequest/internal/application/session"
	"github.com/alem-hub/coursequest/internal/domain/catalog"
	"github.com/alem-hub/coursequest/internal/domain/progress"
	"github.com/alem-hub/coursequest/internal/domain/shared"
	"github.com/alem-hub/coursequest/internal/domain/wallet"
	"github.com/alem-hub/coursequest/internal/infrastructure/messaging"
	"github.com/alem-hub/coursequest/internal/infrastructure/persistence/memory"
)

// idleTimer never fires; the tests drive time through the store directly.
type idleTimer struct{}

func (idleTimer) Start() error { return nil }
func (idleTimer) Stop()        {}

type testEnv struct {
	server   *Server
	ledger   *wallet.Ledger
	sessions *session.Manager
	health   *CompositeHealthChecker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	mem := memory.New()
	cat := mem.Catalog()

	require.NoError(t, cat.UpsertTag(ctx, &catalog.Tag{ID: 1, Name: "go"}))
	courses := []*catalog.Course{
		{ID: 1, Title: "Go Basics", Tier: catalog.TierFree, TagIDs: []shared.TagID{1}},
		{ID: 2, Title: "Go Concurrency", Tier: catalog.TierPremium, Cost: 100, TimeLimit: 3600, TagIDs: []shared.TagID{1}},
	}
	for _, c := range courses {
		require.NoError(t, cat.UpsertCourse(ctx, c))
	}
	modules := []*catalog.Module{
		{ID: 11, CourseID: 1, Title: "Hello", Position: 1, Kind: catalog.KindNormal},
		{ID: 21, CourseID: 2, Title: "Goroutines", Position: 1, Kind: catalog.KindNormal},
		{ID: 29, CourseID: 2, Title: "Extra", Position: 2, Kind: catalog.KindBonus, UnlockCost: 30},
	}
	for _, m := range modules {
		require.NoError(t, cat.UpsertModule(ctx, m))
	}

	clock := shared.NewFixedClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	ledger := wallet.NewLedger(mem.Wallets(), mem, clock, time.UTC)
	store := progress.NewStore(mem.Progress(), cat, clock)
	engine := progression.NewEngine(progression.Dependencies{
		Catalog:  cat,
		Progress: store,
		Ledger:   ledger,
		Tx:       mem,
		Clock:    clock,
	}, progression.DefaultConfig())

	sessions := session.NewManager(engine, func(time.Duration, func()) session.Timer { return idleTimer{} },
		clock, session.DefaultConfig(), nil)
	health := NewCompositeHealthChecker("test")

	srv := NewServer(DefaultConfig(), Dependencies{
		Engine:   engine,
		Sessions: sessions,
		Progress: store,
		Courses:  query.NewGetFilteredCoursesHandler(cat, store),
		Roadmap:  query.NewGetRoadmapHandler(cat, store),
		Wallet:   query.NewGetWalletHandler(ledger, clock),
		Health:   health,
	})
	return &testEnv{server: srv, ledger: ledger, sessions: sessions, health: health}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path, user string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func (e *testEnv) fund(t *testing.T, user shared.UserID, amount int64) {
	t.Helper()
	_, err := e.ledger.Credit(context.Background(), user, amount, wallet.ReasonGrant, "test")
	require.NoError(t, err)
}

func TestListCourses_Filters(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/courses", "")
	require.Equal(t, http.StatusOK, code)
	var all []query.CourseDTO
	require.NoError(t, json.Unmarshal(body.Data, &all))
	assert.Len(t, all, 2)

	code, body = env.do(t, http.MethodGet, "/api/v1/courses?premium_only=true&q=CONC", "")
	require.Equal(t, http.StatusOK, code)
	var premium []query.CourseDTO
	require.NoError(t, json.Unmarshal(body.Data, &premium))
	require.Len(t, premium, 1)
	assert.Equal(t, int64(2), premium[0].ID)
	assert.Equal(t, []string{"go"}, premium[0].Tags)

	code, body = env.do(t, http.MethodGet, "/api/v1/courses?premium_only=true&free_only=true", "")
	require.Equal(t, http.StatusOK, code)
	var none []query.CourseDTO
	require.NoError(t, json.Unmarshal(body.Data, &none))
	assert.Empty(t, none)
}

func TestListCourses_BadParams(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/courses?premium_only=maybe", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "bad_request", body.Error.Code)

	code, body = env.do(t, http.MethodGet, "/api/v1/courses?tags=1,-4", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_failed", body.Error.Code)
}

func TestCaller_InvalidHeader(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/wallet", "abc")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_user", body.Error.Code)
}

func TestEnroll_PaymentOutcomes(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/v1/courses/2/enroll", "7")
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Equal(t, "insufficient_funds", body.Error.Code)

	env.fund(t, 7, 120)
	code, body = env.do(t, http.MethodPost, "/api/v1/courses/2/enroll", "7")
	require.Equal(t, http.StatusOK, code)
	var res OutcomeResponse
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.Equal(t, OutcomeResponse{Outcome: "ok", Balance: 20}, res)

	code, body = env.do(t, http.MethodPost, "/api/v1/courses/2/enroll", "7")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_enrolled", body.Error.Code)

	code, _ = env.do(t, http.MethodPost, "/api/v1/courses/99/enroll", "7")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCompleteModule_FinishesFreeCourse(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/v1/courses/1/modules/11/complete", "3")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "not_enrolled", body.Error.Code)

	code, _ = env.do(t, http.MethodPost, "/api/v1/courses/1/enroll", "3")
	require.Equal(t, http.StatusOK, code)

	code, body = env.do(t, http.MethodPost, "/api/v1/courses/1/modules/11/complete", "3")
	require.Equal(t, http.StatusOK, code)
	var res CompletionResponse
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.True(t, res.ModuleCompleted)
	assert.True(t, res.CourseCompleted)
	assert.True(t, res.CompletionRewardGranted)
	assert.False(t, res.TimedRewardGranted)
	assert.Equal(t, progression.DefaultConfig().CompletionReward, res.Balance)

	code, body = env.do(t, http.MethodPost, "/api/v1/courses/1/modules/11/complete", "3")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_completed", body.Error.Code)

	code, body = env.do(t, http.MethodPost, "/api/v1/courses/1/rewards/completion", "3")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_claimed", body.Error.Code)

	code, body = env.do(t, http.MethodPost, "/api/v1/courses/1/rewards/timed", "3")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "no_time_limit", body.Error.Code)
}

func TestCompleteModule_WrongCourse(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/v1/courses/1/modules/21/complete", "3")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "module_not_found", body.Error.Code)
}

func TestBuyBonusModule(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, 4, 100)

	code, body := env.do(t, http.MethodPost, "/api/v1/courses/2/modules/21/purchase", "4")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "not_bonus_module", body.Error.Code)

	code, body = env.do(t, http.MethodPost, "/api/v1/courses/2/modules/29/purchase", "4")
	require.Equal(t, http.StatusOK, code)
	var res OutcomeResponse
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.Equal(t, int64(70), res.Balance)

	code, body = env.do(t, http.MethodPost, "/api/v1/courses/2/modules/29/purchase", "4")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_open", body.Error.Code)
}

func TestClickModuleImage_Once(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/v1/modules/11/image-click", "5")
	require.Equal(t, http.StatusOK, code)
	var res OutcomeResponse
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.Equal(t, progression.DefaultConfig().ImageClickReward, res.Balance)

	code, body = env.do(t, http.MethodPost, "/api/v1/modules/11/image-click", "5")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_claimed", body.Error.Code)
}

func TestRoadmap(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/courses/2/roadmap", "8")
	require.Equal(t, http.StatusOK, code)
	var roadmap query.RoadmapDTO
	require.NoError(t, json.Unmarshal(body.Data, &roadmap))
	assert.False(t, roadmap.Enrolled)
	assert.Len(t, roadmap.Modules, 2)
	assert.Equal(t, 1, roadmap.RequiredCount)

	code, _ = env.do(t, http.MethodGet, "/api/v1/courses/42/roadmap", "8")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = env.do(t, http.MethodGet, "/api/v1/courses/abc/roadmap", "8")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "bad_request", body.Error.Code)

	code, body = env.do(t, http.MethodGet, "/api/v1/courses/0/roadmap", "8")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_failed", body.Error.Code)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/v1/courses/1/session", "6")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "not_enrolled", body.Error.Code)

	code, _ = env.do(t, http.MethodPost, "/api/v1/courses/1/enroll", "6")
	require.Equal(t, http.StatusOK, code)

	code, body = env.do(t, http.MethodPost, "/api/v1/courses/1/session", "6")
	require.Equal(t, http.StatusOK, code)
	var state session.State
	require.NoError(t, json.Unmarshal(body.Data, &state))
	assert.True(t, state.Running)
	assert.Equal(t, shared.CourseID(1), state.CourseID)
	assert.Equal(t, 1, env.sessions.Len())

	code, _ = env.do(t, http.MethodPost, "/api/v1/courses/1/session/heartbeat", "6")
	assert.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodGet, "/api/v1/courses/1/session", "6")
	assert.Equal(t, http.StatusOK, code)

	code, _ = env.do(t, http.MethodDelete, "/api/v1/courses/1/session", "6")
	assert.Equal(t, http.StatusNoContent, code)
	assert.Equal(t, 0, env.sessions.Len())

	code, body = env.do(t, http.MethodDelete, "/api/v1/courses/1/session", "6")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "session_not_found", body.Error.Code)

	code, _ = env.do(t, http.MethodPost, "/api/v1/courses/1/session/heartbeat", "6")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestWallet_DailyBonusAndHistory(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/v1/wallet/daily-bonus", "9")
	require.Equal(t, http.StatusOK, code)
	var res OutcomeResponse
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.Equal(t, progression.DefaultConfig().DailyLoginBonus, res.Balance)

	code, body = env.do(t, http.MethodPost, "/api/v1/wallet/daily-bonus", "9")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_claimed", body.Error.Code)

	code, body = env.do(t, http.MethodGet, "/api/v1/wallet?history=5", "9")
	require.Equal(t, http.StatusOK, code)
	var w query.WalletDTO
	require.NoError(t, json.Unmarshal(body.Data, &w))
	assert.False(t, w.DailyBonusAvailable)
	require.Len(t, w.History, 1)
	assert.Equal(t, string(wallet.ReasonDailyLogin), w.History[0].Reason)

	code, _ = env.do(t, http.MethodGet, "/api/v1/wallet?history=500", "9")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	code, _ := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)

	env.health.AddCheck("database", func(context.Context) error { return errors.New("connection refused") })
	code, body := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(body.Data, &status))
	assert.False(t, status.Healthy)
	assert.Equal(t, "Some checks failed: database", status.Message)

	code, body = env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not_ready", body.Error.Code)

	code, _ = env.do(t, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestHealth_ReportsEventBusStats(t *testing.T) {
	env := newTestEnv(t)
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{EnableMetrics: true})
	env.health.AddCheck("event_bus", PingCheck(bus))
	env.health.AddStats("event_bus", func() any { return bus.Metrics().Snapshot() })

	require.NoError(t, bus.Publish(shared.NewCourseEnrolledEvent(9, 1, 0, time.Now())))

	code, body := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, code)
	var status struct {
		Healthy bool `json:"healthy"`
		Stats   map[string]struct {
			TotalPublished int64 `json:"total_published"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &status))
	assert.True(t, status.Healthy)
	assert.Equal(t, int64(1), status.Stats["event_bus"].TotalPublished)

	require.NoError(t, bus.Close())
	code, _ = env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
