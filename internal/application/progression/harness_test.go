package progression

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alem-hub/coursequest/internal/domain/catalog"
	"github.com/alem-hub/coursequest/internal/domain/progress"
	"github.com/alem-hub/coursequest/internal/domain/shared"
	"github.com/alem-hub/coursequest/internal/domain/wallet"
	"github.com/alem-hub/coursequest/internal/infrastructure/persistence/memory"
)

const user shared.UserID = 1

// Catalog used by the tests:
//
//	course 1: premium, cost 100, limit 3600s, normal 11 and 12, bonus 19 (cost 30)
//	course 2: free, no time limit, normal 21
//	course 3: free, no modules
const (
	premiumCourse shared.CourseID = 1
	freeCourse    shared.CourseID = 2
	emptyCourse   shared.CourseID = 3

	m1    shared.ModuleID = 11
	m2    shared.ModuleID = 12
	bonus shared.ModuleID = 19
	free1 shared.ModuleID = 21
)

type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(e shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []shared.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

type harness struct {
	engine *Engine
	ledger *wallet.Ledger
	store  *progress.Store
	clock  *shared.FixedClock
	events *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	mem := memory.New()
	cat := mem.Catalog()

	courses := []*catalog.Course{
		{ID: premiumCourse, Title: "Advanced Go", Tier: catalog.TierPremium, Cost: 100, TimeLimit: 3600},
		{ID: freeCourse, Title: "Intro", Tier: catalog.TierFree},
		{ID: emptyCourse, Title: "Empty", Tier: catalog.TierFree, TimeLimit: 60},
	}
	for _, c := range courses {
		require.NoError(t, cat.UpsertCourse(ctx, c))
	}
	modules := []*catalog.Module{
		{ID: m1, CourseID: premiumCourse, Title: "one", Position: 1, Kind: catalog.KindNormal},
		{ID: m2, CourseID: premiumCourse, Title: "two", Position: 2, Kind: catalog.KindNormal},
		{ID: bonus, CourseID: premiumCourse, Title: "extra", Position: 3, Kind: catalog.KindBonus, UnlockCost: 30},
		{ID: free1, CourseID: freeCourse, Title: "only", Position: 1, Kind: catalog.KindNormal},
	}
	for _, m := range modules {
		require.NoError(t, cat.UpsertModule(ctx, m))
	}

	clock := shared.NewFixedClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	ledger := wallet.NewLedger(mem.Wallets(), mem, clock, time.UTC)
	store := progress.NewStore(mem.Progress(), cat, clock)
	events := &recorder{}

	engine := NewEngine(Dependencies{
		Catalog:  cat,
		Progress: store,
		Ledger:   ledger,
		Tx:       mem,
		Clock:    clock,
		Events:   events,
	}, DefaultConfig())

	return &harness{engine: engine, ledger: ledger, store: store, clock: clock, events: events}
}

func (h *harness) fund(t *testing.T, amount int64) {
	t.Helper()
	_, err := h.ledger.Credit(context.Background(), user, amount, wallet.ReasonGrant, "test")
	require.NoError(t, err)
}

func (h *harness) balance(t *testing.T) int64 {
	t.Helper()
	b, err := h.ledger.GetBalance(context.Background(), user)
	require.NoError(t, err)
	return b
}
