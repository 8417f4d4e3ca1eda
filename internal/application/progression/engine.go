// Package progression is the course state machine. It ties the wallet
// ledger, the progress store and the unlock policy together: enrollment
// with payment, module completion, course completion detection, bonus
// module purchase, and the one-time rewards.
package progression

import (
	"context"
	"errors"
	"fmt"

	"github.com/alem-hub/coursequest/internal/domain/catalog"
	"github.com/alem-hub/coursequest/internal/domain/progress"
	"github.com/alem-hub/coursequest/internal/domain/shared"
	"github.com/alem-hub/coursequest/internal/domain/wallet"
	"github.com/alem-hub/coursequest/pkg/logger"
)

// Config holds the coin amounts the engine grants.
type Config struct {
	CompletionReward int64
	TimedReward      int64
	ImageClickReward int64
	DailyLoginBonus  int64
}

// DefaultConfig returns the standard economy.
func DefaultConfig() Config {
	return Config{
		CompletionReward: 50,
		TimedReward:      300,
		ImageClickReward: 10,
		DailyLoginBonus:  100,
	}
}

// Dependencies are the engine's collaborators. Events and Logger may be nil.
type Dependencies struct {
	Catalog  catalog.Repository
	Progress *progress.Store
	Ledger   *wallet.Ledger
	Tx       shared.Transactor
	Clock    shared.Clock
	Events   shared.EventPublisher
	Logger   *logger.Logger
}

// Engine runs the course state machine. All methods are safe for
// concurrent use; every money movement is one transaction.
type Engine struct {
	catalog  catalog.Repository
	progress *progress.Store
	ledger   *wallet.Ledger
	tx       shared.Transactor
	clock    shared.Clock
	events   shared.EventPublisher
	log      *logger.Logger
	cfg      Config
}

// NewEngine creates an Engine. It panics if a required collaborator is
// missing, since that is a wiring bug.
func NewEngine(deps Dependencies, cfg Config) *Engine {
	if deps.Catalog == nil || deps.Progress == nil || deps.Ledger == nil || deps.Tx == nil || deps.Clock == nil {
		panic("progression: NewEngine requires catalog, progress, ledger, transactor and clock")
	}
	if deps.Events == nil {
		deps.Events = shared.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &Engine{
		catalog:  deps.Catalog,
		progress: deps.Progress,
		ledger:   deps.Ledger,
		tx:       deps.Tx,
		clock:    deps.Clock,
		events:   deps.Events,
		log:      deps.Logger.Named("progression"),
		cfg:      cfg,
	}
}

// Config returns the engine's economy settings.
func (e *Engine) Config() Config {
	return e.cfg
}

// errAbort rolls a transaction back without surfacing an error. It is
// used when a conditional write loses a race after money already moved.
var errAbort = errors.New("progression: abort transaction")

func (e *Engine) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	err := e.tx.InTx(ctx, fn)
	if errors.Is(err, errAbort) {
		return nil
	}
	return err
}

func (e *Engine) publish(events ...shared.Event) {
	for _, ev := range events {
		if err := e.events.Publish(ev); err != nil {
			e.log.Warn("publish event failed",
				logger.String("event_type", string(ev.EventType())),
				logger.Err(err),
			)
		}
	}
}

// loadCourse returns nil without error when the course does not exist.
func (e *Engine) loadCourse(ctx context.Context, id shared.CourseID) (*catalog.Course, error) {
	c, err := e.catalog.GetCourse(ctx, id)
	if errors.Is(err, shared.ErrCourseNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get course %d: %w", id, err)
	}
	return c, nil
}

// loadModule returns nil without error when the module does not exist.
func (e *Engine) loadModule(ctx context.Context, id shared.ModuleID) (*catalog.Module, error) {
	m, err := e.catalog.GetModule(ctx, id)
	if errors.Is(err, shared.ErrModuleNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get module %d: %w", id, err)
	}
	return m, nil
}

// RecordSessionTime adds seconds accumulated since the caller's last save.
// Callers pass a delta, never a running total. Non-positive values are
// ignored.
func (e *Engine) RecordSessionTime(ctx context.Context, userID shared.UserID, courseID shared.CourseID, elapsedSeconds int64) error {
	if elapsedSeconds <= 0 {
		return nil
	}
	if err := e.progress.RecordTimeSpent(ctx, userID, courseID, elapsedSeconds); err != nil {
		return fmt.Errorf("record session time: %w", err)
	}
	e.log.Debug("session time recorded",
		logger.Int64("user_id", int64(userID)),
		logger.Int64("course_id", int64(courseID)),
		logger.Int64("seconds", elapsedSeconds),
	)
	return nil
}
