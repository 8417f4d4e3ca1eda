// Package memory is an in-process data store. It implements every domain
// repository plus shared.Transactor and is used when no database is
// configured and by tests.
package memory

import (
	"context"
	"sync"

	"github.com/alem-hub/coursequest/internal/domain/catalog"
	"github.com/alem-hub/coursequest/internal/domain/progress"
	"github.com/alem-hub/coursequest/internal/domain/shared"
	"github.com/alem-hub/coursequest/internal/domain/wallet"
)

type enrollKey struct {
	user   shared.UserID
	course shared.CourseID
}

type moduleKey struct {
	user   shared.UserID
	module shared.ModuleID
}

type state struct {
	courses     map[shared.CourseID]*catalog.Course
	modules     map[shared.ModuleID]*catalog.Module
	tags        map[shared.TagID]*catalog.Tag
	wallets     map[shared.UserID]*wallet.Wallet
	entries     map[shared.UserID][]*wallet.Entry
	moduleState map[moduleKey]*progress.ModuleProgress
	enrollments map[enrollKey]*progress.Enrollment
	completions map[enrollKey]*progress.CourseCompletion
}

func newState() *state {
	return &state{
		courses:     make(map[shared.CourseID]*catalog.Course),
		modules:     make(map[shared.ModuleID]*catalog.Module),
		tags:        make(map[shared.TagID]*catalog.Tag),
		wallets:     make(map[shared.UserID]*wallet.Wallet),
		entries:     make(map[shared.UserID][]*wallet.Entry),
		moduleState: make(map[moduleKey]*progress.ModuleProgress),
		enrollments: make(map[enrollKey]*progress.Enrollment),
		completions: make(map[enrollKey]*progress.CourseCompletion),
	}
}

// clone copies the mutable learner state. Catalog entries are replaced
// wholesale on upsert, never mutated, so their pointers can be shared.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.courses {
		c.courses[k] = v
	}
	for k, v := range s.modules {
		c.modules[k] = v
	}
	for k, v := range s.tags {
		c.tags[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = copyWallet(v)
	}
	for k, v := range s.entries {
		c.entries[k] = append([]*wallet.Entry(nil), v...)
	}
	for k, v := range s.moduleState {
		cp := *v
		c.moduleState[k] = &cp
	}
	for k, v := range s.enrollments {
		cp := *v
		c.enrollments[k] = &cp
	}
	for k, v := range s.completions {
		cp := *v
		c.completions[k] = &cp
	}
	return c
}

// Store holds all data behind one mutex. A transaction holds the mutex
// from begin to commit, so transactions are serialized and every
// conditional write is atomic.
type Store struct {
	mu    sync.Mutex
	state *state
}

// New creates an empty store.
func New() *Store {
	return &Store{state: newState()}
}

type txKey struct{ s *Store }

func (s *Store) inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{s}).(bool)
	return v
}

// InTx implements shared.Transactor. Writes made by fn are rolled back if
// it returns an error or panics.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.state.clone()
	defer func() {
		if r := recover(); r != nil {
			s.state = saved
			panic(r)
		}
		if err != nil {
			s.state = saved
		}
	}()
	return fn(context.WithValue(ctx, txKey{s}, true))
}

// with runs fn under the store lock unless ctx already holds it.
func (s *Store) with(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.inTx(ctx) {
		return fn(s.state)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

// Catalog returns the catalog repository view.
func (s *Store) Catalog() *CatalogRepo { return &CatalogRepo{s: s} }

// Wallets returns the wallet repository view.
func (s *Store) Wallets() *WalletRepo { return &WalletRepo{s: s} }

// Progress returns the progress repository view.
func (s *Store) Progress() *ProgressRepo { return &ProgressRepo{s: s} }

var _ shared.Transactor = (*Store)(nil)

func copyWallet(w *wallet.Wallet) *wallet.Wallet {
	cp := *w
	if w.LastLoginAt != nil {
		t := *w.LastLoginAt
		cp.LastLoginAt = &t
	}
	return &cp
}
