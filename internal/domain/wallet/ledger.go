package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alem-hub/coursequest/internal/domain/shared"
	"github.com/alem-hub/coursequest/pkg/timeutil"
)

// Ledger is the wallet service. Each balance change and its journal entry
// are applied in one transaction.
type Ledger struct {
	repo  Repository
	tx    shared.Transactor
	clock shared.Clock
	loc   *time.Location
}

// NewLedger creates a Ledger. loc is the zone in which daily-bonus calendar
// days are compared; nil means UTC.
func NewLedger(repo Repository, tx shared.Transactor, clock shared.Clock, loc *time.Location) *Ledger {
	if repo == nil || tx == nil || clock == nil {
		panic("wallet: NewLedger requires repository, transactor and clock")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{repo: repo, tx: tx, clock: clock, loc: loc}
}

// Location returns the zone used for calendar-day comparisons.
func (l *Ledger) Location() *time.Location {
	return l.loc
}

// GetBalance returns the balance, 0 if the wallet was never created.
func (l *Ledger) GetBalance(ctx context.Context, userID shared.UserID) (int64, error) {
	w, err := l.repo.Get(ctx, userID)
	if errors.Is(err, shared.ErrWalletNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return w.Balance, nil
}

// Wallet returns the wallet, or a zero wallet if it was never created.
func (l *Ledger) Wallet(ctx context.Context, userID shared.UserID) (*Wallet, error) {
	w, err := l.repo.Get(ctx, userID)
	if errors.Is(err, shared.ErrWalletNotFound) {
		return &Wallet{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

// Credit adds amount to the balance and returns the new balance.
// A non-positive amount is a caller bug and returns shared.ErrInvalidAmount.
func (l *Ledger) Credit(ctx context.Context, userID shared.UserID, amount int64, reason Reason, ref string) (int64, error) {
	if amount <= 0 {
		return 0, shared.ErrInvalidAmount
	}
	var balance int64
	err := l.tx.InTx(ctx, func(ctx context.Context) error {
		now := l.clock.Now()
		var err error
		balance, err = l.repo.Credit(ctx, userID, amount, now)
		if err != nil {
			return fmt.Errorf("credit: %w", err)
		}
		return l.repo.AppendEntry(ctx, NewEntry(userID, DirectionCredit, reason, amount, balance, ref, now))
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// TryDebit subtracts amount if the balance covers it. It returns false with
// the balance untouched otherwise. The check and the subtraction are one
// conditional write, so two racing debits can never overdraw the wallet.
func (l *Ledger) TryDebit(ctx context.Context, userID shared.UserID, amount int64, reason Reason, ref string) (bool, error) {
	if amount <= 0 {
		return false, shared.ErrInvalidAmount
	}
	var ok bool
	err := l.tx.InTx(ctx, func(ctx context.Context) error {
		now := l.clock.Now()
		balance, debited, err := l.repo.Debit(ctx, userID, amount, now)
		if err != nil {
			return fmt.Errorf("debit: %w", err)
		}
		ok = debited
		if !debited {
			return nil
		}
		return l.repo.AppendEntry(ctx, NewEntry(userID, DirectionDebit, reason, amount, balance, ref, now))
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ApplyDailyLoginBonus credits bonus and records now as the last login if
// now is on a later calendar day than the previous login, or if there was
// none. At most one bonus is granted per calendar day.
func (l *Ledger) ApplyDailyLoginBonus(ctx context.Context, userID shared.UserID, bonus int64, now time.Time) (bool, error) {
	if bonus <= 0 {
		return false, shared.ErrInvalidAmount
	}
	dayStart := timeutil.StartOfDay(now, l.loc)

	var granted bool
	err := l.tx.InTx(ctx, func(ctx context.Context) error {
		marked, err := l.repo.MarkLogin(ctx, userID, now, dayStart)
		if err != nil {
			return fmt.Errorf("mark login: %w", err)
		}
		if !marked {
			return nil
		}
		balance, err := l.repo.Credit(ctx, userID, bonus, now)
		if err != nil {
			return fmt.Errorf("credit daily bonus: %w", err)
		}
		granted = true
		ref := "day:" + timeutil.FormatDate(now, l.loc)
		return l.repo.AppendEntry(ctx, NewEntry(userID, DirectionCredit, ReasonDailyLogin, bonus, balance, ref, now))
	})
	if err != nil {
		return false, err
	}
	return granted, nil
}

// History returns the newest journal entries first.
func (l *Ledger) History(ctx context.Context, userID shared.UserID, limit int) ([]*Entry, error) {
	entries, err := l.repo.ListEntries(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}
