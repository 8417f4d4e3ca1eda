package memory

import (
	"context"
	"time"

	"github.com/alem-hub/coursequest/internal/domain/shared"
	"github.com/alem-hub/coursequest/internal/domain/wallet"
)

// WalletRepo implements wallet.Repository.
type WalletRepo struct{ s *Store }

var _ wallet.Repository = (*WalletRepo)(nil)

func (st *state) wallet(userID shared.UserID, at time.Time) *wallet.Wallet {
	w, ok := st.wallets[userID]
	if !ok {
		w = &wallet.Wallet{UserID: userID, UpdatedAt: at}
		st.wallets[userID] = w
	}
	return w
}

// Get implements wallet.Repository.
func (r *WalletRepo) Get(ctx context.Context, userID shared.UserID) (*wallet.Wallet, error) {
	var out *wallet.Wallet
	err := r.s.with(ctx, func(st *state) error {
		w, ok := st.wallets[userID]
		if !ok {
			return shared.ErrWalletNotFound
		}
		out = copyWallet(w)
		return nil
	})
	return out, err
}

// Credit implements wallet.Repository.
func (r *WalletRepo) Credit(ctx context.Context, userID shared.UserID, amount int64, at time.Time) (int64, error) {
	var balance int64
	err := r.s.with(ctx, func(st *state) error {
		w := st.wallet(userID, at)
		w.Balance += amount
		w.UpdatedAt = at
		balance = w.Balance
		return nil
	})
	return balance, err
}

// Debit implements wallet.Repository.
func (r *WalletRepo) Debit(ctx context.Context, userID shared.UserID, amount int64, at time.Time) (int64, bool, error) {
	var (
		balance int64
		ok      bool
	)
	err := r.s.with(ctx, func(st *state) error {
		w, exists := st.wallets[userID]
		if !exists {
			return nil
		}
		balance = w.Balance
		if w.Balance < amount {
			return nil
		}
		w.Balance -= amount
		w.UpdatedAt = at
		balance, ok = w.Balance, true
		return nil
	})
	return balance, ok, err
}

// MarkLogin implements wallet.Repository.
func (r *WalletRepo) MarkLogin(ctx context.Context, userID shared.UserID, now, dayStart time.Time) (bool, error) {
	var changed bool
	err := r.s.with(ctx, func(st *state) error {
		w := st.wallet(userID, now)
		if w.LastLoginAt != nil && !w.LastLoginAt.Before(dayStart) {
			return nil
		}
		t := now
		w.LastLoginAt = &t
		w.UpdatedAt = now
		changed = true
		return nil
	})
	return changed, err
}

// AppendEntry implements wallet.Repository.
func (r *WalletRepo) AppendEntry(ctx context.Context, entry *wallet.Entry) error {
	cp := *entry
	return r.s.with(ctx, func(st *state) error {
		st.entries[entry.UserID] = append(st.entries[entry.UserID], &cp)
		return nil
	})
}

// ListEntries implements wallet.Repository.
func (r *WalletRepo) ListEntries(ctx context.Context, userID shared.UserID, limit int) ([]*wallet.Entry, error) {
	var out []*wallet.Entry
	err := r.s.with(ctx, func(st *state) error {
		list := st.entries[userID]
		for i := len(list) - 1; i >= 0; i-- {
			if limit > 0 && len(out) == limit {
				break
			}
			cp := *list[i]
			out = append(out, &cp)
		}
		return nil
	})
	return out, err
}
