package wallet

import (
	"context"
	"time"

	"github.com/alem-hub/coursequest/internal/domain/shared"
)

// Repository persists wallets and their journal. Every balance mutation is
// a single conditional write in the store; callers never read-then-write.
type Repository interface {
	// Get returns the wallet or shared.ErrWalletNotFound.
	Get(ctx context.Context, userID shared.UserID) (*Wallet, error)

	// Credit adds amount, creating the wallet if it does not exist.
	// Returns the new balance.
	Credit(ctx context.Context, userID shared.UserID, amount int64, at time.Time) (int64, error)

	// Debit subtracts amount only if the balance covers it. When it does
	// not, ok is false and nothing changes.
	Debit(ctx context.Context, userID shared.UserID, amount int64, at time.Time) (balance int64, ok bool, err error)

	// MarkLogin sets last login to now if there is no prior login or the
	// prior login is before dayStart. Creates the wallet if needed.
	// Reports whether the value was changed.
	MarkLogin(ctx context.Context, userID shared.UserID, now, dayStart time.Time) (bool, error)

	// AppendEntry writes a journal entry.
	AppendEntry(ctx context.Context, entry *Entry) error

	// ListEntries returns the newest entries first. limit <= 0 means all.
	ListEntries(ctx context.Context, userID shared.UserID, limit int) ([]*Entry, error)
}
