package query

import (
	"context"
	"time"

	"github.com/alem-hub/coursequest/internal/domain/shared"
	"github.com/alem-hub/coursequest/internal/domain/wallet"
)

// GetWalletQuery asks for a wallet and its recent journal.
type GetWalletQuery struct {
	UserID shared.UserID
	// HistoryLimit caps the journal; 0 omits it.
	HistoryLimit int
}

// EntryDTO is one journal line.
type EntryDTO struct {
	ID           string    `json:"id"`
	Direction    string    `json:"direction"`
	Reason       string    `json:"reason"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	Reference    string    `json:"reference,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// WalletDTO is the wallet view.
type WalletDTO struct {
	Balance             int64      `json:"balance"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	DailyBonusAvailable bool       `json:"daily_bonus_available"`
	History             []EntryDTO `json:"history,omitempty"`
}

// GetWalletHandler handles GetWalletQuery.
type GetWalletHandler struct {
	ledger *wallet.Ledger
	clock  shared.Clock
}

// NewGetWalletHandler creates the handler.
func NewGetWalletHandler(ledger *wallet.Ledger, clock shared.Clock) *GetWalletHandler {
	return &GetWalletHandler{ledger: ledger, clock: clock}
}

// Handle runs the query.
func (h *GetWalletHandler) Handle(ctx context.Context, q GetWalletQuery) (*WalletDTO, error) {
	w, err := h.ledger.Wallet(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	out := &WalletDTO{
		Balance:             w.Balance,
		LastLoginAt:         w.LastLoginAt,
		DailyBonusAvailable: wallet.EligibleForDailyBonus(w.LastLoginAt, h.clock.Now(), h.ledger.Location()),
	}
	if q.HistoryLimit <= 0 {
		return out, nil
	}

	entries, err := h.ledger.History(ctx, q.UserID, q.HistoryLimit)
	if err != nil {
		return nil, err
	}
	out.History = make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		out.History = append(out.History, EntryDTO{
			ID:           e.ID.String(),
			Direction:    string(e.Direction),
			Reason:       string(e.Reason),
			Amount:       e.Amount,
			BalanceAfter: e.BalanceAfter,
			Reference:    e.Reference,
			CreatedAt:    e.CreatedAt,
		})
	}
	return out, nil
}
