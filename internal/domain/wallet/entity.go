// Package wallet owns a learner's coin balance, the journal of every coin
// movement, and the daily login bonus rule.
package wallet

import (
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/coursequest/internal/domain/shared"
	"github.com/alem-hub/coursequest/pkg/timeutil"
)

// Wallet is a user's coin account. It is created lazily with balance 0.
type Wallet struct {
	UserID shared.UserID
	// Balance is never negative.
	Balance     int64
	LastLoginAt *time.Time
	UpdatedAt   time.Time
}

// Direction of a journal entry.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Reason classifies why coins moved.
type Reason string

const (
	ReasonEnrollment       Reason = "enrollment"
	ReasonBonusModule      Reason = "bonus_module"
	ReasonCompletionReward Reason = "completion_reward"
	ReasonTimedReward      Reason = "timed_reward"
	ReasonImageClick       Reason = "image_click"
	ReasonDailyLogin       Reason = "daily_login"
	ReasonGrant            Reason = "grant"
)

// Entry is one append-only journal line. Entries are written in the same
// transaction as the balance change they record.
type Entry struct {
	ID           uuid.UUID
	UserID       shared.UserID
	Direction    Direction
	Reason       Reason
	Amount       int64
	BalanceAfter int64
	// Reference points at what was paid for or rewarded, e.g. "course:3".
	Reference string
	CreatedAt time.Time
}

// NewEntry builds a journal entry with a fresh id.
func NewEntry(userID shared.UserID, dir Direction, reason Reason, amount, balanceAfter int64, ref string, at time.Time) *Entry {
	return &Entry{
		ID:           uuid.New(),
		UserID:       userID,
		Direction:    dir,
		Reason:       reason,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Reference:    ref,
		CreatedAt:    at,
	}
}

// Signed returns the amount with its sign applied.
func (e *Entry) Signed() int64 {
	if e.Direction == DirectionDebit {
		return -e.Amount
	}
	return e.Amount
}

// EligibleForDailyBonus reports whether now falls on a later calendar day
// in loc than lastLogin. A wallet that never logged in is eligible.
func EligibleForDailyBonus(lastLogin *time.Time, now time.Time, loc *time.Location) bool {
	if lastLogin == nil {
		return true
	}
	return timeutil.IsLaterDay(now, *lastLogin, loc)
}
