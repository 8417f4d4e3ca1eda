package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/coursequest/internal/domain/shared"
	"github.com/alem-hub/coursequest/internal/domain/wallet"
)

// WalletRepository implements wallet.Repository.
type WalletRepository struct {
	conn *Connection
}

var _ wallet.Repository = (*WalletRepository)(nil)

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(conn *Connection) *WalletRepository {
	return &WalletRepository{conn: conn}
}

// Get implements wallet.Repository.
func (r *WalletRepository) Get(ctx context.Context, userID shared.UserID) (*wallet.Wallet, error) {
	w := &wallet.Wallet{UserID: userID}
	err := r.conn.q(ctx).QueryRow(ctx,
		`SELECT balance, last_login_at, updated_at FROM wallets WHERE user_id = $1`, int64(userID),
	).Scan(&w.Balance, &w.LastLoginAt, &w.UpdatedAt)
	if IsNoRows(err) {
		return nil, shared.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

// Credit implements wallet.Repository.
func (r *WalletRepository) Credit(ctx context.Context, userID shared.UserID, amount int64, at time.Time) (int64, error) {
	var balance int64
	err := r.conn.q(ctx).QueryRow(ctx, `
		INSERT INTO wallets (user_id, balance, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
			SET balance = wallets.balance + EXCLUDED.balance, updated_at = EXCLUDED.updated_at
		RETURNING balance`,
		int64(userID), amount, at,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("credit wallet: %w", err)
	}
	return balance, nil
}

// Debit implements wallet.Repository. The balance check and the
// subtraction are one statement.
func (r *WalletRepository) Debit(ctx context.Context, userID shared.UserID, amount int64, at time.Time) (int64, bool, error) {
	var balance int64
	err := r.conn.q(ctx).QueryRow(ctx, `
		UPDATE wallets SET balance = balance - $2, updated_at = $3
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance`,
		int64(userID), amount, at,
	).Scan(&balance)
	if err == nil {
		return balance, true, nil
	}
	if !IsNoRows(err) {
		return 0, false, fmt.Errorf("debit wallet: %w", err)
	}

	err = r.conn.q(ctx).QueryRow(ctx, `SELECT balance FROM wallets WHERE user_id = $1`, int64(userID)).Scan(&balance)
	if IsNoRows(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read wallet balance: %w", err)
	}
	return balance, false, nil
}

// MarkLogin implements wallet.Repository.
func (r *WalletRepository) MarkLogin(ctx context.Context, userID shared.UserID, now, dayStart time.Time) (bool, error) {
	tag, err := r.conn.q(ctx).Exec(ctx, `
		INSERT INTO wallets (user_id, balance, last_login_at, updated_at) VALUES ($1, 0, $2, $2)
		ON CONFLICT (user_id) DO UPDATE
			SET last_login_at = EXCLUDED.last_login_at, updated_at = EXCLUDED.updated_at
			WHERE wallets.last_login_at IS NULL OR wallets.last_login_at < $3`,
		int64(userID), now, dayStart)
	if err != nil {
		return false, fmt.Errorf("mark login: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AppendEntry implements wallet.Repository.
func (r *WalletRepository) AppendEntry(ctx context.Context, e *wallet.Entry) error {
	_, err := r.conn.q(ctx).Exec(ctx, `
		INSERT INTO wallet_entries (id, user_id, direction, reason, amount, balance_after, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, int64(e.UserID), string(e.Direction), string(e.Reason), e.Amount, e.BalanceAfter, e.Reference, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append wallet entry: %w", err)
	}
	return nil
}

// ListEntries implements wallet.Repository.
func (r *WalletRepository) ListEntries(ctx context.Context, userID shared.UserID, limit int) ([]*wallet.Entry, error) {
	query := `
		SELECT id, direction, reason, amount, balance_after, reference, created_at
		FROM wallet_entries WHERE user_id = $1 ORDER BY seq DESC`
	args := []any{int64(userID)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.conn.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list wallet entries: %w", err)
	}
	defer rows.Close()

	var out []*wallet.Entry
	for rows.Next() {
		e := &wallet.Entry{UserID: userID}
		var dir, reason string
		if err := rows.Scan(&e.ID, &dir, &reason, &e.Amount, &e.BalanceAfter, &e.Reference, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wallet entry: %w", err)
		}
		e.Direction = wallet.Direction(dir)
		e.Reason = wallet.Reason(reason)
		out = append(out, e)
	}
	return out, rows.Err()
}
