package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"overmind.cash/internal/withdraw"
)

// Withdrawals is the withdraw.Store view of the pending_withdrawals table.
type Withdrawals struct{ s *SQLite }

var _ withdraw.Store = Withdrawals{}

func (s *SQLite) PendingWithdrawals() Withdrawals { return Withdrawals{s: s} }

func (w Withdrawals) Get(ctx context.Context, userID int64) (withdraw.Pending, bool, error) {
	var (
		p      withdraw.Pending
		amount int64
		at     int64
	)
	err := w.s.db.QueryRowContext(ctx,
		`SELECT user_id, destination, amount, source, created_at FROM pending_withdrawals WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.Destination, &amount, &p.Source, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return withdraw.Pending{}, false, nil
	}
	if err != nil {
		return withdraw.Pending{}, false, fmt.Errorf("get pending withdrawal %d: %w", userID, err)
	}
	p.Amount = uint64(amount)
	p.CreatedAt = fromMillis(at)
	return p, true, nil
}

func (w Withdrawals) Set(ctx context.Context, p withdraw.Pending) error {
	_, err := w.s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO pending_withdrawals(user_id, destination, amount, source, created_at) VALUES(?,?,?,?,?)`,
		p.UserID, p.Destination, int64(p.Amount), p.Source, p.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set pending withdrawal %d: %w", p.UserID, err)
	}
	return nil
}

func (w Withdrawals) Delete(ctx context.Context, userID int64) error {
	if _, err := w.s.db.ExecContext(ctx, `DELETE FROM pending_withdrawals WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete pending withdrawal %d: %w", userID, err)
	}
	return nil
}

// List returns every pending withdrawal, oldest first.
func (w Withdrawals) List(ctx context.Context) ([]withdraw.Pending, error) {
	rows, err := w.s.db.QueryContext(ctx,
		`SELECT user_id, destination, amount, source, created_at FROM pending_withdrawals ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []withdraw.Pending
	for rows.Next() {
		var (
			p          withdraw.Pending
			amount, at int64
		)
		if err := rows.Scan(&p.UserID, &p.Destination, &amount, &p.Source, &at); err != nil {
			return nil, err
		}
		p.Amount = uint64(amount)
		p.CreatedAt = fromMillis(at)
		out = append(out, p)
	}
	return out, rows.Err()
}
