package overmind

import (
	"context"

	"overmind.cash/internal/withdraw"
)

// RespawnResult reports a granted and executed respawn.
type RespawnResult struct {
	Before uint64
	Atoms  uint64
	TxIDs  []string
}

// Respawn tops a low-balance principal back up, at most once per window.
// Denials come back as errors wrapping the gate or rules sentinel.
func (b *Bot) Respawn(ctx context.Context, userID int64) (RespawnResult, error) {
	p, err := b.principal(ctx, userID)
	if err != nil {
		return RespawnResult{}, err
	}
	d, err := b.gate.Respawn(ctx, p)
	if err != nil {
		b.reportError(ctx, userID, "respawn", err)
		return RespawnResult{}, err
	}
	if !d.Granted() {
		return RespawnResult{Before: d.Balance}, d.Error()
	}
	res := RespawnResult{Before: d.Balance, Atoms: sum(d.Transfers)}
	res.TxIDs, err = b.Execute(ctx, d.Transfers)
	return res, err
}

// Withdraw validates a withdrawal and leaves it pending confirmation.
func (b *Bot) Withdraw(ctx context.Context, userID int64, destination string, amount uint64) (withdraw.Pending, error) {
	p, err := b.principal(ctx, userID)
	if err != nil {
		return withdraw.Pending{}, err
	}
	return b.withdraw.Propose(ctx, p, destination, amount)
}

// ConfirmWithdraw executes the pending withdrawal of userID.
func (b *Bot) ConfirmWithdraw(ctx context.Context, userID int64) (withdraw.Result, error) {
	p, err := b.principal(ctx, userID)
	if err != nil {
		return withdraw.Result{}, err
	}
	return b.withdraw.Confirm(ctx, p)
}

// CancelWithdraw drops the pending withdrawal of userID, if any.
func (b *Bot) CancelWithdraw(ctx context.Context, userID int64) (bool, error) {
	if userID == 0 {
		return false, ErrMissingUser
	}
	return b.withdraw.Cancel(ctx, userID)
}
