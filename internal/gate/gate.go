// Package gate decides whether a privileged action (respawn, withdraw) may run
// now. It composes the balance reader, the history scanner and the rule engine.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"overmind.cash/internal/empp"
	"overmind.cash/internal/ledger"
	"overmind.cash/internal/registry"
	"overmind.cash/internal/rules"
	"overmind.cash/internal/tuning"
)

var (
	ErrRateLimited    = errors.New("rate limited")
	ErrDislikePenalty = errors.New("too many disliked messages")
)

type State int

const (
	Denied State = iota
	Granted
)

func (s State) String() string {
	if s == Granted {
		return "granted"
	}
	return "denied"
}

// Decision is the outcome of one gate evaluation. On Granted, Transfers holds
// the rule engine's capped transfers; on Denied, Err names the cause.
type Decision struct {
	State     State
	Err       error
	Reason    string
	Balance   uint64
	Transfers []rules.Transfer
}

func (d Decision) Granted() bool { return d.State == Granted }

// Error returns nil when granted, else Err wrapped with Reason.
func (d Decision) Error() error {
	if d.State == Granted {
		return nil
	}
	if d.Err == nil {
		return errors.New(d.Reason)
	}
	if d.Reason == "" {
		return d.Err
	}
	return fmt.Errorf("%w: %s", d.Err, d.Reason)
}

func deny(err error, balance uint64, format string, args ...any) Decision {
	return Decision{State: Denied, Err: err, Balance: balance, Reason: fmt.Sprintf(format, args...)}
}

// Recency is satisfied by *ledger.Scanner.
type Recency interface {
	HasRecentAction(ctx context.Context, q ledger.Query) bool
}

// DislikeCounter is the slice of registry.Messages the respawn penalty needs.
type DislikeCounter interface {
	CountDislikedMessages(ctx context.Context, userID int64, since time.Time) (int, error)
}

// Treasury is the bot's own account.
type Treasury struct {
	Account rules.Account
	Script  string
}

type Config struct {
	TokenID  string
	Treasury Treasury
	Limits   tuning.RateLimits
	Now      func() time.Time
}

type Gate struct {
	utxos    ledger.UtxoSource
	recency  Recency
	dislikes DislikeCounter
	engine   *rules.Engine
	cfg      Config
	log      *log.Logger
}

func New(cfg Config, utxos ledger.UtxoSource, recency Recency, dislikes DislikeCounter, engine *rules.Engine, logger *log.Logger) *Gate {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Gate{utxos: utxos, recency: recency, dislikes: dislikes, engine: engine, cfg: cfg, log: logger}
}

// Respawn evaluates a respawn request: balance below threshold, dislike
// penalty not exceeded, no treasury-authored respawn to this principal within
// the window.
func (g *Gate) Respawn(ctx context.Context, p registry.Principal) (Decision, error) {
	bal, err := ledger.GetBalance(ctx, g.utxos, p.Address, g.cfg.TokenID)
	if err != nil {
		return Decision{}, err
	}
	eco := g.engine.Economy()
	if !g.engine.CanRespawn(bal) {
		return deny(rules.ErrNotEligible, bal, "balance %d HP, respawn requires less than %d", bal, eco.RespawnThreshold), nil
	}

	now := g.cfg.Now()
	if g.dislikes != nil {
		n, err := g.dislikes.CountDislikedMessages(ctx, p.UserID, now.Add(-g.cfg.Limits.DislikeWindow()))
		if err != nil {
			return Decision{}, fmt.Errorf("count disliked messages: %w", err)
		}
		if n > g.cfg.Limits.MaxDislikes {
			return deny(ErrDislikePenalty, bal, "dislikes on %d messages in the last %s, maximum allowed %d",
				n, g.cfg.Limits.DislikeWindow(), g.cfg.Limits.MaxDislikes), nil
		}
	}

	if g.recency.HasRecentAction(ctx, ledger.Query{
		Address:      p.Address,
		SenderScript: g.cfg.Treasury.Script,
		Code:         empp.CodeRespawn,
		Window:       g.cfg.Limits.RespawnWindow(),
		Now:          now,
	}) {
		g.logf("respawn denied for %d: recent respawn on chain", p.UserID)
		return deny(ErrRateLimited, bal, "already respawned within %s", g.cfg.Limits.RespawnWindow()), nil
	}

	treasury, err := g.treasury(ctx)
	if err != nil {
		return Decision{}, err
	}
	out, err := g.engine.Respawn(treasury, party(p, bal))
	if err != nil {
		return deny(err, bal, "respawn rule"), nil
	}
	return Decision{State: Granted, Balance: bal, Transfers: out}, nil
}

// Withdraw evaluates moving amount from p to destination: positive amount no
// larger than the balance, and no withdraw authored by p within the window.
func (g *Gate) Withdraw(ctx context.Context, p registry.Principal, destination string, amount uint64) (Decision, error) {
	if amount == 0 {
		return deny(rules.ErrInvalidAmount, 0, "amount must be positive"), nil
	}
	bal, err := ledger.GetBalance(ctx, g.utxos, p.Address, g.cfg.TokenID)
	if err != nil {
		return Decision{}, err
	}
	if amount > bal {
		return deny(rules.ErrInsufficientBalance, bal, "requested %d HP, balance %d HP", amount, bal), nil
	}
	if g.recency.HasRecentAction(ctx, ledger.Query{
		Address:      p.Address,
		SenderScript: p.Script,
		Code:         empp.CodeWithdraw,
		Window:       g.cfg.Limits.WithdrawWindow(),
		Now:          g.cfg.Now(),
	}) {
		g.logf("withdraw denied for %d: recent withdraw on chain", p.UserID)
		return deny(ErrRateLimited, bal, "already withdrew within %s", g.cfg.Limits.WithdrawWindow()), nil
	}
	out, err := g.engine.Withdraw(party(p, bal), destination, amount)
	if err != nil {
		return deny(err, bal, "withdraw rule"), nil
	}
	return Decision{State: Granted, Balance: bal, Transfers: out}, nil
}

func (g *Gate) treasury(ctx context.Context) (rules.Party, error) {
	t := g.cfg.Treasury.Account
	bal, err := ledger.GetBalance(ctx, g.utxos, t.Address, g.cfg.TokenID)
	if err != nil {
		return rules.Party{}, fmt.Errorf("treasury balance: %w", err)
	}
	return rules.Party{Account: t, Balance: bal, Registered: true}, nil
}

func (g *Gate) logf(format string, args ...any) {
	if g.log != nil {
		g.log.Printf(format, args...)
	}
}

func party(p registry.Principal, balance uint64) rules.Party {
	return rules.Party{
		Account:    rules.Account{UserID: p.UserID, Address: p.Address, Index: p.Index},
		Balance:    balance,
		Registered: true,
	}
}
