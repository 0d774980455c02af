// Package overmind turns chat events and commands into HP transfers. It owns
// the gate, the rule engine and the withdrawal machine and executes planned
// transfers through the wallet collaborator.
package overmind

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"overmind.cash/internal/gate"
	"overmind.cash/internal/ledger"
	"overmind.cash/internal/registry"
	"overmind.cash/internal/rules"
	"overmind.cash/internal/tuning"
	"overmind.cash/internal/wallet"
	"overmind.cash/internal/withdraw"
)

var (
	ErrNotMember   = errors.New("not a member of the monitored chat")
	ErrNotAdmin    = errors.New("command is restricted to the admin chat")
	ErrMissingUser = errors.New("missing user id")
)

// Membership reports whether a user belongs to the monitored chat.
type Membership interface {
	IsMember(ctx context.Context, userID int64) (bool, error)
}

type Config struct {
	Tuning   tuning.Tuning
	Treasury wallet.Account
}

type Deps struct {
	Ledger   ledger.Client
	Wallet   wallet.Sender
	Keys     wallet.Keys
	Users    registry.Users
	Messages registry.Messages

	// Optional.
	Pending  withdraw.Store
	Members  Membership
	Notifier Notifier
	Audit    AuditSink
	Log      *log.Logger
	Now      func() time.Time
}

type Bot struct {
	cfg Config
	tu  tuning.Tuning

	ledger   ledger.Client
	wallet   wallet.Sender
	keys     wallet.Keys
	users    registry.Users
	messages registry.Messages
	members  Membership
	notifier Notifier
	audit    AuditSink
	log      *log.Logger
	now      func() time.Time

	engine   *rules.Engine
	gate     *gate.Gate
	withdraw *withdraw.Machine
	names    *Usernames

	// regMu serialises index assignment.
	regMu sync.Mutex
}

func New(cfg Config, d Deps) (*Bot, error) {
	if d.Ledger == nil || d.Wallet == nil || d.Keys == nil || d.Users == nil || d.Messages == nil {
		return nil, fmt.Errorf("overmind: ledger, wallet, keys, users and messages are required")
	}
	if cfg.Treasury.Address == "" || cfg.Treasury.Script == "" {
		return nil, fmt.Errorf("overmind: treasury account is required")
	}
	tu := cfg.Tuning
	tu.Normalize()
	if err := tu.Validate(); err != nil {
		return nil, fmt.Errorf("overmind: %w", err)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Pending == nil {
		d.Pending = withdraw.NewMemoryStore()
	}
	b := &Bot{
		cfg:      cfg,
		tu:       tu,
		ledger:   d.Ledger,
		wallet:   d.Wallet,
		keys:     d.Keys,
		users:    d.Users,
		messages: d.Messages,
		members:  d.Members,
		notifier: d.Notifier,
		audit:    d.Audit,
		log:      d.Log,
		now:      d.Now,
		engine:   rules.New(tu.Economy),
		names:    NewUsernames(),
	}
	if b.notifier == nil {
		b.notifier = NewLogNotifier(d.Log)
	}

	scanner := ledger.NewScanner(d.Ledger, d.Log)
	scanner.SetPageSize(tu.Ledger.HistoryPageSize)
	b.gate = gate.New(gate.Config{
		TokenID:  tu.TokenID,
		Treasury: gate.Treasury{Account: b.treasuryAccount(), Script: cfg.Treasury.Script},
		Limits:   tu.RateLimits,
		Now:      d.Now,
	}, d.Ledger, scanner, d.Messages, b.engine, d.Log)
	b.withdraw = withdraw.New(d.Pending, b.gate, b, d.Log, withdraw.WithClock(d.Now))
	return b, nil
}

func (b *Bot) Usernames() *Usernames { return b.names }

func (b *Bot) treasuryAccount() rules.Account {
	return rules.Account{Address: b.cfg.Treasury.Address, Index: b.cfg.Treasury.Index}
}

// treasuryParty carries no balance; it is only a destination.
func (b *Bot) treasuryParty() rules.Party {
	return rules.Party{Account: b.treasuryAccount(), Registered: true}
}

func (b *Bot) fundedTreasury(ctx context.Context) (rules.Party, error) {
	t := b.treasuryParty()
	bal, err := ledger.GetBalance(ctx, b.ledger, t.Address, b.tu.TokenID)
	if err != nil {
		return rules.Party{}, fmt.Errorf("treasury balance: %w", err)
	}
	t.Balance = bal
	return t, nil
}

// principal loads a registered user or fails with rules.ErrNotRegistered.
func (b *Bot) principal(ctx context.Context, userID int64) (registry.Principal, error) {
	if userID == 0 {
		return registry.Principal{}, ErrMissingUser
	}
	p, ok, err := b.users.GetUser(ctx, userID)
	if err != nil {
		return registry.Principal{}, fmt.Errorf("load user %d: %w", userID, err)
	}
	if !ok {
		return registry.Principal{}, fmt.Errorf("%w: user %d", rules.ErrNotRegistered, userID)
	}
	if p.Username != "" {
		b.names.Remember(p.UserID, p.Username)
	}
	return p, nil
}

// party pairs a principal with its live balance. A missing principal yields
// an unregistered party.
func (b *Bot) party(ctx context.Context, p registry.Principal, registered bool) (rules.Party, error) {
	pt := rules.Party{
		Account:    rules.Account{UserID: p.UserID, Address: p.Address, Index: p.Index},
		Registered: registered,
	}
	if !registered {
		return pt, nil
	}
	bal, err := ledger.GetBalance(ctx, b.ledger, p.Address, b.tu.TokenID)
	if err != nil {
		return rules.Party{}, err
	}
	pt.Balance = bal
	return pt, nil
}

func (b *Bot) logf(format string, args ...any) {
	if b.log != nil {
		b.log.Printf(format, args...)
	}
}
