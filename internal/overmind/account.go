package overmind

import (
	"context"
	"fmt"

	"overmind.cash/internal/empp"
	"overmind.cash/internal/ledger"
	"overmind.cash/internal/registry"
	"overmind.cash/internal/rules"
)

// ClaimResult reports a paid claim.
type ClaimResult struct {
	Atoms uint64
	TxIDs []string
}

type Registration struct {
	Principal registry.Principal
	// Created is false when the user was already registered; no claim runs then.
	Created bool
	Claim   ClaimResult
	// ClaimErr is set when the claim after a fresh registration failed or was
	// skipped. The registration itself stands.
	ClaimErr error
}

// Register creates a principal with the next registration index and its
// derived account, then pays the claim.
func (b *Bot) Register(ctx context.Context, userID int64, username string) (Registration, error) {
	if userID == 0 {
		return Registration{}, ErrMissingUser
	}
	b.names.Remember(userID, username)
	if p, ok, err := b.users.GetUser(ctx, userID); err != nil {
		return Registration{}, fmt.Errorf("load user %d: %w", userID, err)
	} else if ok {
		return Registration{Principal: p}, nil
	}
	if b.members != nil {
		ok, err := b.members.IsMember(ctx, userID)
		if err != nil {
			return Registration{}, fmt.Errorf("%w: membership check: %v", ErrNotMember, err)
		}
		if !ok {
			return Registration{}, ErrNotMember
		}
	}

	p, err := b.create(ctx, userID, username)
	if err != nil {
		b.reportError(ctx, userID, "register", err)
		return Registration{}, err
	}
	reg := Registration{Principal: p, Created: true}
	reg.Claim, reg.ClaimErr = b.claim(ctx, p)
	return reg, nil
}

func (b *Bot) create(ctx context.Context, userID int64, username string) (registry.Principal, error) {
	b.regMu.Lock()
	defer b.regMu.Unlock()

	max, err := b.users.MaxIndex(ctx)
	if err != nil {
		return registry.Principal{}, fmt.Errorf("max index: %w", err)
	}
	idx := max + 1
	if idx == b.cfg.Treasury.Index {
		idx++
	}
	acct, err := b.keys.Derive(ctx, idx)
	if err != nil {
		return registry.Principal{}, fmt.Errorf("derive index %d: %w", idx, err)
	}
	p := registry.Principal{
		UserID:       userID,
		Username:     username,
		Address:      acct.Address,
		Script:       acct.Script,
		Index:        idx,
		RegisteredAt: b.now().UTC(),
	}
	if err := b.users.CreateUser(ctx, p); err != nil {
		return registry.Principal{}, fmt.Errorf("create user %d: %w", userID, err)
	}
	b.logf("registered user %d index %d address %s", userID, idx, p.Address)
	return p, nil
}

// Claim pays the registration amount once per principal. A principal whose
// address already shows a receipt of the token gets rules.ErrAlreadyClaimed
// and no transfer.
func (b *Bot) Claim(ctx context.Context, userID int64) (ClaimResult, error) {
	p, err := b.principal(ctx, userID)
	if err != nil {
		return ClaimResult{}, err
	}
	return b.claim(ctx, p)
}

func (b *Bot) claim(ctx context.Context, p registry.Principal) (ClaimResult, error) {
	received, err := ledger.HasReceivedToken(ctx, b.ledger, p.Address, p.Script, b.tu.TokenID)
	if err != nil {
		return ClaimResult{}, err
	}
	treasury, err := b.fundedTreasury(ctx)
	if err != nil {
		return ClaimResult{}, err
	}
	user, err := b.party(ctx, p, true)
	if err != nil {
		return ClaimResult{}, err
	}
	out, err := b.engine.Plan(rules.Event{Action: empp.Claim{}, Treasury: treasury, Actor: user, AlreadyClaimed: received})
	if err != nil {
		b.logf("claim for %d skipped: %v", p.UserID, err)
		return ClaimResult{}, err
	}
	txids, err := b.Execute(ctx, out)
	if err != nil {
		return ClaimResult{TxIDs: txids}, err
	}
	return ClaimResult{Atoms: sum(out), TxIDs: txids}, nil
}

// Health returns the principal and its live balance.
func (b *Bot) Health(ctx context.Context, userID int64) (registry.Principal, uint64, error) {
	p, err := b.principal(ctx, userID)
	if err != nil {
		return registry.Principal{}, 0, err
	}
	bal, err := ledger.GetBalance(ctx, b.ledger, p.Address, b.tu.TokenID)
	if err != nil {
		return p, 0, err
	}
	return p, bal, nil
}

// Stats is only served to the admin chat.
func (b *Bot) Stats(ctx context.Context, chatID int64) (registry.Stats, error) {
	if chatID != b.tu.AdminChat {
		return registry.Stats{}, ErrNotAdmin
	}
	return b.messages.Stats(ctx)
}

func sum(ts []rules.Transfer) uint64 {
	var n uint64
	for _, t := range ts {
		n += t.Atoms
	}
	return n
}
