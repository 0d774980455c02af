// Package rules computes HP transfers for each economic action. Every rule is
// pure: it sees the parties' live balances and returns capped transfers, never
// more than the payer holds.
package rules

import (
	"errors"
	"fmt"

	"overmind.cash/internal/empp"
	"overmind.cash/internal/tuning"
)

var (
	ErrSelfAction          = errors.New("actor and subject are the same principal")
	ErrNotRegistered       = errors.New("principal is not registered")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotEligible         = errors.New("not eligible")
	ErrAlreadyClaimed      = errors.New("already claimed")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrNotTrigger          = errors.New("action is not an event trigger")
)

// Account identifies a ledger address. Index selects the signing key; it is
// zero for external destinations.
type Account struct {
	UserID  int64
	Address string
	Index   uint32
}

// Party is an account together with its live balance.
type Party struct {
	Account
	Balance    uint64
	Registered bool
}

type Transfer struct {
	From   Account
	To     Account
	Atoms  uint64
	Action empp.Action
}

// Event is the input of Plan. Action names the trigger; its message id is the
// message the trigger happened on (the reply for reply-based triggers).
type Event struct {
	Action   empp.Action
	Actor    Party
	Subject  Party
	Treasury Party

	// OriginalMsgID is the replied-to message for reply triggers.
	OriginalMsgID uint32
	// Count is the glyph multiplicity for reply triggers.
	Count int

	// Withdraw only.
	Amount      uint64
	Destination string

	// Claim only: the ledger already shows a receipt of the token.
	AlreadyClaimed bool
}

type Engine struct {
	eco tuning.Economy
}

func New(eco tuning.Economy) *Engine {
	if eco.MaxGlyphs <= 0 {
		eco.MaxGlyphs = 5
	}
	return &Engine{eco: eco}
}

func (e *Engine) Economy() tuning.Economy { return e.eco }

// Plan dispatches ev to the rule of its action.
func (e *Engine) Plan(ev Event) ([]Transfer, error) {
	switch a := ev.Action.(type) {
	case empp.Claim:
		return e.Claim(ev.Treasury, ev.Actor, ev.AlreadyClaimed)
	case empp.Like:
		return e.Like(ev.Actor, ev.Subject, a.MsgID)
	case empp.Dislike:
		return e.Dislike(ev.Actor, ev.Subject, ev.Treasury, a.MsgID)
	case empp.Respawn:
		return e.Respawn(ev.Treasury, ev.Actor)
	case empp.Withdraw:
		return e.Withdraw(ev.Actor, ev.Destination, ev.Amount)
	case empp.BottleReply:
		return e.BottleReply(ev.Actor, ev.Subject, ev.Treasury, a.MsgID, ev.OriginalMsgID, ev.Count)
	case empp.ChiliReply:
		return e.ChiliReply(ev.Actor, ev.Subject, a.MsgID, ev.Count)
	case empp.Disliked, empp.BottleReplied:
		// Subject-side halves of dislike and bottle-reply.
		return nil, fmt.Errorf("%w: %s", ErrNotTrigger, a.Code())
	case nil:
		return nil, fmt.Errorf("%w: nil action", ErrNotTrigger)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotTrigger, a.Code())
	}
}

// Claim pays the registration amount once.
func (e *Engine) Claim(treasury, user Party, alreadyClaimed bool) ([]Transfer, error) {
	if !user.Registered {
		return nil, ErrNotRegistered
	}
	if alreadyClaimed {
		return nil, ErrAlreadyClaimed
	}
	amt := capAt(e.eco.ClaimAtoms, treasury.Balance)
	if amt == 0 {
		return nil, fmt.Errorf("%w: treasury", ErrInsufficientBalance)
	}
	return []Transfer{{From: treasury.Account, To: user.Account, Atoms: amt, Action: empp.Claim{}}}, nil
}

// Like moves a fixed small amount from reactor to author.
func (e *Engine) Like(reactor, author Party, msgID uint32) ([]Transfer, error) {
	if err := pair(reactor, author); err != nil {
		return nil, err
	}
	amt := capAt(e.eco.LikeAtoms, reactor.Balance)
	if amt == 0 {
		return nil, fmt.Errorf("%w: reactor", ErrInsufficientBalance)
	}
	return []Transfer{{From: reactor.Account, To: author.Account, Atoms: amt, Action: empp.Like{MsgID: msgID}}}, nil
}

// Dislike charges both the reactor and the author, each to the treasury and
// each capped independently.
func (e *Engine) Dislike(reactor, author, treasury Party, msgID uint32) ([]Transfer, error) {
	if err := pair(reactor, author); err != nil {
		return nil, err
	}
	var out []Transfer
	if amt := capAt(e.eco.DislikeReactorAtoms, reactor.Balance); amt > 0 {
		out = append(out, Transfer{From: reactor.Account, To: treasury.Account, Atoms: amt, Action: empp.Dislike{MsgID: msgID}})
	}
	if amt := capAt(e.eco.DislikeAuthorAtoms, author.Balance); amt > 0 {
		out = append(out, Transfer{From: author.Account, To: treasury.Account, Atoms: amt, Action: empp.Disliked{MsgID: msgID}})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: reactor and author", ErrInsufficientBalance)
	}
	return out, nil
}

// Respawn tops the user up to the respawn target when below the threshold.
func (e *Engine) Respawn(treasury, user Party) ([]Transfer, error) {
	if !user.Registered {
		return nil, ErrNotRegistered
	}
	if !e.CanRespawn(user.Balance) {
		return nil, fmt.Errorf("%w: balance %d >= %d", ErrNotEligible, user.Balance, e.eco.RespawnThreshold)
	}
	amt := capAt(e.eco.RespawnTarget-user.Balance, treasury.Balance)
	if amt == 0 {
		return nil, fmt.Errorf("%w: treasury", ErrInsufficientBalance)
	}
	return []Transfer{{From: treasury.Account, To: user.Account, Atoms: amt, Action: empp.Respawn{}}}, nil
}

// CanRespawn is the balance half of respawn eligibility.
func (e *Engine) CanRespawn(balance uint64) bool {
	return balance < e.eco.RespawnThreshold && e.eco.RespawnTarget > balance
}

// Withdraw moves a user-chosen amount to an external destination.
func (e *Engine) Withdraw(user Party, destination string, amount uint64) ([]Transfer, error) {
	if !user.Registered {
		return nil, ErrNotRegistered
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if amount > user.Balance {
		return nil, fmt.Errorf("%w: %d > %d", ErrInsufficientBalance, amount, user.Balance)
	}
	return []Transfer{{From: user.Account, To: Account{Address: destination}, Atoms: amount, Action: empp.Withdraw{}}}, nil
}

// BottleReply charges the original author and the reply sender per bottle.
// The multiplier is capped by glyph count, then by what the sender can pay;
// the author's side is further capped at the author's own balance.
func (e *Engine) BottleReply(sender, author, treasury Party, replyMsgID, originalMsgID uint32, count int) ([]Transfer, error) {
	if err := pair(sender, author); err != nil {
		return nil, err
	}
	n := e.multiplier(count, sender.Balance, e.eco.BottleSenderRate)
	if n == 0 {
		return nil, fmt.Errorf("%w: reply sender", ErrInsufficientBalance)
	}
	var out []Transfer
	if amt := capAt(n*e.eco.BottleAuthorRate, author.Balance); amt > 0 {
		out = append(out, Transfer{From: author.Account, To: treasury.Account, Atoms: amt, Action: empp.BottleReplied{MsgID: originalMsgID}})
	}
	out = append(out, Transfer{From: sender.Account, To: treasury.Account, Atoms: n * e.eco.BottleSenderRate, Action: empp.BottleReply{MsgID: replyMsgID}})
	return out, nil
}

// ChiliReply moves chili HP from the reply sender to the original author.
func (e *Engine) ChiliReply(sender, author Party, replyMsgID uint32, count int) ([]Transfer, error) {
	if err := pair(sender, author); err != nil {
		return nil, err
	}
	n := e.multiplier(count, sender.Balance, e.eco.ChiliRate)
	if n == 0 {
		return nil, fmt.Errorf("%w: reply sender", ErrInsufficientBalance)
	}
	return []Transfer{{From: sender.Account, To: author.Account, Atoms: n * e.eco.ChiliRate, Action: empp.ChiliReply{MsgID: replyMsgID}}}, nil
}

func (e *Engine) multiplier(count int, balance, rate uint64) uint64 {
	if count <= 0 || rate == 0 {
		return 0
	}
	if count > e.eco.MaxGlyphs {
		count = e.eco.MaxGlyphs
	}
	n := uint64(count)
	if affordable := balance / rate; affordable < n {
		n = affordable
	}
	return n
}

func pair(actor, subject Party) error {
	if !actor.Registered {
		return fmt.Errorf("%w: actor %d", ErrNotRegistered, actor.UserID)
	}
	if !subject.Registered {
		return fmt.Errorf("%w: subject %d", ErrNotRegistered, subject.UserID)
	}
	if actor.UserID == subject.UserID {
		return ErrSelfAction
	}
	return nil
}

func capAt(amount, balance uint64) uint64 {
	if amount > balance {
		return balance
	}
	return amount
}
