package overmind

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"overmind.cash/internal/empp"
	"overmind.cash/internal/gate"
	"overmind.cash/internal/ledger"
	"overmind.cash/internal/protocol"
	"overmind.cash/internal/registry"
	"overmind.cash/internal/rules"
	"overmind.cash/internal/wallet"
	"overmind.cash/internal/withdraw"
)

// Handle decodes one validated wire event and runs it. It always returns an
// OUTCOME; Accepted is false only when the event itself could not be run.
func (b *Bot) Handle(ctx context.Context, msgType, eventID string, raw []byte) protocol.OutcomeMsg {
	var (
		results []protocol.Result
		err     error
	)
	switch msgType {
	case protocol.TypeReaction:
		var m protocol.ReactionMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return protocol.Reject(eventID, protocol.ErrProtoBadRequest, err.Error())
		}
		results, err = b.HandleReaction(ctx, m)
	case protocol.TypeMessage:
		var m protocol.MessageMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return protocol.Reject(eventID, protocol.ErrProtoBadRequest, err.Error())
		}
		results, err = b.HandleMessage(ctx, m)
	case protocol.TypeCommand:
		var m protocol.CommandMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return protocol.Reject(eventID, protocol.ErrProtoBadRequest, err.Error())
		}
		b.names.Remember(m.UserID, m.Username)
		results = []protocol.Result{b.Command(ctx, m)}
	default:
		return protocol.Reject(eventID, protocol.ErrProtoBadRequest, "unsupported message type "+msgType)
	}
	if err != nil {
		b.reportError(ctx, 0, strings.ToLower(msgType), err)
		out := protocol.Reject(eventID, codeFor(err), err.Error())
		if results != nil {
			out.Results = results
		}
		return out
	}
	if results == nil {
		results = []protocol.Result{}
	}
	return protocol.OutcomeMsg{
		Type:            protocol.TypeOutcome,
		ProtocolVersion: protocol.Version,
		EventID:         eventID,
		Accepted:        true,
		Results:         results,
	}
}

// Command runs one user command.
func (b *Bot) Command(ctx context.Context, m protocol.CommandMsg) protocol.Result {
	name := m.Command
	switch m.Command {
	case protocol.CmdRegister:
		reg, err := b.Register(ctx, m.UserID, m.Username)
		if err != nil {
			return failed(name, err)
		}
		r := protocol.Result{Action: name, Status: protocol.StatusOK, Address: reg.Principal.Address}
		if !reg.Created {
			r.Message = "already registered"
			return r
		}
		r.TxIDs, r.Amount = reg.Claim.TxIDs, reg.Claim.Atoms
		if reg.ClaimErr != nil {
			r.Code = codeFor(reg.ClaimErr)
			r.Message = "registered; claim: " + reg.ClaimErr.Error()
		}
		return r

	case protocol.CmdClaim:
		res, err := b.Claim(ctx, m.UserID)
		if err != nil {
			return failed(name, err)
		}
		return protocol.Result{Action: name, Status: protocol.StatusOK, TxIDs: res.TxIDs, Amount: res.Atoms}

	case protocol.CmdHealth:
		p, bal, err := b.Health(ctx, m.UserID)
		if err != nil {
			return failed(name, err)
		}
		return protocol.Result{Action: name, Status: protocol.StatusOK, Address: p.Address, Balance: &bal}

	case protocol.CmdRespawn:
		res, err := b.Respawn(ctx, m.UserID)
		if err != nil {
			r := failed(name, err)
			r.TxIDs = res.TxIDs
			return r
		}
		after := res.Before + res.Atoms
		return protocol.Result{Action: name, Status: protocol.StatusOK, TxIDs: res.TxIDs, Amount: res.Atoms, Balance: &after}

	case protocol.CmdWithdraw:
		dest, amount, err := withdrawArgs(m.Args)
		if err != nil {
			return failed(name, err)
		}
		p, err := b.Withdraw(ctx, m.UserID, dest, amount)
		if err != nil {
			return failed(name, err)
		}
		return protocol.Result{Action: name, Status: protocol.StatusOK, Message: "pending confirmation",
			Amount: p.Amount, Destination: p.Destination}

	case protocol.CmdConfirm:
		res, err := b.ConfirmWithdraw(ctx, m.UserID)
		if err != nil {
			r := failed(name, err)
			r.TxIDs = res.TxIDs
			return r
		}
		return protocol.Result{Action: name, Status: protocol.StatusOK, TxIDs: res.TxIDs,
			Amount: res.Pending.Amount, Destination: res.Pending.Destination}

	case protocol.CmdCancel:
		existed, err := b.CancelWithdraw(ctx, m.UserID)
		if err != nil {
			return failed(name, err)
		}
		r := protocol.Result{Action: name, Status: protocol.StatusOK, Message: "withdrawal cancelled"}
		if !existed {
			r.Message = "no pending withdrawal"
		}
		return r

	case protocol.CmdStats:
		s, err := b.Stats(ctx, m.ChatID)
		if err != nil {
			return failed(name, err)
		}
		return protocol.Result{Action: name, Status: protocol.StatusOK, Stats: wireStats(s)}
	}
	return protocol.Result{Action: name, Status: protocol.StatusError, Code: protocol.ErrBadRequest, Message: "unknown command"}
}

var (
	errWithdrawSyntax = errors.New("usage: withdraw <address> <amount>")
	errWithdrawAmount = errors.New("amount must be a positive whole number")
)

func withdrawArgs(args []string) (string, uint64, error) {
	if len(args) != 2 {
		return "", 0, errWithdrawSyntax
	}
	amount, err := strconv.ParseUint(strings.TrimSpace(args[1]), 10, 64)
	if err != nil || amount == 0 {
		return "", 0, errWithdrawAmount
	}
	return strings.TrimSpace(args[0]), amount, nil
}

func wireStats(s registry.Stats) *protocol.Stats {
	return &protocol.Stats{Users: s.Users, Messages: s.Messages, Likes: s.Likes, Dislikes: s.Dislikes, Reactions: s.Reactions}
}

func actionName(a empp.Action) string {
	return strings.ToLower(strings.ReplaceAll(a.Code().String(), "_", "-"))
}

func skipped(action, reason string) protocol.Result {
	return protocol.Result{Action: action, Status: protocol.StatusSkipped, Message: reason}
}

func skippedErr(action string, err error) protocol.Result {
	return protocol.Result{Action: action, Status: protocol.StatusSkipped, Code: codeFor(err), Message: err.Error()}
}

func failed(action string, err error) protocol.Result {
	return protocol.Result{Action: action, Status: statusFor(err), Code: codeFor(err), Message: err.Error()}
}

// statusFor separates user-visible denials from faults.
func statusFor(err error) string {
	switch {
	case errors.Is(err, rules.ErrAlreadyClaimed):
		return protocol.StatusSkipped
	case errors.Is(err, ledger.ErrUnavailable),
		errors.Is(err, wallet.ErrBroadcast):
		return protocol.StatusError
	}
	if codeFor(err) == protocol.ErrInternal {
		return protocol.StatusError
	}
	return protocol.StatusDenied
}

func codeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, gate.ErrRateLimited):
		return protocol.ErrRateLimit
	case errors.Is(err, gate.ErrDislikePenalty):
		return protocol.ErrPenalty
	case errors.Is(err, rules.ErrInsufficientBalance):
		return protocol.ErrNoResource
	case errors.Is(err, rules.ErrNotEligible):
		return protocol.ErrNotEligible
	case errors.Is(err, rules.ErrInvalidAmount),
		errors.Is(err, errWithdrawSyntax),
		errors.Is(err, errWithdrawAmount),
		errors.Is(err, ErrMissingUser):
		return protocol.ErrBadRequest
	case errors.Is(err, withdraw.ErrInvalidAddress),
		errors.Is(err, rules.ErrSelfAction):
		return protocol.ErrInvalidTarget
	case errors.Is(err, rules.ErrNotRegistered):
		return protocol.ErrNotRegistered
	case errors.Is(err, rules.ErrAlreadyClaimed),
		errors.Is(err, registry.ErrExists),
		errors.Is(err, registry.ErrIndexTaken):
		return protocol.ErrConflict
	case errors.Is(err, withdraw.ErrSessionExpired):
		return protocol.ErrSessionExpired
	case errors.Is(err, ErrNotMember):
		return protocol.ErrNotMember
	case errors.Is(err, ErrNotAdmin):
		return protocol.ErrNoPermission
	case errors.Is(err, ledger.ErrUnavailable):
		return protocol.ErrLedgerUnavailable
	case errors.Is(err, wallet.ErrBroadcast):
		return protocol.ErrBroadcast
	default:
		return protocol.ErrInternal
	}
}
