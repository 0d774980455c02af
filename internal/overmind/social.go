package overmind

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"overmind.cash/internal/empp"
	"overmind.cash/internal/protocol"
	"overmind.cash/internal/registry"
	"overmind.cash/internal/rules"
)

// HandleReaction processes newly added reactions of one user on one stored
// message. Removals, other chats, unknown messages, unregistered parties,
// self-reactions and repeats of an already processed (user, message, emoji)
// are skipped without touching the counters.
func (b *Bot) HandleReaction(ctx context.Context, m protocol.ReactionMsg) ([]protocol.Result, error) {
	b.names.Remember(m.UserID, m.Username)
	if m.ChatID != b.tu.ChatID {
		return []protocol.Result{skipped("reaction", "event from another chat")}, nil
	}
	added := m.Added()
	if len(added) == 0 {
		return []protocol.Result{skipped("reaction", "no reaction added")}, nil
	}
	subject, ok := tagSubject(m.MsgID)
	if !ok {
		b.logf("overmind: reaction on msg %d: id does not fit a tag subject", m.MsgID)
		return []protocol.Result{skipped("reaction", "message id out of range")}, nil
	}
	msg, ok, err := b.messages.GetMessage(ctx, m.MsgID)
	if err != nil {
		return nil, fmt.Errorf("load message %d: %w", m.MsgID, err)
	}
	if !ok {
		return []protocol.Result{skipped("reaction", "message not tracked")}, nil
	}
	reactor, author, err := b.pair(ctx, m.UserID, msg.UserID)
	if err != nil {
		if errors.Is(err, rules.ErrNotRegistered) || errors.Is(err, rules.ErrSelfAction) {
			return []protocol.Result{skippedErr("reaction", err)}, nil
		}
		return nil, err
	}

	at := time.Unix(m.Date, 0).UTC()
	if m.Date == 0 {
		at = b.now().UTC()
	}
	var out []protocol.Result
	for _, emoji := range added {
		dislike := rules.IsDislike(emoji)
		fresh, err := b.messages.RecordReaction(ctx, registry.Reaction{
			MsgID: m.MsgID, UserID: m.UserID, Emoji: emoji, Dislike: dislike, OccurredAt: at,
		})
		if err != nil {
			return out, fmt.Errorf("record reaction: %w", err)
		}
		var a empp.Action = empp.Like{MsgID: subject}
		if dislike {
			a = empp.Dislike{MsgID: subject}
		}
		if !fresh {
			out = append(out, skipped(actionName(a), "reaction already processed"))
			continue
		}
		out = append(out, b.social(ctx, rules.Event{Action: a}, reactor, author))
	}
	return out, nil
}

// HandleMessage stores a chat message once and, for replies, charges bottle
// and chili glyphs. A repeated message id is stored and charged only once.
func (b *Bot) HandleMessage(ctx context.Context, m protocol.MessageMsg) ([]protocol.Result, error) {
	b.names.Remember(m.UserID, m.Username)
	if m.ChatID != b.tu.ChatID {
		return []protocol.Result{skipped("message", "event from another chat")}, nil
	}
	sent := time.Unix(m.Date, 0).UTC()
	if m.Date == 0 {
		sent = b.now().UTC()
	}
	text := m.Content()
	saved, err := b.messages.SaveMessage(ctx, registry.Message{
		MsgID: m.MsgID, UserID: m.UserID, Username: m.Username, Text: text, SentAt: sent,
	})
	if err != nil {
		return nil, fmt.Errorf("save message %d: %w", m.MsgID, err)
	}
	if !saved {
		return []protocol.Result{skipped("message", "duplicate message")}, nil
	}
	out := []protocol.Result{{Action: "message", Status: protocol.StatusOK}}
	if m.ReplyTo == nil {
		return out, nil
	}
	bottles := rules.CountGlyph(text, rules.GlyphBottle)
	chilis := rules.CountGlyph(text, rules.GlyphChili)
	if bottles == 0 && chilis == 0 {
		return out, nil
	}

	authorID := m.ReplyTo.UserID
	if authorID == 0 {
		orig, ok, err := b.messages.GetMessage(ctx, m.ReplyTo.MsgID)
		if err != nil {
			return out, fmt.Errorf("load message %d: %w", m.ReplyTo.MsgID, err)
		}
		if ok {
			authorID = orig.UserID
		}
	}
	sender, author, err := b.pair(ctx, m.UserID, authorID)
	if err != nil {
		if errors.Is(err, rules.ErrNotRegistered) || errors.Is(err, rules.ErrSelfAction) {
			return append(out, skippedErr("reply", err)), nil
		}
		return out, err
	}
	reply, okReply := tagSubject(m.MsgID)
	orig, okOrig := tagSubject(m.ReplyTo.MsgID)
	if !okReply || !okOrig {
		b.logf("overmind: reply %d to %d: id does not fit a tag subject", m.MsgID, m.ReplyTo.MsgID)
		return append(out, skipped("reply", "message id out of range")), nil
	}
	if bottles > 0 {
		out = append(out, b.social(ctx, rules.Event{Action: empp.BottleReply{MsgID: reply}, OriginalMsgID: orig, Count: bottles}, sender, author))
	}
	if chilis > 0 {
		out = append(out, b.social(ctx, rules.Event{Action: empp.ChiliReply{MsgID: reply}, OriginalMsgID: orig, Count: chilis}, sender, author))
	}
	return out, nil
}

// tagSubject narrows a chat message id to the u32 an action tag carries.
func tagSubject(id int64) (uint32, bool) {
	if id < 0 || id > math.MaxUint32 {
		return 0, false
	}
	return uint32(id), true
}

func (b *Bot) pair(ctx context.Context, actorID, subjectID int64) (registry.Principal, registry.Principal, error) {
	actor, err := b.principal(ctx, actorID)
	if err != nil {
		return registry.Principal{}, registry.Principal{}, err
	}
	subject, err := b.principal(ctx, subjectID)
	if err != nil {
		return registry.Principal{}, registry.Principal{}, err
	}
	if actor.UserID == subject.UserID {
		return registry.Principal{}, registry.Principal{}, rules.ErrSelfAction
	}
	return actor, subject, nil
}

// social plans ev with fresh balances of actor and subject and executes it.
func (b *Bot) social(ctx context.Context, ev rules.Event, actor, subject registry.Principal) protocol.Result {
	name := actionName(ev.Action)
	var err error
	if ev.Actor, err = b.party(ctx, actor, true); err != nil {
		return failed(name, err)
	}
	if ev.Subject, err = b.party(ctx, subject, true); err != nil {
		return failed(name, err)
	}
	ev.Treasury = b.treasuryParty()
	out, err := b.engine.Plan(ev)
	if err != nil {
		b.logf("%s by %d skipped: %v", name, actor.UserID, err)
		return skippedErr(name, err)
	}
	txids, err := b.Execute(ctx, out)
	if err != nil {
		return protocol.Result{Action: name, Status: protocol.StatusError, Code: codeFor(err), Message: err.Error(), TxIDs: txids}
	}
	return protocol.Result{Action: name, Status: protocol.StatusOK, TxIDs: txids, Amount: sum(out)}
}
