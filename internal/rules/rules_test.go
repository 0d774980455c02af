package rules

import (
	"errors"
	"testing"

	"overmind.cash/internal/empp"
	"overmind.cash/internal/tuning"
)

func engine() *Engine { return New(tuning.Defaults().Economy) }

func party(id int64, bal uint64) Party {
	return Party{Account: Account{UserID: id, Address: "addr", Index: uint32(id)}, Balance: bal, Registered: true}
}

var treasury = Party{Account: Account{UserID: 0, Address: "bot"}, Balance: 1_000_000, Registered: true}

func TestClaim(t *testing.T) {
	e := engine()
	out, err := e.Claim(treasury, party(1, 0), false)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(out) != 1 || out[0].Atoms != 100 || out[0].Action != (empp.Claim{}) {
		t.Fatalf("unexpected claim transfers: %+v", out)
	}
	if _, err := e.Claim(treasury, party(1, 0), true); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
	poor := treasury
	poor.Balance = 40
	out, err = e.Claim(poor, party(1, 0), false)
	if err != nil || out[0].Atoms != 40 {
		t.Fatalf("expected claim capped at treasury balance, got %+v %v", out, err)
	}
}

func TestLike(t *testing.T) {
	e := engine()
	out, err := e.Like(party(1, 10), party(2, 0), 77)
	if err != nil {
		t.Fatalf("Like: %v", err)
	}
	if len(out) != 1 || out[0].Atoms != 1 || out[0].From.UserID != 1 || out[0].To.UserID != 2 {
		t.Fatalf("unexpected like transfer: %+v", out)
	}
	if out[0].Action != (empp.Like{MsgID: 77}) {
		t.Fatalf("unexpected like tag: %#v", out[0].Action)
	}
	if _, err := e.Like(party(1, 10), party(1, 10), 77); !errors.Is(err, ErrSelfAction) {
		t.Fatalf("expected ErrSelfAction, got %v", err)
	}
	unreg := party(2, 0)
	unreg.Registered = false
	if _, err := e.Like(party(1, 10), unreg, 77); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
	if _, err := e.Like(party(1, 0), party(2, 0), 77); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestDislike(t *testing.T) {
	e := engine()
	out, err := e.Dislike(party(1, 10), party(2, 10), treasury, 5)
	if err != nil {
		t.Fatalf("Dislike: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected two transfers, got %+v", out)
	}
	if out[0].Atoms != 1 || out[0].From.UserID != 1 || out[0].Action != (empp.Dislike{MsgID: 5}) {
		t.Fatalf("unexpected reactor side: %+v", out[0])
	}
	if out[1].Atoms != 2 || out[1].From.UserID != 2 || out[1].Action != (empp.Disliked{MsgID: 5}) {
		t.Fatalf("unexpected author side: %+v", out[1])
	}

	// Author holds 1: author side capped, reactor side unchanged.
	out, err = e.Dislike(party(1, 10), party(2, 1), treasury, 5)
	if err != nil || len(out) != 2 || out[1].Atoms != 1 {
		t.Fatalf("expected capped author side, got %+v %v", out, err)
	}

	// Reactor empty: only the author side remains.
	out, err = e.Dislike(party(1, 0), party(2, 10), treasury, 5)
	if err != nil || len(out) != 1 || out[0].From.UserID != 2 {
		t.Fatalf("expected author-only transfer, got %+v %v", out, err)
	}

	if _, err := e.Dislike(party(1, 0), party(2, 0), treasury, 5); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := e.Dislike(party(3, 9), party(3, 9), treasury, 5); !errors.Is(err, ErrSelfAction) {
		t.Fatalf("expected ErrSelfAction, got %v", err)
	}
}

func TestRespawn(t *testing.T) {
	e := engine()
	out, err := e.Respawn(treasury, party(1, 50))
	if err != nil {
		t.Fatalf("Respawn: %v", err)
	}
	if out[0].Atoms != 50 || out[0].To.UserID != 1 || out[0].Action != (empp.Respawn{}) {
		t.Fatalf("unexpected respawn transfer: %+v", out)
	}
	for _, bal := range []uint64{75, 80, 100, 500} {
		if _, err := e.Respawn(treasury, party(1, bal)); !errors.Is(err, ErrNotEligible) {
			t.Fatalf("balance %d: expected ErrNotEligible, got %v", bal, err)
		}
	}
	out, err = e.Respawn(treasury, party(1, 0))
	if err != nil || out[0].Atoms != 100 {
		t.Fatalf("expected full respawn from 0, got %+v %v", out, err)
	}
}

func TestWithdraw(t *testing.T) {
	e := engine()
	out, err := e.Withdraw(party(1, 100), "ecash:dest", 100)
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if out[0].Atoms != 100 || out[0].To.Address != "ecash:dest" || out[0].Action != (empp.Withdraw{}) {
		t.Fatalf("unexpected withdraw transfer: %+v", out)
	}
	if _, err := e.Withdraw(party(1, 100), "ecash:dest", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := e.Withdraw(party(1, 100), "ecash:dest", 101); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestBottleReply_OneBottle(t *testing.T) {
	e := engine()
	out, err := e.BottleReply(party(1, 1000), party(2, 1000), treasury, 300, 200, 1)
	if err != nil {
		t.Fatalf("BottleReply: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected two transfers, got %+v", out)
	}
	if out[0].From.UserID != 2 || out[0].Atoms != 10 || out[0].Action != (empp.BottleReplied{MsgID: 200}) {
		t.Fatalf("unexpected author side: %+v", out[0])
	}
	if out[1].From.UserID != 1 || out[1].Atoms != 3 || out[1].Action != (empp.BottleReply{MsgID: 300}) {
		t.Fatalf("unexpected sender side: %+v", out[1])
	}
}

func TestBottleReply_CapsAtFiveGlyphs(t *testing.T) {
	e := engine()
	out, err := e.BottleReply(party(1, 1000), party(2, 1000), treasury, 300, 200, 9)
	if err != nil {
		t.Fatalf("BottleReply: %v", err)
	}
	if out[0].Atoms != 50 || out[1].Atoms != 15 {
		t.Fatalf("expected 50/15 for capped count, got %d/%d", out[0].Atoms, out[1].Atoms)
	}
}

func TestBottleReply_SenderBalanceCapsMultiplier(t *testing.T) {
	e := engine()
	// Sender affords 2 of 5 bottles (7 / 3 = 2); author holds less than 2*10.
	out, err := e.BottleReply(party(1, 7), party(2, 15), treasury, 300, 200, 5)
	if err != nil {
		t.Fatalf("BottleReply: %v", err)
	}
	if out[1].Atoms != 6 {
		t.Fatalf("expected sender side 2*3=6, got %d", out[1].Atoms)
	}
	if out[0].Atoms != 15 {
		t.Fatalf("expected author side capped at full balance 15, got %d", out[0].Atoms)
	}

	out, err = e.BottleReply(party(1, 7), party(2, 1000), treasury, 300, 200, 5)
	if err != nil || out[0].Atoms != 20 {
		t.Fatalf("expected author side 2*10=20, got %+v %v", out, err)
	}
}

func TestBottleReply_AuthorShortOfOneBottle(t *testing.T) {
	e := engine()
	out, err := e.BottleReply(party(1, 1000), party(2, 9), treasury, 300, 200, 1)
	if err != nil {
		t.Fatalf("BottleReply: %v", err)
	}
	if out[0].Atoms != 9 || out[1].Atoms != 3 {
		t.Fatalf("expected 9/3, got %d/%d", out[0].Atoms, out[1].Atoms)
	}
}

func TestBottleReply_SkipsWithoutSenderHP(t *testing.T) {
	e := engine()
	if _, err := e.BottleReply(party(1, 2), party(2, 1000), treasury, 300, 200, 1); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	// Empty author: only the sender pays.
	out, err := e.BottleReply(party(1, 1000), party(2, 0), treasury, 300, 200, 1)
	if err != nil || len(out) != 1 || out[0].From.UserID != 1 {
		t.Fatalf("expected sender-only transfer, got %+v %v", out, err)
	}
}

func TestChiliReply(t *testing.T) {
	e := engine()
	out, err := e.ChiliReply(party(1, 3), party(2, 0), 300, 5)
	if err != nil {
		t.Fatalf("ChiliReply: %v", err)
	}
	if out[0].Atoms != 3 || out[0].To.UserID != 2 || out[0].Action != (empp.ChiliReply{MsgID: 300}) {
		t.Fatalf("unexpected chili transfer: %+v", out)
	}
	if _, err := e.ChiliReply(party(1, 0), party(2, 0), 300, 5); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestPlan_Dispatch(t *testing.T) {
	e := engine()
	out, err := e.Plan(Event{Action: empp.Like{MsgID: 1}, Actor: party(1, 5), Subject: party(2, 5)})
	if err != nil || len(out) != 1 {
		t.Fatalf("Plan(like): %+v %v", out, err)
	}
	out, err = e.Plan(Event{Action: empp.BottleReply{MsgID: 9}, OriginalMsgID: 8, Count: 2, Actor: party(1, 100), Subject: party(2, 100), Treasury: treasury})
	if err != nil || len(out) != 2 || out[0].Action != (empp.BottleReplied{MsgID: 8}) {
		t.Fatalf("Plan(bottle): %+v %v", out, err)
	}
	if _, err := e.Plan(Event{Action: empp.Disliked{MsgID: 1}}); !errors.Is(err, ErrNotTrigger) {
		t.Fatalf("expected ErrNotTrigger, got %v", err)
	}
	if _, err := e.Plan(Event{}); !errors.Is(err, ErrNotTrigger) {
		t.Fatalf("expected ErrNotTrigger for nil action, got %v", err)
	}
}

func TestGlyphs(t *testing.T) {
	if got := CountGlyph("🍼🍼 nice 🍼", GlyphBottle); got != 3 {
		t.Fatalf("expected 3 bottles, got %d", got)
	}
	if got := CountGlyph("🌶️🌶", GlyphChili); got != 2 {
		t.Fatalf("expected 2 chilis, got %d", got)
	}
	if !IsDislike("👎") || IsDislike("👍") || IsDislike("123456789") {
		t.Fatalf("unexpected IsDislike results")
	}
}
