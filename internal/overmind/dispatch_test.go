package overmind

import (
	"context"
	"testing"

	"overmind.cash/internal/protocol"
)

func (f *fixture) command(t *testing.T, raw string) protocol.OutcomeMsg {
	t.Helper()
	out := f.bot.Handle(context.Background(), protocol.TypeCommand, "ev-1", []byte(raw))
	if out.Type != protocol.TypeOutcome || out.EventID != "ev-1" {
		t.Fatalf("unexpected outcome envelope: %+v", out)
	}
	return out
}

func TestHandle_Commands(t *testing.T) {
	f := newFixture(t)

	out := f.command(t, `{"type":"COMMAND","protocol_version":"1.0","user_id":1,"username":"alice","command":"register"}`)
	if !out.Accepted || len(out.Results) != 1 || out.Results[0].Status != protocol.StatusOK || out.Results[0].Amount != 100 {
		t.Fatalf("register: %+v", out)
	}

	out = f.command(t, `{"type":"COMMAND","protocol_version":"1.0","user_id":1,"command":"health"}`)
	if r := out.Results[0]; r.Balance == nil || *r.Balance != 100 {
		t.Fatalf("health: %+v", r)
	}

	out = f.command(t, `{"type":"COMMAND","protocol_version":"1.0","user_id":1,"command":"claim"}`)
	if r := out.Results[0]; r.Status != protocol.StatusSkipped || r.Code != protocol.ErrConflict {
		t.Fatalf("second claim: %+v", r)
	}

	out = f.command(t, `{"type":"COMMAND","protocol_version":"1.0","user_id":1,"command":"respawn"}`)
	if r := out.Results[0]; r.Status != protocol.StatusDenied || r.Code != protocol.ErrNotEligible {
		t.Fatalf("respawn: %+v", r)
	}

	out = f.command(t, `{"type":"COMMAND","protocol_version":"1.0","user_id":1,"command":"withdraw","args":["`+dest+`"]}`)
	if r := out.Results[0]; r.Code != protocol.ErrBadRequest {
		t.Fatalf("withdraw syntax: %+v", r)
	}
	for _, amt := range []string{"abc", "0", "-5"} {
		out = f.command(t, `{"type":"COMMAND","protocol_version":"1.0","user_id":1,"command":"withdraw","args":["`+dest+`","`+amt+`"]}`)
		if r := out.Results[0]; r.Code != protocol.ErrBadRequest {
			t.Fatalf("withdraw amount %q: %+v", amt, r)
		}
	}
	out = f.command(t, `{"type":"COMMAND","protocol_version":"1.0","user_id":1,"command":"withdraw","args":["`+dest+`","25"]}`)
	if r := out.Results[0]; r.Status != protocol.StatusOK || r.Amount != 25 || r.Destination != dest {
		t.Fatalf("withdraw: %+v", r)
	}
	out = f.command(t, `{"type":"COMMAND","protocol_version":"1.0","user_id":1,"command":"confirm"}`)
	if r := out.Results[0]; r.Status != protocol.StatusOK || len(r.TxIDs) != 1 {
		t.Fatalf("confirm: %+v", r)
	}
	out = f.command(t, `{"type":"COMMAND","protocol_version":"1.0","user_id":1,"command":"confirm"}`)
	if r := out.Results[0]; r.Code != protocol.ErrSessionExpired {
		t.Fatalf("confirm again: %+v", r)
	}

	out = f.command(t, `{"type":"COMMAND","protocol_version":"1.0","chat_id":-1001234567890,"user_id":1,"command":"stats"}`)
	if r := out.Results[0]; r.Code != protocol.ErrNoPermission {
		t.Fatalf("stats from non-admin chat: %+v", r)
	}
	out = f.command(t, `{"type":"COMMAND","protocol_version":"1.0","chat_id":-1009999999999,"user_id":1,"command":"stats"}`)
	if r := out.Results[0]; r.Stats == nil || r.Stats.Users != 1 {
		t.Fatalf("stats: %+v", r)
	}
}

func TestHandle_OutcomesMatchSchema(t *testing.T) {
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	f := newFixture(t)
	outs := []protocol.OutcomeMsg{
		f.command(t, `{"type":"COMMAND","protocol_version":"1.0","user_id":1,"command":"register"}`),
		f.command(t, `{"type":"COMMAND","protocol_version":"1.0","user_id":2,"command":"health"}`),
		f.bot.Handle(context.Background(), protocol.TypeReaction, "ev-2", []byte(`{"type":"REACTION","chat_id":1,"msg_id":1,"user_id":1,"new_reaction":["👍"]}`)),
		f.bot.Handle(context.Background(), "HELLO", "ev-3", []byte(`{}`)),
		f.bot.Handle(context.Background(), protocol.TypeMessage, "ev-4", []byte(`not json`)),
	}
	for i, o := range outs {
		if err := v.ValidateValue(protocol.TypeOutcome, o); err != nil {
			t.Fatalf("outcome %d: %v (%+v)", i, err, o)
		}
	}
	if outs[3].Accepted || outs[4].Accepted {
		t.Fatalf("unsupported or malformed events must not be accepted")
	}
}
