package protocol_test

import (
	"reflect"
	"testing"

	"overmind.cash/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	good := map[string]string{
		protocol.TypeHello: `{"type":"HELLO","protocol_version":"1.0","client_name":"tg-bridge","auth":{"token":"x"}}`,
		protocol.TypeReaction: `{
		  "type":"REACTION","protocol_version":"1.0","chat_id":-1001234567890,
		  "msg_id":100,"user_id":12345,"username":"reactinguser",
		  "old_reaction":[],"new_reaction":["👍","5368324170671202286"]
		}`,
		protocol.TypeMessage: `{
		  "type":"MESSAGE","protocol_version":"1.0","chat_id":-1001234567890,
		  "msg_id":300,"user_id":67890,"kind":"text","text":"🍼🍼",
		  "reply_to":{"msg_id":200,"user_id":12345}
		}`,
		protocol.TypeCommand: `{"type":"COMMAND","protocol_version":"1.0","user_id":12345,"command":"withdraw","args":["ecash:qpm2qsznhks23z7629mms6s4cwef74vcwva87rkuu2","50"]}`,
		protocol.TypeOutcome: `{"type":"OUTCOME","protocol_version":"1.0","event_id":"e1","accepted":true,"results":[{"action":"like","status":"ok","txids":["aa"]}]}`,
	}
	for typ, raw := range good {
		if err := v.Validate(typ, []byte(raw)); err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
	}

	bad := map[string]string{
		protocol.TypeReaction: `{"type":"REACTION","protocol_version":"1.0","chat_id":1,"msg_id":0,"user_id":1,"new_reaction":[]}`,
		protocol.TypeMessage:  `{"type":"MESSAGE","protocol_version":"1.0","chat_id":1,"msg_id":5,"user_id":1,"kind":"gif"}`,
		protocol.TypeCommand:  `{"type":"COMMAND","protocol_version":"1.0","user_id":1,"command":"mint"}`,
		protocol.TypeHello:    `{"type":"HELLO","protocol_version":"1.0"}`,
	}
	for typ, raw := range bad {
		if err := v.Validate(typ, []byte(raw)); err == nil {
			t.Fatalf("%s: expected schema violation", typ)
		}
	}
	if err := v.Validate("ACT", []byte(`{}`)); err == nil {
		t.Fatalf("expected unknown type rejected")
	}
}

func TestReject_ValidatesAsOutcome(t *testing.T) {
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	if err := v.ValidateValue(protocol.TypeOutcome, protocol.Reject("e1", protocol.ErrProtoSchema, "bad")); err != nil {
		t.Fatalf("Reject outcome: %v", err)
	}
}

func TestReactionAdded(t *testing.T) {
	m := protocol.ReactionMsg{OldReaction: []string{"👍"}, NewReaction: []string{"👍", "👎", "👎"}}
	if got := m.Added(); !reflect.DeepEqual(got, []string{"👎"}) {
		t.Fatalf("unexpected added set: %v", got)
	}
	removal := protocol.ReactionMsg{OldReaction: []string{"👍"}}
	if got := removal.Added(); len(got) != 0 {
		t.Fatalf("removal must add nothing, got %v", got)
	}
}

func TestMessageContent(t *testing.T) {
	cases := []struct {
		msg  protocol.MessageMsg
		want string
	}{
		{protocol.MessageMsg{Kind: protocol.KindText, Text: "hi"}, "hi"},
		{protocol.MessageMsg{Kind: protocol.KindPhoto, Caption: "look"}, "look"},
		{protocol.MessageMsg{Kind: protocol.KindPhoto}, "[Photo]"},
		{protocol.MessageMsg{Kind: protocol.KindVideo}, "[Video]"},
		{protocol.MessageMsg{Kind: protocol.KindDocument, FileName: "a.pdf"}, "[Document: a.pdf]"},
		{protocol.MessageMsg{Kind: protocol.KindSticker, StickerEmoji: "😀"}, "😀"},
		{protocol.MessageMsg{Kind: protocol.KindSticker}, "[Sticker: sticker]"},
		{protocol.MessageMsg{Kind: protocol.KindOther}, "[Non-text message]"},
	}
	for _, c := range cases {
		if got := c.msg.Content(); got != c.want {
			t.Fatalf("%s: got %q want %q", c.msg.Kind, got, c.want)
		}
	}
}
