package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"overmind.cash/internal/protocol"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHandler) Handle(_ context.Context, msgType, eventID string, _ []byte) protocol.OutcomeMsg {
	h.mu.Lock()
	h.events = append(h.events, msgType+":"+eventID)
	h.mu.Unlock()
	return protocol.OutcomeMsg{
		Type:            protocol.TypeOutcome,
		ProtocolVersion: protocol.Version,
		EventID:         eventID,
		Accepted:        true,
		Results:         []protocol.Result{{Action: "claim", Status: protocol.StatusOK}},
	}
}

func dial(t *testing.T, h Handler, cfg Config) *websocket.Conn {
	t.Helper()
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	srv := httptest.NewServer(NewServer(h, v, cfg, nil).Handler())
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func hello(t *testing.T, conn *websocket.Conn, token string) {
	t.Helper()
	msg := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "test"}
	if token != "" {
		msg.Auth = &protocol.HelloAuth{Token: token}
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write hello: %v", err)
	}
}

func TestServer_HandshakeAndEvents(t *testing.T) {
	h := &recordingHandler{}
	conn := dial(t, h, Config{AuthToken: "s3cret", ChatID: -100, TokenID: "tk"})
	hello(t, conn, "s3cret")

	var w protocol.WelcomeMsg
	if err := conn.ReadJSON(&w); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if w.Type != protocol.TypeWelcome || w.SessionID == "" || w.ChatID != -100 || w.TokenID != "tk" {
		t.Fatalf("unexpected welcome: %+v", w)
	}

	send := func(raw string) protocol.OutcomeMsg {
		t.Helper()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Fatalf("write: %v", err)
		}
		var out protocol.OutcomeMsg
		if err := conn.ReadJSON(&out); err != nil {
			t.Fatalf("read outcome: %v", err)
		}
		return out
	}

	out := send(`{"type":"COMMAND","protocol_version":"1.0","event_id":"e1","user_id":7,"command":"claim"}`)
	if !out.Accepted || out.EventID != "e1" {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	out = send(`{"type":"COMMAND","protocol_version":"1.0","user_id":7,"command":"claim"}`)
	if !out.Accepted || out.EventID == "" {
		t.Fatalf("expected generated event id, got %+v", out)
	}

	out = send(`{"type":"COMMAND","protocol_version":"1.0","event_id":"e3","user_id":7,"command":"steal"}`)
	if out.Accepted || out.Code != protocol.ErrProtoSchema || out.EventID != "e3" {
		t.Fatalf("expected schema rejection, got %+v", out)
	}

	out = send(`{"type":"COMMAND","protocol_version":"0.9","event_id":"e4","user_id":7,"command":"claim"}`)
	if out.Accepted || out.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("expected version rejection, got %+v", out)
	}

	out = send(`not json`)
	if out.Accepted || out.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("expected bad request, got %+v", out)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) != 2 || h.events[0] != "COMMAND:e1" {
		t.Fatalf("unexpected handled events: %v", h.events)
	}
}

func TestServer_RejectsBadToken(t *testing.T) {
	conn := dial(t, &recordingHandler{}, Config{AuthToken: "s3cret"})
	hello(t, conn, "wrong")
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestServer_RequiresHello(t *testing.T) {
	conn := dial(t, &recordingHandler{}, Config{})
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"COMMAND","protocol_version":"1.0","user_id":1,"command":"claim"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}
