package ws

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"overmind.cash/internal/protocol"
)

// Handler runs one validated event and returns its outcome.
type Handler interface {
	Handle(ctx context.Context, msgType, eventID string, raw []byte) protocol.OutcomeMsg
}

type Config struct {
	// AuthToken, when set, must be presented in HELLO.auth.token.
	AuthToken string
	ChatID    int64
	TokenID   string
	// QueueSize bounds outcomes waiting for the writer.
	QueueSize int
}

type Server struct {
	h         Handler
	validator *protocol.Validator
	cfg       Config
	log       *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(h Handler, v *protocol.Validator, cfg Config, logger *log.Logger) *Server {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	return &Server{
		h:         h,
		validator: v,
		cfg:       cfg,
		log:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		session, ok := s.handshake(conn)
		if !ok {
			return
		}
		s.logf("session %s connected from %s", session, r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan []byte, s.cfg.QueueSize)
		done := make(chan struct{})

		// Writer goroutine.
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop. Events of one session run in arrival order.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			outcome := s.dispatch(ctx, msg)
			b, err := json.Marshal(outcome)
			if err != nil {
				s.logf("session %s: marshal outcome: %v", session, err)
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}

		close(out)
		<-done
		s.logf("session %s closed", session)
	}
}

func (s *Server) dispatch(ctx context.Context, msg []byte) protocol.OutcomeMsg {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.Reject("", protocol.ErrProtoBadRequest, err.Error())
	}
	eventID := strings.TrimSpace(base.EventID)
	if eventID == "" {
		eventID = uuid.NewString()
	}
	if base.ProtocolVersion != protocol.Version {
		return protocol.Reject(eventID, protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	switch base.Type {
	case protocol.TypeReaction, protocol.TypeMessage, protocol.TypeCommand:
	default:
		return protocol.Reject(eventID, protocol.ErrProtoBadRequest, "unexpected message type "+base.Type)
	}
	if s.validator != nil {
		if err := s.validator.Validate(base.Type, msg); err != nil {
			return protocol.Reject(eventID, protocol.ErrProtoSchema, err.Error())
		}
	}
	return s.h.Handle(ctx, base.Type, eventID, msg)
}

func (s *Server) handshake(conn *websocket.Conn) (string, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return "", false
	}
	if s.validator != nil {
		if err := s.validator.Validate(protocol.TypeHello, msg); err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, "invalid HELLO")
			return "", false
		}
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", false
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
		return "", false
	}
	if s.cfg.AuthToken != "" {
		got := ""
		if hello.Auth != nil {
			got = strings.TrimSpace(hello.Auth.Token)
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.AuthToken)) != 1 {
			s.logf("rejected HELLO from %q: bad token", hello.ClientName)
			closeWith(conn, websocket.ClosePolicyViolation, "unauthorized")
			return "", false
		}
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
		ChatID:          s.cfg.ChatID,
		TokenID:         s.cfg.TokenID,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", false
	}
	return welcome.SessionID, true
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}
