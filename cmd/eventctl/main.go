// Command eventctl sends one chat event to a running server and prints the
// OUTCOME. It stands in for the chat adapter during manual testing.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"overmind.cash/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/events", "ws url")
		token    = flag.String("token", os.Getenv("OVERMIND_EVENTS_TOKEN"), "HELLO auth token")
		chatID   = flag.Int64("chat", 0, "chat id")
		userID   = flag.Int64("user", 0, "acting user id")
		username = flag.String("username", "", "acting username")
		msgID    = flag.Int64("msg", 0, "message id (reaction target or new message)")
		emoji    = flag.String("emoji", "👍", "reaction emoji (react)")
		text     = flag.String("text", "", "message text (message)")
		replyTo  = flag.Int64("reply_to", 0, "replied-to message id (message)")
		replyBy  = flag.Int64("reply_user", 0, "author of the replied-to message (message)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[eventctl] ", log.LstdFlags|log.Lmicroseconds)
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: eventctl [flags] react | message | <command> [args...]")
		os.Exit(2)
	}

	event, err := buildEvent(flag.Arg(0), flag.Args()[1:], eventFlags{
		chatID: *chatID, userID: *userID, username: *username, msgID: *msgID,
		emoji: *emoji, text: *text, replyTo: *replyTo, replyBy: *replyBy,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "eventctl",
	}
	if t := strings.TrimSpace(*token); t != "" {
		hello.Auth = &protocol.HelloAuth{Token: t}
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}
	var w protocol.WelcomeMsg
	if err := conn.ReadJSON(&w); err != nil {
		logger.Fatalf("read WELCOME: %v", err)
	}
	logger.Printf("WELCOME session=%s chat=%d token=%s", w.SessionID, w.ChatID, w.TokenID)

	if err := conn.WriteJSON(event); err != nil {
		logger.Fatalf("send event: %v", err)
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		logger.Fatalf("read OUTCOME: %v", err)
	}
	var out protocol.OutcomeMsg
	if err := json.Unmarshal(msg, &out); err != nil {
		logger.Fatalf("decode OUTCOME: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
	if !out.Accepted {
		os.Exit(1)
	}
}

type eventFlags struct {
	chatID, userID, msgID int64
	username, emoji, text string
	replyTo, replyBy      int64
}

func buildEvent(kind string, args []string, f eventFlags) (any, error) {
	if f.userID <= 0 {
		return nil, fmt.Errorf("-user is required")
	}
	eventID := uuid.NewString()
	now := time.Now().Unix()
	switch kind {
	case "react":
		if f.msgID <= 0 {
			return nil, fmt.Errorf("-msg is required for react")
		}
		return protocol.ReactionMsg{
			Type:            protocol.TypeReaction,
			ProtocolVersion: protocol.Version,
			EventID:         eventID,
			ChatID:          f.chatID,
			MsgID:           f.msgID,
			UserID:          f.userID,
			Username:        f.username,
			OldReaction:     []string{},
			NewReaction:     []string{f.emoji},
			Date:            now,
		}, nil
	case "message":
		if f.msgID <= 0 {
			return nil, fmt.Errorf("-msg is required for message")
		}
		m := protocol.MessageMsg{
			Type:            protocol.TypeMessage,
			ProtocolVersion: protocol.Version,
			EventID:         eventID,
			ChatID:          f.chatID,
			MsgID:           f.msgID,
			UserID:          f.userID,
			Username:        f.username,
			Kind:            protocol.KindText,
			Text:            f.text,
			Date:            now,
		}
		if f.replyTo > 0 {
			m.ReplyTo = &protocol.ReplyTo{MsgID: f.replyTo, UserID: f.replyBy}
		}
		return m, nil
	default:
		return protocol.CommandMsg{
			Type:            protocol.TypeCommand,
			ProtocolVersion: protocol.Version,
			EventID:         eventID,
			ChatID:          f.chatID,
			UserID:          f.userID,
			Username:        f.username,
			Command:         kind,
			Args:            args,
		}, nil
	}
}
