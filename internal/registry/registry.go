// Package registry defines the principal and chat-message stores the bot
// consumes. Durable implementations live in persistence/store; the in-memory
// ones here back tests and dry runs.
package registry

import (
	"context"
	"errors"
	"time"
)

var (
	ErrExists     = errors.New("principal already registered")
	ErrIndexTaken = errors.New("registration index already taken")
)

// Principal is a registered participant. Balance is never stored; it is read
// from the ledger on demand.
type Principal struct {
	UserID       int64
	Username     string
	Address      string
	Script       string
	Index        uint32
	RegisteredAt time.Time
}

type Message struct {
	MsgID    int64
	UserID   int64
	Username string
	Text     string
	SentAt   time.Time
	Likes    int
	Dislikes int
}

type Reaction struct {
	MsgID      int64
	UserID     int64
	Emoji      string
	Dislike    bool
	OccurredAt time.Time
}

type Stats struct {
	Users     int
	Messages  int
	Likes     int
	Dislikes  int
	Reactions int
}

type Users interface {
	GetUser(ctx context.Context, userID int64) (Principal, bool, error)
	// MaxIndex returns the highest assigned registration index (0 if none).
	MaxIndex(ctx context.Context) (uint32, error)
	// CreateUser stores p; it fails with ErrExists or ErrIndexTaken.
	CreateUser(ctx context.Context, p Principal) error
}

type Messages interface {
	// SaveMessage stores m once; a repeated msg id is ignored (false).
	SaveMessage(ctx context.Context, m Message) (bool, error)
	GetMessage(ctx context.Context, msgID int64) (Message, bool, error)
	// RecordReaction stores r once per (msg, user, emoji) and bumps the
	// message counters; duplicates return false.
	RecordReaction(ctx context.Context, r Reaction) (bool, error)
	// CountDislikedMessages counts messages by userID sent since `since`
	// that carry at least one dislike.
	CountDislikedMessages(ctx context.Context, userID int64, since time.Time) (int, error)
	Stats(ctx context.Context) (Stats, error)
}
