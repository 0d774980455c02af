package registry

import (
	"context"
	"sync"
	"time"
)

// Memory implements Users and Messages in process memory.
type Memory struct {
	mu        sync.Mutex
	users     map[int64]Principal
	indexes   map[uint32]int64
	messages  map[int64]Message
	reactions map[reactionKey]struct{}
}

type reactionKey struct {
	msgID  int64
	userID int64
	emoji  string
}

func NewMemory() *Memory {
	return &Memory{
		users:     map[int64]Principal{},
		indexes:   map[uint32]int64{},
		messages:  map[int64]Message{},
		reactions: map[reactionKey]struct{}{},
	}
}

func (m *Memory) GetUser(_ context.Context, userID int64) (Principal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.users[userID]
	return p, ok, nil
}

func (m *Memory) MaxIndex(_ context.Context) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max uint32
	for idx := range m.indexes {
		if idx > max {
			max = idx
		}
	}
	return max, nil
}

func (m *Memory) CreateUser(_ context.Context, p Principal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[p.UserID]; ok {
		return ErrExists
	}
	if _, ok := m.indexes[p.Index]; ok {
		return ErrIndexTaken
	}
	if p.RegisteredAt.IsZero() {
		p.RegisteredAt = time.Now().UTC()
	}
	m.users[p.UserID] = p
	m.indexes[p.Index] = p.UserID
	return nil
}

func (m *Memory) SaveMessage(_ context.Context, msg Message) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[msg.MsgID]; ok {
		return false, nil
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	m.messages[msg.MsgID] = msg
	return true, nil
}

func (m *Memory) GetMessage(_ context.Context, msgID int64) (Message, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[msgID]
	return msg, ok, nil
}

func (m *Memory) RecordReaction(_ context.Context, r Reaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := reactionKey{msgID: r.MsgID, userID: r.UserID, emoji: r.Emoji}
	if _, ok := m.reactions[k]; ok {
		return false, nil
	}
	m.reactions[k] = struct{}{}
	if msg, ok := m.messages[r.MsgID]; ok {
		if r.Dislike {
			msg.Dislikes++
		} else {
			msg.Likes++
		}
		m.messages[r.MsgID] = msg
	}
	return true, nil
}

func (m *Memory) CountDislikedMessages(_ context.Context, userID int64, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.UserID == userID && msg.Dislikes > 0 && !msg.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stats{Users: len(m.users), Messages: len(m.messages), Reactions: len(m.reactions)}
	for _, msg := range m.messages {
		s.Likes += msg.Likes
		s.Dislikes += msg.Dislikes
	}
	return s, nil
}
