package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"overmind.cash/internal/registry"
)

var (
	_ registry.Users    = (*SQLite)(nil)
	_ registry.Messages = (*SQLite)(nil)
)

func (s *SQLite) GetUser(ctx context.Context, userID int64) (registry.Principal, bool, error) {
	var (
		p   registry.Principal
		idx int64
		at  int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, address, output_script, idx, registered_at FROM users WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.Username, &p.Address, &p.Script, &idx, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.Principal{}, false, nil
	}
	if err != nil {
		return registry.Principal{}, false, fmt.Errorf("get user %d: %w", userID, err)
	}
	p.Index = uint32(idx)
	p.RegisteredAt = fromMillis(at)
	return p, true, nil
}

func (s *SQLite) MaxIndex(ctx context.Context) (uint32, error) {
	var max sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(idx) FROM users`).Scan(&max); err != nil {
		return 0, fmt.Errorf("max index: %w", err)
	}
	return uint32(max.Int64), nil
}

func (s *SQLite) CreateUser(ctx context.Context, p registry.Principal) error {
	if p.RegisteredAt.IsZero() {
		p.RegisteredAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE user_id = ?`, p.UserID).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return registry.ErrExists
	}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE idx = ?`, int64(p.Index)).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return registry.ErrIndexTaken
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users(user_id, username, address, output_script, idx, registered_at) VALUES(?,?,?,?,?,?)`,
		p.UserID, p.Username, p.Address, p.Script, int64(p.Index), p.RegisteredAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("create user %d: %w", p.UserID, err)
	}
	return tx.Commit()
}

// Users lists every principal in registration order.
func (s *SQLite) Users(ctx context.Context) ([]registry.Principal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, username, address, output_script, idx, registered_at FROM users ORDER BY idx`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []registry.Principal
	for rows.Next() {
		var (
			p       registry.Principal
			idx, at int64
		)
		if err := rows.Scan(&p.UserID, &p.Username, &p.Address, &p.Script, &idx, &at); err != nil {
			return nil, err
		}
		p.Index = uint32(idx)
		p.RegisteredAt = fromMillis(at)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) SaveMessage(ctx context.Context, m registry.Message) (bool, error) {
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO messages(msg_id, user_id, username, text, sent_at, likes, dislikes) VALUES(?,?,?,?,?,?,?)`,
		m.MsgID, m.UserID, m.Username, m.Text, m.SentAt.UnixMilli(), m.Likes, m.Dislikes,
	)
	if err != nil {
		return false, fmt.Errorf("save message %d: %w", m.MsgID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLite) GetMessage(ctx context.Context, msgID int64) (registry.Message, bool, error) {
	var (
		m  registry.Message
		at int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT msg_id, user_id, username, text, sent_at, likes, dislikes FROM messages WHERE msg_id = ?`, msgID,
	).Scan(&m.MsgID, &m.UserID, &m.Username, &m.Text, &at, &m.Likes, &m.Dislikes)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.Message{}, false, nil
	}
	if err != nil {
		return registry.Message{}, false, fmt.Errorf("get message %d: %w", msgID, err)
	}
	m.SentAt = fromMillis(at)
	return m, true, nil
}

func (s *SQLite) RecordReaction(ctx context.Context, r registry.Reaction) (bool, error) {
	if r.OccurredAt.IsZero() {
		r.OccurredAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO reactions(msg_id, user_id, emoji, dislike, occurred_at) VALUES(?,?,?,?,?)`,
		r.MsgID, r.UserID, r.Emoji, boolInt(r.Dislike), r.OccurredAt.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("record reaction on %d: %w", r.MsgID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	counter := `UPDATE messages SET likes = likes + 1 WHERE msg_id = ?`
	if r.Dislike {
		counter = `UPDATE messages SET dislikes = dislikes + 1 WHERE msg_id = ?`
	}
	if _, err := tx.ExecContext(ctx, counter, r.MsgID); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (s *SQLite) CountDislikedMessages(ctx context.Context, userID int64, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE user_id = ? AND dislikes > 0 AND sent_at >= ?`,
		userID, since.UnixMilli(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count disliked messages: %w", err)
	}
	return n, nil
}

func (s *SQLite) Stats(ctx context.Context) (registry.Stats, error) {
	var st registry.Stats
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM messages),
		(SELECT COALESCE(SUM(likes), 0) FROM messages),
		(SELECT COALESCE(SUM(dislikes), 0) FROM messages),
		(SELECT COUNT(*) FROM reactions)`,
	).Scan(&st.Users, &st.Messages, &st.Likes, &st.Dislikes, &st.Reactions)
	if err != nil {
		return registry.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
