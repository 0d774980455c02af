// Package store is the durable SQLite backing for principals, chat messages,
// reactions, pending withdrawals and the transfer audit table.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"overmind.cash/internal/overmind"
)

const schemaVersion = "1"

type SQLite struct {
	db *sql.DB

	ch   chan overmind.TransferEntry
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLite{
		db: db,
		ch: make(chan overmind.TransferEntry, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS users (
			user_id INTEGER PRIMARY KEY,
			username TEXT NOT NULL,
			address TEXT NOT NULL,
			output_script TEXT NOT NULL,
			idx INTEGER NOT NULL UNIQUE,
			registered_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			msg_id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL,
			username TEXT NOT NULL,
			text TEXT NOT NULL,
			sent_at INTEGER NOT NULL,
			likes INTEGER NOT NULL DEFAULT 0,
			dislikes INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_user_sent ON messages(user_id, sent_at);`,
		`CREATE TABLE IF NOT EXISTS reactions (
			msg_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			emoji TEXT NOT NULL,
			dislike INTEGER NOT NULL,
			occurred_at INTEGER NOT NULL,
			PRIMARY KEY (msg_id, user_id, emoji)
		);`,
		`CREATE TABLE IF NOT EXISTS pending_withdrawals (
			user_id INTEGER PRIMARY KEY,
			destination TEXT NOT NULL,
			amount INTEGER NOT NULL,
			source TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS transfers (
			id TEXT PRIMARY KEY,
			time_ms INTEGER NOT NULL,
			action TEXT NOT NULL,
			code INTEGER NOT NULL,
			msg_id INTEGER NOT NULL,
			from_user INTEGER NOT NULL,
			from_address TEXT NOT NULL,
			to_user INTEGER NOT NULL,
			to_address TEXT NOT NULL,
			atoms INTEGER NOT NULL,
			txid TEXT,
			error TEXT,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_time ON transfers(time_ms);`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_from ON transfers(from_user, time_ms);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','` + schemaVersion + `');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains queued transfer entries before closing the database.
func (s *SQLite) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Dropped reports how many transfer entries were discarded because the
// writer fell behind.
func (s *SQLite) Dropped() uint64 { return s.dropped.Load() }

// WriteTransfer queues e for the audit table. It never blocks.
func (s *SQLite) WriteTransfer(e overmind.TransferEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- e:
	default:
		// Drop if the writer falls behind; the JSONL log remains the source of truth.
		s.dropped.Add(1)
	}
	return nil
}

func (s *SQLite) loop() {
	ctx := context.Background()
	const batchMax = 256

	insert, _ := s.db.Prepare(`INSERT OR REPLACE INTO transfers(id,time_ms,action,code,msg_id,from_user,from_address,to_user,to_address,atoms,txid,error,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insert != nil {
			_ = insert.Close()
		}
	}()

	write := func(tx *sql.Tx, e overmind.TransferEntry) error {
		if insert == nil {
			return fmt.Errorf("insert statement unavailable")
		}
		raw, _ := json.Marshal(e)
		_, err := tx.Stmt(insert).Exec(
			e.ID,
			e.Time,
			e.Action,
			int64(e.Code),
			int64(e.MsgID),
			e.FromUser,
			e.FromAddress,
			e.ToUser,
			e.ToAddress,
			int64(e.Atoms),
			nullable(e.TxID),
			nullable(e.Error),
			string(raw),
		)
		return err
	}

	// Each batch commits before the next receive so the single connection is
	// free for foreground queries between batches.
	for e := range s.ch {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.dropped.Add(1)
			continue
		}
		ok := write(tx, e) == nil
	drain:
		for n := 1; ok && n < batchMax; n++ {
			select {
			case next, more := <-s.ch:
				if !more {
					break drain
				}
				ok = write(tx, next) == nil
			default:
				break drain
			}
		}
		if !ok {
			_ = tx.Rollback()
			s.dropped.Add(1)
			continue
		}
		_ = tx.Commit()
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
