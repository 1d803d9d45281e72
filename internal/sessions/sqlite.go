package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/secops-bot/engine/internal/models"
)

// SQLiteStore is the durable Store backend: a single-file WAL-mode SQLite
// database keyed by session key, satisfying "survives restart, per-key
// serialised" (spec §9 design note on session storage durability) without
// pulling in a server-backed database the core doesn't otherwise need.
type SQLiteStore struct {
	db              *sql.DB
	maxMessages     int
	maxContextChars int
}

// OpenSQLiteStore opens (creating if absent) the database at path.
func OpenSQLiteStore(path string, maxMessages, maxContextChars int) (*SQLiteStore, error) {
	if maxMessages <= 0 {
		maxMessages = 30
	}
	if maxContextChars <= 0 {
		maxContextChars = 4000
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("sessions: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // serialise writes; sessions are already per-key locked above this

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			key              TEXT PRIMARY KEY,
			messages_json    TEXT NOT NULL,
			created_at       INTEGER NOT NULL,
			last_touched_at  INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessions: migrate: %w", err)
	}

	return &SQLiteStore{db: db, maxMessages: maxMessages, maxContextChars: maxContextChars}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, key string, msg models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var messagesJSON string
	var createdAt int64
	now := time.Now()

	row := tx.QueryRowContext(ctx, `SELECT messages_json, created_at FROM sessions WHERE key = ?`, key)
	err = row.Scan(&messagesJSON, &createdAt)

	var messages []models.Message
	switch {
	case err == sql.ErrNoRows:
		createdAt = now.Unix()
	case err != nil:
		return err
	default:
		if err := json.Unmarshal([]byte(messagesJSON), &messages); err != nil {
			return fmt.Errorf("sessions: decode messages: %w", err)
		}
	}

	messages = append(messages, msg)
	if len(messages) > s.maxMessages {
		messages = messages[len(messages)-s.maxMessages:]
	}

	encoded, err := json.Marshal(messages)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (key, messages_json, created_at, last_touched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET messages_json = excluded.messages_json, last_touched_at = excluded.last_touched_at
	`, key, string(encoded), createdAt, now.Unix()); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) Context(ctx context.Context, key string) (string, error) {
	var messagesJSON string
	err := s.db.QueryRowContext(ctx, `SELECT messages_json FROM sessions WHERE key = ?`, key).Scan(&messagesJSON)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var messages []models.Message
	if err := json.Unmarshal([]byte(messagesJSON), &messages); err != nil {
		return "", fmt.Errorf("sessions: decode messages: %w", err)
	}
	return buildContext(messages, s.maxContextChars), nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE key = ?`, key)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) SweepExpired(ctx context.Context, now time.Time, ttl time.Duration) (int, error) {
	cutoff := now.Add(-ttl).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_touched_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
