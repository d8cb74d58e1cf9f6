// Package storage persists conversation transcripts in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for unknown conversation ids.
var ErrNotFound = errors.New("storage: not found")

// Conversation groups the turns of one dialogue.
type Conversation struct {
	ID        string    `db:"id"`
	Provider  string    `db:"provider"`
	Model     string    `db:"model"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Turn is one persisted transcript entry.
type Turn struct {
	ID             string    `db:"id"`
	ConversationID string    `db:"conversation_id"`
	Role           string    `db:"role"`
	Content        string    `db:"content"`
	Position       int       `db:"position"`
	CreatedAt      time.Time `db:"created_at"`
}

// Store is a SQLite-backed transcript store.
type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the database at path. Use ":memory:" for an
// in-memory store in tests.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer keeps modernc/sqlite happy under concurrency.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
id TEXT PRIMARY KEY,
provider TEXT NOT NULL,
model TEXT NOT NULL,
created_at TIMESTAMP NOT NULL,
updated_at TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS turns (
id TEXT PRIMARY KEY,
conversation_id TEXT NOT NULL REFERENCES conversations(id),
role TEXT NOT NULL,
content TEXT NOT NULL,
position INTEGER NOT NULL,
created_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, position)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateConversation inserts a new conversation.
func (s *Store) CreateConversation(ctx context.Context, c *Conversation) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, provider, model, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Provider, c.Model, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// GetConversation returns the conversation with the given id.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	err := s.db.GetContext(ctx, &c,
		`SELECT id, provider, model, created_at, updated_at FROM conversations WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select conversation: %w", err)
	}
	return &c, nil
}

// AppendTurn appends a turn at the next position of its conversation.
func (s *Store) AppendTurn(ctx context.Context, t *Turn) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.GetContext(ctx, &next,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM turns WHERE conversation_id = ?`,
		t.ConversationID); err != nil {
		return fmt.Errorf("next position: %w", err)
	}
	t.Position = next

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO turns (id, conversation_id, role, content, position, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.ConversationID, t.Role, t.Content, t.Position, t.CreatedAt); err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		time.Now().UTC(), t.ConversationID); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	return tx.Commit()
}

// ListTurns returns the turns of a conversation in dialogue order.
func (s *Store) ListTurns(ctx context.Context, conversationID string) ([]Turn, error) {
	var turns []Turn
	err := s.db.SelectContext(ctx, &turns,
		`SELECT id, conversation_id, role, content, position, created_at
FROM turns WHERE conversation_id = ? ORDER BY position`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("select turns: %w", err)
	}
	return turns, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
