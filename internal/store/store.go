// Package store persists the session's conversation history and recall
// entries in a session-scoped SQLite database. The DB file lives under the
// session data directory and is treated as ephemeral: a new session starts
// clean.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Role values for stored messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one stored conversation message.
type Message struct {
	ID        int64
	Role      string
	Content   string
	Source    string // trigger source for user messages, "" otherwise
	ToolName  string // set for tool results
	CreatedMS int64
}

// RecallEntry is one unit of recallable context: a user utterance, an agent
// reply, or a tool observation, written alongside the message log and
// embedded in the background for semantic search.
type RecallEntry struct {
	ID        int64
	Kind      string // "utterance", "reply", "observation"
	Text      string
	CreatedMS int64
	Embedded  bool
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	tool_name TEXT NOT NULL DEFAULT '',
	created_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_ms);

CREATE TABLE IF NOT EXISTS recall_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	text TEXT NOT NULL,
	created_ms INTEGER NOT NULL,
	embedding BLOB
);
CREATE INDEX IF NOT EXISTS idx_recall_created ON recall_entries(created_ms);
`

// Store wraps the session database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates (or reopens) the session database under dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dataDir, "session.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	// The session is a single process; one writer avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// OpenMemory opens an in-memory database. Used in tests.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// SetClock overrides the store's clock. Used in tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// SaveUserMessage appends a user message and its recall entry.
func (s *Store) SaveUserMessage(ctx context.Context, content, source string) error {
	ms := s.now().UnixMilli()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (role, content, source, created_ms) VALUES (?, ?, ?, ?)`,
		RoleUser, content, source, ms); err != nil {
		return fmt.Errorf("save user message: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO recall_entries (kind, text, created_ms) VALUES (?, ?, ?)`,
		"utterance", content, ms); err != nil {
		return fmt.Errorf("save recall entry: %w", err)
	}
	return tx.Commit()
}

// SaveAssistantMessage appends an assistant reply and its recall entry.
// Tool-call-only turns (empty content) are stored as messages but produce no
// recall entry.
func (s *Store) SaveAssistantMessage(ctx context.Context, content string) error {
	ms := s.now().UnixMilli()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (role, content, created_ms) VALUES (?, ?, ?)`,
		RoleAssistant, content, ms); err != nil {
		return fmt.Errorf("save assistant message: %w", err)
	}
	if content != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO recall_entries (kind, text, created_ms) VALUES (?, ?, ?)`,
			"reply", content, ms); err != nil {
			return fmt.Errorf("save recall entry: %w", err)
		}
	}
	return tx.Commit()
}

// SaveToolResult appends a tool observation.
func (s *Store) SaveToolResult(ctx context.Context, toolName string, result any) error {
	content, err := json.Marshal(result)
	if err != nil {
		content = []byte(fmt.Sprintf("%v", result))
	}
	ms := s.now().UnixMilli()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (role, content, tool_name, created_ms) VALUES (?, ?, ?, ?)`,
		RoleTool, string(content), toolName, ms); err != nil {
		return fmt.Errorf("save tool result: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO recall_entries (kind, text, created_ms) VALUES (?, ?, ?)`,
		"observation", fmt.Sprintf("[%s] %s", toolName, content), ms); err != nil {
		return fmt.Errorf("save recall entry: %w", err)
	}
	return tx.Commit()
}

// RecentMessages returns messages newer than the window, oldest first.
func (s *Store) RecentMessages(ctx context.Context, window time.Duration) ([]Message, error) {
	cutoff := s.now().Add(-window).UnixMilli()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, source, tool_name, created_ms
		 FROM messages WHERE created_ms >= ? ORDER BY created_ms ASC, id ASC`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.Source, &m.ToolName, &m.CreatedMS); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecallEntriesSince returns recall entries strictly after the watermark,
// oldest first.
func (s *Store) RecallEntriesSince(ctx context.Context, watermarkMS int64) ([]RecallEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, text, created_ms, embedding IS NOT NULL
		 FROM recall_entries WHERE created_ms > ? ORDER BY created_ms ASC, id ASC`, watermarkMS)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecall(rows)
}

// UnembeddedEntries returns recall entries that have no embedding yet.
func (s *Store) UnembeddedEntries(ctx context.Context, limit int) ([]RecallEntry, error) {
	if limit <= 0 {
		limit = 64
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, text, created_ms, 0
		 FROM recall_entries WHERE embedding IS NULL ORDER BY id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecall(rows)
}

func scanRecall(rows *sql.Rows) ([]RecallEntry, error) {
	var out []RecallEntry
	for rows.Next() {
		var e RecallEntry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Text, &e.CreatedMS, &e.Embedded); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
