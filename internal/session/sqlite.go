package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db       *sql.DB
	threadID string
}

const schema = `
CREATE TABLE IF NOT EXISTS threads (
    id TEXT PRIMARY KEY,
    agent TEXT,
    provider TEXT,
    model TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    thread_id TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
    role TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system', 'tool')),
    parts TEXT NOT NULL,
    text_content TEXT,
    sequence INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, sequence);
`

// NewSQLiteStore opens (creating if needed) the workspace session database
// and starts a new thread for this process.
func NewSQLiteStore(agent, provider, model string) (*SQLiteStore, error) {
	dbPath := DBPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.startThread(context.Background(), agent, provider, model); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) startThread(ctx context.Context, agent, provider, model string) error {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO threads (id, agent, provider, model, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, agent, provider, model, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("create thread: %w", err)
	}
	s.threadID = id
	return nil
}

func (s *SQLiteStore) ThreadID() string {
	return s.threadID
}

func (s *SQLiteStore) Messages(ctx context.Context) ([]llm.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, parts FROM messages WHERE thread_id = ? ORDER BY sequence`, s.threadID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []llm.Message
	for rows.Next() {
		var role, partsJSON string
		if err := rows.Scan(&role, &partsJSON); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		var parts []llm.Part
		if err := json.Unmarshal([]byte(partsJSON), &parts); err != nil {
			return nil, fmt.Errorf("decode message parts: %w", err)
		}
		msgs = append(msgs, llm.Message{Role: llm.Role(role), Parts: parts})
	}
	return msgs, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE thread_id = ?`, s.threadID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) Append(ctx context.Context, msgs ...llm.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM messages WHERE thread_id = ?`, s.threadID).Scan(&seq); err != nil {
		return fmt.Errorf("read sequence: %w", err)
	}

	for _, msg := range msgs {
		seq++
		if err := insertMessage(ctx, tx, s.threadID, msg, seq); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Replace(ctx context.Context, msgs []llm.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE thread_id = ?`, s.threadID); err != nil {
		return fmt.Errorf("clear thread: %w", err)
	}
	for i, msg := range msgs {
		if err := insertMessage(ctx, tx, s.threadID, msg, i+1); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) NewThread(ctx context.Context) error {
	var agent, provider, model sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT agent, provider, model FROM threads WHERE id = ?`, s.threadID).
		Scan(&agent, &provider, &model)
	if err != nil {
		return fmt.Errorf("read thread: %w", err)
	}
	return s.startThread(ctx, agent.String, provider.String, model.String)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func insertMessage(ctx context.Context, tx *sql.Tx, threadID string, msg llm.Message, seq int) error {
	partsJSON, err := json.Marshal(msg.Parts)
	if err != nil {
		return fmt.Errorf("encode message parts: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (thread_id, role, parts, text_content, sequence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		threadID, string(msg.Role), string(partsJSON), extractText(msg), seq, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func extractText(msg llm.Message) string {
	var parts []string
	for _, p := range msg.Parts {
		if p.Type == llm.PartText && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}
