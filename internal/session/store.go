package session

import (
	"context"
	"path/filepath"

	"github.com/NForce-ai/sdrbot/internal/config"
	"github.com/NForce-ai/sdrbot/internal/llm"
)

// Store persists the conversation for one thread. The orchestrator appends
// messages as turns complete; the compactor replaces the thread contents
// wholesale with a summary. /clear starts a fresh thread.
type Store interface {
	// ThreadID returns the id of the active thread.
	ThreadID() string

	// Messages returns the persisted conversation in order.
	Messages(ctx context.Context) ([]llm.Message, error)

	// Count returns the number of persisted messages in the active thread.
	Count(ctx context.Context) (int, error)

	// Append adds messages to the end of the active thread.
	Append(ctx context.Context, msgs ...llm.Message) error

	// Replace swaps the thread contents wholesale. Used by compaction.
	Replace(ctx context.Context, msgs []llm.Message) error

	// NewThread abandons the active thread and starts a fresh one.
	NewThread(ctx context.Context) error

	Close() error
}

// DBPath returns the path to the sessions database in the workspace data dir.
func DBPath() string {
	return filepath.Join(config.DataDir(), "sessions.db")
}
