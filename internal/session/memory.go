package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

// MemoryStore is an in-memory Store, used in tests and when persistence
// is disabled.
type MemoryStore struct {
	mu       sync.Mutex
	threadID string
	msgs     []llm.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threadID: uuid.NewString()}
}

func (s *MemoryStore) ThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID
}

func (s *MemoryStore) Messages(ctx context.Context) ([]llm.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, len(s.msgs))
	copy(out, s.msgs)
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs), nil
}

func (s *MemoryStore) Append(ctx context.Context, msgs ...llm.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msgs...)
	return nil
}

func (s *MemoryStore) Replace(ctx context.Context, msgs []llm.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = make([]llm.Message, len(msgs))
	copy(s.msgs, msgs)
	return nil
}

func (s *MemoryStore) NewThread(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threadID = uuid.NewString()
	s.msgs = nil
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
