package conversation

import (
	"context"
	"sort"
	"sync"

	"github.com/weiawesome/wes-match-live/internal/domain"
)

// MemoryStore keeps conversations in process memory. Used for local
// development and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]domain.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string][]domain.Message)}
}

func (s *MemoryStore) Append(ctx context.Context, msg domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[msg.ConversationKey] = append(s.conversations[msg.ConversationKey], msg)
	return nil
}

func (s *MemoryStore) History(ctx context.Context, key string, cursor Cursor, limit int) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.conversations[key]
	end := boundFor(log, cursor)
	start := 0
	if limit > 0 && end-limit > start {
		start = end - limit
	}
	return append([]domain.Message(nil), log[start:end]...), nil
}

// boundFor returns the index in log at which a page bounded by cursor ends.
func boundFor(log []domain.Message, cursor Cursor) int {
	if cursor.BeforeID != "" {
		for i := len(log) - 1; i >= 0; i-- {
			if log[i].ID == cursor.BeforeID {
				return i
			}
		}
	}
	if cursor.Before.IsZero() {
		return len(log)
	}
	return sort.Search(len(log), func(i int) bool { return !log[i].SentAt.Before(cursor.Before) })
}

func (s *MemoryStore) Close() error { return nil }
