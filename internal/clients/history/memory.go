package history

import (
	"context"
	"sync"
	"time"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
)

// Memory is a process-local conversation log for the memory storage driver and tests.
type Memory struct {
	mu    sync.Mutex
	turns map[int64][]dialog.Turn
	limit int
}

func NewMemory(limit int) *Memory {
	return &Memory{turns: map[int64][]dialog.Turn{}, limit: limit}
}

func (m *Memory) Append(_ context.Context, chatID int64, role dialog.Role, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[chatID] = append(m.turns[chatID], dialog.Turn{Role: role, Text: text, At: time.Now().UTC()})
	return nil
}

func (m *Memory) History(_ context.Context, chatID int64) ([]dialog.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	turns := m.turns[chatID]
	if m.limit > 0 && len(turns) > m.limit {
		turns = turns[len(turns)-m.limit:]
	}
	return append([]dialog.Turn(nil), turns...), nil
}

func (m *Memory) DeleteAll(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, chatID)
	return nil
}
