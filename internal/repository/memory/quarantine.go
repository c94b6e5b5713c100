package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ignite/listsync/internal/domain"
)

// QuarantineLog implements listsync.QuarantineLog in memory.
type QuarantineLog struct {
	mu      sync.Mutex
	entries map[int64][]domain.QuarantineEntry
}

// NewQuarantineLog creates an empty log.
func NewQuarantineLog() *QuarantineLog {
	return &QuarantineLog{entries: make(map[int64][]domain.QuarantineEntry)}
}

func (q *QuarantineLog) Clear(_ context.Context, groupID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, groupID)
	return nil
}

func (q *QuarantineLog) Record(_ context.Context, e domain.QuarantineEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	q.entries[e.GroupID] = append(q.entries[e.GroupID], e)
	return nil
}

func (q *QuarantineLog) List(_ context.Context, groupID int64) ([]domain.QuarantineEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.QuarantineEntry, len(q.entries[groupID]))
	copy(out, q.entries[groupID])
	return out, nil
}
