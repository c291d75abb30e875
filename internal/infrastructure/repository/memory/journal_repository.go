package memory

import (
	"context"
	"sync"

	"github.com/riskibarqy/draftwire/internal/domain/journal"
)

const defaultJournalCapacity = 10000

// JournalRepository keeps the newest feed frames in memory for runs
// without a database. Oldest entries fall off once capacity is hit.
type JournalRepository struct {
	mu       sync.RWMutex
	entries  []journal.Entry
	capacity int
	total    int64
}

func NewJournalRepository(capacity int) *JournalRepository {
	if capacity <= 0 {
		capacity = defaultJournalCapacity
	}
	return &JournalRepository{capacity: capacity}
}

func (r *JournalRepository) AppendMany(_ context.Context, entries []journal.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entries...)
	r.total += int64(len(entries))
	if overflow := len(r.entries) - r.capacity; overflow > 0 {
		r.entries = append(r.entries[:0:0], r.entries[overflow:]...)
	}

	return nil
}

func (r *JournalRepository) Recent(_ context.Context, kind string, limit int) ([]journal.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > len(r.entries) {
		limit = len(r.entries)
	}

	out := make([]journal.Entry, 0, limit)
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if kind != "" && r.entries[i].Kind != kind {
			continue
		}
		out = append(out, r.entries[i])
	}

	return out, nil
}

func (r *JournalRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total, nil
}
