package memory

import (
	"context"
	"sync"

	"github.com/riskibarqy/draftwire/internal/domain/draft"
)

// DirectoryRepository keeps the player directory in process memory.
// Entries arrive through pool registration and upserts replace earlier
// rows for the same player id.
type DirectoryRepository struct {
	mu      sync.RWMutex
	players map[string]draft.PlayerInfo
	order   []string
}

func NewDirectoryRepository(players []draft.PlayerInfo) *DirectoryRepository {
	r := &DirectoryRepository{
		players: make(map[string]draft.PlayerInfo, len(players)),
	}
	_, _ = r.UpsertPlayers(context.Background(), players)
	return r
}

func (r *DirectoryRepository) UpsertPlayers(_ context.Context, players []draft.PlayerInfo) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accepted := 0
	for _, p := range players {
		if err := p.Validate(); err != nil {
			continue
		}
		if _, ok := r.players[p.ID]; !ok {
			r.order = append(r.order, p.ID)
		}
		r.players[p.ID] = p
		accepted++
	}

	return accepted, nil
}

func (r *DirectoryRepository) PlayerByID(_ context.Context, playerID string) (draft.PlayerInfo, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.players[playerID]
	if !ok {
		return draft.PlayerInfo{}, false, nil
	}

	return info, true, nil
}

func (r *DirectoryRepository) AllPlayers(_ context.Context) ([]draft.PlayerInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]draft.PlayerInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.players[id])
	}

	return out, nil
}
