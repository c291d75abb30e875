package draft

import "context"

// Directory describes player-identity lookups needed by deferred
// position resolution and name search.
type Directory interface {
	UpsertPlayers(ctx context.Context, players []PlayerInfo) (int, error)
	PlayerByID(ctx context.Context, playerID string) (PlayerInfo, bool, error)
	AllPlayers(ctx context.Context) ([]PlayerInfo, error)
}
