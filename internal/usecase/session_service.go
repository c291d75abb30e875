package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/riskibarqy/draftwire/internal/domain/draft"
	"github.com/riskibarqy/draftwire/internal/platform/cache"
	"github.com/riskibarqy/draftwire/internal/platform/logging"
	"github.com/riskibarqy/draftwire/internal/resolver"
	"github.com/riskibarqy/draftwire/internal/state"
)

type SessionInput struct {
	LeagueID  string
	MyTeamID  int
	TeamCount int
	Rounds    int
	// DraftOrder is optional. When present it must list every team once,
	// my team included.
	DraftOrder []int
}

type PoolPlayerInput struct {
	ID       string
	Name     string
	Position string
	ProTeam  string
}

type PoolRegistration struct {
	Accepted  int `json:"accepted"`
	Available int `json:"available"`
}

// SessionService owns the write path the operator drives before and
// between drafts: session setup and player pool registration.
type SessionService struct {
	store     *state.Store
	directory draft.Directory
	cache     *cache.Store
	logger    *logging.Logger
}

func NewSessionService(store *state.Store, directory draft.Directory, cacheStore *cache.Store, logger *logging.Logger) *SessionService {
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionService{
		store:     store,
		directory: directory,
		cache:     cacheStore,
		logger:    logger,
	}
}

// Configure resets the engine for a new draft and, when the order is
// known up front, records it in the same call.
func (s *SessionService) Configure(ctx context.Context, input SessionInput) (state.Summary, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SessionService.Configure")
	defer span.End()

	session := draft.Session{
		LeagueID:  strings.TrimSpace(input.LeagueID),
		MyTeamID:  input.MyTeamID,
		TeamCount: input.TeamCount,
		Rounds:    input.Rounds,
	}
	if err := session.Validate(); err != nil {
		return state.Summary{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.store.ConfigureSession(session); err != nil {
		return state.Summary{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(input.DraftOrder) > 0 {
		if err := s.store.SetDraftOrder(input.DraftOrder); err != nil {
			return state.Summary{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	s.logger.InfoContext(ctx, "session configured",
		"league_id", session.LeagueID,
		"team_count", session.TeamCount,
		"rounds", session.Rounds,
		"order_known", len(input.DraftOrder) > 0,
	)
	return s.store.Summary(), nil
}

// RegisterPool upserts the rows into the directory, rebuilds the
// available pool from their ids, and invalidates the player cache so
// stale bench defaults get re-resolved against the fresh rows.
func (s *SessionService) RegisterPool(ctx context.Context, players []PoolPlayerInput) (PoolRegistration, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SessionService.RegisterPool")
	defer span.End()

	if len(players) == 0 {
		return PoolRegistration{}, fmt.Errorf("%w: player pool is empty", ErrInvalidInput)
	}

	rows := make([]draft.PlayerInfo, 0, len(players))
	ids := make([]string, 0, len(players))
	seen := make(map[string]struct{}, len(players))
	for _, p := range players {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rows = append(rows, draft.PlayerInfo{
			ID:       id,
			Name:     strings.TrimSpace(p.Name),
			Position: draft.NormalizePosition(p.Position),
			ProTeam:  strings.TrimSpace(p.ProTeam),
		})
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return PoolRegistration{}, fmt.Errorf("%w: no usable player ids in pool", ErrInvalidInput)
	}

	accepted, err := s.directory.UpsertPlayers(ctx, rows)
	if err != nil {
		return PoolRegistration{}, fmt.Errorf("upsert directory players: %w", err)
	}

	available := s.store.InitializePlayerPool(ids)
	if s.cache != nil {
		s.cache.DeletePrefix(ctx, resolver.CacheKeyPrefix)
	}

	s.logger.InfoContext(ctx, "player pool registered",
		"submitted", len(players),
		"accepted", accepted,
		"available", available,
	)
	return PoolRegistration{Accepted: accepted, Available: available}, nil
}
