// Package resolver resolves player identity out of band. Picks land on
// the bench the moment the feed reports them; the directory lookup that
// assigns the real roster bucket runs later, off the hot path.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/panjf2000/ants/v2"

	"github.com/riskibarqy/draftwire/internal/domain/draft"
	"github.com/riskibarqy/draftwire/internal/platform/cache"
	"github.com/riskibarqy/draftwire/internal/platform/logging"
)

// PickPatcher corrects a previously applied pick's roster bucket and
// re-emits the pick notification. Satisfied by the event processor.
type PickPatcher interface {
	PatchPick(playerID string, position draft.RosterPosition) bool
}

// CacheKeyPrefix namespaces directory entries in the shared cache.
// Re-registering the pool invalidates this prefix.
const CacheKeyPrefix = "player:"

// Stats is a point-in-time view of resolution progress.
type Stats struct {
	Pending      int    `json:"pending"`
	Resolved     uint64 `json:"resolved"`
	Failures     uint64 `json:"failures"`
	CacheEntries int    `json:"cacheEntries"`
}

// Service owns the unresolved-player queue. Resolve is the synchronous
// cache-only path the processor calls per pick; ResolvePending drains
// the queue through a bounded worker pool.
type Service struct {
	directory draft.Directory
	patcher   PickPatcher
	cache     *cache.Store
	pool      *ants.Pool
	clock     clockwork.Clock
	logger    *logging.Logger
	cfg       Config

	mu       sync.Mutex
	pending  []string
	queued   map[string]struct{}
	resolved atomic.Uint64
	failures atomic.Uint64
}

func New(directory draft.Directory, patcher PickPatcher, store *cache.Store, cfg Config, clock clockwork.Clock, logger *logging.Logger) (*Service, error) {
	cfg = NormalizeConfig(cfg)
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = logging.Default()
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create resolution worker pool: %w", err)
	}

	return &Service{
		directory: directory,
		patcher:   patcher,
		cache:     store,
		pool:      pool,
		clock:     clock,
		logger:    logger,
		cfg:       cfg,
		queued:    make(map[string]struct{}),
	}, nil
}

// Resolve is the processor-facing lookup. It only consults the cache so
// the feed goroutine never waits on the directory; a miss queues the
// player for the next drain and reports the bench bucket.
func (s *Service) Resolve(playerID string) (draft.RosterPosition, bool) {
	if v, ok := s.cache.Get(context.Background(), playerKey(playerID)); ok {
		if info, ok := v.(draft.PlayerInfo); ok {
			return positionOf(info), true
		}
	}
	s.enqueue(playerID)
	return draft.PositionBench, false
}

// ResolvePending drains the queue through the worker pool and reports
// how many picks were patched. Players the directory does not know yet
// go back on the queue for the next drain.
func (s *Service) ResolvePending(ctx context.Context) (int, error) {
	batch := s.takeBatch()
	if len(batch) == 0 {
		return 0, nil
	}

	var patched atomic.Int32
	var wg sync.WaitGroup
	for i, playerID := range batch {
		playerID := playerID
		wg.Add(1)
		if err := s.pool.Submit(func() {
			defer wg.Done()
			if s.resolveOne(ctx, playerID) {
				patched.Add(1)
			}
		}); err != nil {
			wg.Done()
			s.requeue(batch[i:])
			wg.Wait()
			return int(patched.Load()), fmt.Errorf("submit resolution task: %w", err)
		}
	}
	wg.Wait()

	return int(patched.Load()), nil
}

// RunPeriodic drains the queue on an interval until the context ends.
func (s *Service) RunPeriodic(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if _, err := s.ResolvePending(ctx); err != nil {
				s.logger.WarnContext(ctx, "pending resolution drain failed", "error", err)
			}
		}
	}
}

// DisplayName resolves a player's name through the directory, falling
// back to the numbered placeholder when identity is still unknown.
func (s *Service) DisplayName(ctx context.Context, playerID string) string {
	info, ok, err := s.lookup(ctx, playerID)
	if err != nil || !ok {
		return draft.DisplayName(playerID, "")
	}
	return draft.DisplayName(playerID, info.Name)
}

func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Service) Stats() Stats {
	s.mu.Lock()
	pending := len(s.pending)
	s.mu.Unlock()

	return Stats{
		Pending:      pending,
		Resolved:     s.resolved.Load(),
		Failures:     s.failures.Load(),
		CacheEntries: s.cache.Len(),
	}
}

// Close releases the worker pool. Pending entries are dropped.
func (s *Service) Close() {
	s.pool.Release()
}

func (s *Service) resolveOne(ctx context.Context, playerID string) bool {
	info, ok, err := s.lookup(ctx, playerID)
	if err != nil {
		s.failures.Add(1)
		s.enqueue(playerID)
		s.logger.WarnContext(ctx, "player lookup failed", "player_id", playerID, "error", err)
		return false
	}
	if !ok {
		// The pool may register this player later; keep trying.
		s.enqueue(playerID)
		return false
	}

	if !s.patcher.PatchPick(playerID, positionOf(info)) {
		return false
	}
	s.resolved.Add(1)
	s.logger.Info("deferred position resolved",
		"player_id", playerID,
		"position", string(positionOf(info)),
	)
	return true
}

func (s *Service) lookup(ctx context.Context, playerID string) (draft.PlayerInfo, bool, error) {
	if v, ok := s.cache.Get(ctx, playerKey(playerID)); ok {
		if info, ok := v.(draft.PlayerInfo); ok {
			return info, true, nil
		}
	}

	info, ok, err := s.directory.PlayerByID(ctx, playerID)
	if err != nil || !ok {
		return draft.PlayerInfo{}, ok, err
	}
	s.cache.Set(ctx, playerKey(playerID), info)
	return info, true, nil
}

func (s *Service) enqueue(playerID string) {
	if strings.TrimSpace(playerID) == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queued[playerID]; ok {
		return
	}
	s.queued[playerID] = struct{}{}
	s.pending = append(s.pending, playerID)
}

func (s *Service) requeue(playerIDs []string) {
	for _, id := range playerIDs {
		s.enqueue(id)
	}
}

func (s *Service) takeBatch() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}

	batch := s.pending
	s.pending = nil
	for _, id := range batch {
		delete(s.queued, id)
	}
	return batch
}

func positionOf(info draft.PlayerInfo) draft.RosterPosition {
	if info.Position == "" {
		return draft.PositionBench
	}
	return info.Position
}

func playerKey(playerID string) string {
	return CacheKeyPrefix + playerID
}
