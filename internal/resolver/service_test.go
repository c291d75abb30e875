package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/riskibarqy/draftwire/internal/domain/draft"
	"github.com/riskibarqy/draftwire/internal/platform/cache"
	"github.com/riskibarqy/draftwire/internal/platform/logging"
)

type stubDirectory struct {
	mu      sync.Mutex
	players map[string]draft.PlayerInfo
	err     error
	lookups int
}

func newStubDirectory(players ...draft.PlayerInfo) *stubDirectory {
	d := &stubDirectory{players: make(map[string]draft.PlayerInfo, len(players))}
	for _, p := range players {
		d.players[p.ID] = p
	}
	return d
}

func (d *stubDirectory) UpsertPlayers(_ context.Context, players []draft.PlayerInfo) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range players {
		d.players[p.ID] = p
	}
	return len(players), nil
}

func (d *stubDirectory) PlayerByID(_ context.Context, playerID string) (draft.PlayerInfo, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups++
	if d.err != nil {
		return draft.PlayerInfo{}, false, d.err
	}
	info, ok := d.players[playerID]
	return info, ok, nil
}

func (d *stubDirectory) AllPlayers(_ context.Context) ([]draft.PlayerInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]draft.PlayerInfo, 0, len(d.players))
	for _, p := range d.players {
		out = append(out, p)
	}
	return out, nil
}

func (d *stubDirectory) lookupCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lookups
}

func (d *stubDirectory) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

type patchCall struct {
	playerID string
	position draft.RosterPosition
}

type stubPatcher struct {
	mu      sync.Mutex
	calls   []patchCall
	rejects map[string]bool
}

func (p *stubPatcher) PatchPick(playerID string, position draft.RosterPosition) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, patchCall{playerID: playerID, position: position})
	return !p.rejects[playerID]
}

func (p *stubPatcher) patched() []patchCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]patchCall(nil), p.calls...)
}

func newTestService(t *testing.T, directory draft.Directory, patcher PickPatcher) *Service {
	t.Helper()

	svc, err := New(directory, patcher, cache.NewStore(time.Minute), DefaultConfig(), clockwork.NewFakeClock(), logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func TestResolveMissQueuesAndDefaultsToBench(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newStubDirectory(), &stubPatcher{})

	pos, ok := svc.Resolve("p001")
	if ok || pos != draft.PositionBench {
		t.Fatalf("Resolve = %s %v, want BENCH false", pos, ok)
	}
	if got := svc.PendingCount(); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}

	// Same player again must not queue twice.
	svc.Resolve("p001")
	if got := svc.PendingCount(); got != 1 {
		t.Fatalf("pending after duplicate = %d, want 1", got)
	}
}

func TestResolveHitsWarmCache(t *testing.T) {
	t.Parallel()

	store := cache.NewStore(time.Minute)
	svc, err := New(newStubDirectory(), &stubPatcher{}, store, DefaultConfig(), clockwork.NewFakeClock(), logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(svc.Close)

	store.Set(context.Background(), CacheKeyPrefix+"p007", draft.PlayerInfo{ID: "p007", Name: "CMC", Position: draft.PositionRB})

	pos, ok := svc.Resolve("p007")
	if !ok || pos != draft.PositionRB {
		t.Fatalf("Resolve = %s %v, want RB true", pos, ok)
	}
	if got := svc.PendingCount(); got != 0 {
		t.Fatalf("pending = %d, want 0", got)
	}
}

func TestResolvePendingPatchesKnownPlayers(t *testing.T) {
	t.Parallel()

	directory := newStubDirectory(
		draft.PlayerInfo{ID: "p001", Name: "Justin Jefferson", Position: draft.PositionWR},
		draft.PlayerInfo{ID: "p002", Name: "Josh Allen", Position: draft.PositionQB},
	)
	patcher := &stubPatcher{}
	svc := newTestService(t, directory, patcher)

	for _, id := range []string{"p001", "p002", "p003"} {
		svc.Resolve(id)
	}

	patched, err := svc.ResolvePending(context.Background())
	if err != nil {
		t.Fatalf("ResolvePending: %v", err)
	}
	if patched != 2 {
		t.Fatalf("patched = %d, want 2", patched)
	}

	got := map[string]draft.RosterPosition{}
	for _, call := range patcher.patched() {
		got[call.playerID] = call.position
	}
	if got["p001"] != draft.PositionWR || got["p002"] != draft.PositionQB {
		t.Fatalf("patch calls = %v", got)
	}

	// p003 stays queued until the directory learns it.
	if got := svc.PendingCount(); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}

	if _, err := directory.UpsertPlayers(context.Background(), []draft.PlayerInfo{
		{ID: "p003", Name: "Sam Laporta", Position: draft.PositionTE},
	}); err != nil {
		t.Fatalf("UpsertPlayers: %v", err)
	}

	patched, err = svc.ResolvePending(context.Background())
	if err != nil {
		t.Fatalf("second ResolvePending: %v", err)
	}
	if patched != 1 {
		t.Fatalf("second drain patched = %d, want 1", patched)
	}
	if got := svc.PendingCount(); got != 0 {
		t.Fatalf("pending after second drain = %d, want 0", got)
	}
	if got := svc.Stats().Resolved; got != 3 {
		t.Fatalf("resolved = %d, want 3", got)
	}
}

func TestResolvePendingDropsPicksAlreadyInPlace(t *testing.T) {
	t.Parallel()

	directory := newStubDirectory(draft.PlayerInfo{ID: "p009", Position: draft.PositionBench})
	patcher := &stubPatcher{rejects: map[string]bool{"p009": true}}
	svc := newTestService(t, directory, patcher)

	svc.Resolve("p009")
	patched, err := svc.ResolvePending(context.Background())
	if err != nil {
		t.Fatalf("ResolvePending: %v", err)
	}
	if patched != 0 {
		t.Fatalf("patched = %d, want 0", patched)
	}
	if got := svc.PendingCount(); got != 0 {
		t.Fatalf("identity resolved, queue should drop the player; pending = %d", got)
	}
	if got := svc.Stats().Resolved; got != 0 {
		t.Fatalf("resolved = %d, want 0", got)
	}
}

func TestResolvePendingRequeuesOnDirectoryError(t *testing.T) {
	t.Parallel()

	directory := newStubDirectory(draft.PlayerInfo{ID: "p001", Position: draft.PositionWR})
	directory.setErr(errors.New("directory unavailable"))
	patcher := &stubPatcher{}
	svc := newTestService(t, directory, patcher)

	svc.Resolve("p001")
	patched, err := svc.ResolvePending(context.Background())
	if err != nil {
		t.Fatalf("ResolvePending: %v", err)
	}
	if patched != 0 {
		t.Fatalf("patched = %d, want 0", patched)
	}
	if got := svc.PendingCount(); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}
	if got := svc.Stats().Failures; got != 1 {
		t.Fatalf("failures = %d, want 1", got)
	}

	directory.setErr(nil)
	patched, err = svc.ResolvePending(context.Background())
	if err != nil {
		t.Fatalf("retry ResolvePending: %v", err)
	}
	if patched != 1 {
		t.Fatalf("retry patched = %d, want 1", patched)
	}
}

func TestDisplayNameFallsBackToPlaceholder(t *testing.T) {
	t.Parallel()

	directory := newStubDirectory(draft.PlayerInfo{ID: "p001", Name: "Tyreek Hill", Position: draft.PositionWR})
	svc := newTestService(t, directory, &stubPatcher{})
	ctx := context.Background()

	if got := svc.DisplayName(ctx, "p001"); got != "Tyreek Hill" {
		t.Fatalf("DisplayName = %q", got)
	}
	if got := svc.DisplayName(ctx, "x9"); got != "Player #x9" {
		t.Fatalf("DisplayName fallback = %q", got)
	}

	// Second hit for the same player comes from the cache.
	before := directory.lookupCount()
	svc.DisplayName(ctx, "p001")
	if got := directory.lookupCount(); got != before {
		t.Fatalf("lookups = %d, want %d (cached)", got, before)
	}
}

func TestRunPeriodicDrainsQueue(t *testing.T) {
	t.Parallel()

	directory := newStubDirectory(draft.PlayerInfo{ID: "p001", Position: draft.PositionQB})
	patcher := &stubPatcher{}
	fc := clockwork.NewFakeClock()

	svc, err := New(directory, patcher, cache.NewStore(time.Minute), DefaultConfig(), fc, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(svc.Close)

	svc.Resolve("p001")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunPeriodic(ctx) }()

	fc.BlockUntil(1)
	fc.Advance(DefaultConfig().DrainInterval)

	deadline := time.Now().Add(2 * time.Second)
	for len(patcher.patched()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("periodic drain never patched the pick")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("RunPeriodic returned %v, want context.Canceled", err)
	}
}
