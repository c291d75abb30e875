package conn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/riskibarqy/draftwire/internal/domain/draft"
	"github.com/riskibarqy/draftwire/internal/platform/logging"
	"github.com/riskibarqy/draftwire/internal/state"
)

var errLinkDown = errors.New("link down")

type fakeTransport struct {
	mu            sync.Mutex
	dialCount     int
	dialErr       map[int]error
	dialErrAll    error
	refreshCount  int
	refreshErr    map[int]error
	refreshErrAll error
	refreshDelay  time.Duration
	writes        []string
	incoming      chan string
	closedCh      chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		dialErr:    map[int]error{},
		refreshErr: map[int]error{},
		incoming:   make(chan string, 16),
	}
}

func (f *fakeTransport) Dial(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialCount++
	if f.dialErrAll != nil {
		return f.dialErrAll
	}
	if err := f.dialErr[f.dialCount]; err != nil {
		return err
	}
	f.closedCh = make(chan struct{})
	return nil
}

func (f *fakeTransport) ReadMessage(ctx context.Context) (string, error) {
	f.mu.Lock()
	closed := f.closedCh
	f.mu.Unlock()
	if closed == nil {
		return "", errors.New("not connected")
	}
	select {
	case frame := <-f.incoming:
		return frame, nil
	case <-closed:
		return "", errors.New("connection closed")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeTransport) WriteMessage(ctx context.Context, frame string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, frame)
	return nil
}

func (f *fakeTransport) RefreshSession(ctx context.Context) error {
	f.mu.Lock()
	f.refreshCount++
	count := f.refreshCount
	delay := f.refreshDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErrAll != nil {
		return f.refreshErrAll
	}
	return f.refreshErr[count]
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closedCh != nil {
		select {
		case <-f.closedCh:
		default:
			close(f.closedCh)
		}
	}
	return nil
}

func (f *fakeTransport) dials() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dialCount
}

func (f *fakeTransport) refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCount
}

func (f *fakeTransport) wroteFrames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func storeWithPicks(t *testing.T, picks int) *state.Store {
	t.Helper()

	s := state.New(0, logging.NewNop())
	if err := s.ConfigureSession(draft.Session{LeagueID: "l1", MyTeamID: 1, TeamCount: 2, Rounds: 8}); err != nil {
		t.Fatalf("ConfigureSession: %v", err)
	}
	if err := s.SetDraftOrder([]int{1, 2}); err != nil {
		t.Fatalf("SetDraftOrder: %v", err)
	}
	for i := 1; i <= picks; i++ {
		pick := draft.Pick{PickNumber: i, PlayerID: fmt.Sprintf("p%d", i), TeamID: (i-1)%2 + 1, Position: draft.PositionRB}
		if err := s.ApplyPick(pick); err != nil {
			t.Fatalf("ApplyPick(%d): %v", i, err)
		}
	}
	return s
}

func TestManagerForwardsFramesAndEchoesPing(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	fc := clockwork.NewFakeClock()
	m := NewManager(ft, state.New(0, logging.NewNop()), DefaultConfig(), fc, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	ft.incoming <- "SELECTED 1 p001 1"
	select {
	case frame := <-m.Frames():
		if frame != "SELECTED 1 p001 1" {
			t.Fatalf("frame = %q", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frame not forwarded")
	}

	ft.incoming <- "PING"
	select {
	case frame := <-m.Frames():
		if frame != "PING" {
			t.Fatalf("frame = %q", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ping not forwarded")
	}
	if got := ft.wroteFrames(); len(got) != 1 || got[0] != "PONG" {
		t.Fatalf("writes = %v, want [PONG]", got)
	}

	status := m.Status()
	if status.State != StateConnected {
		t.Fatalf("state = %s, want %s", status.State, StateConnected)
	}
	if status.MessageCount != 2 {
		t.Fatalf("message count = %d, want 2", status.MessageCount)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
	if _, ok := <-m.Frames(); ok {
		t.Fatal("frames channel left open after Run returned")
	}
}

func TestHandleDisconnectionSingleFlight(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	ft.refreshDelay = 20 * time.Millisecond
	m := NewManager(ft, nil, DefaultConfig(), nil, logging.NewNop())

	const callers = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			<-start
			if err := m.HandleDisconnection(context.Background(), errLinkDown); err != nil {
				t.Errorf("HandleDisconnection: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := ft.refreshes(); got != 1 {
		t.Fatalf("refresh calls = %d, want 1 shared recovery run", got)
	}
	if got := m.Status().Reconnects; got != 1 {
		t.Fatalf("reconnects = %d, want 1", got)
	}
	if m.State() != StateConnected {
		t.Fatalf("state = %s, want %s", m.State(), StateConnected)
	}
}

func TestRecoveryRetriesWithBackoffSchedule(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	ft.dialErr[1] = errLinkDown
	ft.dialErr[2] = errLinkDown

	fc := clockwork.NewFakeClock()
	m := NewManager(ft, nil, DefaultConfig(), fc, logging.NewNop())

	done := make(chan error, 1)
	go func() { done <- m.HandleDisconnection(context.Background(), errLinkDown) }()

	// First attempt is immediate; the next two wait 1s then 2s.
	fc.BlockUntil(1)
	fc.Advance(1 * time.Second)
	fc.BlockUntil(1)
	fc.Advance(2 * time.Second)

	if err := <-done; err != nil {
		t.Fatalf("recovery failed: %v", err)
	}
	if got := ft.dials(); got != 3 {
		t.Fatalf("dials = %d, want 3", got)
	}
	if got := ft.refreshes(); got != 3 {
		t.Fatalf("refreshes = %d, want 3", got)
	}
	if m.State() != StateConnected {
		t.Fatalf("state = %s, want %s", m.State(), StateConnected)
	}
	if got := m.Status().Reconnects; got != 1 {
		t.Fatalf("reconnects = %d, want 1", got)
	}
}

func TestRecoveryFallsBackToFullReconnectWhenRefreshFails(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	ft.refreshErrAll = errors.New("session endpoint down")

	cfg := Config{MaxAttempts: 1}
	m := NewManager(ft, nil, cfg, nil, logging.NewNop())

	if err := m.HandleDisconnection(context.Background(), errLinkDown); err != nil {
		t.Fatalf("HandleDisconnection: %v", err)
	}
	if got := ft.dials(); got == 0 {
		t.Fatal("expected a dial despite the failed session refresh")
	}
	if m.State() != StateConnected {
		t.Fatalf("state = %s, want %s", m.State(), StateConnected)
	}
	if got := m.Status().Reconnects; got != 1 {
		t.Fatalf("reconnects = %d, want 1", got)
	}
}

func TestRecoveryFailsAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	ft.dialErrAll = errLinkDown

	fc := clockwork.NewFakeClock()
	cfg := Config{MaxAttempts: 3, BackoffSchedule: []time.Duration{time.Second, 2 * time.Second}}
	m := NewManager(ft, nil, cfg, fc, logging.NewNop())

	done := make(chan error, 1)
	go func() { done <- m.HandleDisconnection(context.Background(), errLinkDown) }()

	fc.BlockUntil(1)
	fc.Advance(1 * time.Second)
	fc.BlockUntil(1)
	fc.Advance(2 * time.Second)

	err := <-done
	if !errors.Is(err, ErrRecoveryFailed) {
		t.Fatalf("err = %v, want ErrRecoveryFailed", err)
	}
	if m.State() != StateFailed {
		t.Fatalf("state = %s, want %s", m.State(), StateFailed)
	}
	if got := ft.dials(); got != 3 {
		t.Fatalf("dials = %d, want 3", got)
	}
}

func TestRecoveryCapturesOutageAndRunsHooks(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	store := storeWithPicks(t, 2)
	m := NewManager(ft, store, DefaultConfig(), nil, logging.NewNop())

	var outages []OutageSnapshot
	m.OnReconnect(func(ctx context.Context, outage OutageSnapshot) {
		outages = append(outages, outage)
	})

	if err := m.HandleDisconnection(context.Background(), errLinkDown); err != nil {
		t.Fatalf("HandleDisconnection: %v", err)
	}

	if len(outages) != 1 {
		t.Fatalf("hooks ran %d times, want 1", len(outages))
	}
	if outages[0].LastKnownPickNumber != 2 {
		t.Fatalf("last known pick = %d, want 2", outages[0].LastKnownPickNumber)
	}
	if outages[0].Timestamp.IsZero() {
		t.Fatal("outage timestamp not set")
	}

	status := m.Status()
	if status.LastOutage == nil || status.LastOutage.LastKnownPickNumber != 2 {
		t.Fatalf("status outage = %+v, want last known pick 2", status.LastOutage)
	}
}

func TestHeartbeatTimeoutForcesReconnect(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	fc := clockwork.NewFakeClock()
	m := NewManager(ft, nil, DefaultConfig(), fc, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	fc.BlockUntil(1)
	for i := 0; i < 7; i++ {
		fc.Advance(5 * time.Second)
	}

	deadline := time.Now().Add(2 * time.Second)
	for m.Status().Reconnects == 0 {
		if time.Now().After(deadline) {
			t.Fatal("heartbeat timeout never triggered recovery")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if m.State() != StateConnected {
		t.Fatalf("state = %s, want %s", m.State(), StateConnected)
	}
	if got := ft.dials(); got != 2 {
		t.Fatalf("dials = %d, want initial plus recovery", got)
	}

	ft.incoming <- "CLOCK 1 1000"
	select {
	case frame := <-m.Frames():
		if frame != "CLOCK 1 1000" {
			t.Fatalf("frame = %q", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frame not forwarded after recovery")
	}

	cancel()
	<-done
}

func TestRunReturnsTerminalFailure(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	ft.dialErrAll = errLinkDown
	cfg := Config{MaxAttempts: 1}
	m := NewManager(ft, nil, cfg, nil, logging.NewNop())

	err := m.Run(context.Background())
	if !errors.Is(err, ErrRecoveryFailed) {
		t.Fatalf("Run returned %v, want ErrRecoveryFailed", err)
	}
	if m.State() != StateFailed {
		t.Fatalf("state = %s, want %s", m.State(), StateFailed)
	}
	if _, ok := <-m.Frames(); ok {
		t.Fatal("frames channel left open after terminal failure")
	}
}

func TestNormalizeConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := NormalizeConfig(Config{})
	defaults := DefaultConfig()

	if cfg.HeartbeatInterval != defaults.HeartbeatInterval {
		t.Fatalf("interval = %s, want %s", cfg.HeartbeatInterval, defaults.HeartbeatInterval)
	}
	if cfg.HeartbeatTimeout != defaults.HeartbeatTimeout {
		t.Fatalf("timeout = %s, want %s", cfg.HeartbeatTimeout, defaults.HeartbeatTimeout)
	}
	if cfg.MaxAttempts != defaults.MaxAttempts {
		t.Fatalf("attempts = %d, want %d", cfg.MaxAttempts, defaults.MaxAttempts)
	}
	if len(cfg.BackoffSchedule) != 5 || cfg.BackoffSchedule[4] != 16*time.Second {
		t.Fatalf("backoff schedule = %v", cfg.BackoffSchedule)
	}
}
