// Package conn supervises the feed link. It pumps inbound frames toward
// the processor, watches for heartbeat silence, and runs the reconnect
// ladder when the link drops.
package conn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sourcegraph/conc"

	"github.com/riskibarqy/draftwire/internal/platform/logging"
	"github.com/riskibarqy/draftwire/internal/platform/resilience"
	"github.com/riskibarqy/draftwire/internal/protocol"
	"github.com/riskibarqy/draftwire/internal/state"
)

// State is the connection lifecycle. Failed is terminal.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateReconnecting State = "RECONNECTING"
	StateFailed       State = "FAILED"
)

var (
	ErrRecoveryFailed   = errors.New("connection recovery failed")
	ErrHeartbeatTimeout = errors.New("heartbeat timeout")
)

// Transport is the feed link the manager supervises. Dial establishes a
// fresh connection, replacing any existing one. ReadMessage blocks
// until a frame arrives, the connection breaks, or the context is
// cancelled. RefreshSession renews vendor credentials without a full
// reconnect.
type Transport interface {
	Dial(ctx context.Context) error
	ReadMessage(ctx context.Context) (string, error)
	WriteMessage(ctx context.Context, frame string) error
	RefreshSession(ctx context.Context) error
	Close() error
}

// OutageSnapshot freezes where the draft stood when the link dropped,
// so the post-reconnect resync can report what was missed.
type OutageSnapshot struct {
	LastKnownPickNumber int       `json:"lastKnownPickNumber"`
	MessageCount        uint64    `json:"messageCount"`
	Timestamp           time.Time `json:"timestamp"`
}

// Status is the read model for the ops surface.
type Status struct {
	State         State           `json:"state"`
	LastHeartbeat time.Time       `json:"lastHeartbeat"`
	MessageCount  uint64          `json:"messageCount"`
	Reconnects    uint64          `json:"reconnects"`
	LastOutage    *OutageSnapshot `json:"lastOutage,omitempty"`
}

type Manager struct {
	transport Transport
	store     *state.Store
	cfg       Config
	clock     clockwork.Clock
	logger    *logging.Logger

	frames chan string
	single resilience.SingleFlight

	mu            sync.Mutex
	state         State
	epoch         uint64
	lastHeartbeat time.Time
	messageCount  uint64
	reconnects    uint64
	lastOutage    *OutageSnapshot
	onReconnect   []func(ctx context.Context, outage OutageSnapshot)
	runCancel     context.CancelFunc
	terminalErr   error
}

func NewManager(transport Transport, store *state.Store, cfg Config, clock clockwork.Clock, logger *logging.Logger) *Manager {
	cfg = NormalizeConfig(cfg)
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Manager{
		transport: transport,
		store:     store,
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
		frames:    make(chan string, cfg.FrameBuffer),
		state:     StateDisconnected,
	}
}

// Frames is the stream of raw inbound frames. The channel closes when
// Run returns.
func (m *Manager) Frames() <-chan string {
	return m.frames
}

// OnReconnect registers a hook invoked after each successful recovery.
// Wiring-time only, before Run.
func (m *Manager) OnReconnect(fn func(ctx context.Context, outage OutageSnapshot)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnect = append(m.onReconnect, fn)
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := Status{
		State:         m.state,
		LastHeartbeat: m.lastHeartbeat,
		MessageCount:  m.messageCount,
		Reconnects:    m.reconnects,
	}
	if m.lastOutage != nil {
		outage := *m.lastOutage
		status.LastOutage = &outage
	}
	return status
}

// Run connects and pumps frames until the context is cancelled or
// recovery fails terminally. The frames channel closes on return.
func (m *Manager) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	m.mu.Lock()
	m.runCancel = cancel
	m.mu.Unlock()
	defer close(m.frames)

	m.setState(StateConnecting)
	if err := m.transport.Dial(ctx); err != nil {
		if rerr := m.HandleDisconnection(ctx, fmt.Errorf("initial dial: %w", err)); rerr != nil {
			cancel()
			return rerr
		}
	} else {
		m.markConnected(false)
		m.logger.Info("feed connected")
	}

	var wg conc.WaitGroup
	wg.Go(func() { m.monitorLoop(ctx) })

	err := m.readLoop(ctx)
	cancel()
	wg.Wait()

	// Recovery failures detected on the monitor goroutine surface
	// through the run context; report the real cause.
	m.mu.Lock()
	if m.terminalErr != nil {
		err = m.terminalErr
	}
	m.mu.Unlock()
	return err
}

// readLoop owns the inbound pump. Every frame refreshes the heartbeat;
// read errors from the live connection trigger recovery, errors from a
// connection that recovery already replaced are ignored.
func (m *Manager) readLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		epoch := m.currentEpoch()
		frame, err := m.transport.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if m.currentEpoch() != epoch {
				continue
			}
			if rerr := m.HandleDisconnection(ctx, err); rerr != nil {
				return rerr
			}
			continue
		}

		m.touch()
		if protocol.IsPing(frame) {
			if werr := m.transport.WriteMessage(ctx, string(protocol.KindPong)); werr != nil {
				m.logger.Debug("pong write failed", "error", werr)
			}
		}

		select {
		case m.frames <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// monitorLoop checks for heartbeat silence on a fixed cadence and
// forces recovery when the feed has gone quiet for too long.
func (m *Manager) monitorLoop(ctx context.Context) {
	ticker := m.clock.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		m.mu.Lock()
		connected := m.state == StateConnected
		silence := m.clock.Since(m.lastHeartbeat)
		m.mu.Unlock()

		if !connected || silence <= m.cfg.HeartbeatTimeout {
			continue
		}

		m.logger.Warn("feed heartbeat silence exceeded timeout",
			"silence", silence.String(),
			"timeout", m.cfg.HeartbeatTimeout.String(),
		)
		if err := m.HandleDisconnection(ctx, fmt.Errorf("%w: silent for %s", ErrHeartbeatTimeout, silence)); err != nil {
			return
		}
	}
}

// HandleDisconnection runs the recovery ladder. Concurrent callers
// collapse into a single run and share its outcome.
func (m *Manager) HandleDisconnection(ctx context.Context, cause error) error {
	_, err, shared := m.single.Do("reconnect", func() (any, error) {
		return nil, m.recover(ctx, cause)
	})
	if shared {
		m.logger.Debug("recovery already in flight, shared outcome")
	}
	return err
}

func (m *Manager) recover(ctx context.Context, cause error) error {
	outage := m.captureOutage()
	m.setState(StateReconnecting)

	m.logger.Warn("feed connection lost",
		"error", cause,
		"last_known_pick", outage.LastKnownPickNumber,
		"messages", outage.MessageCount,
	)

	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := m.backoffFor(attempt)
			m.logger.Info("waiting before reconnect attempt",
				"attempt", attempt,
				"delay", delay.String(),
			)
			select {
			case <-m.clock.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := m.reconnectOnce(ctx); err != nil {
			m.logger.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
			continue
		}

		m.markConnected(true)
		m.logger.Info("feed connection restored", "attempt", attempt)
		m.resync(ctx, outage)
		return nil
	}

	err := fmt.Errorf("%w: %d attempts exhausted", ErrRecoveryFailed, m.cfg.MaxAttempts)
	m.mu.Lock()
	m.state = StateFailed
	m.terminalErr = err
	cancel := m.runCancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return err
}

// reconnectOnce renews the vendor session first, then tears the old
// connection down and dials fresh. Stale sessions are the common cause
// of redial loops, so the refresh goes first — but a failed refresh is
// advisory only: the dial decides the attempt, since the websocket may
// be reachable even when the session endpoint is not.
func (m *Manager) reconnectOnce(ctx context.Context) error {
	if err := m.transport.RefreshSession(ctx); err != nil {
		m.logger.Warn("session refresh failed, falling back to full reconnect", "error", err)
	}
	if err := m.transport.Close(); err != nil {
		m.logger.Debug("teardown before redial", "error", err)
	}
	if err := m.transport.Dial(ctx); err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	return nil
}

func (m *Manager) resync(ctx context.Context, outage OutageSnapshot) {
	missed := 0
	if m.store != nil {
		if current := m.store.CurrentPick(); current > outage.LastKnownPickNumber {
			missed = current - outage.LastKnownPickNumber
		}
	}
	m.logger.Info("resync after reconnect",
		"last_known_pick", outage.LastKnownPickNumber,
		"missed_picks", missed,
	)

	m.mu.Lock()
	hooks := make([]func(context.Context, OutageSnapshot), len(m.onReconnect))
	copy(hooks, m.onReconnect)
	m.mu.Unlock()
	for _, hook := range hooks {
		hook(ctx, outage)
	}
}

func (m *Manager) captureOutage() OutageSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	outage := OutageSnapshot{
		MessageCount: m.messageCount,
		Timestamp:    m.clock.Now(),
	}
	if m.store != nil {
		outage.LastKnownPickNumber = m.store.CurrentPick()
	}
	m.lastOutage = &outage
	return outage
}

func (m *Manager) backoffFor(attempt int) time.Duration {
	idx := attempt - 2
	if idx >= len(m.cfg.BackoffSchedule) {
		idx = len(m.cfg.BackoffSchedule) - 1
	}
	return m.cfg.BackoffSchedule[idx]
}

func (m *Manager) touch() {
	m.mu.Lock()
	m.lastHeartbeat = m.clock.Now()
	m.messageCount++
	m.mu.Unlock()
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) markConnected(reconnect bool) {
	m.mu.Lock()
	m.state = StateConnected
	m.lastHeartbeat = m.clock.Now()
	m.epoch++
	if reconnect {
		m.reconnects++
	}
	m.mu.Unlock()
}

func (m *Manager) currentEpoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}
