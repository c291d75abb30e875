// Package processor routes parsed feed frames into the draft state
// store. A single Run loop owns every feed-driven mutation; everything
// downstream observes state through registered listeners or store
// reads.
package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/riskibarqy/draftwire/internal/domain/draft"
	"github.com/riskibarqy/draftwire/internal/platform/logging"
	"github.com/riskibarqy/draftwire/internal/protocol"
	"github.com/riskibarqy/draftwire/internal/state"
)

var procTracer = otel.Tracer("draftwire/internal/processor")
var noopSpan = trace.SpanFromContext(context.Background())

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	parent := trace.SpanFromContext(ctx)
	if !parent.SpanContext().IsValid() {
		// Feed frames arrive without a parent span; only traced
		// callers (resync, ops requests) pay for child spans.
		return ctx, noopSpan
	}
	return procTracer.Start(ctx, name)
}

// PositionResolver maps a player id to a roster bucket at pick time.
// Implementations answer from whatever they already know and must not
// block; unknown players report ok=false (queueing background work if
// they can) and the pick lands on the bench until a patch arrives.
type PositionResolver interface {
	Resolve(playerID string) (draft.RosterPosition, bool)
}

// benchResolver is the default: nothing is ever known.
type benchResolver struct{}

func (benchResolver) Resolve(string) (draft.RosterPosition, bool) {
	return draft.PositionBench, false
}

// FrameRecorder journals frames for replay and audit. Record must not
// block the processing loop; lossy implementations drop on
// backpressure.
type FrameRecorder interface {
	Record(msg protocol.Message, parseError bool)
}

type Processor struct {
	store    *state.Store
	resolver PositionResolver
	recorder FrameRecorder
	logger   *logging.Logger

	mu         sync.Mutex
	listeners  []Listener
	stats      counters
	lastStatus draft.Status

	now func() time.Time
}

func New(store *state.Store, resolver PositionResolver, recorder FrameRecorder, logger *logging.Logger) *Processor {
	if resolver == nil {
		resolver = benchResolver{}
	}
	if logger == nil {
		logger = logging.Default()
	}

	now := time.Now
	return &Processor{
		store:    store,
		resolver: resolver,
		recorder: recorder,
		logger:   logger,
		stats: counters{
			byKind:    make(map[protocol.Kind]uint64),
			startedAt: now(),
		},
		lastStatus: draft.StatusWaiting,
		now:        now,
	}
}

// Register subscribes a listener to state-change events. Registration
// is expected at wiring time, before Run starts consuming frames.
func (p *Processor) Register(listener Listener) {
	if listener == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, listener)
}

// Run consumes frames until the channel closes or the context is
// cancelled. It is the single writer for feed-driven mutations.
func (p *Processor) Run(ctx context.Context, frames <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			p.Process(ctx, frame)
		}
	}
}

// Process handles one raw frame: count it, parse it, route it, journal
// it. Malformed frames are counted and skipped, never fatal.
func (p *Processor) Process(ctx context.Context, frame string) {
	ctx, span := startSpan(ctx, "processor.Process")
	defer span.End()

	msg, err := protocol.Parse(frame)

	p.mu.Lock()
	p.stats.messagesReceived++
	p.stats.lastFrameAt = p.now()
	p.stats.byKind[msg.Kind]++
	if err != nil {
		p.stats.parseErrors++
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.WarnContext(ctx, "malformed feed frame", "error", err, "frame", frame)
		p.recordFrame(msg, true)
		return
	}

	switch msg.Kind {
	case protocol.KindSelected:
		p.handleSelected(ctx, msg)
	case protocol.KindSelecting:
		p.handleSelecting(ctx, msg)
	case protocol.KindClock:
		p.handleClock(msg)
	case protocol.KindAutodraft:
		p.handleAutodraft(msg)
	case protocol.KindToken, protocol.KindJoined, protocol.KindLeft, protocol.KindPing, protocol.KindPong:
		p.bump(func(c *counters) { c.presenceFrames++ })
	default:
		p.bump(func(c *counters) { c.unknownFrames++ })
		p.logger.Debug("unrecognized feed frame", "frame", frame)
	}

	p.recordFrame(msg, false)
}

func (p *Processor) handleSelected(ctx context.Context, msg protocol.Message) {
	position, resolved := p.resolver.Resolve(msg.PlayerID)
	if !resolved && position == "" {
		position = draft.PositionBench
	}

	pick := draft.Pick{
		PickNumber: msg.PickNumber,
		PlayerID:   msg.PlayerID,
		TeamID:     msg.TeamID,
		Position:   position,
		Timestamp:  p.now(),
	}

	if err := p.store.ApplyPick(pick); err != nil {
		p.bump(func(c *counters) { c.stateUpdateErrors++ })
		if errors.Is(err, state.ErrDuplicatePick) || errors.Is(err, state.ErrPlayerAlreadyDrafted) {
			p.logger.WarnContext(ctx, "duplicate selection ignored",
				"pick", msg.PickNumber,
				"player_id", msg.PlayerID,
				"error", err,
			)
		} else {
			p.logger.ErrorContext(ctx, "selection rejected",
				"pick", msg.PickNumber,
				"player_id", msg.PlayerID,
				"error", err,
			)
		}
		return
	}

	p.bump(func(c *counters) {
		c.picksProcessed++
		if !resolved {
			c.picksDeferred++
		}
	})

	p.logger.Info("pick applied",
		"pick", pick.PickNumber,
		"team_id", pick.TeamID,
		"player_id", pick.PlayerID,
		"position", string(pick.Position),
		"deferred", !resolved,
	)

	p.emit(func(l Listener) {
		l.OnPickProcessed(PickEvent{Pick: pick, MemberID: msg.MemberID, Deferred: !resolved})
	})
	p.emitStatusIfChanged()
}

func (p *Processor) handleSelecting(ctx context.Context, msg protocol.Message) {
	// Advance off the pick counter, not the history length: a dropped
	// SELECTED frame must not make consecutive SELECTING frames reuse
	// the same number.
	pickNumber := p.store.CurrentPick() + 1
	p.store.StartNewPick(msg.TeamID, pickNumber, msg.TimeLimitMs)

	p.bump(func(c *counters) { c.pickStarts++ })
	p.logger.DebugContext(ctx, "team on the clock",
		"team_id", msg.TeamID,
		"pick", pickNumber,
		"time_limit_ms", msg.TimeLimitMs,
	)

	p.emit(func(l Listener) {
		l.OnPickStarted(PickStartEvent{TeamID: msg.TeamID, PickNumber: pickNumber, TimeLimitMs: msg.TimeLimitMs})
	})
	p.emitStatusIfChanged()
}

func (p *Processor) handleClock(msg protocol.Message) {
	p.store.UpdateClock(msg.TeamID, msg.TimeRemainingMs, msg.Round)
	p.bump(func(c *counters) { c.clockUpdates++ })

	p.emit(func(l Listener) {
		l.OnClockUpdate(ClockEvent{TeamID: msg.TeamID, RemainingMs: msg.TimeRemainingMs, Round: msg.Round})
	})
}

func (p *Processor) handleAutodraft(msg protocol.Message) {
	p.store.SetAutodraft(msg.TeamID, msg.Enabled)
	p.bump(func(c *counters) { c.autodraftUpdates++ })
}

// PatchPick rewrites the roster bucket of an applied pick once deferred
// resolution lands, re-emitting the pick notification with the
// corrected position. Reports whether anything changed.
func (p *Processor) PatchPick(playerID string, position draft.RosterPosition) bool {
	pick, ok := p.store.ReassignRosterPosition(playerID, position)
	if !ok {
		return false
	}

	p.bump(func(c *counters) { c.picksPatched++ })
	p.logger.Info("pick position patched",
		"pick", pick.PickNumber,
		"player_id", playerID,
		"position", string(position),
	)

	p.emit(func(l Listener) {
		l.OnPickProcessed(PickEvent{Pick: pick, Patched: true})
	})
	return true
}

// Stats returns a copy of the processing counters.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats.snapshot()
}

func (p *Processor) bump(fn func(*counters)) {
	p.mu.Lock()
	fn(&p.stats)
	p.mu.Unlock()
}

func (p *Processor) emit(fn func(Listener)) {
	p.mu.Lock()
	listeners := make([]Listener, len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	for _, listener := range listeners {
		fn(listener)
	}
}

func (p *Processor) emitStatusIfChanged() {
	status := p.store.Status()

	p.mu.Lock()
	changed := status != p.lastStatus
	if changed {
		p.lastStatus = status
	}
	p.mu.Unlock()

	if changed {
		p.logger.Info("draft status changed", "status", string(status))
		p.emit(func(l Listener) {
			l.OnStatusChange(StatusEvent{Status: status})
		})
	}
}

func (p *Processor) recordFrame(msg protocol.Message, parseError bool) {
	if p.recorder == nil {
		return
	}
	p.recorder.Record(msg, parseError)
}
