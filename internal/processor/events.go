package processor

import "github.com/riskibarqy/draftwire/internal/domain/draft"

// PickEvent announces an applied selection. Deferred marks picks whose
// roster bucket is provisional until identity resolution lands; Patched
// marks the re-emit that follows once it does.
type PickEvent struct {
	Pick     draft.Pick
	MemberID string
	Deferred bool
	Patched  bool
}

// PickStartEvent announces a team going on the clock.
type PickStartEvent struct {
	TeamID      int
	PickNumber  int
	TimeLimitMs int
}

// ClockEvent carries a pick-timer refresh.
type ClockEvent struct {
	TeamID      int
	RemainingMs int
	Round       int
}

// StatusEvent announces a draft lifecycle transition.
type StatusEvent struct {
	Status draft.Status
}

// Listener receives state-change notifications. Callbacks run on the
// processing goroutine (or the resolver worker for patches), so
// implementations must return quickly and never block.
type Listener interface {
	OnPickProcessed(event PickEvent)
	OnPickStarted(event PickStartEvent)
	OnClockUpdate(event ClockEvent)
	OnStatusChange(event StatusEvent)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are
// skipped, so callers subscribe only to the events they care about.
type ListenerFuncs struct {
	PickProcessed func(PickEvent)
	PickStarted   func(PickStartEvent)
	ClockUpdate   func(ClockEvent)
	StatusChange  func(StatusEvent)
}

func (l ListenerFuncs) OnPickProcessed(event PickEvent) {
	if l.PickProcessed != nil {
		l.PickProcessed(event)
	}
}

func (l ListenerFuncs) OnPickStarted(event PickStartEvent) {
	if l.PickStarted != nil {
		l.PickStarted(event)
	}
}

func (l ListenerFuncs) OnClockUpdate(event ClockEvent) {
	if l.ClockUpdate != nil {
		l.ClockUpdate(event)
	}
}

func (l ListenerFuncs) OnStatusChange(event StatusEvent) {
	if l.StatusChange != nil {
		l.StatusChange(event)
	}
}
