package processor

import (
	"time"

	"github.com/riskibarqy/draftwire/internal/protocol"
)

// Stats is a point-in-time copy of the processing counters. Rates are
// derived at snapshot time and guard against division by zero.
type Stats struct {
	MessagesReceived  uint64            `json:"messagesReceived"`
	ParseErrors       uint64            `json:"parseErrors"`
	StateUpdateErrors uint64            `json:"stateUpdateErrors"`
	PicksProcessed    uint64            `json:"picksProcessed"`
	PicksDeferred     uint64            `json:"picksDeferred"`
	PicksPatched      uint64            `json:"picksPatched"`
	PickStarts        uint64            `json:"pickStarts"`
	ClockUpdates      uint64            `json:"clockUpdates"`
	AutodraftUpdates  uint64            `json:"autodraftUpdates"`
	PresenceFrames    uint64            `json:"presenceFrames"`
	UnknownFrames     uint64            `json:"unknownFrames"`
	ByKind            map[string]uint64 `json:"byKind"`
	SuccessRate       float64           `json:"successRate"`
	ParseErrorRate    float64           `json:"parseErrorRate"`
	StartedAt         time.Time         `json:"startedAt"`
	LastFrameAt       time.Time         `json:"lastFrameAt"`
}

type counters struct {
	messagesReceived  uint64
	parseErrors       uint64
	stateUpdateErrors uint64
	picksProcessed    uint64
	picksDeferred     uint64
	picksPatched      uint64
	pickStarts        uint64
	clockUpdates      uint64
	autodraftUpdates  uint64
	presenceFrames    uint64
	unknownFrames     uint64
	byKind            map[protocol.Kind]uint64
	startedAt         time.Time
	lastFrameAt       time.Time
}

func (c *counters) snapshot() Stats {
	byKind := make(map[string]uint64, len(c.byKind))
	for kind, count := range c.byKind {
		byKind[string(kind)] = count
	}

	stats := Stats{
		MessagesReceived:  c.messagesReceived,
		ParseErrors:       c.parseErrors,
		StateUpdateErrors: c.stateUpdateErrors,
		PicksProcessed:    c.picksProcessed,
		PicksDeferred:     c.picksDeferred,
		PicksPatched:      c.picksPatched,
		PickStarts:        c.pickStarts,
		ClockUpdates:      c.clockUpdates,
		AutodraftUpdates:  c.autodraftUpdates,
		PresenceFrames:    c.presenceFrames,
		UnknownFrames:     c.unknownFrames,
		ByKind:            byKind,
		StartedAt:         c.startedAt,
		LastFrameAt:       c.lastFrameAt,
	}
	if c.messagesReceived > 0 {
		handled := c.messagesReceived - c.parseErrors - c.stateUpdateErrors
		stats.SuccessRate = float64(handled) / float64(c.messagesReceived)
		stats.ParseErrorRate = float64(c.parseErrors) / float64(c.messagesReceived)
	}
	return stats
}
