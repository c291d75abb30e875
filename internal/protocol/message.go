package protocol

import "strings"

// Kind identifies a feed command.
type Kind string

const (
	KindSelected  Kind = "SELECTED"
	KindSelecting Kind = "SELECTING"
	KindClock     Kind = "CLOCK"
	KindAutodraft Kind = "AUTODRAFT"
	KindToken     Kind = "TOKEN"
	KindJoined    Kind = "JOINED"
	KindLeft      Kind = "LEFT"
	KindPing      Kind = "PING"
	KindPong      Kind = "PONG"
	KindUnknown   Kind = "UNKNOWN"
)

// Mutates reports whether messages of this kind drive draft state.
// Presence kinds and unknown traffic are counted but never applied.
func (k Kind) Mutates() bool {
	switch k {
	case KindSelected, KindSelecting, KindClock, KindAutodraft:
		return true
	default:
		return false
	}
}

// IsPing reports whether the frame is a keepalive probe that expects a
// PONG echo, without paying for a full parse.
func IsPing(frame string) bool {
	fields := strings.Fields(frame)
	return len(fields) > 0 && strings.ToUpper(fields[0]) == string(KindPing)
}

// Message is one parsed feed line. Only the fields relevant to the
// message's kind are populated; Raw always carries the original line.
type Message struct {
	Kind            Kind
	TeamID          int
	PlayerID        string
	PickNumber      int
	MemberID        string
	TimeLimitMs     int
	TimeRemainingMs int
	Round           int
	Enabled         bool
	Raw             string
}
