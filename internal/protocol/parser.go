package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedMessage flags a recognized command whose payload does not
// match the wire grammar. Parse failures are non-fatal: callers count
// them and keep consuming the feed.
var ErrMalformedMessage = errors.New("malformed feed message")

// Parse decodes a single feed line. The first token selects the command
// case-insensitively. Unrecognized commands come back as KindUnknown
// with a nil error; recognized commands with bad payloads return
// ErrMalformedMessage wrapped with detail. Tokens beyond a command's
// grammar are ignored, matching the tolerant behavior of the vendor
// clients.
func Parse(line string) (Message, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Message{Kind: KindUnknown, Raw: line}, nil
	}

	msg := Message{Raw: line}
	switch Kind(strings.ToUpper(fields[0])) {
	case KindSelected:
		return parseSelected(msg, fields)
	case KindSelecting:
		return parseSelecting(msg, fields)
	case KindClock:
		return parseClock(msg, fields)
	case KindAutodraft:
		return parseAutodraft(msg, fields)
	case KindToken:
		msg.Kind = KindToken
		return msg, nil
	case KindJoined:
		msg.Kind = KindJoined
		return msg, nil
	case KindLeft:
		msg.Kind = KindLeft
		return msg, nil
	case KindPing:
		msg.Kind = KindPing
		return msg, nil
	case KindPong:
		msg.Kind = KindPong
		return msg, nil
	default:
		msg.Kind = KindUnknown
		return msg, nil
	}
}

// SELECTED <teamId> <playerId> <pickSeq> [<memberId>]
func parseSelected(msg Message, fields []string) (Message, error) {
	msg.Kind = KindSelected
	if len(fields) < 4 {
		return msg, fmt.Errorf("%w: SELECTED expects at least 4 tokens, got %d", ErrMalformedMessage, len(fields))
	}

	teamID, err := strconv.Atoi(fields[1])
	if err != nil {
		return msg, fmt.Errorf("%w: SELECTED team id %q: %v", ErrMalformedMessage, fields[1], err)
	}
	pickNumber, err := strconv.Atoi(fields[3])
	if err != nil {
		return msg, fmt.Errorf("%w: SELECTED pick number %q: %v", ErrMalformedMessage, fields[3], err)
	}
	if pickNumber <= 0 {
		return msg, fmt.Errorf("%w: SELECTED pick number must be positive, got %d", ErrMalformedMessage, pickNumber)
	}

	msg.TeamID = teamID
	msg.PlayerID = fields[2]
	msg.PickNumber = pickNumber
	if len(fields) > 4 {
		msg.MemberID = fields[4]
	}
	return msg, nil
}

// SELECTING <teamId> <timeLimitMs>
func parseSelecting(msg Message, fields []string) (Message, error) {
	msg.Kind = KindSelecting
	if len(fields) < 3 {
		return msg, fmt.Errorf("%w: SELECTING expects at least 3 tokens, got %d", ErrMalformedMessage, len(fields))
	}

	teamID, err := strconv.Atoi(fields[1])
	if err != nil {
		return msg, fmt.Errorf("%w: SELECTING team id %q: %v", ErrMalformedMessage, fields[1], err)
	}
	timeLimit, err := strconv.Atoi(fields[2])
	if err != nil {
		return msg, fmt.Errorf("%w: SELECTING time limit %q: %v", ErrMalformedMessage, fields[2], err)
	}

	msg.TeamID = teamID
	msg.TimeLimitMs = timeLimit
	return msg, nil
}

// CLOCK <teamId> <timeRemainingMs> [<round>]
func parseClock(msg Message, fields []string) (Message, error) {
	msg.Kind = KindClock
	if len(fields) < 3 {
		return msg, fmt.Errorf("%w: CLOCK expects at least 3 tokens, got %d", ErrMalformedMessage, len(fields))
	}

	teamID, err := strconv.Atoi(fields[1])
	if err != nil {
		return msg, fmt.Errorf("%w: CLOCK team id %q: %v", ErrMalformedMessage, fields[1], err)
	}
	remaining, err := strconv.Atoi(fields[2])
	if err != nil {
		return msg, fmt.Errorf("%w: CLOCK time remaining %q: %v", ErrMalformedMessage, fields[2], err)
	}

	msg.TeamID = teamID
	msg.TimeRemainingMs = remaining
	if len(fields) > 3 {
		round, err := strconv.Atoi(fields[3])
		if err != nil {
			return msg, fmt.Errorf("%w: CLOCK round %q: %v", ErrMalformedMessage, fields[3], err)
		}
		msg.Round = round
	}
	return msg, nil
}

// AUTODRAFT <teamId> <bool>
func parseAutodraft(msg Message, fields []string) (Message, error) {
	msg.Kind = KindAutodraft
	if len(fields) < 3 {
		return msg, fmt.Errorf("%w: AUTODRAFT expects at least 3 tokens, got %d", ErrMalformedMessage, len(fields))
	}

	teamID, err := strconv.Atoi(fields[1])
	if err != nil {
		return msg, fmt.Errorf("%w: AUTODRAFT team id %q: %v", ErrMalformedMessage, fields[1], err)
	}
	enabled, err := strconv.ParseBool(strings.ToLower(fields[2]))
	if err != nil {
		return msg, fmt.Errorf("%w: AUTODRAFT flag %q: %v", ErrMalformedMessage, fields[2], err)
	}

	msg.TeamID = teamID
	msg.Enabled = enabled
	return msg, nil
}
