package draft

import (
	"fmt"
	"strings"
	"time"
)

// Status tracks the lifecycle of a draft session.
type Status string

const (
	StatusWaiting    Status = "WAITING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusPaused     Status = "PAUSED"
	StatusCompleted  Status = "COMPLETED"
)

// RosterPosition is the roster bucket a drafted player lands in.
type RosterPosition string

const (
	PositionQB    RosterPosition = "QB"
	PositionRB    RosterPosition = "RB"
	PositionWR    RosterPosition = "WR"
	PositionTE    RosterPosition = "TE"
	PositionK     RosterPosition = "K"
	PositionDST   RosterPosition = "DST"
	PositionFlex  RosterPosition = "FLEX"
	PositionBench RosterPosition = "BENCH"
)

var AllRosterPositions = map[RosterPosition]struct{}{
	PositionQB:    {},
	PositionRB:    {},
	PositionWR:    {},
	PositionTE:    {},
	PositionK:     {},
	PositionDST:   {},
	PositionFlex:  {},
	PositionBench: {},
}

// NormalizePosition maps free-form position text onto a roster bucket.
// Anything unrecognized lands on the bench.
func NormalizePosition(raw string) RosterPosition {
	candidate := RosterPosition(strings.ToUpper(strings.TrimSpace(raw)))
	switch candidate {
	case "D/ST", "DEF", "DEFENSE":
		return PositionDST
	case "PK":
		return PositionK
	}
	if _, ok := AllRosterPositions[candidate]; ok {
		return candidate
	}
	return PositionBench
}

// Session describes the draft being tracked: which league, which team
// is ours, and the grid dimensions.
type Session struct {
	LeagueID  string
	MyTeamID  int
	TeamCount int
	Rounds    int
}

func (s Session) Validate() error {
	if strings.TrimSpace(s.LeagueID) == "" {
		return fmt.Errorf("session league id is required")
	}
	if s.MyTeamID <= 0 {
		return fmt.Errorf("session my team id must be greater than zero")
	}
	if s.TeamCount < 2 {
		return fmt.Errorf("session team count must be at least 2")
	}
	if s.Rounds < 1 {
		return fmt.Errorf("session rounds must be at least 1")
	}
	return nil
}

// TotalPicks is the number of selections in a full draft.
func (s Session) TotalPicks() int {
	return s.TeamCount * s.Rounds
}

// Pick is one completed selection. History entries are append-only;
// position corrections flow through the store, never by mutating a
// previously returned Pick.
type Pick struct {
	PickNumber int
	PlayerID   string
	TeamID     int
	Position   RosterPosition
	Timestamp  time.Time
}

func (p Pick) Validate() error {
	if p.PickNumber <= 0 {
		return fmt.Errorf("pick number must be greater than zero")
	}
	if strings.TrimSpace(p.PlayerID) == "" {
		return fmt.Errorf("pick player id is required")
	}
	if p.TeamID <= 0 {
		return fmt.Errorf("pick team id must be greater than zero")
	}
	return nil
}

// PlayerInfo is a directory entry used for display names, search and
// deferred position resolution.
type PlayerInfo struct {
	ID       string
	Name     string
	Position RosterPosition
	ProTeam  string
}

func (p PlayerInfo) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("player id is required")
	}
	return nil
}

// DisplayName returns the player's name, or a numbered placeholder when
// identity has not resolved yet.
func DisplayName(playerID, name string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return "Player #" + strings.TrimSpace(playerID)
}

// ValidationResult aggregates the outcome of a consistency check.
type ValidationResult struct {
	Valid       bool
	Errors      []string
	Warnings    []string
	Suggestions []string
}

func NewValidationResult() ValidationResult {
	return ValidationResult{Valid: true}
}

func (r *ValidationResult) AddError(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) AddSuggestion(format string, args ...any) {
	r.Suggestions = append(r.Suggestions, fmt.Sprintf(format, args...))
}
