package state

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/riskibarqy/draftwire/internal/domain/draft"
	"github.com/riskibarqy/draftwire/internal/platform/logging"
)

var (
	ErrSessionNotConfigured = errors.New("draft session not configured")
	ErrDuplicatePick        = errors.New("pick number already applied")
	ErrPlayerAlreadyDrafted = errors.New("player already drafted")
)

// DefaultSnapshotCapacity bounds the rollback ring when no explicit
// capacity is configured.
const DefaultSnapshotCapacity = 100

// Clock mirrors the feed's view of the pick timer.
type Clock struct {
	TeamID      int
	RemainingMs int
	TimeLimitMs int
	Round       int
}

// core is the event-mutated portion of draft state. Snapshots deep-copy
// exactly this; session metadata and the draft order are configured
// once per session and stay outside the ring.
type core struct {
	status      draft.Status
	currentPick int
	history     []draft.Pick
	rosters     map[int]map[draft.RosterPosition][]string
	available   map[string]struct{}
	drafted     map[string]struct{}
	autodraft   map[int]bool
	clock       Clock
}

func newCore() core {
	return core{
		status:    draft.StatusWaiting,
		rosters:   make(map[int]map[draft.RosterPosition][]string),
		available: make(map[string]struct{}),
		drafted:   make(map[string]struct{}),
		autodraft: make(map[int]bool),
	}
}

func (c core) clone() core {
	out := core{
		status:      c.status,
		currentPick: c.currentPick,
		clock:       c.clock,
		history:     make([]draft.Pick, len(c.history)),
		rosters:     make(map[int]map[draft.RosterPosition][]string, len(c.rosters)),
		available:   make(map[string]struct{}, len(c.available)),
		drafted:     make(map[string]struct{}, len(c.drafted)),
		autodraft:   make(map[int]bool, len(c.autodraft)),
	}
	copy(out.history, c.history)
	for teamID, roster := range c.rosters {
		cloned := make(map[draft.RosterPosition][]string, len(roster))
		for pos, players := range roster {
			cloned[pos] = append([]string(nil), players...)
		}
		out.rosters[teamID] = cloned
	}
	for id := range c.available {
		out.available[id] = struct{}{}
	}
	for id := range c.drafted {
		out.drafted[id] = struct{}{}
	}
	for teamID, enabled := range c.autodraft {
		out.autodraft[teamID] = enabled
	}
	return out
}

// Store owns all mutable draft state. Mutations arrive from a single
// writer (the event processor goroutine and the ops surface it fronts);
// the RWMutex lets any number of readers take consistent deep copies
// concurrently.
type Store struct {
	mu sync.RWMutex

	session    draft.Session
	configured bool
	draftOrder []int
	myIndex    int
	myPicks    []int

	core core

	snapshots   []snapshot
	snapshotCap int

	logger *logging.Logger
	now    func() time.Time
}

func New(snapshotCapacity int, logger *logging.Logger) *Store {
	if snapshotCapacity <= 0 {
		snapshotCapacity = DefaultSnapshotCapacity
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Store{
		core:        newCore(),
		snapshotCap: snapshotCapacity,
		logger:      logger,
		now:         time.Now,
		myIndex:     -1,
	}
}

// ConfigureSession resets the store for a new draft. Everything is
// cleared: history, rosters, pools, snapshots, the clock.
func (s *Store) ConfigureSession(session draft.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("configure session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = session
	s.configured = true
	s.draftOrder = nil
	s.myIndex = -1
	s.myPicks = nil
	s.core = newCore()
	s.snapshots = nil

	s.logger.Info("draft session configured",
		"league_id", session.LeagueID,
		"my_team_id", session.MyTeamID,
		"team_count", session.TeamCount,
		"rounds", session.Rounds,
	)
	return nil
}

// InitializePlayerPool registers the draftable pool. Players already
// drafted stay out of the available set so a late registration cannot
// resurrect them. Returns the number of players now available.
func (s *Store) InitializePlayerPool(playerIDs []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.core.available = make(map[string]struct{}, len(playerIDs))
	for _, id := range playerIDs {
		if id == "" {
			continue
		}
		if _, taken := s.core.drafted[id]; taken {
			continue
		}
		s.core.available[id] = struct{}{}
	}
	return len(s.core.available)
}

// SetDraftOrder records the round-one team sequence and derives our
// slot and overall pick numbers from it.
func (s *Store) SetDraftOrder(teamIDs []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.configured {
		return ErrSessionNotConfigured
	}
	if len(teamIDs) != s.session.TeamCount {
		return fmt.Errorf("draft order has %d teams, session expects %d", len(teamIDs), s.session.TeamCount)
	}

	seen := make(map[int]struct{}, len(teamIDs))
	myIndex := -1
	for slot, teamID := range teamIDs {
		if _, dup := seen[teamID]; dup {
			return fmt.Errorf("draft order repeats team %d", teamID)
		}
		seen[teamID] = struct{}{}
		if teamID == s.session.MyTeamID {
			myIndex = slot
		}
	}
	if myIndex < 0 {
		return fmt.Errorf("draft order does not include my team %d", s.session.MyTeamID)
	}

	s.draftOrder = append([]int(nil), teamIDs...)
	s.myIndex = myIndex
	s.myPicks = draft.MyPickNumbers(s.session.TeamCount, s.session.Rounds, myIndex)

	s.logger.Info("draft order set", "my_slot", myIndex, "first_pick", s.myPicks[0])
	return nil
}

// ApplyPick records a completed selection. A duplicate pick number or
// an already-drafted player rejects the pick and leaves state
// untouched. The snapshot is taken before any mutation.
func (s *Store) ApplyPick(pick draft.Pick) error {
	if err := pick.Validate(); err != nil {
		return fmt.Errorf("apply pick: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.core.history {
		if existing.PickNumber == pick.PickNumber {
			return fmt.Errorf("%w: pick %d", ErrDuplicatePick, pick.PickNumber)
		}
	}
	if _, taken := s.core.drafted[pick.PlayerID]; taken {
		return fmt.Errorf("%w: player %s", ErrPlayerAlreadyDrafted, pick.PlayerID)
	}

	s.takeSnapshot(fmt.Sprintf("apply_pick %d", pick.PickNumber))

	if _, ok := draft.AllRosterPositions[pick.Position]; !ok {
		pick.Position = draft.PositionBench
	}
	if pick.Timestamp.IsZero() {
		pick.Timestamp = s.now()
	}

	s.core.history = append(s.core.history, pick)
	s.core.drafted[pick.PlayerID] = struct{}{}
	delete(s.core.available, pick.PlayerID)

	roster, ok := s.core.rosters[pick.TeamID]
	if !ok {
		roster = make(map[draft.RosterPosition][]string)
		s.core.rosters[pick.TeamID] = roster
	}
	roster[pick.Position] = append(roster[pick.Position], pick.PlayerID)

	if pick.PickNumber > s.core.currentPick {
		s.core.currentPick = pick.PickNumber
	}
	if s.core.status == draft.StatusWaiting {
		s.core.status = draft.StatusInProgress
	}
	if s.configured && len(s.core.history) >= s.session.TotalPicks() {
		s.core.status = draft.StatusCompleted
		s.logger.Info("draft completed", "picks", len(s.core.history))
	}
	return nil
}

// StartNewPick moves the draft onto the next selection: a team is on
// the clock. Waiting drafts transition to in progress here.
func (s *Store) StartNewPick(teamID, pickNumber, timeLimitMs int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.takeSnapshot(fmt.Sprintf("start_pick %d", pickNumber))

	s.core.currentPick = pickNumber
	s.core.clock = Clock{
		TeamID:      teamID,
		RemainingMs: timeLimitMs,
		TimeLimitMs: timeLimitMs,
		Round:       draft.RoundOfPick(pickNumber, s.session.TeamCount),
	}
	if s.core.status == draft.StatusWaiting {
		s.core.status = draft.StatusInProgress
	}
}

// UpdateClock refreshes the timer. This runs at feed tick frequency, so
// it deliberately takes no snapshot. Remaining time clamps at zero.
func (s *Store) UpdateClock(teamID, remainingMs, round int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if remainingMs < 0 {
		remainingMs = 0
	}
	s.core.clock.TeamID = teamID
	s.core.clock.RemainingMs = remainingMs
	if round > 0 {
		s.core.clock.Round = round
	}
}

// SetAutodraft tracks a team's autodraft toggle. No snapshot.
func (s *Store) SetAutodraft(teamID int, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.core.autodraft[teamID] = enabled
}

// CompleteDraft marks the draft finished on an explicit completion
// signal. Idempotent.
func (s *Store) CompleteDraft() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.core.status == draft.StatusCompleted {
		return
	}
	s.takeSnapshot("complete_draft")
	s.core.status = draft.StatusCompleted
	s.logger.Info("draft completed", "picks", len(s.core.history))
}

// ReassignRosterPosition moves an already-drafted player to a different
// roster bucket once deferred resolution lands. The matching history
// entry is rewritten too. Returns the corrected pick and whether
// anything changed.
func (s *Store) ReassignRosterPosition(playerID string, position draft.RosterPosition) (draft.Pick, bool) {
	if _, ok := draft.AllRosterPositions[position]; !ok {
		return draft.Pick{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.core.history {
		if s.core.history[i].PlayerID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return draft.Pick{}, false
	}
	if s.core.history[idx].Position == position {
		return draft.Pick{}, false
	}

	previous := s.core.history[idx].Position
	s.core.history[idx].Position = position

	roster := s.core.rosters[s.core.history[idx].TeamID]
	if roster != nil {
		roster[previous] = removeString(roster[previous], playerID)
		if len(roster[previous]) == 0 {
			delete(roster, previous)
		}
		roster[position] = append(roster[position], playerID)
	}
	return s.core.history[idx], true
}

func removeString(items []string, target string) []string {
	out := items[:0]
	for _, item := range items {
		if item != target {
			out = append(out, item)
		}
	}
	return out
}
