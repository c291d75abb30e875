package state

import (
	"sort"

	"github.com/riskibarqy/draftwire/internal/domain/draft"
)

// View is a deep copy of the full draft state. Holders can read and
// mutate it freely without touching the store.
type View struct {
	Session     draft.Session
	Status      draft.Status
	CurrentPick int
	History     []draft.Pick
	Rosters     map[int]map[draft.RosterPosition][]string
	Available   map[string]struct{}
	Drafted     map[string]struct{}
	Autodraft   map[int]bool
	Clock       Clock
	DraftOrder  []int
	MyPicks     []int
}

// Summary is the compact dashboard read model.
type Summary struct {
	LeagueID         string        `json:"leagueId"`
	MyTeamID         int           `json:"myTeamId"`
	TeamCount        int           `json:"teamCount"`
	Rounds           int           `json:"rounds"`
	Status           draft.Status  `json:"status"`
	CurrentPick      int           `json:"currentPick"`
	CompletedPicks   int           `json:"completedPicks"`
	TotalPicks       int           `json:"totalPicks"`
	AvailableCount   int           `json:"availableCount"`
	OnClockTeamID    int           `json:"onClockTeamId"`
	ClockRemainingMs int           `json:"clockRemainingMs"`
	Round            int           `json:"round"`
	NextMyPick       int           `json:"nextMyPick"`
	PicksUntilMine   int           `json:"picksUntilMine"`
	SnapshotCount    int           `json:"snapshotCount"`
}

// viewOf materializes a deep-copied View from the given core. Callers
// hold at least the read lock.
func (s *Store) viewOf(c core) View {
	cloned := c.clone()
	return View{
		Session:     s.session,
		Status:      cloned.status,
		CurrentPick: cloned.currentPick,
		History:     cloned.history,
		Rosters:     cloned.rosters,
		Available:   cloned.available,
		Drafted:     cloned.drafted,
		Autodraft:   cloned.autodraft,
		Clock:       cloned.clock,
		DraftOrder:  append([]int(nil), s.draftOrder...),
		MyPicks:     append([]int(nil), s.myPicks...),
	}
}

// View returns a deep copy of the live state.
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewOf(s.core)
}

// Summary condenses the live state into the dashboard read model.
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	next := 0
	for _, pick := range s.myPicks {
		if pick > s.core.currentPick {
			next = pick
			break
		}
	}
	until := 0
	if next > 0 {
		until = next - s.core.currentPick
	}

	return Summary{
		LeagueID:         s.session.LeagueID,
		MyTeamID:         s.session.MyTeamID,
		TeamCount:        s.session.TeamCount,
		Rounds:           s.session.Rounds,
		Status:           s.core.status,
		CurrentPick:      s.core.currentPick,
		CompletedPicks:   len(s.core.history),
		TotalPicks:       s.session.TotalPicks(),
		AvailableCount:   len(s.core.available),
		OnClockTeamID:    s.core.clock.TeamID,
		ClockRemainingMs: s.core.clock.RemainingMs,
		Round:            s.core.clock.Round,
		NextMyPick:       next,
		PicksUntilMine:   until,
		SnapshotCount:    len(s.snapshots),
	}
}

// Status returns the current lifecycle state.
func (s *Store) Status() draft.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.core.status
}

// CompletedPicks returns how many selections have been applied.
func (s *Store) CompletedPicks() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.core.history)
}

// CurrentPick returns the overall number of the pick on the clock, or
// of the last applied pick when none is in progress.
func (s *Store) CurrentPick() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.core.currentPick
}

// History returns the pick log in application order.
func (s *Store) History() []draft.Pick {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]draft.Pick, len(s.core.history))
	copy(out, s.core.history)
	return out
}

// AvailablePlayers returns the undrafted pool sorted by id so callers
// get a stable order.
func (s *Store) AvailablePlayers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.core.available))
	for id := range s.core.available {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// RosterOf returns a deep copy of one team's roster buckets. The second
// return reports whether the team has drafted anyone yet.
func (s *Store) RosterOf(teamID int) (map[draft.RosterPosition][]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roster, ok := s.core.rosters[teamID]
	if !ok {
		return map[draft.RosterPosition][]string{}, false
	}
	out := make(map[draft.RosterPosition][]string, len(roster))
	for pos, players := range roster {
		out[pos] = append([]string(nil), players...)
	}
	return out, true
}

// Session returns the configured session and whether one is set.
func (s *Store) Session() (draft.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session, s.configured
}

// MyPickNumbers returns our overall pick numbers, nil until the draft
// order is known.
func (s *Store) MyPickNumbers() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int(nil), s.myPicks...)
}
