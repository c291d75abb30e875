// Package validate checks draft state against the engine's consistency
// rules and restores the newest healthy snapshot when the live state
// has drifted.
package validate

import (
	"errors"
	"fmt"
	"sort"

	"github.com/riskibarqy/draftwire/internal/domain/draft"
	"github.com/riskibarqy/draftwire/internal/platform/logging"
	"github.com/riskibarqy/draftwire/internal/state"
)

// ErrNoValidSnapshot escalates a failed heal: the live state is
// inconsistent and no ring entry passes validation either.
var ErrNoValidSnapshot = errors.New("no consistent snapshot available")

type Validator struct {
	logger *logging.Logger
}

func New(logger *logging.Logger) *Validator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Validator{logger: logger}
}

// Validate runs every consistency rule against the view. Errors mean
// the state is unusable; warnings flag drift that does not block
// reads. A pick that is on the clock but not yet made is legal, so the
// pick-number bound tolerates currentPick == picks+1.
func (v *Validator) Validate(view state.View) draft.ValidationResult {
	result := draft.NewValidationResult()

	v.checkPoolsDisjoint(view, &result)
	v.checkDraftedMatchesHistory(view, &result)
	v.checkPickBounds(view, &result)
	v.checkRosterMembership(view, &result)
	v.checkRosterSizes(view, &result)
	v.checkClockTeam(view, &result)

	if !result.Valid {
		result.AddSuggestion("roll back to the newest consistent snapshot")
	}
	return result
}

func (v *Validator) checkPoolsDisjoint(view state.View, result *draft.ValidationResult) {
	overlap := make([]string, 0)
	for id := range view.Drafted {
		if _, ok := view.Available[id]; ok {
			overlap = append(overlap, id)
		}
	}
	if len(overlap) > 0 {
		sort.Strings(overlap)
		result.AddError("players both drafted and available: %v", overlap)
	}
}

func (v *Validator) checkDraftedMatchesHistory(view state.View, result *draft.ValidationResult) {
	if len(view.Drafted) != len(view.History) {
		result.AddError("drafted set has %d players but history has %d picks", len(view.Drafted), len(view.History))
	}
}

func (v *Validator) checkPickBounds(view state.View, result *draft.ValidationResult) {
	completed := len(view.History)
	if view.CurrentPick < completed {
		result.AddError("current pick %d is behind %d completed picks", view.CurrentPick, completed)
	}
	if view.CurrentPick > completed+1 {
		result.AddError("current pick %d is ahead of %d completed picks", view.CurrentPick, completed)
	}
}

// checkRosterMembership cross-checks roster buckets against the drafted
// set: a player on two rosters or on a roster without being drafted is
// an error, drafted but missing from every roster is a warning (a
// deferred position patch may still be in flight).
func (v *Validator) checkRosterMembership(view state.View, result *draft.ValidationResult) {
	seen := make(map[string]int, len(view.Drafted))
	for teamID, roster := range view.Rosters {
		for _, players := range roster {
			for _, id := range players {
				seen[id]++
				if seen[id] > 1 {
					result.AddError("player %s appears on more than one roster", id)
				}
				if _, drafted := view.Drafted[id]; !drafted {
					result.AddError("player %s is rostered by team %d but not drafted", id, teamID)
				}
			}
		}
	}
	missing := make([]string, 0)
	for id := range view.Drafted {
		if seen[id] == 0 {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		result.AddWarning("drafted players missing from rosters: %v", missing)
	}
}

func (v *Validator) checkRosterSizes(view state.View, result *draft.ValidationResult) {
	pickCounts := make(map[int]int, len(view.Rosters))
	for _, pick := range view.History {
		pickCounts[pick.TeamID]++
	}
	for teamID, roster := range view.Rosters {
		size := 0
		for _, players := range roster {
			size += len(players)
		}
		if size != pickCounts[teamID] {
			result.AddError("team %d roster has %d players but %d picks", teamID, size, pickCounts[teamID])
		}
	}
	for teamID, count := range pickCounts {
		if _, ok := view.Rosters[teamID]; !ok && count > 0 {
			result.AddError("team %d made %d picks but has no roster", teamID, count)
		}
	}
}

// checkClockTeam compares the feed's on-clock team against the one the
// snake order predicts. Warning only: CLOCK frames lag SELECTED frames
// during fast autodraft runs.
func (v *Validator) checkClockTeam(view state.View, result *draft.ValidationResult) {
	if len(view.DraftOrder) == 0 || view.Clock.TeamID == 0 {
		return
	}
	if view.Status != draft.StatusInProgress {
		return
	}
	if view.CurrentPick != len(view.History)+1 {
		return
	}
	expected, ok := ExpectedTeamOnClock(view)
	if ok && expected != view.Clock.TeamID {
		result.AddWarning("team %d is on the clock but snake order expects team %d for pick %d", view.Clock.TeamID, expected, view.CurrentPick)
	}
}

// ExpectedTeamOnClock derives which team should own the current pick
// from the draft order. Reports false until the order is known or when
// the pick number is outside the grid.
func ExpectedTeamOnClock(view state.View) (int, bool) {
	if len(view.DraftOrder) == 0 || view.CurrentPick <= 0 {
		return 0, false
	}
	slot := draft.TeamSlotForPick(view.CurrentPick, len(view.DraftOrder))
	if slot < 0 {
		return 0, false
	}
	return view.DraftOrder[slot], true
}

// HealReport describes the outcome of a self-heal pass.
type HealReport struct {
	Healed        bool
	SnapshotIndex int
	Checked       int
	Result        draft.ValidationResult
}

// Heal validates the live state and, when it fails, walks the snapshot
// ring newest to oldest restoring the first entry that validates
// cleanly. Returns ErrNoValidSnapshot when nothing in the ring is
// usable; the live state is left untouched in that case.
func (v *Validator) Heal(store *state.Store) (HealReport, error) {
	report := HealReport{SnapshotIndex: 0}

	live := v.Validate(store.View())
	if live.Valid {
		report.Result = live
		return report, nil
	}

	v.logger.Warn("live state failed validation, walking snapshots", "errors", live.Errors)

	count := store.SnapshotCount()
	for i := -1; i >= -count; i-- {
		report.Checked++
		candidate, ok := store.SnapshotAt(i)
		if !ok {
			continue
		}
		result := v.Validate(candidate)
		if !result.Valid {
			continue
		}
		if !store.RollbackToSnapshot(i) {
			continue
		}
		report.Healed = true
		report.SnapshotIndex = i
		report.Result = result
		v.logger.Info("state healed from snapshot",
			"snapshot_index", i,
			"checked", report.Checked,
		)
		return report, nil
	}

	report.Result = live
	return report, fmt.Errorf("%w: checked %d snapshots", ErrNoValidSnapshot, report.Checked)
}
