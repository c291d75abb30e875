package validate

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/riskibarqy/draftwire/internal/domain/draft"
	"github.com/riskibarqy/draftwire/internal/platform/logging"
	"github.com/riskibarqy/draftwire/internal/state"
)

func set(ids ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

// consistentView is a hand-built two-team state mid-way through pick 3.
func consistentView() state.View {
	return state.View{
		Session:     draft.Session{LeagueID: "l1", MyTeamID: 1, TeamCount: 2, Rounds: 2},
		Status:      draft.StatusInProgress,
		CurrentPick: 3,
		History: []draft.Pick{
			{PickNumber: 1, PlayerID: "p1", TeamID: 1, Position: draft.PositionQB},
			{PickNumber: 2, PlayerID: "p2", TeamID: 2, Position: draft.PositionRB},
		},
		Rosters: map[int]map[draft.RosterPosition][]string{
			1: {draft.PositionQB: {"p1"}},
			2: {draft.PositionRB: {"p2"}},
		},
		Available:  set("p3", "p4"),
		Drafted:    set("p1", "p2"),
		Autodraft:  map[int]bool{},
		Clock:      state.Clock{TeamID: 2, RemainingMs: 30000, TimeLimitMs: 30000, Round: 2},
		DraftOrder: []int{1, 2},
		MyPicks:    []int{1, 4},
	}
}

func containsMatch(items []string, sub string) bool {
	for _, item := range items {
		if strings.Contains(item, sub) {
			return true
		}
	}
	return false
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mutate      func(v *state.View)
		wantValid   bool
		wantError   string
		wantWarning string
	}{
		{
			name:      "consistent state",
			mutate:    func(v *state.View) {},
			wantValid: true,
		},
		{
			name:      "in-progress pick tolerated",
			mutate:    func(v *state.View) { v.CurrentPick = len(v.History) + 1 },
			wantValid: true,
		},
		{
			name:      "settled pick tolerated",
			mutate:    func(v *state.View) { v.CurrentPick = len(v.History); v.Clock.TeamID = 0 },
			wantValid: true,
		},
		{
			name: "drafted player still available",
			mutate: func(v *state.View) {
				v.Available["p1"] = struct{}{}
			},
			wantValid: false,
			wantError: "both drafted and available",
		},
		{
			name: "drafted count mismatch",
			mutate: func(v *state.View) {
				v.Drafted["p9"] = struct{}{}
			},
			wantValid: false,
			wantError: "drafted set has 3 players but history has 2 picks",
		},
		{
			name: "current pick behind history",
			mutate: func(v *state.View) {
				v.CurrentPick = 1
			},
			wantValid: false,
			wantError: "behind",
		},
		{
			name: "current pick too far ahead",
			mutate: func(v *state.View) {
				v.CurrentPick = 4
			},
			wantValid: false,
			wantError: "ahead",
		},
		{
			name: "player on two rosters",
			mutate: func(v *state.View) {
				v.Rosters[1][draft.PositionFlex] = []string{"p2"}
			},
			wantValid: false,
			wantError: "more than one roster",
		},
		{
			name: "rostered but not drafted",
			mutate: func(v *state.View) {
				v.Rosters[2][draft.PositionBench] = []string{"p9"}
			},
			wantValid: false,
			wantError: "rostered by team 2 but not drafted",
		},
		{
			name: "drafted but not rostered",
			mutate: func(v *state.View) {
				delete(v.Rosters, 2)
			},
			wantValid:   false,
			wantError:   "team 2 made 1 picks but has no roster",
			wantWarning: "missing from rosters",
		},
		{
			name: "roster size mismatch",
			mutate: func(v *state.View) {
				v.Rosters[1][draft.PositionQB] = append(v.Rosters[1][draft.PositionQB], "p3")
				v.Drafted["p3"] = struct{}{}
				delete(v.Available, "p3")
				v.History = append(v.History, draft.Pick{PickNumber: 3, PlayerID: "p3", TeamID: 2, Position: draft.PositionQB})
				v.CurrentPick = 3
				v.Clock.TeamID = 0
				v.Status = draft.StatusInProgress
			},
			wantValid: false,
			wantError: "roster has",
		},
		{
			name: "wrong team on the clock warns only",
			mutate: func(v *state.View) {
				v.Clock.TeamID = 1
			},
			wantValid:   true,
			wantWarning: "snake order expects team 2",
		},
	}

	validator := New(logging.NewNop())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			view := consistentView()
			tc.mutate(&view)

			result := validator.Validate(view)
			if result.Valid != tc.wantValid {
				t.Fatalf("Valid = %v, want %v (errors: %v)", result.Valid, tc.wantValid, result.Errors)
			}
			if tc.wantError != "" && !containsMatch(result.Errors, tc.wantError) {
				t.Fatalf("errors %v missing %q", result.Errors, tc.wantError)
			}
			if tc.wantWarning != "" && !containsMatch(result.Warnings, tc.wantWarning) {
				t.Fatalf("warnings %v missing %q", result.Warnings, tc.wantWarning)
			}
			if !tc.wantValid && len(result.Suggestions) == 0 {
				t.Fatal("invalid result carries no suggestion")
			}
		})
	}
}

func TestExpectedTeamOnClock(t *testing.T) {
	t.Parallel()

	order := make([]int, 12)
	for i := range order {
		order[i] = i + 1
	}

	tests := []struct {
		pick   int
		want   int
		wantOK bool
	}{
		{pick: 1, want: 1, wantOK: true},
		{pick: 5, want: 5, wantOK: true},
		{pick: 12, want: 12, wantOK: true},
		{pick: 13, want: 12, wantOK: true},
		{pick: 20, want: 5, wantOK: true},
		{pick: 24, want: 1, wantOK: true},
		{pick: 25, want: 1, wantOK: true},
		{pick: 0, wantOK: false},
	}

	for _, tc := range tests {
		view := state.View{DraftOrder: order, CurrentPick: tc.pick}
		got, ok := ExpectedTeamOnClock(view)
		if ok != tc.wantOK {
			t.Fatalf("pick %d: ok = %v, want %v", tc.pick, ok, tc.wantOK)
		}
		if ok && got != tc.want {
			t.Fatalf("pick %d: team = %d, want %d", tc.pick, got, tc.want)
		}
	}

	if _, ok := ExpectedTeamOnClock(state.View{CurrentPick: 1}); ok {
		t.Fatal("expected false with no draft order")
	}
}

func healTestStore(t *testing.T, capacity, picks int) *state.Store {
	t.Helper()

	s := state.New(capacity, logging.NewNop())
	sess := draft.Session{LeagueID: "heal", MyTeamID: 1, TeamCount: 4, Rounds: 4}
	if err := s.ConfigureSession(sess); err != nil {
		t.Fatalf("ConfigureSession: %v", err)
	}
	if err := s.SetDraftOrder([]int{1, 2, 3, 4}); err != nil {
		t.Fatalf("SetDraftOrder: %v", err)
	}
	ids := make([]string, 16)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%02d", i+1)
	}
	s.InitializePlayerPool(ids)

	for i := 1; i <= picks; i++ {
		pick := draft.Pick{PickNumber: i, PlayerID: fmt.Sprintf("p%02d", i), TeamID: (i-1)%4 + 1, Position: draft.PositionRB}
		if err := s.ApplyPick(pick); err != nil {
			t.Fatalf("ApplyPick(%d): %v", i, err)
		}
	}
	return s
}

func TestHealNoopOnConsistentState(t *testing.T) {
	t.Parallel()

	s := healTestStore(t, 0, 3)
	validator := New(logging.NewNop())

	report, err := validator.Heal(s)
	if err != nil {
		t.Fatalf("Heal: %v", err)
	}
	if report.Healed || report.Checked != 0 {
		t.Fatalf("report = %+v, want untouched state", report)
	}
	if !report.Result.Valid {
		t.Fatalf("live state reported invalid: %v", report.Result.Errors)
	}
}

func TestHealRestoresNewestValidSnapshot(t *testing.T) {
	t.Parallel()

	s := healTestStore(t, 0, 4)
	// A stale on-the-clock frame drags the pick counter behind the
	// history and corrupts the live state.
	s.StartNewPick(1, 2, 30000)

	validator := New(logging.NewNop())
	report, err := validator.Heal(s)
	if err != nil {
		t.Fatalf("Heal: %v", err)
	}
	if !report.Healed || report.SnapshotIndex != -1 || report.Checked != 1 {
		t.Fatalf("report = %+v, want heal from -1 on first check", report)
	}

	view := s.View()
	if view.CurrentPick != 4 || len(view.History) != 4 {
		t.Fatalf("healed state at pick %d with %d picks, want 4 and 4", view.CurrentPick, len(view.History))
	}
	if res := validator.Validate(view); !res.Valid {
		t.Fatalf("healed state still invalid: %v", res.Errors)
	}
}

func TestHealSkipsCorruptSnapshots(t *testing.T) {
	t.Parallel()

	s := healTestStore(t, 0, 4)
	s.StartNewPick(1, 2, 30000)
	// The second stale frame snapshots the already-corrupt state, so
	// the newest ring entry is unusable too.
	s.StartNewPick(1, 2, 30000)

	validator := New(logging.NewNop())
	report, err := validator.Heal(s)
	if err != nil {
		t.Fatalf("Heal: %v", err)
	}
	if !report.Healed || report.SnapshotIndex != -2 || report.Checked != 2 {
		t.Fatalf("report = %+v, want heal from -2 after skipping -1", report)
	}
	if view := s.View(); view.CurrentPick != 4 || len(view.History) != 4 {
		t.Fatalf("healed state at pick %d with %d picks, want 4 and 4", view.CurrentPick, len(view.History))
	}
}

func TestHealEscalatesWhenNoSnapshotIsValid(t *testing.T) {
	t.Parallel()

	s := healTestStore(t, 1, 3)
	// Capacity one: each corrupting frame evicts the previous snapshot,
	// so after two of them the only ring entry is itself corrupt.
	s.StartNewPick(1, 2, 30000)
	s.StartNewPick(1, 2, 30000)

	validator := New(logging.NewNop())
	report, err := validator.Heal(s)
	if !errors.Is(err, ErrNoValidSnapshot) {
		t.Fatalf("err = %v, want ErrNoValidSnapshot", err)
	}
	if report.Healed {
		t.Fatal("escalated heal still reported success")
	}
	if report.Checked != 1 {
		t.Fatalf("checked = %d, want 1", report.Checked)
	}
	if report.Result.Valid {
		t.Fatal("escalated heal reported the live state valid")
	}
}
