package draft

import (
	"testing"
)

func TestSessionValidate(t *testing.T) {
	t.Parallel()

	valid := Session{LeagueID: "league-123", MyTeamID: 5, TeamCount: 12, Rounds: 16}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid session, got %v", err)
	}
	if got := valid.TotalPicks(); got != 192 {
		t.Fatalf("total picks: got=%d want=192", got)
	}

	tests := []struct {
		name   string
		mutate func(*Session)
	}{
		{name: "missing league", mutate: func(s *Session) { s.LeagueID = " " }},
		{name: "bad team id", mutate: func(s *Session) { s.MyTeamID = 0 }},
		{name: "one team", mutate: func(s *Session) { s.TeamCount = 1 }},
		{name: "zero rounds", mutate: func(s *Session) { s.Rounds = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			if err := s.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestNormalizePosition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want RosterPosition
	}{
		{raw: "qb", want: PositionQB},
		{raw: " RB ", want: PositionRB},
		{raw: "D/ST", want: PositionDST},
		{raw: "def", want: PositionDST},
		{raw: "PK", want: PositionK},
		{raw: "FLEX", want: PositionFlex},
		{raw: "", want: PositionBench},
		{raw: "somethingelse", want: PositionBench},
	}

	for _, tt := range tests {
		if got := NormalizePosition(tt.raw); got != tt.want {
			t.Fatalf("NormalizePosition(%q): got=%s want=%s", tt.raw, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	if got := DisplayName("3918298", "Bijan Robinson"); got != "Bijan Robinson" {
		t.Fatalf("got %q", got)
	}
	if got := DisplayName("3918298", "  "); got != "Player #3918298" {
		t.Fatalf("got %q", got)
	}
}

func TestValidationResultHelpers(t *testing.T) {
	t.Parallel()

	result := NewValidationResult()
	if !result.Valid {
		t.Fatalf("fresh result must be valid")
	}

	result.AddWarning("player %s drafted but not rostered", "p1")
	if !result.Valid {
		t.Fatalf("warnings must not invalidate the result")
	}

	result.AddSuggestion("verify roster assignment for %s", "p1")
	result.AddError("pick count mismatch: history=%d drafted=%d", 3, 2)
	if result.Valid {
		t.Fatalf("errors must invalidate the result")
	}
	if len(result.Errors) != 1 || len(result.Warnings) != 1 || len(result.Suggestions) != 1 {
		t.Fatalf("unexpected result contents: %+v", result)
	}
}
