package statusapi

import "testing"

func TestShouldCreateStatusAPISpan(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{name: "handler span", in: "statusapi.Handler.GetDraftState", want: true},
		{name: "middleware span", in: "statusapi.RequestLogging", want: false},
		{name: "helper span", in: "statusapi.writeError", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shouldCreateStatusAPISpan(tt.in)
			if got != tt.want {
				t.Fatalf("shouldCreateStatusAPISpan(%q)=%v want=%v", tt.in, got, tt.want)
			}
		})
	}
}
