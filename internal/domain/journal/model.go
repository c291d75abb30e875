package journal

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Entry is one archived feed frame. Seq is the writer-assigned feed
// order within a run; malformed frames are archived too, flagged with
// ParseError, so post-draft audits see exactly what the vendor sent.
type Entry struct {
	Seq        int64
	Kind       string
	PickNumber int
	TeamID     int
	PlayerID   string
	Raw        string
	ParseError bool
	ReceivedAt time.Time
}

func (e Entry) Validate() error {
	if e.Seq <= 0 {
		return fmt.Errorf("journal entry seq must be greater than zero")
	}
	if strings.TrimSpace(e.Kind) == "" {
		return fmt.Errorf("journal entry kind is required")
	}
	return nil
}

// Repository persists feed frames for post-draft audit. Recent returns
// newest entries first; an empty kind matches every frame.
type Repository interface {
	AppendMany(ctx context.Context, entries []Entry) error
	Recent(ctx context.Context, kind string, limit int) ([]Entry, error)
	Count(ctx context.Context) (int64, error)
}
