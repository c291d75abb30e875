package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/draftwire/internal/domain/journal"
	qb "github.com/riskibarqy/draftwire/internal/platform/querybuilder"
)

const journalTable = "draft_feed_frames"

var journalColumns = []string{
	"seq", "kind", "pick_number", "team_id", "player_id", "raw", "parse_error", "received_at",
}

type JournalRepository struct {
	db *sqlx.DB
}

func NewJournalRepository(db *sqlx.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// AppendMany archives a batch of frames in one statement.
func (r *JournalRepository) AppendMany(ctx context.Context, entries []journal.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	builder := qb.InsertInto(journalTable).Columns(journalColumns...)
	for _, entry := range entries {
		builder.Values(
			entry.Seq,
			entry.Kind,
			entry.PickNumber,
			entry.TeamID,
			entry.PlayerID,
			entry.Raw,
			entry.ParseError,
			entry.ReceivedAt,
		)
	}

	query, args, err := builder.ToSQL()
	if err != nil {
		return fmt.Errorf("build append journal entries query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append %d journal entries: %w", len(entries), err)
	}

	return nil
}

func (r *JournalRepository) Recent(ctx context.Context, kind string, limit int) ([]journal.Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	builder := qb.Select(journalColumns...).
		From(journalTable).
		OrderBy("id DESC").
		Limit(limit)
	if kind != "" {
		builder = builder.Where(qb.Eq("kind", kind))
	}

	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build recent journal entries query: %w", err)
	}

	var rows []journalEntryRowModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select recent journal entries: %w", err)
	}

	out := make([]journal.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}

	return out, nil
}

func (r *JournalRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM "+journalTable); err != nil {
		return 0, fmt.Errorf("count journal entries: %w", err)
	}
	return count, nil
}

type journalEntryRowModel struct {
	Seq        int64     `db:"seq"`
	Kind       string    `db:"kind"`
	PickNumber int       `db:"pick_number"`
	TeamID     int       `db:"team_id"`
	PlayerID   string    `db:"player_id"`
	Raw        string    `db:"raw"`
	ParseError bool      `db:"parse_error"`
	ReceivedAt time.Time `db:"received_at"`
}

func (m journalEntryRowModel) toDomain() journal.Entry {
	return journal.Entry{
		Seq:        m.Seq,
		Kind:       m.Kind,
		PickNumber: m.PickNumber,
		TeamID:     m.TeamID,
		PlayerID:   m.PlayerID,
		Raw:        m.Raw,
		ParseError: m.ParseError,
		ReceivedAt: m.ReceivedAt,
	}
}
