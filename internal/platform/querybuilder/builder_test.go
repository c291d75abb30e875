package querybuilder

import "testing"

func TestSelectBuilder(t *testing.T) {
	query, args, err := Select("seq", "kind", "raw").
		From("draft_feed_frames").
		Where(Eq("kind", "SELECTED")).
		OrderBy("id DESC").
		Limit(50).
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}

	wantQuery := "SELECT seq, kind, raw FROM draft_feed_frames WHERE kind = $1 ORDER BY id DESC LIMIT 50"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 1 || args[0] != "SELECTED" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestSelectBuilderRequiresTable(t *testing.T) {
	if _, _, err := Select("seq").ToSQL(); err == nil {
		t.Fatal("expected error for missing table")
	}
	if _, _, err := Select().From("draft_feed_frames").ToSQL(); err == nil {
		t.Fatal("expected error for missing columns")
	}
}

func TestInsertBuilderMultiRow(t *testing.T) {
	query, args, err := InsertInto("draft_feed_frames").
		Columns("seq", "kind").
		Values(int64(1), "SELECTING").
		Values(int64(2), "SELECTED").
		Suffix("ON CONFLICT DO NOTHING").
		ToSQL()
	if err != nil {
		t.Fatalf("build insert query: %v", err)
	}

	wantQuery := "INSERT INTO draft_feed_frames (seq, kind) VALUES ($1, $2), ($3, $4) ON CONFLICT DO NOTHING"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 4 || args[1] != "SELECTING" || args[3] != "SELECTED" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestInsertBuilderRejectsRaggedRows(t *testing.T) {
	_, _, err := InsertInto("draft_feed_frames").
		Columns("seq", "kind").
		Values(int64(1)).
		ToSQL()
	if err == nil {
		t.Fatal("expected error for row shorter than columns")
	}
}
