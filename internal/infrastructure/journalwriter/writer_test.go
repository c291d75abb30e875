package journalwriter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/riskibarqy/draftwire/internal/domain/journal"
	"github.com/riskibarqy/draftwire/internal/platform/logging"
	"github.com/riskibarqy/draftwire/internal/protocol"
)

type stubJournalRepo struct {
	mu      sync.Mutex
	batches [][]journal.Entry
	err     error
}

func (r *stubJournalRepo) AppendMany(_ context.Context, entries []journal.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	batch := append([]journal.Entry(nil), entries...)
	r.batches = append(r.batches, batch)
	return nil
}

func (r *stubJournalRepo) Recent(context.Context, string, int) ([]journal.Entry, error) {
	return nil, nil
}

func (r *stubJournalRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, b := range r.batches {
		n += int64(len(b))
	}
	return n, nil
}

func (r *stubJournalRepo) flat() []journal.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []journal.Entry
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

func (r *stubJournalRepo) batchSizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	sizes := make([]int, 0, len(r.batches))
	for _, b := range r.batches {
		sizes = append(sizes, len(b))
	}
	return sizes
}

func selectedMsg(team int, playerID string, pick int) protocol.Message {
	return protocol.Message{
		Kind:       protocol.KindSelected,
		TeamID:     team,
		PlayerID:   playerID,
		PickNumber: pick,
		Raw:        "SELECTED frame",
	}
}

func TestWriterBatchesBySizeAndDrainsOnShutdown(t *testing.T) {
	t.Parallel()

	repo := &stubJournalRepo{}
	cfg := Config{Buffer: 64, BatchSize: 2, FlushInterval: time.Hour}
	w := New(repo, cfg, clockwork.NewFakeClock(), logging.NewNop())

	for i := 1; i <= 5; i++ {
		w.Record(selectedMsg(1, "p00"+string(rune('0'+i)), i), false)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(repo.flat()) < 4 {
		if time.Now().After(deadline) {
			t.Fatalf("size-triggered flushes never landed, got %d entries", len(repo.flat()))
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}

	entries := repo.flat()
	if len(entries) != 5 {
		t.Fatalf("archived entries = %d, want 5", len(entries))
	}
	for i, entry := range entries {
		if entry.Seq != int64(i+1) {
			t.Fatalf("entry %d seq = %d, want %d", i, entry.Seq, i+1)
		}
	}
	if entries[0].Kind != string(protocol.KindSelected) || entries[0].PickNumber != 1 {
		t.Fatalf("entry mapping off: %+v", entries[0])
	}
	if sizes := repo.batchSizes(); len(sizes) != 3 || sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 1 {
		t.Fatalf("batch sizes = %v, want [2 2 1]", sizes)
	}
	if got := w.Stats().Written; got != 5 {
		t.Fatalf("written = %d, want 5", got)
	}
}

func TestWriterDropsOnFullBuffer(t *testing.T) {
	t.Parallel()

	w := New(&stubJournalRepo{}, Config{Buffer: 2, BatchSize: 64}, clockwork.NewFakeClock(), logging.NewNop())

	for i := 1; i <= 5; i++ {
		w.Record(selectedMsg(1, "p001", i), false)
	}

	stats := w.Stats()
	if stats.Dropped != 3 {
		t.Fatalf("dropped = %d, want 3", stats.Dropped)
	}
	if stats.Buffered != 2 {
		t.Fatalf("buffered = %d, want 2", stats.Buffered)
	}
}

func TestWriterFlushesOnInterval(t *testing.T) {
	t.Parallel()

	repo := &stubJournalRepo{}
	fc := clockwork.NewFakeClock()
	w := New(repo, Config{Buffer: 64, BatchSize: 100, FlushInterval: time.Second}, fc, logging.NewNop())

	w.Record(selectedMsg(2, "p010", 7), false)
	w.Record(protocol.Message{Kind: protocol.KindSelected, Raw: "SELECTED"}, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	fc.BlockUntil(1)
	fc.Advance(time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for len(repo.flat()) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("interval flush never landed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	entries := repo.flat()
	if !entries[1].ParseError {
		t.Fatalf("malformed frame not flagged: %+v", entries[1])
	}
	if entries[0].TeamID != 2 || entries[0].PlayerID != "p010" || entries[0].PickNumber != 7 {
		t.Fatalf("entry mapping off: %+v", entries[0])
	}

	cancel()
	<-done
}

func TestWriterCountsFailedFlushAsDropped(t *testing.T) {
	t.Parallel()

	repo := &stubJournalRepo{err: errors.New("db down")}
	w := New(repo, Config{Buffer: 8, BatchSize: 1, FlushInterval: time.Hour}, clockwork.NewFakeClock(), logging.NewNop())

	w.Record(selectedMsg(1, "p001", 1), false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for w.Stats().Dropped == 0 {
		if time.Now().After(deadline) {
			t.Fatal("failed flush never counted as dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done

	stats := w.Stats()
	if stats.Written != 0 {
		t.Fatalf("written = %d, want 0", stats.Written)
	}
}
