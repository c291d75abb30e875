// Package journalwriter archives feed frames without ever blocking the
// feed. Frames queue on a bounded channel; a single flusher batches
// them into the journal repository. Overflow and failed flushes drop
// frames and count the loss.
package journalwriter

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/riskibarqy/draftwire/internal/domain/journal"
	"github.com/riskibarqy/draftwire/internal/platform/logging"
	"github.com/riskibarqy/draftwire/internal/protocol"
)

const (
	defaultBuffer        = 1024
	defaultBatchSize     = 64
	defaultFlushInterval = time.Second
	defaultFlushTimeout  = 5 * time.Second
)

type Config struct {
	// Buffer is the channel capacity between Record and the flusher.
	Buffer int
	// BatchSize flushes early once this many entries are pending.
	BatchSize int
	// FlushInterval bounds how long a partial batch waits.
	FlushInterval time.Duration
	// FlushTimeout bounds each repository write.
	FlushTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Buffer:        defaultBuffer,
		BatchSize:     defaultBatchSize,
		FlushInterval: defaultFlushInterval,
		FlushTimeout:  defaultFlushTimeout,
	}
}

func NormalizeConfig(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Buffer < 1 {
		cfg.Buffer = defaults.Buffer
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaults.FlushInterval
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = defaults.FlushTimeout
	}
	return cfg
}

// Stats is a point-in-time view of archive progress.
type Stats struct {
	Written  uint64 `json:"written"`
	Dropped  uint64 `json:"dropped"`
	Buffered int    `json:"buffered"`
}

type Writer struct {
	repo   journal.Repository
	cfg    Config
	clock  clockwork.Clock
	logger *logging.Logger

	entries chan journal.Entry
	seq     atomic.Int64
	written atomic.Uint64
	dropped atomic.Uint64
}

func New(repo journal.Repository, cfg Config, clock clockwork.Clock, logger *logging.Logger) *Writer {
	cfg = NormalizeConfig(cfg)
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Writer{
		repo:    repo,
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		entries: make(chan journal.Entry, cfg.Buffer),
	}
}

// Record implements the processor's frame recorder. It never blocks;
// frames beyond the buffer are dropped and counted.
func (w *Writer) Record(msg protocol.Message, parseError bool) {
	entry := journal.Entry{
		Seq:        w.seq.Add(1),
		Kind:       string(msg.Kind),
		PickNumber: msg.PickNumber,
		TeamID:     msg.TeamID,
		PlayerID:   msg.PlayerID,
		Raw:        msg.Raw,
		ParseError: parseError,
		ReceivedAt: w.clock.Now(),
	}

	select {
	case w.entries <- entry:
	default:
		w.dropped.Add(1)
	}
}

// Run flushes batches until the context ends, then drains whatever is
// still buffered before returning.
func (w *Writer) Run(ctx context.Context) error {
	ticker := w.clock.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]journal.Entry, 0, w.cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			w.drainInto(&batch)
			w.flush(&batch)
			return ctx.Err()
		case entry := <-w.entries:
			batch = append(batch, entry)
			if len(batch) >= w.cfg.BatchSize {
				w.flush(&batch)
			}
		case <-ticker.Chan():
			w.flush(&batch)
		}
	}
}

func (w *Writer) Stats() Stats {
	return Stats{
		Written:  w.written.Load(),
		Dropped:  w.dropped.Load(),
		Buffered: len(w.entries),
	}
}

// flush writes under its own timeout so a shutdown never abandons the
// final batch mid-write.
func (w *Writer) flush(batch *[]journal.Entry) {
	if len(*batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.FlushTimeout)
	defer cancel()

	if err := w.repo.AppendMany(ctx, *batch); err != nil {
		w.dropped.Add(uint64(len(*batch)))
		w.logger.Warn("journal flush failed", "entries", len(*batch), "error", err)
	} else {
		w.written.Add(uint64(len(*batch)))
	}
	*batch = (*batch)[:0]
}

func (w *Writer) drainInto(batch *[]journal.Entry) {
	for {
		select {
		case entry := <-w.entries:
			*batch = append(*batch, entry)
			if len(*batch) >= w.cfg.BatchSize {
				w.flush(batch)
			}
		default:
			return
		}
	}
}
