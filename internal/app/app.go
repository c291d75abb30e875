// Package app wires the engine: feed transport, connection manager,
// processor, state store, resolver, journal, and the status HTTP
// surface, all from one Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/sourcegraph/conc"

	"github.com/riskibarqy/draftwire/external/draftfeed"
	"github.com/riskibarqy/draftwire/internal/config"
	"github.com/riskibarqy/draftwire/internal/conn"
	"github.com/riskibarqy/draftwire/internal/domain/draft"
	"github.com/riskibarqy/draftwire/internal/domain/journal"
	"github.com/riskibarqy/draftwire/internal/infrastructure/journalwriter"
	"github.com/riskibarqy/draftwire/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/draftwire/internal/interfaces/statusapi"
	"github.com/riskibarqy/draftwire/internal/platform/cache"
	"github.com/riskibarqy/draftwire/internal/platform/logging"
	"github.com/riskibarqy/draftwire/internal/platform/resilience"
	"github.com/riskibarqy/draftwire/internal/processor"
	"github.com/riskibarqy/draftwire/internal/resolver"
	"github.com/riskibarqy/draftwire/internal/state"
	"github.com/riskibarqy/draftwire/internal/usecase"
	"github.com/riskibarqy/draftwire/internal/validate"
)

// Engine owns every long-running component of the draft state engine.
// Construct with NewEngine, drive the feed pipeline with Run, serve
// HTTPServer from the caller, and Close when done.
type Engine struct {
	HTTPServer *http.Server

	cfg     config.Config
	logger  *logging.Logger
	store   *state.Store
	checker *validate.Validator
	proc    *processor.Processor
	res     *resolver.Service
	writer  *journalwriter.Writer
	feed    *draftfeed.Client
	manager *conn.Manager
	closeDB func() error
}

func NewEngine(cfg config.Config, logger *logging.Logger) (*Engine, error) {
	if logger == nil {
		logger = logging.Default()
	}

	store := state.New(cfg.SnapshotCapacity, logger)
	checker := validate.New(logger)
	directory := memory.NewDirectoryRepository(nil)
	cacheStore := cache.NewStore(cfg.CacheTTL)

	journalRepo, closeDB, err := newJournalRepository(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build journal repository: %w", err)
	}
	writer := journalwriter.New(journalRepo, journalwriter.Config{
		Buffer:        cfg.JournalBuffer,
		BatchSize:     cfg.JournalBatchSize,
		FlushInterval: cfg.JournalFlushInterval,
		FlushTimeout:  cfg.JournalFlushTimeout,
	}, nil, logger)

	// The processor needs the resolver for position lookups and the
	// resolver needs the processor to patch picks; the late binding
	// breaks the cycle at wiring time.
	late := &lateResolver{}
	proc := processor.New(store, late, writer, logger)

	res, err := resolver.New(directory, proc, cacheStore, resolver.Config{
		Workers:       cfg.ResolverWorkers,
		DrainInterval: cfg.ResolverDrainInterval,
	}, nil, logger)
	if err != nil {
		if closeDB != nil {
			_ = closeDB()
		}
		return nil, fmt.Errorf("build resolver: %w", err)
	}
	late.bind(res)

	feed := draftfeed.NewClient(draftfeed.ClientConfig{
		FeedURL:        cfg.FeedURL,
		SessionURL:     cfg.FeedSessionURL,
		Token:          cfg.FeedToken,
		Origin:         cfg.FeedOrigin,
		DialTimeout:    cfg.FeedDialTimeout,
		WriteTimeout:   cfg.FeedWriteTimeout,
		SessionTimeout: cfg.FeedSessionTimeout,
		Logger:         logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.FeedCircuitEnabled,
			FailureThreshold: cfg.FeedCircuitFailureCount,
			OpenTimeout:      cfg.FeedCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.FeedCircuitHalfOpenMaxReq,
		},
	})

	manager := conn.NewManager(feed, store, conn.Config{
		HeartbeatInterval: cfg.HeartbeatInterval,
		HeartbeatTimeout:  cfg.HeartbeatTimeout,
		MaxAttempts:       cfg.ReconnectMaxAttempts,
		BackoffSchedule:   cfg.ReconnectBackoff,
		FrameBuffer:       cfg.FrameBuffer,
	}, nil, logger)

	// A reconnect means the feed may have replayed picks recorded with
	// provisional bench positions; drain the queue right away instead
	// of waiting out the periodic interval.
	manager.OnReconnect(func(ctx context.Context, _ conn.OutageSnapshot) {
		if _, err := res.ResolvePending(ctx); err != nil {
			logger.WarnContext(ctx, "post-reconnect resolution drain failed", "error", err)
		}
	})

	if cfg.ValidationCheckEvery > 0 {
		proc.Register(consistencySweep(cfg.ValidationCheckEvery, store, checker, logger))
	}

	sessionService := usecase.NewSessionService(store, directory, cacheStore, logger)
	queryService := usecase.NewDraftQueryService(store, checker, directory, res, proc, writer, journalRepo, manager)
	opsService := usecase.NewOpsService(store, checker, logger)

	handler := statusapi.NewHandler(sessionService, queryService, opsService, logger)
	router := statusapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins, cfg.OpsToken)

	if cfg.HTTPAddr == "" {
		if closeDB != nil {
			_ = closeDB()
		}
		res.Close()
		return nil, fmt.Errorf("http server addr cannot be empty")
	}
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Engine{
		HTTPServer: server,
		cfg:        cfg,
		logger:     logger,
		store:      store,
		checker:    checker,
		proc:       proc,
		res:        res,
		writer:     writer,
		feed:       feed,
		manager:    manager,
		closeDB:    closeDB,
	}, nil
}

// Run drives the feed pipeline until the context is cancelled or the
// connection manager fails terminally. Every loop is joined before Run
// returns, so a caller that has seen it return can Close safely.
func (e *Engine) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	feedErr := make(chan error, 1)

	var wg conc.WaitGroup
	wg.Go(func() {
		if err := e.writer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Warn("journal writer stopped", "error", err)
		}
	})
	wg.Go(func() {
		if err := e.res.RunPeriodic(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Warn("resolver loop stopped", "error", err)
		}
	})
	wg.Go(func() {
		if err := e.proc.Run(runCtx, e.manager.Frames()); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Warn("processor stopped", "error", err)
		}
	})
	wg.Go(func() {
		feedErr <- e.manager.Run(runCtx)
	})

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-feedErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("feed pipeline: %w", err)
		}
	}
	cancel()
	wg.Wait()
	return runErr
}

// Close releases resources not owned by Run: the resolver worker pool,
// the feed connection, and the journal database handle.
func (e *Engine) Close() error {
	e.res.Close()
	if err := e.feed.Close(); err != nil {
		e.logger.Warn("close feed client", "error", err)
	}
	if e.closeDB != nil {
		return e.closeDB()
	}
	return nil
}

// newJournalRepository picks the durable journal when DB_URL is set and
// falls back to the in-memory ring for database-less runs.
func newJournalRepository(cfg config.Config, logger *logging.Logger) (journal.Repository, func() error, error) {
	if cfg.DBURL == "" {
		logger.Info("journal repository", "backend", "memory", "capacity", cfg.JournalMemoryCapacity)
		return memory.NewJournalRepository(cfg.JournalMemoryCapacity), nil, nil
	}

	db, err := openJournalDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("journal repository", "backend", "postgres", "database", dbNameFromURL(cfg.DBURL))
	return postgresJournal(db), db.Close, nil
}

// consistencySweep validates the store after every nth applied pick and
// rolls back to the newest healthy snapshot on a hard error. It runs on
// the processor goroutine, so a heal lands before the next frame.
func consistencySweep(every int, store *state.Store, checker *validate.Validator, logger *logging.Logger) processor.Listener {
	var applied atomic.Uint64
	return processor.ListenerFuncs{
		PickProcessed: func(event processor.PickEvent) {
			if event.Patched {
				return
			}
			if applied.Add(1)%uint64(every) != 0 {
				return
			}

			result := checker.Validate(store.View())
			if result.Valid {
				return
			}
			logger.Warn("consistency sweep found corruption",
				"pick_number", event.Pick.PickNumber,
				"errors", result.Errors,
			)
			report, err := checker.Heal(store)
			if err != nil {
				logger.Error("automatic heal failed, operator intervention required", "error", err)
				return
			}
			if report.Healed {
				logger.Warn("state healed from snapshot",
					"snapshot_index", report.SnapshotIndex,
					"snapshots_checked", report.Checked,
				)
			}
		},
	}
}

// lateResolver defers the processor's position lookups to a service
// bound after construction. Until then every lookup is a bench miss,
// matching the processor's own default.
type lateResolver struct {
	svc atomic.Pointer[resolver.Service]
}

func (l *lateResolver) bind(svc *resolver.Service) {
	l.svc.Store(svc)
}

func (l *lateResolver) Resolve(playerID string) (draft.RosterPosition, bool) {
	if svc := l.svc.Load(); svc != nil {
		return svc.Resolve(playerID)
	}
	return draft.PositionBench, false
}
