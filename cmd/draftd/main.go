package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/riskibarqy/draftwire/internal/app"
	"github.com/riskibarqy/draftwire/internal/config"
	"github.com/riskibarqy/draftwire/internal/observability"
	idgen "github.com/riskibarqy/draftwire/internal/platform/id"
	"github.com/riskibarqy/draftwire/internal/platform/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	var logger *logging.Logger
	if cfg.LogFormat == config.LogFormatConsole {
		logger = logging.NewConsole(cfg.LogLevel)
	} else {
		logger = logging.NewJSON(cfg.LogLevel)
	}

	instanceID, err := idgen.NewRandomGenerator().NewID()
	if err == nil {
		logger = logger.With("instance_id", instanceID)
	}
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	shippedLogger, flushLogs, err := observability.InitBetterStackLogger(cfg, logger)
	if err != nil {
		logger.Error("init log shipping", "error", err)
		os.Exit(1)
	}
	logger = shippedLogger
	logging.SetDefault(logger)

	shutdownTracing, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		logger.Error("init tracing", "error", err)
		os.Exit(1)
	}

	stopProfiling, err := observability.InitPyroscope(cfg, logger)
	if err != nil {
		logger.Error("init profiling", "error", err)
		os.Exit(1)
	}

	pprofServer, err := observability.StartPprofServer(cfg, logger)
	if err != nil {
		logger.Error("start pprof server", "error", err)
		os.Exit(1)
	}

	engine, err := app.NewEngine(cfg, logger)
	if err != nil {
		logger.Error("build engine", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("http server starting", "addr", cfg.HTTPAddr)
		if err := engine.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	logger.Info("feed pipeline starting",
		"feed_url", cfg.FeedURL,
		"service", cfg.ServiceName,
		"version", cfg.ServiceVersion,
	)
	runErr := engine.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := engine.HTTPServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if pprofServer != nil {
		if err := pprofServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("pprof shutdown failed", "error", err)
		}
	}
	if err := engine.Close(); err != nil {
		logger.Warn("engine close failed", "error", err)
	}

	if stopProfiling != nil {
		if err := stopProfiling(); err != nil {
			logger.Warn("stop profiling failed", "error", err)
		}
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("flush traces failed", "error", err)
		}
	}
	if flushLogs != nil {
		if err := flushLogs(shutdownCtx); err != nil {
			logger.Warn("flush logs failed", "error", err)
		}
	}

	if runErr != nil {
		logger.Error("feed pipeline terminated", "error", runErr)
		_ = logger.Sync()
		os.Exit(1)
	}

	logger.Info("engine stopped")
}
