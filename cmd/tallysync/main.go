package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/OnlyOnCloud/TallySyncService/internal/config"
	"github.com/OnlyOnCloud/TallySyncService/internal/core"
	_ "github.com/OnlyOnCloud/TallySyncService/internal/core/tables" // Register all tables
	"github.com/OnlyOnCloud/TallySyncService/internal/logging"
	"github.com/OnlyOnCloud/TallySyncService/internal/remote"
	"github.com/OnlyOnCloud/TallySyncService/internal/state"
	"github.com/OnlyOnCloud/TallySyncService/internal/tally"
	"github.com/OnlyOnCloud/TallySyncService/internal/web"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}

	// Setup structured logging based on config
	closeLog := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, logging.FileOptions{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer closeLog()

	slog.Info("configuration loaded", "config", cfg.String())

	tables, err := core.Select(cfg.Sync.Tables)
	if err != nil {
		slog.Error("invalid table selection", "error", err)
		return 1
	}
	slog.Info("tables selected",
		"count", len(tables),
		"registered", core.TableCount(),
		"groups", len(core.Groups()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := state.Open(ctx, cfg.State, slog.Default())
	if err != nil {
		slog.Error("failed to open sync state", "backend", cfg.State.Backend, "error", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("close sync state", "error", err)
		}
	}()

	extractor := tally.New(tally.Options{
		URL:     cfg.Source.URL,
		Company: cfg.Source.Company,
		Timeout: cfg.Source.Timeout,
	})

	breaker := remote.NewCircuitBreaker(remote.BreakerConfig{
		FailureThreshold: cfg.Remote.BreakerFailures,
		SuccessThreshold: cfg.Remote.BreakerSuccesses,
		Cooldown:         cfg.Remote.BreakerCooldown,
		OnStateChange: func(from, to remote.CircuitState) {
			slog.Warn("remote circuit state changed", "from", from.String(), "to", to.String())
		},
	})
	rmt := remote.NewResilient(
		remote.NewClient(remote.ClientOptions{
			BaseURL:    cfg.Remote.BaseURL,
			SyncPath:   cfg.Remote.SyncPath,
			HealthPath: cfg.Remote.HealthPath,
			Token:      cfg.Remote.APIToken,
		}),
		remote.WithRetries(cfg.Remote.MaxRetries),
		remote.WithBackoff(cfg.Remote.RetryInitial, cfg.Remote.RetryMax),
		remote.WithAttemptTimeout(cfg.Remote.Timeout),
		remote.WithBreaker(breaker),
	)

	service := core.NewService(tables, extractor, rmt, store,
		core.WithTransmitter(core.NewTransmitter(rmt,
			core.WithChunkSize(cfg.Sync.ChunkSize),
			core.WithChunkDelay(cfg.Sync.ChunkDelay),
			core.WithSourceIdentifier(cfg.Sync.SourceIdentifier),
		)),
		core.WithWindow(cfg.Sync.Lookback(), cfg.Sync.Overlap),
		core.WithSourceTimeout(cfg.Source.Timeout),
	)

	if cfg.Sync.RunOnce {
		return runOnce(ctx, service)
	}

	var server *web.Server
	if cfg.Server.Enabled {
		server = web.NewServer(service, store, cfg, web.WithCircuit(rmt))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		service.StartScheduler(gctx, cfg.Sync.Interval)
		return nil
	})

	if server != nil {
		g.Go(server.Start)
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		var errs []error
		if server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}

		graceCtx, cancel := context.WithTimeout(context.Background(), cfg.Sync.ShutdownGrace)
		defer cancel()
		if err := service.Shutdown(graceCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		slog.Error("service stopped with error", "error", err)
		return 1
	}
	slog.Info("service stopped")
	return 0
}

// runOnce runs a single cycle and reports failure through the exit code.
func runOnce(ctx context.Context, service *core.Service) int {
	start := time.Now()
	report, err := service.RunCycle(ctx)
	if err != nil {
		slog.Error("sync cycle failed", "error", err, "code", core.ErrorCode(err))
		return 1
	}
	if report.Error != "" || report.Failed() > 0 {
		slog.Error("sync cycle finished with failures",
			"failed", report.Failed(),
			"tables", len(report.Tables),
			"error", report.Error,
			"code", report.ErrorCode,
		)
		return 1
	}
	slog.Info("sync cycle complete",
		"tables", len(report.Tables),
		"duration", time.Since(start).String(),
	)
	return 0
}
