package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/biblioteca/libaccess/internal/config"
	"github.com/biblioteca/libaccess/internal/db"
	"github.com/biblioteca/libaccess/internal/grpcapi"
	"github.com/biblioteca/libaccess/internal/httpapi"
	"github.com/biblioteca/libaccess/internal/libaccess/service"
	"github.com/biblioteca/libaccess/internal/libaccess/store"
	"github.com/biblioteca/libaccess/internal/libaccess/store/memory"
	"github.com/biblioteca/libaccess/internal/libaccess/store/postgres"
	"github.com/biblioteca/libaccess/internal/libaccess/store/sqlite"
	"github.com/biblioteca/libaccess/internal/logging"
	"github.com/biblioteca/libaccess/internal/metrics"
)

type backend struct {
	sessions store.SessionStore
	members  store.MemberDirectory
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	if err := db.SeedDev(ctx, be.members, cfg.SeedMembers); err != nil {
		return err
	}
	logger.Info("storage ready", "driver", cfg.Driver, "seeded_members", len(cfg.SeedMembers))

	m := metrics.New()

	tracker := service.NewAccessTracker(
		service.NewMemberRegistry(be.members),
		be.sessions,
		service.WithRecorder(m),
		service.WithLogger(logger),
	)
	reports := service.NewReportService(be.sessions)
	codes := service.NewCodeIssuer(cfg.CodePrefix)

	sampler := service.NewOccupancySampler(be.sessions, m, cfg.OccupancyInterval, logger)
	sampler.Start(ctx)
	defer sampler.Stop()

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:         logger,
		Addr:           cfg.HTTPAddr,
		Tracker:        tracker,
		Reports:        reports,
		Admin:          service.NewAdminService(be.sessions, logger),
		Codes:          codes,
		Observer:       m,
		MetricsHandler: m.Handler(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "err", err)
		}
		return nil
	})
	if cfg.GRPCAddr != "" {
		gsrv := grpcapi.NewServer(grpcapi.Dependencies{
			Logger:   logger,
			Tracker:  tracker,
			Reports:  reports,
			Codes:    codes,
			Observer: m,
		})
		g.Go(func() error {
			if err := gsrv.Run(gctx, cfg.GRPCAddr); err != nil {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	// Both servers have drained before the deferred sampler and storage
	// shutdown run.
	err = g.Wait()
	logger.Info("stopped")
	return err
}

func openBackend(ctx context.Context, cfg config.Config) (backend, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return backend{
			sessions: memory.New(),
			members:  memory.NewMemberDirectory(),
			close:    func() {},
		}, nil

	case config.DriverPostgres:
		conn, err := db.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return backend{}, fmt.Errorf("open postgres: %w", err)
		}
		return backend{
			sessions: postgres.NewSessionStore(conn),
			members:  postgres.NewMemberStore(conn),
			close:    func() { _ = conn.Close() },
		}, nil

	default:
		conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
		if err != nil {
			return backend{}, fmt.Errorf("open sqlite: %w", err)
		}
		writer := db.NewWorker(conn)
		return backend{
			sessions: sqlite.NewSessionStore(conn, writer),
			members:  sqlite.NewMemberStore(conn, writer),
			close: func() {
				writer.Close()
				_ = conn.Close()
			},
		}, nil
	}
}
