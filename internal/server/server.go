// Package server runs the storefront: it connects the backends, serves the
// HTTP kernel and the gRPC health service, and shuts everything down in
// order when the process is signalled.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/freshbulk/storefront/config"
	"github.com/freshbulk/storefront/internal/kernel"
	"github.com/freshbulk/storefront/pkg/audit"
	"github.com/freshbulk/storefront/pkg/cache"
	"github.com/freshbulk/storefront/pkg/database"
	"github.com/freshbulk/storefront/pkg/grpc"
	"github.com/freshbulk/storefront/pkg/logger"
	"github.com/freshbulk/storefront/pkg/migration"
	"github.com/freshbulk/storefront/pkg/storage"
	"github.com/freshbulk/storefront/pkg/workerpool"
	"github.com/freshbulk/storefront/pkg/ws"
)

const shutdownTimeout = 15 * time.Second

type Options struct {
	// Migrate applies pending migrations before serving.
	Migrate bool
}

// Backends holds every connection opened by Boot.
type Backends struct {
	Cache cache.Store
	Audit audit.Recorder
	Disk  storage.Disk
}

// Boot connects the database and the optional backends. Redis and Mongo
// are optional: when unreachable the in-memory stand-ins are used and a
// warning is logged. The database and the storage disk are required.
func Boot(ctx context.Context) (*Backends, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("server: load config: %w", err)
	}
	if err := database.Connect(); err != nil {
		return nil, err
	}

	store, err := cache.Connect(ctx)
	if err != nil {
		logger.Warn("cache: falling back to in-memory store", "error", err)
	}
	rec, err := audit.Connect(ctx)
	if err != nil {
		logger.Warn("audit: falling back to in-memory recorder", "error", err)
	}
	disk, err := storage.Open(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info("backends ready",
		"db", config.DatabaseDriver(),
		"cache", store.Driver(),
		"storage", disk.Name(),
	)
	return &Backends{Cache: store, Audit: rec, Disk: disk}, nil
}

// Close releases the optional backends. The database is closed separately
// since CLI commands use it without Boot.
func (b *Backends) Close(ctx context.Context) {
	if err := b.Audit.Close(ctx); err != nil {
		logger.Warn("audit: close", "error", err)
	}
	if c, ok := b.Cache.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("cache: close", "error", err)
		}
	}
}

// Start serves until SIGINT or SIGTERM, then drains in this order: HTTP,
// gRPC, the event pool and finally the backends.
func Start(opts Options) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backends, err := Boot(ctx)
	if err != nil {
		return err
	}
	defer database.Close() //nolint:errcheck

	// Until the shutdown goroutine owns them, early exits release the
	// backends here.
	started := false
	defer func() {
		if !started {
			backends.Close(context.Background())
		}
	}()

	if opts.Migrate {
		ran, err := migration.New(database.DB).Run(ctx)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", "count", len(ran))
	}

	pool := workerpool.New("events", 4, 256)
	hub := ws.NewHub(ws.AllowOrigins(config.CORSOrigins()))
	limiter, err := kernel.NewLimiter()
	if err != nil {
		return err
	}

	k, err := kernel.New(kernel.Deps{
		DB:      database.DB,
		Cache:   backends.Cache,
		Disk:    backends.Disk,
		Audit:   backends.Audit,
		Hub:     hub,
		Pool:    pool,
		Limiter: limiter,
	})
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           k.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	var grpcSrv *grpc.Server
	var grpcLis net.Listener
	if port := config.GRPCPort(); port != "" {
		grpcLis, err = grpc.Listen(port)
		if err != nil {
			return err
		}
		grpcSrv = grpc.New()
	}

	// Background loops stop with ctx; the hub closes its clients on exit.
	go hub.Run(ctx)
	go limiter.Sweep(ctx)

	started = true
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", httpSrv.Addr, "env", config.AppEnv())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: http: %w", err)
		}
		return nil
	})
	if grpcSrv != nil {
		g.Go(func() error { return grpcSrv.Serve(grpcLis) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// WebSocket connections are hijacked, so Shutdown does not wait on them.
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http: shutdown", "error", err)
		}
		if grpcSrv != nil {
			grpcSrv.Stop(shutdownCtx)
		}
		if err := pool.Shutdown(shutdownCtx); err != nil {
			logger.Error("events: shutdown", "error", err)
		}
		backends.Close(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
