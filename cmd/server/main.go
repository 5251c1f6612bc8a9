package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/stockflow/internal/adapter/handler"
	"github.com/rl1809/stockflow/internal/app"
	"github.com/rl1809/stockflow/internal/config"
	"github.com/rl1809/stockflow/internal/core/service"
	"github.com/rl1809/stockflow/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New("stockflow", cfg.Common.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	// Initialize storage
	store, closeStore, err := app.OpenStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()
	log.Info().Str("driver", cfg.Database.Driver).Msg("connected to database")

	cache, closeCache, err := app.OpenCache(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeCache()

	publisher, closePublisher, err := app.OpenPublisher(cfg.Rabbit, log)
	if err != nil {
		return err
	}
	defer closePublisher()

	// Initialize services
	catalog := service.NewCatalogService(store, cache, log)
	cart := service.NewCartService(store, cache, cache, log)
	sales := service.NewSaleService(store, store, cart, publisher, log, cfg.Workers.QueueSize)
	auth := service.NewAuthService(store, cache, log, cfg.Auth.SessionTTL)
	if cfg.Auth.SeedDemoCatalog {
		auth.SeedNewBusinesses(catalog)
	}

	// Sync stock to cache
	synced, err := catalog.SyncStock(ctx)
	if err != nil {
		return fmt.Errorf("sync stock: %w", err)
	}
	log.Info().Int("products", synced).Msg("synced stock to cache")

	sales.StartWorkers(cfg.Workers.Count)

	// Initialize servers
	grpcServer := handler.NewGRPCServer(handler.NewGRPCHandler(auth, cart, sales, log))
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		sales.Close()
		return fmt.Errorf("listen %s: %w", cfg.GRPC.Addr, err)
	}

	httpHandler := handler.NewHTTPHandler(auth, catalog, cart, sales, log)
	httpHandler.AddHealthCheck("database", store.Ping)
	httpHandler.AddHealthCheck("cache", cache.Ping)
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: httpHandler.Routes(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.GRPC.Addr).Msg("gRPC server listening")
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down...")

		// Stop HTTP server
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown")
		}
		log.Info().Msg("HTTP server stopped")

		// Stop gRPC server
		grpcServer.GracefulStop()
		log.Info().Msg("gRPC server stopped")
		return nil
	})

	err = g.Wait()

	// Close sale queue and wait for workers
	sales.Close()
	log.Info().Msg("workers stopped")
	return err
}
