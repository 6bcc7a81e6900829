package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/nclime/roomcast/internal/adapters/http"
	"github.com/nclime/roomcast/internal/auth"
	"github.com/nclime/roomcast/internal/bus"
	"github.com/nclime/roomcast/internal/config"
	"github.com/nclime/roomcast/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("CONFIG_ENV") == "dev" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	deps, cleanup, err := buildDeps(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire collaborators")
	}
	defer cleanup()

	r := router.SetupRouter(ctx, cfg, deps)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("roomcast gateway started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

// buildDeps selects the persistence and fan-out backends: Postgres and
// Redis when configured, in-process fallbacks otherwise (single-process
// dev runs and tests).
func buildDeps(ctx context.Context, cfg *config.Config) (router.Deps, func(), error) {
	var deps router.Deps
	closers := []func(){}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.DatabaseDSN != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseDSN)
		if err != nil {
			return deps, cleanup, err
		}
		closers = append(closers, func() { _ = pg.Close() })
		deps.Store, deps.Rooms, deps.StoreHealth = pg, pg, pg
		deps.Auth = auth.New(cfg.JWTSecret, cfg.JWTIssuer, pg)
	} else {
		log.Warn().Msg("no database_dsn configured, using in-memory store")
		mem := store.NewMemory()
		deps.Store, deps.Rooms, deps.StoreHealth = mem, mem, mem
		deps.Auth = auth.New(cfg.JWTSecret, cfg.JWTIssuer, mem)
	}

	if cfg.RedisURL != "" {
		rb, err := bus.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			cleanup()
			return deps, func() {}, err
		}
		closers = append(closers, func() { _ = rb.Close() })
		deps.Bus, deps.BusHealth = rb, rb
		log.Info().Msg("group fan-out over redis")
	} else {
		log.Warn().Msg("no redis_url configured, fan-out is single-process only")
		lb := bus.NewLocal()
		deps.Bus, deps.BusHealth = lb, lb
	}

	return deps, cleanup, nil
}
