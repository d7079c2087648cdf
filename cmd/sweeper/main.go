package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"travel_desk/internal/adapters/observability"
	redisad "travel_desk/internal/adapters/redis"
	"travel_desk/internal/app"
	"travel_desk/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shared.LoadDotEnv()
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, "sweeper")

	log.Info().
		Dur("max_age", cfg.DraftMaxAge).
		Int("workers", cfg.SweepWorkers).
		Msg("sweeper starting")

	if cfg.DraftMaxAge <= 0 {
		log.Info().Msg("DRAFT_MAX_AGE_HOURS is 0; nothing expires")
		return
	}

	store := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("redis ping failed")
	}

	n, err := app.NewSweeper(store, cfg.DraftMaxAge, cfg.SweepWorkers).Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Int("removed", n).Msg("sweep interrupted")
	} else {
		log.Info().Int("removed", n).Msg("sweep completed")
	}

	if cfg.PushgatewayURL == "" {
		return
	}
	pctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if perr := observability.PushSweep(pctx, cfg.PushgatewayURL, n, err == nil); perr != nil {
		log.Warn().Err(perr).Str("gateway", cfg.PushgatewayURL).Msg("metrics push failed")
	}
}
