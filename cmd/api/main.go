package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"travel_desk/internal/adapters/catalog"
	"travel_desk/internal/adapters/events"
	server "travel_desk/internal/adapters/http_server"
	"travel_desk/internal/adapters/observability"
	redisad "travel_desk/internal/adapters/redis"
	"travel_desk/internal/adapters/uploads"
	"travel_desk/internal/app"
	"travel_desk/internal/domain"
	"travel_desk/internal/shared"
	mysqlrepo "travel_desk/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shared.LoadDotEnv()
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "api")

	observability.Serve(cfg.MetricsAddr)

	store := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("redis ping failed")
	}
	log.Info().Msg("redis connection ok")

	cat := catalogBackend(cfg)
	q := app.NewQueryService(cat, store, cfg.CacheTTL)

	if err := uploads.EnsureBucket(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL); err != nil {
		log.Warn().Err(err).Str("bucket", cfg.MinioBucket).Msg("bucket check failed; uploads may fail")
	}
	up, err := uploads.NewMinio(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL, cfg.UploadsRoot, cfg.UploadsPublic)
	if err != nil {
		log.Fatal().Err(err).Msg("minio client init failed")
	}

	var ev domain.EventPublisher
	if cfg.RabbitURL != "" {
		pub := events.New(cfg.RabbitURL)
		defer pub.Close()
		ev = pub
	}

	pipeline := app.NewPipeline(up, cat, q, ev, cfg.UploadWorkers)
	previews := app.NewPreviewRegistry()
	drafts := app.NewDrafts(store, q, pipeline, previews, app.DraftConfig{
		UploadsRoot: cfg.UploadsRoot,
		Debounce:    cfg.SnapshotDebounce,
		MaxAge:      cfg.DraftMaxAge,
	})

	// http
	srv := server.New(cfg.HTTPTimeout)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, Drafts: drafts, Previews: previews, MaxUpload: cfg.MaxUploadBytes})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if err := drafts.FlushAll(sctx); err != nil {
		log.Warn().Err(err).Msg("flushing drafts")
	}
}

func catalogBackend(cfg shared.Config) domain.CatalogAPI {
	switch cfg.CatalogBackend {
	case "http":
		c, err := catalog.New(cfg.CatalogBase, cfg.CatalogKey, cfg.CatalogRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize catalog client")
		}
		log.Info().Str("base", cfg.CatalogBase).Msg("catalog: remote api")
		return c
	default:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		if err := db.Ping(); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("catalog: mysql")
		return mysqlrepo.New(db)
	}
}
