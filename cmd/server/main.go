package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cufy/campusmatch/internal/app"
	"github.com/cufy/campusmatch/internal/cache"
	"github.com/cufy/campusmatch/internal/config"
	"github.com/cufy/campusmatch/internal/db"
	"github.com/cufy/campusmatch/internal/logger"
	"github.com/cufy/campusmatch/internal/server"
	"github.com/cufy/campusmatch/internal/service/account"
	"github.com/cufy/campusmatch/internal/service/admin"
	"github.com/cufy/campusmatch/internal/service/dashboard"
	"github.com/cufy/campusmatch/internal/service/lifecycle"
	"github.com/cufy/campusmatch/internal/sweeper"
)

func main() {
	// Optional .env for local development; a missing file is fine.
	_ = godotenv.Load()

	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	appCtx := app.New(database, redisCache, log, cfg)
	lc := lifecycle.NewService(appCtx)

	registrars := []server.Registrar{
		dashboard.NewService(appCtx, lc),
		account.NewService(appCtx, lc),
		admin.NewService(appCtx, lc),
	}

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sweep.Enabled {
		go sweeper.New(appCtx, lc).Run(ctx)
	}

	handler := server.NewRouter(appCtx, registrars...)

	log.Info("starting HTTP server", "addr", cfg.HTTPAddr())
	if err := server.StartHTTPServer(ctx, cfg, handler); err != nil {
		log.Error("HTTP server exited", "err", err)
	}
}
