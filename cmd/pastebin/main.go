package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Hemasri-01/pastebin/cfg"
	"github.com/Hemasri-01/pastebin/metrics"
	"github.com/Hemasri-01/pastebin/pkg/clock"
	"github.com/Hemasri-01/pastebin/svc/api"
	"github.com/Hemasri-01/pastebin/svc/cache"
	"github.com/Hemasri-01/pastebin/svc/db"
	"github.com/Hemasri-01/pastebin/svc/lim"
	"github.com/Hemasri-01/pastebin/svc/svc"
	"github.com/Hemasri-01/pastebin/svc/util"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) > 1 && os.Args[1] == "-health" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		dbPath := os.Getenv("DATABASE_PATH")
		if dbPath == "" {
			dbPath = "pastebin.db"
		}
		sqlDB, err := db.NewSQLite(dbPath)
		if err != nil {
			os.Exit(1)
		}
		defer sqlDB.Close()
		if err := sqlDB.Ping(ctx); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}

	c, err := cfg.Load()
	if err != nil {
		util.Fatal().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}
	if err := cfg.Validate(c); err != nil {
		util.Fatal().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}
	defer c.Wipe()
	util.InitLog(c.LogLevel, c.Environment == "development")
	util.Info().Msg("starting pastebin API")
	metrics.Init()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sqlDB, err := db.NewSQLiteWithConfig(c.DatabasePath, c.DBMaxOpenConns, c.DBMaxIdleConns, c.DBQueryTimeout)
	if err != nil {
		util.Fatal().Err(err).Msg("failed to initialize database")
		os.Exit(1)
	}
	defer sqlDB.Close()
	util.Info().Str("path", c.DatabasePath).Msg("database initialized")

	var rdb *db.Redis
	if c.RedisURL != "" {
		rdb, err = db.NewRedis(c.RedisURL, c)
		if err != nil {
			if c.Environment == "production" {
				util.Fatal().Err(err).Msg("CRITICAL: Redis required in production")
				os.Exit(1)
			}
			util.Warn().Err(err).Msg("redis unavailable (dev mode)")
		} else {
			util.Info().Msg("redis connected")
		}
	}
	if rdb != nil {
		defer rdb.Close()
	}

	lruCache, err := cache.NewLRU(c.LRUCacheSize)
	if err != nil {
		util.Fatal().Err(err).Msg("failed to create LRU cache")
		os.Exit(1)
	}
	util.Info().Int("size", c.LRUCacheSize).Msg("LRU cache initialized")

	wall := clock.Wall{}
	pasteSvc := svc.NewPaste(sqlDB, lruCache, rdb, wall, c)
	util.Info().Bool("clock_override", c.ClockOverride).Msg("paste service initialized")

	limiter := lim.New(c.RateLimit.RPM, c.RateLimit.Burst, rdb, c.TrustedProxies)
	defer limiter.Stop()
	util.Info().
		Int("rpm", c.RateLimit.RPM).
		Int("burst", c.RateLimit.Burst).
		Strs("trusted_proxies", c.TrustedProxies).
		Msg("rate limiter initialized")

	server := api.NewServer(c, pasteSvc, limiter, sqlDB, rdb, wall)

	quitWAL := make(chan struct{})
	go db.StartWALMaintenance(sqlDB.DB(), quitWAL)
	util.Info().Msg("WAL maintenance worker started")

	if err := svc.StartCleaner(ctx, sqlDB, wall, c.CleanupInterval); err != nil {
		util.Error().Err(err).Msg("failed to start cleaner")
	} else {
		util.Info().Dur("interval", c.CleanupInterval).Msg("expired paste cleanup worker started")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		util.Info().Str("port", c.Port).Str("environment", c.Environment).Msg("server starting")
		return server.Start()
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		util.Info().Msg("shutting down gracefully...")
	case <-gctx.Done():
		util.Error().Msg("server exited unexpectedly")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		util.Error().Err(err).Msg("server shutdown error")
	}
	close(quitWAL)
	cancel()
	if err := g.Wait(); err != nil {
		util.Error().Err(err).Msg("server error")
	}
	util.Info().Msg("shutdown complete")
}
