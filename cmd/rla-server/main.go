package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/cache"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/config"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/obs"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/ratelimit/memory"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/routing"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/server"
	"github.com/YinYang-Interactive-LLC/roguelike-analytics-api/internal/store"
)

var version = "v0.1.0"

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot := obs.SetupLogger("info")
		boot.Fatal().Err(err).Msg("load config")
	}

	logger := obs.SetupLogger(cfg.Observability.LogLevel)

	rlCfg := cfg.Limits.RateLimit()
	limiter, err := memory.New(rlCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid rate limiter config")
	}
	maxTokens := rlCfg.MaxTokens()
	costs := map[string]uint64{
		routing.RouteCreateSession: cfg.Limits.Costs.CreateSession,
		routing.RouteIngestEvent:   cfg.Limits.Costs.IngestEvent,
	}
	for op, cost := range costs {
		if cost > maxTokens {
			logger.Warn().
				Str("operation", op).
				Uint64("cost", cost).
				Uint64("max_tokens", maxTokens).
				Msg("operation cost exceeds bucket capacity; it will always be rejected")
		}
	}

	ctx := context.Background()

	st, err := store.Open(ctx, store.Config{
		Driver: cfg.Storage.Driver,
		Path:   cfg.Storage.Path,
		DSN:    cfg.Storage.DSN,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("open store")
	}
	logger.Info().Str("driver", cfg.Storage.Driver).Msg("store ready")

	var cc *cache.Client
	if cfg.Cache.RedisURL != "" {
		cc, err = cache.Connect(ctx, cfg.Cache.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect redis")
		}
		logger.Info().Msg("redis reachable")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := obs.NewMetrics(reg, limiter.Len)

	sweeper := memory.NewSweeper(limiter, logger, metrics.OnSweep)
	sweeper.Start()

	handler := server.NewHandler(server.Deps{
		Config:   cfg,
		Logger:   logger,
		Limiter:  limiter,
		Sweeper:  sweeper,
		Store:    st,
		Cache:    cc,
		Registry: reg,
		Metrics:  metrics,
		Version:  version,
	})
	srv := server.New(cfg, handler)

	// start
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Uint64("rate_per_second", rlCfg.RatePerSecond).
			Uint64("max_tokens", maxTokens).
			Int("max_tracked_clients", rlCfg.MaxTrackedClients).
			Dur("sweep_interval", rlCfg.SweepInterval).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdown(logger, srv, sweeper, st, cc)
}

func shutdown(logger zerolog.Logger, srv *http.Server, sweeper *memory.Sweeper, st store.Store, cc *cache.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := sweeper.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("stop sweeper")
	}
	if err := st.Close(); err != nil {
		logger.Error().Err(err).Msg("close store")
	}
	if cc != nil {
		if err := cc.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}
	logger.Info().Msg("bye")
}
