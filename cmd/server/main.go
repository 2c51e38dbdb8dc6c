package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/verdantmarket/spinwheel/internal/api"
	"github.com/verdantmarket/spinwheel/internal/config"
	"github.com/verdantmarket/spinwheel/internal/eligibility"
	"github.com/verdantmarket/spinwheel/internal/engine"
	"github.com/verdantmarket/spinwheel/internal/guard"
	"github.com/verdantmarket/spinwheel/internal/reward"
	"github.com/verdantmarket/spinwheel/internal/snapshot"
	"github.com/verdantmarket/spinwheel/internal/store"
	"github.com/verdantmarket/spinwheel/internal/telemetry"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	if cfg.AppEnv == "dev" {
		log = log.Level(zerolog.DebugLevel)
	}

	ctx := context.Background()
	st, err := store.NewStore(ctx, cfg.StoreType, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init")
	}
	defer st.Close()

	// Initial snapshot. A fresh store gets a default no-prize wheel so the
	// storefront has something to render until the admin configures one.
	wheelCfg, err := st.GetWheelConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load wheel config")
	}
	if wheelCfg == nil {
		wheelCfg = defaultWheel(cfg.CooldownHours)
		if err := st.PutWheelConfig(ctx, *wheelCfg); err != nil {
			log.Fatal().Err(err).Msg("seed wheel config")
		}
	}
	snap := snapshot.BuildFromConfig(wheelCfg)
	snapshot.Update(snap)
	log.Info().Int("segments", len(snap.Segments)).
		Float64("cooldown_hours", snap.CooldownHours).
		Str("etag", snap.ETag).
		Msg("wheel snapshot loaded")

	telemetry.Init()

	recorder := guard.NewRecorder(st, nil, cfg.AuditQueueSize, log)
	defer recorder.Close()

	resolver := eligibility.NewResolver(st, nil,
		time.Duration(cfg.LookupTimeoutMS)*time.Millisecond, log)
	rewards := reward.NewManager(st, reward.NewMemoryCart(), nil, log)
	eng := engine.New(st, resolver, rewards, recorder, nil, nil, log)

	srvAPI := api.NewServer(eng, rewards, st, api.Options{
		AdminAPIKey:     cfg.AdminAPIKey,
		AdminAPIKeyHash: cfg.AdminAPIKeyHash,
		RateLimitPerIP:  cfg.RateLimitPerIP,
		Logger:          log,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srvAPI.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0, // countdown streams stay open
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctxShut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShut)
	_ = metricsSrv.Shutdown(ctxShut)
	log.Info().Msg("stopped")
}

// defaultWheel is the seed configuration for a store with no wheel yet:
// all segments lose, so nothing can be won before an admin sets real prizes.
func defaultWheel(cooldownHours float64) *store.WheelConfig {
	return &store.WheelConfig{
		Segments: []store.Segment{
			{Weight: 25, Text: "Try again"},
			{Weight: 25, Text: "So close"},
			{Weight: 25, Text: "Not today"},
			{Weight: 25, Text: "Next time"},
		},
		CooldownHours: cooldownHours,
		UpdatedAt:     time.Now().UTC(),
	}
}
