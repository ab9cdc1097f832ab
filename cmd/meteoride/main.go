package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nnar1o/meteoride/internal/cache/assessments"
	"github.com/nnar1o/meteoride/internal/cache/keys"
	"github.com/nnar1o/meteoride/internal/cache/redisstore"
	"github.com/nnar1o/meteoride/internal/core/config"
	"github.com/nnar1o/meteoride/internal/core/httpclient"
	"github.com/nnar1o/meteoride/internal/core/server"
	"github.com/nnar1o/meteoride/internal/hitevents"
	"github.com/nnar1o/meteoride/internal/hotness/expdecay"
	"github.com/nnar1o/meteoride/internal/hotness/metricswrap"
	"github.com/nnar1o/meteoride/internal/logger"
	"github.com/nnar1o/meteoride/internal/mapper"
	"github.com/nnar1o/meteoride/internal/mapper/geohash"
	h3mapper "github.com/nnar1o/meteoride/internal/mapper/h3"
	"github.com/nnar1o/meteoride/internal/metrics"
	"github.com/nnar1o/meteoride/internal/ridesafety"
	"github.com/nnar1o/meteoride/internal/weather"
)

var (
	Version   = "dev"
	Revision  = ""
	Branch    = ""
	BuildDate = ""
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.Log.Level,
		Console:   cfg.Log.Console,
		SampleN:   cfg.Log.SampleN,
		Component: "meteoride",
		Version:   Version,
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)
	slog.SetDefault(appLog)

	appLog.Info("starting meteoride",
		"addr", cfg.Addr(),
		"version", Version,
		"bucket_scheme", cfg.Cache.Scheme,
		"precision", cfg.Cache.Precision,
		"ttl", cfg.CacheTTL())

	prov := metrics.Init(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Path:    cfg.Metrics.Path,
		Build:   metrics.BuildInfo{Version: Version, Revision: Revision, Branch: Branch, BuildDate: BuildDate},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rc, err := redisstore.New(ctx, cfg.Redis.URL, cfg.Redis.OpTimeout)
	if err != nil {
		appLog.Error("redis unavailable", "url", cfg.Redis.URL, "err", err)
		return 1
	}
	defer func() { _ = rc.Close() }()

	store, err := assessments.New(rc, keys.Deriver{Bucketer: bucketer(cfg.Cache.Scheme), Precision: cfg.Cache.Precision}, cfg.CacheTTL(), appLog)
	if err != nil {
		appLog.Error("cache setup failed", "err", err)
		return 1
	}

	if cfg.Weather.APIKey == "" {
		appLog.Warn("WEATHERAPI_KEY is not set; cache misses will fail")
	}
	provider, err := weather.NewWeatherAPI(httpclient.NewOutbound(cfg.Weather.Timeout), weather.Options{
		BaseURL:         cfg.Weather.BaseURL,
		APIKey:          cfg.Weather.APIKey,
		BreakerFailures: uint32(max(cfg.Weather.BreakerFailures, 1)),
		BreakerTimeout:  cfg.Weather.BreakerTimeout,
	})
	if err != nil {
		appLog.Error("weather provider setup failed", "err", err)
		return 1
	}

	hot := metricswrap.New(expdecay.New(cfg.Hot.HalfLife, cfg.Hot.MaxBuckets), metricswrap.Options{
		Tier:      cfg.Cache.Scheme,
		Threshold: cfg.Hot.Threshold,
		LogSample: cfg.Hot.LogSample,
		Logger:    appLog,
	})

	opts := []ridesafety.Option{ridesafety.WithLogger(appLog), ridesafety.WithHotness(hot)}
	if cfg.Events.Enabled {
		pub, err := hitevents.NewPublisher(cfg.KafkaBrokers(), cfg.Events.Topic, cfg.Events.Queue, appLog)
		if err != nil {
			appLog.Error("event publisher setup failed", "err", err)
			return 1
		}
		defer func() { _ = pub.Close() }()
		opts = append(opts, ridesafety.WithEvents(pub))
		appLog.Info("assessment events enabled", "topic", cfg.Events.Topic)
	}

	svc, err := ridesafety.New(store, provider, opts...)
	if err != nil {
		appLog.Error("service setup failed", "err", err)
		return 1
	}

	err = server.Run(ctx, cfg.Addr(), server.Deps{
		Logger:   appLog,
		Version:  Version,
		Assessor: svc,
		Store:    rc,
		Metrics:  prov,
	})
	if err != nil {
		appLog.Error("server error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func bucketer(scheme string) mapper.Bucketer {
	if scheme == "h3" {
		return h3mapper.New()
	}
	return geohash.New()
}
