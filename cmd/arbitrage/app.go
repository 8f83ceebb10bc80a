package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hetulpatel/crossarb/internal/alerts"
	"github.com/hetulpatel/crossarb/internal/arb"
	"github.com/hetulpatel/crossarb/internal/cache"
	"github.com/hetulpatel/crossarb/internal/config"
	"github.com/hetulpatel/crossarb/internal/equivalence"
	"github.com/hetulpatel/crossarb/internal/kafka"
	"github.com/hetulpatel/crossarb/internal/kalshi"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/markets"
	"github.com/hetulpatel/crossarb/internal/matcher"
	"github.com/hetulpatel/crossarb/internal/metrics"
	"github.com/hetulpatel/crossarb/internal/polymarket"
	"github.com/hetulpatel/crossarb/internal/provider"
	"github.com/hetulpatel/crossarb/internal/telegram"
)

// newProvider registers a guarded source per supported platform.
func newProvider(cfg *config.Config) *provider.Aggregator {
	p := cfg.Providers
	agg := provider.NewAggregator()
	agg.Register(polymarket.NewClient(polymarket.Config{
		BaseURL:   strings.TrimRight(p.PolymarketURL, "/") + "/events",
		Timeout:   p.RequestTimeout,
		PageLimit: p.PageLimit,
		WithBooks: p.WithBooks,
	}), limitsFor(cfg, markets.PlatformPolymarket))
	agg.Register(kalshi.NewClient(kalshi.Config{
		BaseURL:   strings.TrimRight(p.KalshiURL, "/") + "/events",
		BookURL:   strings.TrimRight(p.KalshiURL, "/") + "/markets",
		Timeout:   p.RequestTimeout,
		PageLimit: p.PageLimit,
		WithBooks: p.WithBooks,
	}), limitsFor(cfg, markets.PlatformKalshi))
	return agg
}

func limitsFor(cfg *config.Config, p markets.Platform) provider.Limits {
	v := cfg.Platforms[string(p)]
	return provider.Limits{RPS: v.RateLimitRPS, Burst: v.RateLimitBurst}
}

func matcherConfig(cfg *config.Config, minScore, minTitle float64, log *matcher.Logger) matcher.Config {
	scorer := equivalence.DefaultConfig()
	scorer.MaxDateDriftDays = cfg.Arbitrage.MaxDateDriftDays
	return matcher.Config{
		MinEquivalenceScore: minScore,
		MinTitleSimilarity:  minTitle,
		HardDateCapDays:     cfg.Arbitrage.HardDateCapDays,
		Workers:             cfg.Scanner.MatchWorkers,
		Scorer:              scorer,
		Logger:              log,
	}
}

func newCalculator(cfg *config.Config) *arb.Calculator {
	return arb.NewCalculator(arb.ConfigFromSettings(cfg))
}

// sinks builds the configured alert sinks. The log sink is always present.
// The returned closer releases every sink that holds a connection.
func sinks(ctx context.Context, cfg *config.Config) ([]alerts.Sink, func(), error) {
	out := []alerts.Sink{alerts.LogSink{}}
	var closers []func()

	if cfg.Telegram.Enabled {
		tg, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelay)
		if err != nil {
			return nil, nil, err
		}
		tg.ListenForCommands(ctx)
		out = append(out, tg)
	}
	if cfg.Kafka.Enabled {
		pub, err := newPublisher(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, pub)
		closers = append(closers, func() { _ = pub.Close() })
	}
	return out, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

func newPublisher(ctx context.Context, cfg *config.Config) (*kafka.Publisher, error) {
	brokers := kafka.Brokers(cfg.Kafka.Brokers)
	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	defer cancel()
	if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
		return nil, err
	}
	ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
	defer cancelEnsure()
	if err := kafka.EnsureTopic(ensureCtx, brokers, cfg.Kafka.Topic); err != nil {
		logging.Warnf("[arbitrage] ensure topic %s: %v", cfg.Kafka.Topic, err)
	}
	return kafka.NewPublisher(brokers, cfg.Kafka.Topic), nil
}

// newDeduplicator restores persisted suppression state when redis is enabled.
func newDeduplicator(ctx context.Context, cfg *config.Config) (*alerts.Deduplicator, func(), error) {
	dc := alerts.DedupConfig{
		Cooldown:   cfg.Dedup.Cooldown,
		ProfitBump: cfg.Dedup.ProfitBumpPct,
		Retention:  cfg.Dedup.Retention,
		MaxEntries: cfg.Dedup.MaxEntries,
	}
	if !cfg.Dedup.Persist {
		return alerts.NewDeduplicator(dc), func() {}, nil
	}
	store, err := cache.NewRedisDedupStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
	if err != nil {
		return nil, nil, err
	}
	restoreCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(restoreCtx); err != nil {
		logging.Warnf("[arbitrage] redis %s unreachable, dedup state stays in memory: %v", cfg.Redis.Addr, err)
		_ = store.Close()
		return alerts.NewDeduplicator(dc), func() {}, nil
	}
	dc.Store = store
	d := alerts.NewDeduplicator(dc)
	if n, err := d.Restore(restoreCtx); err != nil {
		logging.Warnf("[arbitrage] restore dedup state: %v", err)
	} else {
		logging.Infof("[arbitrage] restored %d dedup records", n)
	}
	return d, func() { _ = store.Close() }, nil
}

// serveMetrics exposes /metrics until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		logging.Infof("[arbitrage] metrics listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Errorf("[arbitrage] metrics server: %v", err)
		}
	}()
}

func platformsOf(raw []string) []markets.Platform {
	return markets.ParsePlatforms(strings.Join(raw, ","))
}

func matcherLog(path string) *matcher.Logger {
	if path == "" {
		return nil
	}
	return matcher.NewLogger(matcher.LogModeSummary, path)
}
