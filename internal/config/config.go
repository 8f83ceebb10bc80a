package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ConfigurationError reports a contradictory or out-of-range setting. It is
// returned at startup only.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Config is the complete application configuration.
type Config struct {
	Arbitrage Arbitrage        `mapstructure:"arbitrage"`
	Scanner   Scanner          `mapstructure:"scanner"`
	Registry  Registry         `mapstructure:"registry"`
	Monitor   Monitor          `mapstructure:"monitor"`
	Dedup     Dedup            `mapstructure:"dedup"`
	Platforms map[string]Venue `mapstructure:"platforms"`
	Providers Providers        `mapstructure:"providers"`
	Redis     Redis            `mapstructure:"redis"`
	Kafka     Kafka            `mapstructure:"kafka"`
	SQLite    SQLite           `mapstructure:"sqlite"`
	Telegram  Telegram         `mapstructure:"telegram"`
	Metrics   Metrics          `mapstructure:"metrics"`
	Logging   Logging          `mapstructure:"logging"`
}

// Scanner controls one-shot scans.
type Scanner struct {
	Query                 string        `mapstructure:"query"`
	Platforms             []string      `mapstructure:"platforms"`
	FetchTimeout          time.Duration `mapstructure:"fetch_timeout"`
	MinConfidenceGrade    string        `mapstructure:"min_confidence_grade"`
	MaxOpportunities      int           `mapstructure:"max_opportunities"`
	MatchWorkers          int           `mapstructure:"match_workers"`
	LowMarketCountWarning int           `mapstructure:"low_market_count_warning"`
	LowEquivalenceWarning float64       `mapstructure:"low_equivalence_warning"`
}

// Registry controls periodic discovery. Its thresholds are deliberately looser
// than the live execution thresholds.
type Registry struct {
	RefreshInterval     time.Duration `mapstructure:"refresh_interval"`
	MinEquivalenceScore float64       `mapstructure:"min_equivalence_score"`
	MinTitleSimilarity  float64       `mapstructure:"min_title_similarity"`
	Query               string        `mapstructure:"query"`
	Platforms           []string      `mapstructure:"platforms"`
}

// Monitor controls the live price-polling loop. AlertThresholdPct is a
// fraction of the $1 payout (0.02 = 2%).
type Monitor struct {
	Interval          time.Duration `mapstructure:"interval"`
	AlertThresholdPct float64       `mapstructure:"alert_threshold_pct"`
	PriceHistoryLimit int           `mapstructure:"price_history_limit"`
	HistoryLimit      int           `mapstructure:"history_limit"`
	AlertChannels     []string      `mapstructure:"alert_channels"`
	SourceTag         string        `mapstructure:"source_tag"`
	QuoteQueryLimit   int           `mapstructure:"quote_query_limit"`
}

// Dedup controls alert suppression. ProfitBumpPct is in percentage points.
type Dedup struct {
	Cooldown      time.Duration `mapstructure:"cooldown"`
	ProfitBumpPct float64       `mapstructure:"profit_bump_pct"`
	Retention     time.Duration `mapstructure:"retention"`
	MaxEntries    int           `mapstructure:"max_entries"`
	Persist       bool          `mapstructure:"persist"`
}

// FeeTier discounts the taker rate once trailing volume reaches MinVolumeUSD.
type FeeTier struct {
	MinVolumeUSD float64 `mapstructure:"min_volume_usd"`
	Discount     float64 `mapstructure:"discount"`
}

// Venue describes per-platform costs, reliability and request budget.
type Venue struct {
	FeeModel             string    `mapstructure:"fee_model"`
	TakerFeeRate         float64   `mapstructure:"taker_fee_rate"`
	ParabolicCoefficient float64   `mapstructure:"parabolic_coefficient"`
	SettlementFeeRate    float64   `mapstructure:"settlement_fee_rate"`
	VolumeTiers          []FeeTier `mapstructure:"volume_tiers"`
	OperationalRisk      float64   `mapstructure:"operational_risk"`
	RateLimitRPS         float64   `mapstructure:"rate_limit_rps"`
	RateLimitBurst       int       `mapstructure:"rate_limit_burst"`
}

const (
	FeeModelFlat      = "flat"
	FeeModelParabolic = "parabolic"
)

type Providers struct {
	PolymarketURL  string        `mapstructure:"polymarket_url"`
	KalshiURL      string        `mapstructure:"kalshi_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PageLimit      int           `mapstructure:"page_limit"`
	WithBooks      bool          `mapstructure:"with_books"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type Kafka struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type SQLite struct {
	Path string `mapstructure:"path"`
}

type Telegram struct {
	Enabled    bool          `mapstructure:"enabled"`
	BotToken   string        `mapstructure:"bot_token"`
	ChatID     string        `mapstructure:"chat_id"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

type Metrics struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads .env (if present), then the optional YAML file at path, then
// ARB_* environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading files or env.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	a := DefaultArbitrage()
	v.SetDefault("arbitrage.min_equivalence_score", a.MinEquivalenceScore)
	v.SetDefault("arbitrage.min_title_similarity", a.MinTitleSimilarity)
	v.SetDefault("arbitrage.max_date_drift_days", a.MaxDateDriftDays)
	v.SetDefault("arbitrage.hard_date_cap_days", a.HardDateCapDays)
	v.SetDefault("arbitrage.min_net_profit_pct", a.MinNetProfitPct)
	v.SetDefault("arbitrage.min_gross_profit_pct", a.MinGrossProfitPct)
	v.SetDefault("arbitrage.max_risk_score", a.MaxRiskScore)
	v.SetDefault("arbitrage.max_execution_risk", a.MaxExecutionRisk)
	v.SetDefault("arbitrage.min_liquidity_usd", a.MinLiquidityUSD)
	v.SetDefault("arbitrage.min_volume_usd", a.MinVolumeUSD)
	v.SetDefault("arbitrage.max_position_pct", a.MaxPositionPct)
	v.SetDefault("arbitrage.default_position_usd", a.DefaultPositionUSD)
	v.SetDefault("arbitrage.max_position_usd", a.MaxPositionUSD)
	v.SetDefault("arbitrage.min_position_usd", a.MinPositionUSD)
	v.SetDefault("arbitrage.max_execution_time_ms", a.MaxExecutionTimeMs)
	v.SetDefault("arbitrage.max_price_deviation", a.MaxPriceDeviation)

	v.SetDefault("scanner.query", "")
	v.SetDefault("scanner.platforms", []string{"polymarket", "kalshi"})
	v.SetDefault("scanner.fetch_timeout", "15s")
	v.SetDefault("scanner.min_confidence_grade", "C")
	v.SetDefault("scanner.max_opportunities", 20)
	v.SetDefault("scanner.match_workers", 8)
	v.SetDefault("scanner.low_market_count_warning", 10)
	v.SetDefault("scanner.low_equivalence_warning", 0.85)

	v.SetDefault("registry.refresh_interval", "5m")
	v.SetDefault("registry.min_equivalence_score", 0.65)
	v.SetDefault("registry.min_title_similarity", 0.50)
	v.SetDefault("registry.query", "")
	v.SetDefault("registry.platforms", []string{"polymarket", "kalshi"})

	v.SetDefault("monitor.interval", "45s")
	v.SetDefault("monitor.alert_threshold_pct", 0.02)
	v.SetDefault("monitor.price_history_limit", 60)
	v.SetDefault("monitor.history_limit", 100)
	v.SetDefault("monitor.alert_channels", []string{})
	v.SetDefault("monitor.source_tag", "arbitrage")
	v.SetDefault("monitor.quote_query_limit", 3)

	v.SetDefault("dedup.cooldown", "30m")
	v.SetDefault("dedup.profit_bump_pct", 5.0)
	v.SetDefault("dedup.retention", "2h")
	v.SetDefault("dedup.max_entries", 10000)
	v.SetDefault("dedup.persist", false)

	v.SetDefault("platforms", map[string]any{
		"polymarket": map[string]any{
			"fee_model":           FeeModelFlat,
			"taker_fee_rate":      0.0,
			"settlement_fee_rate": 0.0,
			"operational_risk":    25.0,
			"rate_limit_rps":      5.0,
			"rate_limit_burst":    5,
		},
		"kalshi": map[string]any{
			"fee_model":             FeeModelParabolic,
			"parabolic_coefficient": 0.07,
			"operational_risk":      15.0,
			"rate_limit_rps":        10.0,
			"rate_limit_burst":      10,
			"settlement_fee_rate":   0.0,
		},
	})

	v.SetDefault("providers.polymarket_url", "https://gamma-api.polymarket.com")
	v.SetDefault("providers.kalshi_url", "https://api.elections.kalshi.com/trade-api/v2")
	v.SetDefault("providers.request_timeout", "20s")
	v.SetDefault("providers.page_limit", 200)
	v.SetDefault("providers.with_books", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "arb_alert")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"kafka-broker:9092"})
	v.SetDefault("kafka.topic", "arbitrage.alerts")

	v.SetDefault("sqlite.path", "data/arb.db")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay", "1s")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9102")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks every section. The first problem found is returned.
func (c *Config) Validate() error {
	if err := c.Arbitrage.Validate(); err != nil {
		return err
	}
	if c.Scanner.FetchTimeout <= 0 {
		return invalid("scanner.fetch_timeout", "must be positive")
	}
	if c.Scanner.MaxOpportunities <= 0 {
		return invalid("scanner.max_opportunities", "must be positive")
	}
	if c.Registry.RefreshInterval < time.Minute {
		return invalid("registry.refresh_interval", "must be at least 1m, got %s", c.Registry.RefreshInterval)
	}
	if c.Registry.MinEquivalenceScore <= 0 || c.Registry.MinEquivalenceScore > c.Arbitrage.MinEquivalenceScore {
		return invalid("registry.min_equivalence_score", "must be in (0, arbitrage.min_equivalence_score]")
	}
	if c.Monitor.Interval < time.Second {
		return invalid("monitor.interval", "must be at least 1s, got %s", c.Monitor.Interval)
	}
	if c.Monitor.HistoryLimit <= 0 {
		return invalid("monitor.history_limit", "must be positive")
	}
	if c.Monitor.AlertThresholdPct <= 0 {
		return invalid("monitor.alert_threshold_pct", "must be positive")
	}
	if c.Dedup.Cooldown <= 0 || c.Dedup.Retention < c.Dedup.Cooldown {
		return invalid("dedup.retention", "must be at least dedup.cooldown")
	}
	if c.Dedup.Persist && c.Redis.Addr == "" {
		return invalid("redis.addr", "required when dedup.persist is enabled")
	}
	for name, venue := range c.Platforms {
		switch venue.FeeModel {
		case FeeModelFlat, FeeModelParabolic:
		default:
			return invalid("platforms."+name+".fee_model", "unknown fee model %q", venue.FeeModel)
		}
		if venue.TakerFeeRate < 0 || venue.TakerFeeRate >= 1 {
			return invalid("platforms."+name+".taker_fee_rate", "must be in [0,1)")
		}
	}
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		return invalid("telegram", "bot_token and chat_id are required when enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return invalid("kafka.brokers", "required when kafka is enabled")
	}
	return nil
}

// IsConfigurationError reports whether err came from validation.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
