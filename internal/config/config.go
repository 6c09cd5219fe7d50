// Package config loads and validates the liquidation study configuration.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/rewired-gh/liqstudy/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Window   WindowConfig   `mapstructure:"window"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Binance  BinanceConfig  `mapstructure:"binance"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AnalysisConfig is passed to every core stage: parsing, aggregation, dataset
// construction, correlation and event study.
type AnalysisConfig struct {
	Interval        models.Interval `mapstructure:"interval" validate:"required"`
	SymbolFilter    string          `mapstructure:"symbol_filter"`
	Predictors      []string        `mapstructure:"predictors" validate:"required,min=1,unique,dive,predictor"`
	Horizons        []int           `mapstructure:"horizons" validate:"unique,dive,min=1,max=10000"`
	SpikePercentile float64         `mapstructure:"spike_percentile" validate:"gt=0,lte=1"`
}

// ResolvedHorizons returns the configured horizons, or the interval defaults when none
// are configured.
func (a AnalysisConfig) ResolvedHorizons() []int {
	if len(a.Horizons) == 0 {
		return a.Interval.DefaultHorizons()
	}
	out := make([]int, len(a.Horizons))
	copy(out, a.Horizons)
	return out
}

// WindowConfig bounds the historical window that is fetched. Empty values default to
// the 300 days ending at the current hour.
type WindowConfig struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

// DefaultLookback is the window length used when no start is configured.
const DefaultLookback = 300 * 24 * time.Hour

// Range resolves the window against now.
func (w WindowConfig) Range(now time.Time) (start, end time.Time, err error) {
	end = now.UTC().Truncate(time.Hour)
	if w.End != "" {
		if end, err = models.ParseTimestamp(w.End); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("window.end: %w", err)
		}
	}
	start = end.Add(-DefaultLookback)
	if w.Start != "" {
		if start, err = models.ParseTimestamp(w.Start); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("window.start: %w", err)
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("window.end must not be before window.start")
	}
	return start, end, nil
}

// TelegramConfig holds Telegram collection and notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	Notify         bool          `mapstructure:"notify"`
	Contains       string        `mapstructure:"contains"`
	Limit          int           `mapstructure:"limit"`
	PollTimeout    int           `mapstructure:"poll_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// BinanceConfig holds Binance klines API configuration
type BinanceConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Symbol            string        `mapstructure:"symbol"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelayBase    time.Duration `mapstructure:"retry_delay_base"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	PageLimit         int           `mapstructure:"page_limit"`
}

// StorageConfig holds the archive database location
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// PathsConfig locates the tables exchanged between stages
type PathsConfig struct {
	RawDir       string `mapstructure:"raw_dir"`
	ProcessedDir string `mapstructure:"processed_dir"`
}

// MessagesPath is the RawMessage table.
func (p PathsConfig) MessagesPath() string {
	return filepath.Join(p.RawDir, "telegram_messages.csv")
}

// PricesPath is the PriceBar table for symbol at interval.
func (p PathsConfig) PricesPath(symbol string, interval models.Interval) string {
	return filepath.Join(p.RawDir, fmt.Sprintf("price_%s_%s.csv", strings.ToLower(symbol), interval))
}

// BucketsPath is the AggregatedBucket table for interval.
func (p PathsConfig) BucketsPath(interval models.Interval) string {
	return filepath.Join(p.ProcessedDir, fmt.Sprintf("liqs_%s.csv", interval))
}

// DatasetPath is the DatasetRow table for interval.
func (p PathsConfig) DatasetPath(interval models.Interval) string {
	return filepath.Join(p.ProcessedDir, fmt.Sprintf("dataset_%s.csv", interval))
}

// CorrelationPath is the CorrelationRow table for interval.
func (p PathsConfig) CorrelationPath(interval models.Interval) string {
	return filepath.Join(p.ProcessedDir, fmt.Sprintf("correlation_summary_%s.csv", interval))
}

// EventStudyPath is the EventStudyRow table for interval.
func (p PathsConfig) EventStudyPath(interval models.Interval) string {
	return filepath.Join(p.ProcessedDir, fmt.Sprintf("event_study_summary_%s.csv", interval))
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// legacyEnv maps configuration keys to the environment variables read by the earlier
// batch scripts.
var legacyEnv = map[string]string{
	"analysis.interval":      "AGG_INTERVAL",
	"analysis.symbol_filter": "SYMBOL_FILTER",
	"binance.symbol":         "BINANCE_SYMBOL",
	"window.start":           "START_DATETIME",
	"window.end":             "END_DATETIME",
}

const envPrefix = "LIQSTUDY"

// Load reads configuration from file and environment variables.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// LIQSTUDY_ANALYSIS_INTERVAL overrides analysis.interval, and so on
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Analysis defaults
	v.SetDefault("analysis.interval", string(models.Interval1h))
	v.SetDefault("analysis.symbol_filter", "BTC")
	v.SetDefault("analysis.predictors", models.DefaultPredictors())
	v.SetDefault("analysis.horizons", []int{}) // empty = interval defaults
	v.SetDefault("analysis.spike_percentile", 0.95)

	// Window defaults
	v.SetDefault("window.start", "")
	v.SetDefault("window.end", "")

	// Telegram defaults
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.notify", false)
	v.SetDefault("telegram.contains", "Liquidated")
	v.SetDefault("telegram.limit", 0) // 0 = no limit
	v.SetDefault("telegram.poll_timeout", 5)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Binance defaults
	v.SetDefault("binance.base_url", "https://api.binance.com")
	v.SetDefault("binance.symbol", "BTCUSDT")
	v.SetDefault("binance.timeout", "30s")
	v.SetDefault("binance.max_retries", 3)
	v.SetDefault("binance.retry_delay_base", "500ms")
	v.SetDefault("binance.requests_per_second", 5.0)
	v.SetDefault("binance.page_limit", 1000)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/liqstudy.db")

	// Paths defaults
	v.SetDefault("paths.raw_dir", "data/raw")
	v.SetDefault("paths.processed_dir", "data/processed")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid. It normalizes
// analysis.interval and binance.symbol in place.
func (c *Config) Validate() error {
	if err := c.Analysis.Validate(); err != nil {
		return err
	}

	if _, _, err := c.Window.Range(time.Now()); err != nil {
		return invalid("window", err.Error())
	}

	// Validate Telegram config
	if c.Telegram.Enabled || c.Telegram.Notify {
		if c.Telegram.BotToken == "" {
			return invalid("telegram.bot_token", "is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return invalid("telegram.chat_id", "is required when telegram is enabled")
		}
	}
	if c.Telegram.Limit < 0 {
		return invalid("telegram.limit", "must not be negative")
	}
	if c.Telegram.PollTimeout < 0 {
		return invalid("telegram.poll_timeout", "must not be negative")
	}

	// Validate Binance config
	if c.Binance.BaseURL == "" {
		return invalid("binance.base_url", "is required")
	}
	c.Binance.Symbol = strings.ToUpper(strings.TrimSpace(c.Binance.Symbol))
	if c.Binance.Symbol == "" {
		return invalid("binance.symbol", "is required")
	}
	if c.Binance.MaxRetries < 1 {
		return invalid("binance.max_retries", "must be at least 1")
	}
	if c.Binance.RequestsPerSecond <= 0 {
		return invalid("binance.requests_per_second", "must be positive")
	}
	if c.Binance.PageLimit < 1 || c.Binance.PageLimit > 1000 {
		return invalid("binance.page_limit", "must be between 1 and 1000")
	}

	// Validate Paths config
	if c.Paths.RawDir == "" {
		return invalid("paths.raw_dir", "is required")
	}
	if c.Paths.ProcessedDir == "" {
		return invalid("paths.processed_dir", "is required")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return invalid("logging.level", "must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return invalid("logging.format", "must be one of: json, text")
	}

	return nil
}

// Validate checks the analysis section and normalizes the interval.
func (a *AnalysisConfig) Validate() error {
	interval, err := models.ParseInterval(string(a.Interval))
	if err != nil {
		return invalid("analysis.interval", "must be 1h or 1d")
	}
	a.Interval = interval

	if err := validate.Struct(a); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return invalid("analysis."+fe.Field(), describe(fe))
		}
		return invalid("analysis", err.Error())
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("predictor", func(fl validator.FieldLevel) bool {
		return models.IsPredictor(fl.Field().String())
	})
	return v
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "unique":
		return "must not contain duplicates"
	case "predictor":
		return fmt.Sprintf("%v is not a known predictor", fe.Value())
	}
	return "failed " + fe.Tag() + " check"
}
