package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/newthinker/ladder/internal/backtest"
	"github.com/newthinker/ladder/internal/core"
	"github.com/newthinker/ladder/internal/logger"
	"github.com/newthinker/ladder/internal/position"
	"github.com/newthinker/ladder/internal/signal"
	"github.com/newthinker/ladder/internal/storage/archive"
	"github.com/spf13/viper"
)

type Config struct {
	Backtest  BacktestConfig  `mapstructure:"backtest"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Portfolio PortfolioConfig `mapstructure:"portfolio"`
	Data      DataConfig      `mapstructure:"data"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

type BacktestConfig struct {
	Symbol         string  `mapstructure:"symbol"`
	From           string  `mapstructure:"from"` // YYYY-MM-DD, empty for open
	To             string  `mapstructure:"to"`   // YYYY-MM-DD, empty for today
	InitialCapital float64 `mapstructure:"initial_capital"`
}

// StrategyConfig holds the signal parameters of both strategies; percentages
// are in percent (15 means 15%).
type StrategyConfig struct {
	Name                  string    `mapstructure:"name"` // "ladder" or "bands"
	Lookback              int       `mapstructure:"lookback"`
	FirstEntryDrawdownPct float64   `mapstructure:"first_entry_drawdown_pct"`
	StageWeights          []float64 `mapstructure:"stage_weights"`
	StageDropsPct         []float64 `mapstructure:"stage_drops_pct"`
	ExitGainPct           float64   `mapstructure:"exit_gain_pct"`
	BandDrawdownsPct      []float64 `mapstructure:"band_drawdowns_pct"`
	BandExitLookback      int       `mapstructure:"band_exit_lookback"`
	BandExitReturnPct     float64   `mapstructure:"band_exit_return_pct"`
}

// PortfolioConfig holds the position manager constraints; exposures are
// fractions of initial capital.
type PortfolioConfig struct {
	MaxExposure    float64 `mapstructure:"max_exposure"`
	ReduceTrigger  float64 `mapstructure:"reduce_trigger"`
	ReduceFraction float64 `mapstructure:"reduce_fraction"`
	ExitGainPct    float64 `mapstructure:"exit_gain_pct"`
}

type DataConfig struct {
	Source  string      `mapstructure:"source"` // "csv" or "yahoo"
	CSVPath string      `mapstructure:"csv_path"`
	Yahoo   YahooConfig `mapstructure:"yahoo"`
	Cache   CacheConfig `mapstructure:"cache"`
}

type YahooConfig struct {
	RateLimit float64       `mapstructure:"rate_limit"` // requests per second
	Timeout   time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Refresh bool `mapstructure:"refresh"`
}

type StorageConfig struct {
	Archive ArchiveConfig `mapstructure:"archive"`
}

type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
	// SaveRuns archives every completed run through the result store
	SaveRuns bool `mapstructure:"save_runs"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"`
}

type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load reads configuration from file. Keys absent from the file keep their
// default values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns the canonical ladder configuration
func Defaults() *Config {
	ladder := signal.DefaultLadderConfig()
	bands := signal.DefaultBandsConfig()
	portfolio := position.DefaultConfig()

	return &Config{
		Backtest: BacktestConfig{
			Symbol:         "SPXL",
			InitialCapital: portfolio.InitialCapital,
		},
		Strategy: StrategyConfig{
			Name:                  signal.StrategyLadder,
			Lookback:              ladder.Lookback,
			FirstEntryDrawdownPct: ladder.FirstEntryDrawdownPct,
			StageWeights:          ladder.StageWeights[:],
			StageDropsPct:         ladder.StageDropsPct[:],
			ExitGainPct:           ladder.ExitGainPct,
			BandDrawdownsPct:      bands.DrawdownsPct[:],
			BandExitLookback:      bands.ExitLookback,
			BandExitReturnPct:     bands.ExitReturnPct,
		},
		Portfolio: PortfolioConfig{
			MaxExposure:    portfolio.MaxExposure,
			ReduceTrigger:  portfolio.ReduceTrigger,
			ReduceFraction: portfolio.ReduceFraction,
			ExitGainPct:    portfolio.ExitGainPct,
		},
		Data: DataConfig{
			Source: "yahoo",
			Yahoo: YahooConfig{
				RateLimit: 2,
				Timeout:   10 * time.Second,
			},
			Cache: CacheConfig{
				Enabled: true,
			},
		},
		Storage: StorageConfig{
			Archive: ArchiveConfig{
				Type: archive.TypeLocalFS,
				Path: "data",
			},
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Backtest.InitialCapital <= 0 || math.IsNaN(c.Backtest.InitialCapital) || math.IsInf(c.Backtest.InitialCapital, 0) {
		return core.WrapError(core.ErrInvalidCapital,
			fmt.Errorf("initial_capital must be positive, got %v", c.Backtest.InitialCapital))
	}
	if _, _, err := c.Range(); err != nil {
		return err
	}

	if err := c.validateStrategy(); err != nil {
		return err
	}
	if err := c.validatePortfolio(); err != nil {
		return err
	}

	switch c.Data.Source {
	case "csv":
		if c.Data.CSVPath == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("data.csv_path required when source is csv"))
		}
	case "yahoo":
		if c.Data.Yahoo.RateLimit <= 0 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("yahoo rate_limit must be positive, got %v", c.Data.Yahoo.RateLimit))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("data.source must be csv or yahoo, got %q", c.Data.Source))
	}

	if c.Data.Cache.Enabled || c.Storage.Archive.SaveRuns {
		switch c.Storage.Archive.Type {
		case archive.TypeLocalFS:
			if c.Storage.Archive.Path == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("storage.archive.path required for localfs"))
			}
		case archive.TypeS3:
			if c.Storage.Archive.S3.Bucket == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("storage.archive.s3.bucket required for s3"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("storage.archive.type must be localfs or s3, got %q", c.Storage.Archive.Type))
		}
	}

	return nil
}

func (c *Config) validateStrategy() error {
	s := c.Strategy
	if s.Name != signal.StrategyLadder && s.Name != signal.StrategyBands {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("strategy.name must be %s or %s, got %q", signal.StrategyLadder, signal.StrategyBands, s.Name))
	}
	if s.Lookback < 1 || s.BandExitLookback < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("lookbacks must be at least 1, got %d and %d", s.Lookback, s.BandExitLookback))
	}

	if len(s.StageWeights) != signal.NumStages {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("stage_weights needs %d values, got %d", signal.NumStages, len(s.StageWeights)))
	}
	var sum float64
	for i, w := range s.StageWeights {
		if w <= 0 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("stage_weights[%d] must be positive, got %v", i, w))
		}
		sum += w
	}
	if sum > c.Portfolio.MaxExposure+1e-9 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("stage_weights sum to %.4f, above max_exposure %.4f", sum, c.Portfolio.MaxExposure))
	}

	if len(s.StageDropsPct) != signal.NumStages-1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("stage_drops_pct needs %d values, got %d", signal.NumStages-1, len(s.StageDropsPct)))
	}
	for i, d := range s.StageDropsPct {
		if d <= 0 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("stage_drops_pct[%d] must be positive, got %v", i, d))
		}
	}
	if len(s.BandDrawdownsPct) != signal.NumStages {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("band_drawdowns_pct needs %d values, got %d", signal.NumStages, len(s.BandDrawdownsPct)))
	}

	if s.FirstEntryDrawdownPct <= 0 || s.ExitGainPct <= 0 || s.BandExitReturnPct <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("entry drawdown and exit thresholds must be positive"))
	}
	return nil
}

func (c *Config) validatePortfolio() error {
	p := c.Portfolio
	if p.MaxExposure <= 0 || p.MaxExposure > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_exposure must be in (0, 1], got %v", p.MaxExposure))
	}
	if p.ReduceTrigger <= 0 || p.ReduceTrigger > p.MaxExposure {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("reduce_trigger must be in (0, max_exposure], got %v", p.ReduceTrigger))
	}
	if p.ReduceFraction <= 0 || p.ReduceFraction > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("reduce_fraction must be in (0, 1], got %v", p.ReduceFraction))
	}
	if p.ExitGainPct < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("portfolio exit_gain_pct cannot be negative, got %v", p.ExitGainPct))
	}
	return nil
}

// Range parses the backtest window. A missing bound is returned as the zero
// time.
func (c *Config) Range() (start, end time.Time, err error) {
	if c.Backtest.From != "" {
		if start, err = time.Parse(core.DateLayout, c.Backtest.From); err != nil {
			return time.Time{}, time.Time{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("backtest.from: %w", err))
		}
	}
	if c.Backtest.To != "" {
		if end, err = time.Parse(core.DateLayout, c.Backtest.To); err != nil {
			return time.Time{}, time.Time{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("backtest.to: %w", err))
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backtest.to %s is before backtest.from %s", c.Backtest.To, c.Backtest.From))
	}
	return start, end, nil
}

// BacktestConfig converts the strategy and portfolio sections into the
// engine configuration. Call Validate first; short slices leave the
// remaining stages at zero.
func (c *Config) BacktestConfig() backtest.Config {
	s := c.Strategy

	ladder := signal.LadderConfig{
		Lookback:              s.Lookback,
		FirstEntryDrawdownPct: s.FirstEntryDrawdownPct,
		ExitGainPct:           s.ExitGainPct,
	}
	copy(ladder.StageWeights[:], s.StageWeights)
	copy(ladder.StageDropsPct[:], s.StageDropsPct)

	bands := signal.BandsConfig{
		Lookback:      s.Lookback,
		ExitLookback:  s.BandExitLookback,
		ExitReturnPct: s.BandExitReturnPct,
	}
	copy(bands.DrawdownsPct[:], s.BandDrawdownsPct)

	return backtest.Config{
		Signal: signal.Config{
			Name:   s.Name,
			Ladder: ladder,
			Bands:  bands,
		},
		Position: position.Config{
			InitialCapital: c.Backtest.InitialCapital,
			StageWeights:   ladder.StageWeights,
			MaxExposure:    c.Portfolio.MaxExposure,
			ReduceTrigger:  c.Portfolio.ReduceTrigger,
			ReduceFraction: c.Portfolio.ReduceFraction,
			ExitGainPct:    c.Portfolio.ExitGainPct,
		},
	}
}

// ArchiveConfig converts the storage section for archive.New
func (c *Config) ArchiveConfig() archive.Config {
	a := c.Storage.Archive
	return archive.Config{
		Type: a.Type,
		Path: a.Path,
		S3: archive.S3Config{
			Bucket:    a.S3.Bucket,
			Endpoint:  a.S3.Endpoint,
			Region:    a.S3.Region,
			AccessKey: a.S3.AccessKey,
			SecretKey: a.S3.SecretKey,
			Prefix:    a.S3.Prefix,
		},
	}
}

// LoggerConfig converts the log section for logger.New
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Development: c.Log.Development,
		Level:       c.Log.Level,
	}
}
