// Package config loads entityscan settings from flags, environment variables
// and an optional config file.
//
// Precedence, highest first: command-line flags bound to viper, ENTITYSCAN_*
// environment variables (dots become underscores, so engine.url is read from
// ENTITYSCAN_ENGINE_URL), the config file, built-in defaults.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dshills/entityscan/internal/chunker"
	"github.com/dshills/entityscan/internal/collector"
	"github.com/dshills/entityscan/internal/engine"
	"github.com/dshills/entityscan/internal/logging"
	"github.com/dshills/entityscan/pkg/types"
)

// EnvPrefix is the prefix of environment variables read by Load
const EnvPrefix = "ENTITYSCAN"

// Config keys
const (
	KeyChunkSize       = "chunk_size"
	KeyWorkers         = "workers"
	KeyOnEngineError   = "on_engine_error"
	KeyCrossLine       = "cross_line"
	KeyEngineKind      = "engine.kind"
	KeyEngineMembers   = "engine.members"
	KeyEngineURL       = "engine.url"
	KeyEngineModel     = "engine.model"
	KeyEngineLanguage  = "engine.language"
	KeyEngineMaxInput  = "engine.max_input_length"
	KeyEngineTimeout   = "engine.timeout"
	KeyEngineCacheSize = "engine.cache_size"
	KeyEngineNormalize = "engine.normalize_labels"
	KeyEngineLabels    = "engine.labels"
	KeyEngineRules     = "engine.rules"
	KeyLogLevel        = "log.level"
	KeyLogStyle        = "log.style"
	KeyExportDB        = "export.db"
	KeyMetricsAddr     = "metrics.addr"
)

// Config is the complete application configuration
type Config struct {
	ChunkSize     int           `mapstructure:"chunk_size"`
	Workers       int           `mapstructure:"workers"`
	OnEngineError string        `mapstructure:"on_engine_error"`
	CrossLine     string        `mapstructure:"cross_line"`
	Engine        EngineConfig  `mapstructure:"engine"`
	Log           LogConfig     `mapstructure:"log"`
	Export        ExportConfig  `mapstructure:"export"`
	Metrics       MetricsConfig `mapstructure:"metrics"`
}

// EngineConfig selects and configures the recognition engine
type EngineConfig struct {
	Kind            string        `mapstructure:"kind"`
	Members         []string      `mapstructure:"members"`
	URL             string        `mapstructure:"url"`
	Model           string        `mapstructure:"model"`
	Language        string        `mapstructure:"language"`
	MaxInputLength  int           `mapstructure:"max_input_length"`
	Timeout         time.Duration `mapstructure:"timeout"`
	CacheSize       int           `mapstructure:"cache_size"`
	NormalizeLabels bool          `mapstructure:"normalize_labels"`
	Labels          []string      `mapstructure:"labels"`
	Rules           []engine.Rule `mapstructure:"rules"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string `mapstructure:"level"`
	Style string `mapstructure:"style"`
}

// ExportConfig holds the optional SQLite export target
type ExportConfig struct {
	DB string `mapstructure:"db"`
}

// MetricsConfig holds the metrics listener address for serve
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns the built-in configuration
func Default() *Config {
	eng := engine.DefaultConfig()
	col := collector.DefaultConfig()
	log := logging.DefaultConfig()

	return &Config{
		ChunkSize:     chunker.DefaultChunkSize,
		Workers:       col.Workers,
		OnEngineError: col.OnEngineError,
		CrossLine:     col.CrossLine,
		Engine: EngineConfig{
			Kind:           eng.Kind,
			Members:        eng.Members,
			Model:          eng.Model,
			MaxInputLength: eng.MaxInputLength,
			Timeout:        eng.Timeout,
			Labels:         []string{},
		},
		Log: LogConfig{
			Level: string(log.Level),
			Style: string(log.Style),
		},
	}
}

// SetDefaults registers every key with its default so environment variables
// are picked up by Unmarshal
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault(KeyChunkSize, d.ChunkSize)
	v.SetDefault(KeyWorkers, d.Workers)
	v.SetDefault(KeyOnEngineError, d.OnEngineError)
	v.SetDefault(KeyCrossLine, d.CrossLine)

	v.SetDefault(KeyEngineKind, d.Engine.Kind)
	v.SetDefault(KeyEngineMembers, d.Engine.Members)
	v.SetDefault(KeyEngineURL, d.Engine.URL)
	v.SetDefault(KeyEngineModel, d.Engine.Model)
	v.SetDefault(KeyEngineLanguage, d.Engine.Language)
	v.SetDefault(KeyEngineMaxInput, d.Engine.MaxInputLength)
	v.SetDefault(KeyEngineTimeout, d.Engine.Timeout)
	v.SetDefault(KeyEngineCacheSize, d.Engine.CacheSize)
	v.SetDefault(KeyEngineNormalize, d.Engine.NormalizeLabels)
	v.SetDefault(KeyEngineLabels, d.Engine.Labels)

	v.SetDefault(KeyLogLevel, d.Log.Level)
	v.SetDefault(KeyLogStyle, d.Log.Style)
	v.SetDefault(KeyExportDB, d.Export.DB)
	v.SetDefault(KeyMetricsAddr, d.Metrics.Addr)
}

// NewViper returns a viper instance with defaults and environment binding.
// A non-empty configFile is read immediately.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read config %s: %w", types.ErrConfiguration, configFile, err)
		}
	}

	return v, nil
}

// Load decodes v into a Config and validates it
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", types.ErrConfiguration, err)
	}

	cfg.Engine.Kind = strings.ToLower(strings.TrimSpace(cfg.Engine.Kind))
	cfg.OnEngineError = strings.ToLower(cfg.OnEngineError)
	cfg.CrossLine = strings.ToLower(cfg.CrossLine)
	cfg.Engine.Labels = compact(cfg.Engine.Labels)
	cfg.Engine.Members = compact(cfg.Engine.Members)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration. Every error wraps types.ErrConfiguration.
func (c *Config) Validate() error {
	var errs []error

	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize))
	}
	if c.Engine.MaxInputLength <= 0 {
		errs = append(errs, fmt.Errorf("engine.max_input_length must be positive, got %d", c.Engine.MaxInputLength))
	} else if c.ChunkSize > c.Engine.MaxInputLength {
		errs = append(errs, fmt.Errorf("chunk_size %d exceeds engine.max_input_length %d", c.ChunkSize, c.Engine.MaxInputLength))
	}

	if err := c.CollectorConfig().Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Engine.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("engine.cache_size must not be negative, got %d", c.Engine.CacheSize))
	}
	if c.Engine.Timeout < 0 {
		errs = append(errs, fmt.Errorf("engine.timeout must not be negative, got %s", c.Engine.Timeout))
	}

	switch c.Engine.Kind {
	case engine.KindHTTP, engine.KindRegex:
	case engine.KindMulti:
		if len(c.Engine.Members) == 0 {
			errs = append(errs, errors.New("engine.members must name at least one engine for multi"))
		}
	default:
		errs = append(errs, fmt.Errorf("engine.kind must be http, regex or multi, got %q", c.Engine.Kind))
	}
	if c.usesHTTP() && c.Engine.URL == "" {
		errs = append(errs, errors.New("engine.url is required for the http engine"))
	}

	if err := c.LoggingConfig().Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", types.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

func (c *Config) usesHTTP() bool {
	if c.Engine.Kind == engine.KindHTTP {
		return true
	}
	return c.Engine.Kind == engine.KindMulti && slices.ContainsFunc(c.Engine.Members, func(m string) bool {
		return strings.EqualFold(m, engine.KindHTTP)
	})
}

// EngineConfig returns the engine factory settings
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		Kind:            c.Engine.Kind,
		Members:         c.Engine.Members,
		URL:             c.Engine.URL,
		Model:           c.Engine.Model,
		Language:        c.Engine.Language,
		Labels:          c.Engine.Labels,
		Timeout:         c.Engine.Timeout,
		MaxInputLength:  c.Engine.MaxInputLength,
		CacheSize:       c.Engine.CacheSize,
		NormalizeLabels: c.Engine.NormalizeLabels,
		Rules:           c.Engine.Rules,
	}
}

// CollectorConfig returns the collector settings
func (c *Config) CollectorConfig() collector.Config {
	return collector.Config{
		Workers:       c.Workers,
		OnEngineError: c.OnEngineError,
		CrossLine:     c.CrossLine,
	}
}

// LoggingConfig returns the logger settings
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level: logging.Level(c.Log.Level),
		Style: logging.Style(c.Log.Style),
	}
}

// compact trims entries and drops empty ones
func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
