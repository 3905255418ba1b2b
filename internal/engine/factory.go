package engine

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/entityscan/pkg/types"
)

// Config holds engine configuration
type Config struct {
	Kind            string        // http, regex or multi
	Members         []string      // engine kinds combined by multi
	URL             string        // http: service base URL
	Model           string        // http: recognizer model name
	Language        string        // http: language hint passed to the service
	Labels          []string      // http: optional label filter
	Timeout         time.Duration // http: per-request timeout
	MaxInputLength  int           // characters accepted per call
	CacheSize       int           // result cache entries, 0 disables caching
	NormalizeLabels bool          // map label variants onto PER/LOC/ORG/MISC
	Rules           []Rule        // regex: rules, defaults when empty
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		Kind:           KindRegex,
		Members:        []string{KindHTTP, KindRegex},
		Model:          DefaultModel,
		Timeout:        DefaultTimeout,
		MaxInputLength: DefaultMaxInputLength,
	}
}

// New creates the engine described by cfg
func New(cfg Config, logger *zap.Logger) (Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	kind := strings.ToLower(cfg.Kind)

	var (
		eng Engine
		err error
	)
	if kind == KindMulti {
		eng, err = newMulti(cfg, logger)
	} else {
		eng, err = newSingle(kind, cfg, logger)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize > 0 {
		eng = NewCachedEngine(eng, cfg.CacheSize, logger.Named("cache"))
	}
	if cfg.NormalizeLabels {
		eng = WithNormalizedLabels(eng)
	}

	logger.Debug("engine created",
		zap.String("engine", eng.Name()),
		zap.Int("max_input_length", eng.MaxInputLength()),
		zap.Int("cache_size", cfg.CacheSize))

	return eng, nil
}

func newSingle(kind string, cfg Config, logger *zap.Logger) (Engine, error) {
	switch kind {
	case KindHTTP:
		return NewHTTPEngine(HTTPConfig{
			URL:            cfg.URL,
			Model:          cfg.Model,
			Language:       cfg.Language,
			Labels:         cfg.Labels,
			Timeout:        cfg.Timeout,
			MaxInputLength: cfg.MaxInputLength,
		}, logger.Named(KindHTTP))
	case KindRegex:
		return NewRegexEngine(cfg.Rules, cfg.MaxInputLength, logger.Named(KindRegex))
	default:
		return nil, fmt.Errorf("%w: %w %q", types.ErrConfiguration, ErrUnsupportedEngine, kind)
	}
}

func newMulti(cfg Config, logger *zap.Logger) (Engine, error) {
	engines := make([]Engine, 0, len(cfg.Members))
	for _, member := range cfg.Members {
		member = strings.ToLower(strings.TrimSpace(member))
		if member == KindMulti {
			return nil, fmt.Errorf("%w: multi engine cannot contain itself", types.ErrConfiguration)
		}
		eng, err := newSingle(member, cfg, logger)
		if err != nil {
			for _, e := range engines {
				_ = e.Close()
			}
			return nil, err
		}
		engines = append(engines, eng)
	}
	return NewMultiEngine(engines...)
}
