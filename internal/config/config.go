// Package config loads the kgain command configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sky-flux/kgain"
	"github.com/sky-flux/kgain/memo"
)

// ErrInvalid is returned when a configuration fails validation.
var ErrInvalid = errors.New("config: invalid configuration")

var validate = validator.New()

// Config holds all kgain command configuration.
type Config struct {
	Engine        EngineConfig `yaml:"engine"`
	IntegralCache CacheConfig  `yaml:"integral_cache"`
	Ranker        RankerConfig `yaml:"ranker"`
	Log           LogConfig    `yaml:"log"`
}

// EngineConfig maps onto kgain.EstimatorConfig plus the default model.
type EngineConfig struct {
	Parameters        []float64 `yaml:"parameters" validate:"omitempty,len=17|len=19|len=21"`
	DiscountRate      float64   `yaml:"discount_rate" validate:"gt=0,lt=1"`
	MaxDepth          int       `yaml:"max_depth" validate:"gte=-1,lte=32"` // 0 → 10, -1 disables the lookahead
	Tolerance         float64   `yaml:"tolerance" validate:"gt=0,lt=1"`
	Mode              string    `yaml:"mode" validate:"oneof=single-step lookahead deferred"`
	SimulateCacheSize int       `yaml:"simulate_cache_size" validate:"gt=0"`
	GainCacheSize     int       `yaml:"gain_cache_size" validate:"gt=0"`
	// FirstRatings weights Again, Hard, Good and Easy on a first review.
	FirstRatings []float64 `yaml:"first_ratings" validate:"omitempty,len=4,dive,gte=0"`
	// StrictBounds also checks the parameters against the trained ranges.
	StrictBounds bool `yaml:"strict_bounds"`
}

// CacheConfig configures the process-wide knowledge integral cache.
type CacheConfig struct {
	Enabled     bool  `yaml:"enabled"`
	MaxEntries  int64 `yaml:"max_entries" validate:"gte=0"`
	BufferItems int64 `yaml:"buffer_items" validate:"gte=0"`
}

// RankerConfig configures ranking passes.
type RankerConfig struct {
	Workers          int    `yaml:"workers" validate:"gte=0"` // 0 → GOMAXPROCS
	MetricsNamespace string `yaml:"metrics_namespace" validate:"required"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			DiscountRate:      kgain.DefaultDiscountRate,
			MaxDepth:          kgain.DefaultMaxDepth,
			Tolerance:         1e-14,
			Mode:              kgain.ModeLookahead.String(),
			SimulateCacheSize: kgain.DefaultCacheSize,
			GainCacheSize:     kgain.DefaultCacheSize,
			FirstRatings:      append([]float64(nil), kgain.UniformRatingProbs[:]...),
		},
		IntegralCache: CacheConfig{
			Enabled:     true,
			MaxEntries:  1 << 20,
			BufferItems: 64,
		},
		Ranker: RankerConfig{
			MetricsNamespace: "kgain",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes YAML from r over the defaults and validates the result.
// Unknown keys are rejected.
func Read(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the struct tags and that the parameters build a model.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, formatFieldError(e))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if len(c.Engine.Parameters) > 0 {
		if _, err := kgain.NewModel(c.Engine.Parameters); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		if c.Engine.StrictBounds {
			if err := kgain.ValidateBounds(c.Engine.Parameters); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalid, err)
			}
		}
	}
	return nil
}

func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "gt", "gte", "lt", "lte":
		return fmt.Sprintf("%s must be %s %s", field, e.Tag(), e.Param())
	case "required":
		return fmt.Sprintf("%s is required", field)
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, e.Tag())
	}
}

// Model returns the configured default model.
func (c Config) Model() (kgain.Model, error) {
	if len(c.Engine.Parameters) == 0 {
		return kgain.DefaultModel(), nil
	}
	return kgain.NewModel(c.Engine.Parameters)
}

// EstimatorConfig converts the engine section. The integral cache and
// metrics are attached by the caller.
func (c Config) EstimatorConfig() (kgain.EstimatorConfig, error) {
	var mode kgain.Mode
	if err := mode.UnmarshalText([]byte(c.Engine.Mode)); err != nil {
		return kgain.EstimatorConfig{}, err
	}
	var first kgain.RatingProbs
	copy(first[:], c.Engine.FirstRatings)
	return kgain.EstimatorConfig{
		DiscountRate:      c.Engine.DiscountRate,
		MaxDepth:          c.Engine.MaxDepth,
		Tolerance:         c.Engine.Tolerance,
		Mode:              mode,
		SimulateCacheSize: c.Engine.SimulateCacheSize,
		GainCacheSize:     c.Engine.GainCacheSize,
		FirstRatings:      first,
	}, nil
}

// SharedConfig converts the integral cache section.
func (c CacheConfig) SharedConfig() memo.SharedConfig {
	return memo.SharedConfig{MaxEntries: c.MaxEntries, BufferItems: c.BufferItems}
}
