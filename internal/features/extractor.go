package features

import (
	"github.com/beatforge/beatforge/pkg/logger"
)

// Extractor turns an audio file into a FeatureSet.
//
// Contract: for any readable file the returned set is complete — on decode or
// analysis failure implementations fall back to synthetic data flagged
// Degraded=true rather than returning a partial result. An error is returned
// only when the file itself is inaccessible, in which case not even file-size
// based generation is possible.
type Extractor interface {
	Extract(path string) (*FeatureSet, error)
}

type Config struct {
	SampleRate int
	TempDir    string
	Seed       int64
	Logger     *logger.Logger
}

type Option func(*Config)

func WithSampleRate(rate int) Option {
	return func(c *Config) { c.SampleRate = rate }
}

func WithTempDir(dir string) Option {
	return func(c *Config) { c.TempDir = dir }
}

// WithSeed fixes the synthetic generator's randomness, which tests rely on.
func WithSeed(seed int64) Option {
	return func(c *Config) { c.Seed = seed }
}

func WithLogger(log *logger.Logger) Option {
	return func(c *Config) { c.Logger = log }
}

func defaultConfig() *Config {
	return &Config{
		SampleRate: 11025,
		TempDir:    "/tmp",
		Seed:       1,
	}
}

// NewExtractor builds the real analyzer with the synthetic generator as its
// degraded fallback. Callers see one Extractor and learn which variant ran
// only through the Degraded flag.
func NewExtractor(opts ...Option) Extractor {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	return &Analyzer{
		cfg:      cfg,
		log:      cfg.Logger,
		fallback: NewSynthetic(cfg.Seed, cfg.Logger),
	}
}
