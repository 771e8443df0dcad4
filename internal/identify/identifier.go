package identify

import (
	"github.com/beatforge/beatforge/internal/identify/index"
	"github.com/beatforge/beatforge/pkg/logger"
)

// Identifier resolves a path to a SongIdentity. Implementations never fail:
// the worst case is the filename-derived fallback identity.
type Identifier interface {
	Identify(path string) SongIdentity
}

type Config struct {
	IndexPath  string
	TempDir    string
	SampleRate int
	Logger     *logger.Logger
}

type Option func(*Config)

// WithIndexPath points the identifier at the acoustic fingerprint database.
// Without it only filename heuristics run.
func WithIndexPath(path string) Option {
	return func(c *Config) { c.IndexPath = path }
}

func WithTempDir(dir string) Option {
	return func(c *Config) { c.TempDir = dir }
}

func WithSampleRate(rate int) Option {
	return func(c *Config) { c.SampleRate = rate }
}

func WithLogger(log *logger.Logger) Option {
	return func(c *Config) { c.Logger = log }
}

func defaultConfig() *Config {
	return &Config{
		TempDir:    "/tmp",
		SampleRate: 11025,
	}
}

// NewIdentifier selects the acoustic variant when an index is configured and
// reachable, otherwise the filename fallback. Callers cannot tell the
// variants apart except through the sentinel artist.
func NewIdentifier(opts ...Option) Identifier {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	if cfg.IndexPath == "" {
		return FilenameIdentifier{}
	}

	db, err := index.Open(cfg.IndexPath)
	if err != nil {
		cfg.Logger.Warnf("Acoustic index unavailable (%v), falling back to filename identification", err)
		return FilenameIdentifier{}
	}
	return &Acoustic{
		db:         db,
		tempDir:    cfg.TempDir,
		sampleRate: cfg.SampleRate,
		log:        cfg.Logger,
	}
}
