// Package pipeline sequences one upload through
// Identify → Analyze → Segment → FetchLyrics → Organize → InitLeaderboard.
// An Analyze failure aborts the run; lyric and organize problems are soft.
// Every run leaves a durable run log, and re-running the same input is safe:
// the catalog write is a full replace, leaderboard seeding skips existing
// boards, and artifacts are overwritten.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/beatforge/beatforge/internal/catalog"
	"github.com/beatforge/beatforge/internal/features"
	"github.com/beatforge/beatforge/internal/identify"
	"github.com/beatforge/beatforge/internal/lyrics"
	"github.com/beatforge/beatforge/internal/scores"
	"github.com/beatforge/beatforge/internal/segment"
	"github.com/beatforge/beatforge/pkg/logger"
	"github.com/beatforge/beatforge/pkg/utils"
)

type Pipeline struct {
	identifier   identify.Identifier
	extractor    features.Extractor
	lyrics       lyrics.Fetcher
	catalog      *catalog.Store
	scores       *scores.Store
	processedDir string
	log          *logger.Logger
}

type Config struct {
	Identifier   identify.Identifier
	Extractor    features.Extractor
	Lyrics       lyrics.Fetcher
	Catalog      *catalog.Store
	Scores       *scores.Store
	ProcessedDir string
	Logger       *logger.Logger
}

type Option func(*Config)

func WithIdentifier(id identify.Identifier) Option {
	return func(c *Config) { c.Identifier = id }
}

func WithExtractor(ex features.Extractor) Option {
	return func(c *Config) { c.Extractor = ex }
}

// WithLyrics sets the synced-lyrics fetcher. A nil fetcher marks the stage
// as skipped rather than failed.
func WithLyrics(f lyrics.Fetcher) Option {
	return func(c *Config) { c.Lyrics = f }
}

func WithCatalog(store *catalog.Store) Option {
	return func(c *Config) { c.Catalog = store }
}

func WithScores(store *scores.Store) Option {
	return func(c *Config) { c.Scores = store }
}

func WithProcessedDir(dir string) Option {
	return func(c *Config) { c.ProcessedDir = dir }
}

func WithLogger(log *logger.Logger) Option {
	return func(c *Config) { c.Logger = log }
}

func New(opts ...Option) (*Pipeline, error) {
	cfg := &Config{ProcessedDir: "data/processed"}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Identifier == nil {
		cfg.Identifier = identify.FilenameIdentifier{}
	}
	if cfg.Extractor == nil {
		cfg.Extractor = features.NewExtractor(features.WithLogger(cfg.Logger))
	}
	if cfg.Catalog == nil || cfg.Scores == nil {
		return nil, errors.New("pipeline requires catalog and scores stores")
	}
	return &Pipeline{
		identifier:   cfg.Identifier,
		extractor:    cfg.Extractor,
		lyrics:       cfg.Lyrics,
		catalog:      cfg.Catalog,
		scores:       cfg.Scores,
		processedDir: cfg.ProcessedDir,
		log:          cfg.Logger,
	}, nil
}

// Result summarizes one run: what was produced and how each stage ended.
type Result struct {
	RunID    string
	SongKey  string
	Identity identify.SongIdentity
	Features *features.FeatureSet
	Segments []segment.Segment
	Stages   []StageResult
	LogPath  string
}

func (r *Result) record(stage Stage, status Status, err error) {
	r.Stages = append(r.Stages, StageResult{Stage: stage, Status: status, Err: err})
}

// analysisDocument is the on-disk feature set: metadata plus the four
// top-level arrays, segments appended by the detector.
type analysisDocument struct {
	Metadata      analysisMetadata       `json:"metadata"`
	Beats         []float64              `json:"beats"`
	Onsets        []float64              `json:"onsets"`
	EnergyProfile []features.EnergyPoint `json:"energy_profile"`
	Notes         []features.NoteEvent   `json:"notes"`
	Segments      []segment.Segment      `json:"segments"`
}

type analysisMetadata struct {
	Filename   string  `json:"filename"`
	Duration   float64 `json:"duration"`
	Tempo      float64 `json:"tempo"`
	SampleRate int     `json:"sample_rate"`
	Degraded   bool    `json:"degraded,omitempty"`
}

// Run processes one input file end to end. The returned error is non-nil
// only for a fatal run (Analyze failed); soft failures and skips are
// reported through Result.Stages. The run log is flushed in every case.
func (p *Pipeline) Run(ctx context.Context, inputPath string) (*Result, error) {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	dir := filepath.Dir(inputPath)

	res := &Result{
		RunID:   uuid.NewString(),
		SongKey: utils.SongKey(base),
		LogPath: filepath.Join(dir, stem+"_debug.log"),
	}

	rl := NewRunLog(p.log)
	rl.Infof("Starting full processing for %s (run %s)", base, res.RunID)
	defer func() {
		if err := rl.Flush(res.LogPath); err != nil {
			p.log.Errorf("Failed to write run log: %v", err)
		}
	}()

	// Identify
	res.Identity = p.identifier.Identify(inputPath)
	rl.Infof("Identified: %s - %s", res.Identity.Artist, res.Identity.Title)
	infoPath := filepath.Join(dir, stem+"_info.json")
	if err := writeJSON(infoPath, res.Identity); err != nil {
		rl.Warnf("Failed to write metadata file: %v", err)
		res.record(StageIdentify, SoftFailure, err)
	} else {
		res.record(StageIdentify, Success, nil)
	}

	// Analyze — the one fatal stage; everything downstream needs a feature set.
	fs, err := p.extractor.Extract(inputPath)
	if err != nil {
		rl.Errorf("Music analysis failed: %v", err)
		rl.Errorf("Skipping segmentation, lyrics and file organization")
		res.record(StageAnalyze, FatalFailure, err)
		return res, fmt.Errorf("analyze stage failed: %w", err)
	}
	res.Features = fs
	if fs.Degraded {
		rl.Warnf("Analysis degraded to synthetic features for %s", base)
	}
	rl.Infof("Analysis complete: %.1f sec, %.1f BPM, %d beats, %d onsets",
		fs.Duration, fs.Tempo, len(fs.BeatTimes), len(fs.OnsetTimes))
	res.record(StageAnalyze, Success, nil)

	// Segment
	res.Segments = segment.Detect(fs)
	rl.Infof("Identified %d song segments", len(res.Segments))
	analysisPath := filepath.Join(dir, stem+"_analysis.json")
	doc := analysisDocument{
		Metadata: analysisMetadata{
			Filename:   fs.Filename,
			Duration:   fs.Duration,
			Tempo:      fs.Tempo,
			SampleRate: fs.SampleRate,
			Degraded:   fs.Degraded,
		},
		Beats:         fs.BeatTimes,
		Onsets:        fs.OnsetTimes,
		EnergyProfile: fs.EnergyProfile,
		Notes:         fs.Notes,
		Segments:      res.Segments,
	}
	if err := writeJSON(analysisPath, doc); err != nil {
		rl.Errorf("Failed to persist analysis: %v", err)
		res.record(StageSegment, FatalFailure, err)
		return res, fmt.Errorf("segment stage failed: %w", err)
	}
	rl.Infof("Analysis saved to %s", analysisPath)
	res.record(StageSegment, Success, nil)

	// FetchLyrics — never fatal.
	lrcPath := ""
	switch {
	case p.lyrics == nil:
		rl.Infof("Lyrics fetching disabled, skipping")
		res.record(StageFetchLyrics, Skipped, nil)
	default:
		text, err := p.lyrics.FetchSynced(ctx, res.Identity.Artist, res.Identity.Title)
		if err != nil {
			rl.Warnf("Lyrics fetching failed, continuing: %v", err)
			res.record(StageFetchLyrics, SoftFailure, err)
		} else {
			lrcPath = filepath.Join(dir, stem+".lrc")
			if err := os.WriteFile(lrcPath, []byte(text), 0o644); err != nil {
				rl.Warnf("Failed to save lyrics: %v", err)
				lrcPath = ""
				res.record(StageFetchLyrics, SoftFailure, err)
			} else {
				rl.Infof("Saved synced lyrics to %s", lrcPath)
				res.record(StageFetchLyrics, Success, nil)
			}
		}
	}

	// Organize — requires a complete identity.
	if res.Identity.Artist == "" || res.Identity.Title == "" {
		rl.Warnf("Metadata incomplete, skipping file organization")
		res.record(StageOrganize, Skipped, nil)
	} else if err := p.organize(res, inputPath, infoPath, analysisPath, lrcPath); err != nil {
		rl.Warnf("File organization failed: %v", err)
		res.record(StageOrganize, SoftFailure, err)
	} else {
		rl.Infof("File organization complete")
		res.record(StageOrganize, Success, nil)
	}

	// InitLeaderboard — idempotent seed.
	if err := p.scores.Seed(res.SongKey); err != nil {
		rl.Warnf("Leaderboard init failed: %v", err)
		res.record(StageInitLeaderboard, SoftFailure, err)
	} else {
		res.record(StageInitLeaderboard, Success, nil)
	}

	rl.Infof("Full processing complete for %s", base)
	return res, nil
}

// organize copies the audio file and its artifacts into
// processed/<Artist>/<Title>/ and publishes the catalog entry with
// client-relative paths.
func (p *Pipeline) organize(res *Result, audioPath, infoPath, analysisPath, lrcPath string) error {
	artistDir := utils.SanitizeName(res.Identity.Artist)
	titleDir := utils.SanitizeName(res.Identity.Title)
	destDir := filepath.Join(p.processedDir, artistDir, titleDir)
	if err := utils.MakeDir(destDir); err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	for _, src := range []string{audioPath, infoPath, analysisPath, lrcPath} {
		if src == "" {
			continue
		}
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := utils.CopyFile(src, filepath.Join(destDir, filepath.Base(src))); err != nil {
			return err
		}
	}

	relDir := path.Join("processed", artistDir, titleDir)
	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	entry := catalog.Entry{
		Title:        res.Identity.Title,
		Artist:       res.Identity.Artist,
		Filename:     filepath.Base(audioPath),
		Duration:     res.Features.Duration,
		Tempo:        res.Features.Tempo,
		FilePath:     path.Join(relDir, filepath.Base(audioPath)),
		AnalysisPath: path.Join(relDir, stem+"_analysis.json"),
	}
	if lrcPath != "" {
		entry.LyricsPath = path.Join(relDir, stem+".lrc")
	}
	return p.catalog.Upsert(entry)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}
