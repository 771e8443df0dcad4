package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/beatforge/beatforge/internal/catalog"
	"github.com/beatforge/beatforge/internal/features"
	"github.com/beatforge/beatforge/internal/identify"
	"github.com/beatforge/beatforge/internal/scores"
)

type fakeIdentifier struct {
	identity identify.SongIdentity
}

func (f fakeIdentifier) Identify(path string) identify.SongIdentity {
	id := f.identity
	id.Filename = filepath.Base(path)
	return id
}

type fakeExtractor struct {
	err error
}

func (f fakeExtractor) Extract(path string) (*features.FeatureSet, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &features.FeatureSet{
		Filename:   filepath.Base(path),
		Duration:   120,
		Tempo:      110,
		SampleRate: 44100,
		Degraded:   true,
		BeatTimes:  []float64{0, 0.55, 1.1},
		OnsetTimes: []float64{0.1, 0.6},
		EnergyProfile: []features.EnergyPoint{
			{Time: 0, Energy: 0.5}, {Time: 1, Energy: 0.6},
		},
		Notes: []features.NoteEvent{{Time: 0.2, Note: "C4"}},
	}, nil
}

type fakeLyrics struct {
	text string
	err  error
}

func (f fakeLyrics) FetchSynced(ctx context.Context, artist, title string) (string, error) {
	return f.text, f.err
}

type testEnv struct {
	pipe      *Pipeline
	catalog   *catalog.Store
	scores    *scores.Store
	audioPath string
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	root := t.TempDir()
	uploads := filepath.Join(root, "uploads")
	if err := os.MkdirAll(uploads, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	audioPath := filepath.Join(uploads, "Muse - Uprising.mp3")
	if err := os.WriteFile(audioPath, []byte("fake audio payload"), 0o644); err != nil {
		t.Fatalf("Failed to write audio file: %v", err)
	}

	cat := catalog.NewStore(filepath.Join(root, "songs.json"), nil)
	sc := scores.NewStore(filepath.Join(root, "scores"), nil)

	base := []Option{
		WithIdentifier(fakeIdentifier{identity: identify.SongIdentity{Artist: "Muse", Title: "Uprising"}}),
		WithExtractor(fakeExtractor{}),
		WithLyrics(fakeLyrics{text: "[00:01.00] First line"}),
		WithCatalog(cat),
		WithScores(sc),
		WithProcessedDir(filepath.Join(root, "processed")),
	}
	pipe, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}
	return &testEnv{pipe: pipe, catalog: cat, scores: sc, audioPath: audioPath}
}

func stageStatus(t *testing.T, res *Result, stage Stage) Status {
	t.Helper()
	for _, st := range res.Stages {
		if st.Stage == stage {
			return st.Status
		}
	}
	t.Fatalf("Stage %s missing from result", stage)
	return 0
}

func TestRunHappyPath(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.pipe.Run(context.Background(), env.audioPath)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.RunID == "" {
		t.Error("Run produced no run ID")
	}

	for _, stage := range []Stage{StageIdentify, StageAnalyze, StageSegment, StageFetchLyrics, StageOrganize, StageInitLeaderboard} {
		if got := stageStatus(t, res, stage); got != Success {
			t.Errorf("Stage %s = %s, expected success", stage, got)
		}
	}

	dir := filepath.Dir(env.audioPath)
	for _, name := range []string{
		"Muse - Uprising_info.json",
		"Muse - Uprising_analysis.json",
		"Muse - Uprising.lrc",
		"Muse - Uprising_debug.log",
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected artifact %s: %v", name, err)
		}
	}

	// Organized copies live under processed/<Artist>/<Title>/.
	organized := filepath.Join(filepath.Dir(dir), "processed", "Muse", "Uprising", "Muse - Uprising.mp3")
	if _, err := os.Stat(organized); err != nil {
		t.Errorf("Expected organized audio copy: %v", err)
	}

	entries, err := env.catalog.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 catalog entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Artist != "Muse" || e.Title != "Uprising" || e.Duration != 120 {
		t.Errorf("Catalog entry = %+v", e)
	}
	if e.FilePath != "processed/Muse/Uprising/Muse - Uprising.mp3" {
		t.Errorf("FilePath = %q, expected a client-relative path", e.FilePath)
	}
	if e.LyricsPath == "" {
		t.Error("LyricsPath missing despite fetched lyrics")
	}

	// Leaderboard is seeded with the default entry.
	top, err := env.scores.Top(res.SongKey)
	if err != nil {
		t.Fatalf("Top failed: %v", err)
	}
	if len(top) != 1 || top[0].Initials != scores.DefaultInitials {
		t.Errorf("Leaderboard not seeded: %+v", top)
	}
}

func TestRunAnalysisDocumentShape(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.pipe.Run(context.Background(), env.audioPath); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(env.audioPath), "Muse - Uprising_analysis.json"))
	if err != nil {
		t.Fatalf("Failed to read analysis document: %v", err)
	}
	var doc analysisDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Analysis document is not valid JSON: %v", err)
	}
	if doc.Metadata.Duration != 120 || doc.Metadata.Tempo != 110 {
		t.Errorf("Metadata = %+v", doc.Metadata)
	}
	if !doc.Metadata.Degraded {
		t.Error("Degraded flag lost in the analysis document")
	}
	if len(doc.Segments) == 0 {
		t.Error("Analysis document has no segments")
	}
	if len(doc.Beats) != 3 || len(doc.Onsets) != 2 {
		t.Errorf("Time series not persisted: %d beats, %d onsets", len(doc.Beats), len(doc.Onsets))
	}
}

func TestRunIdempotent(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.pipe.Run(context.Background(), env.audioPath)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	// A player posts a score between runs; reprocessing must not clobber it.
	if _, _, err := env.scores.Submit(res.SongKey, "ZZZ", 7777); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if _, err := env.pipe.Run(context.Background(), env.audioPath); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	entries, err := env.catalog.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Reprocessing duplicated the catalog entry: %d entries", len(entries))
	}

	top, err := env.scores.Top(res.SongKey)
	if err != nil {
		t.Fatalf("Top failed: %v", err)
	}
	if len(top) != 2 || top[0].Score != 7777 {
		t.Errorf("Reprocessing disturbed the leaderboard: %+v", top)
	}
}

func TestRunLyricsFailureIsSoft(t *testing.T) {
	env := newTestEnv(t, WithLyrics(fakeLyrics{err: errors.New("service down")}))

	res, err := env.pipe.Run(context.Background(), env.audioPath)
	if err != nil {
		t.Fatalf("Run failed despite soft lyrics error: %v", err)
	}
	if got := stageStatus(t, res, StageFetchLyrics); got != SoftFailure {
		t.Errorf("FetchLyrics = %s, expected soft_failure", got)
	}
	if got := stageStatus(t, res, StageOrganize); got != Success {
		t.Errorf("Organize = %s, lyrics failure must not block it", got)
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(env.audioPath), "Muse - Uprising.lrc")); !os.IsNotExist(err) {
		t.Error("No .lrc file expected after a lyrics failure")
	}

	entries, _ := env.catalog.List()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 catalog entry, got %d", len(entries))
	}
	if entries[0].LyricsPath != "" {
		t.Errorf("LyricsPath = %q, expected empty", entries[0].LyricsPath)
	}
}

func TestRunNilLyricsFetcherSkips(t *testing.T) {
	env := newTestEnv(t, WithLyrics(nil))

	res, err := env.pipe.Run(context.Background(), env.audioPath)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := stageStatus(t, res, StageFetchLyrics); got != Skipped {
		t.Errorf("FetchLyrics = %s, expected skipped", got)
	}
}

func TestRunAnalyzeFailureIsFatal(t *testing.T) {
	env := newTestEnv(t, WithExtractor(fakeExtractor{err: errors.New("cannot stat")}))

	res, err := env.pipe.Run(context.Background(), env.audioPath)
	if err == nil {
		t.Fatal("Expected a fatal error when analysis fails")
	}
	if got := stageStatus(t, res, StageAnalyze); got != FatalFailure {
		t.Errorf("Analyze = %s, expected fatal_failure", got)
	}
	for _, st := range res.Stages {
		if st.Stage == StageSegment || st.Stage == StageOrganize {
			t.Errorf("Stage %s ran after a fatal analysis failure", st.Stage)
		}
	}

	// The run log is written even for an aborted run.
	if _, err := os.Stat(res.LogPath); err != nil {
		t.Errorf("Run log missing after fatal run: %v", err)
	}

	entries, _ := env.catalog.List()
	if len(entries) != 0 {
		t.Errorf("Catalog must stay empty after a fatal run, got %d entries", len(entries))
	}
}

func TestRunSkipsOrganizeWithoutTitle(t *testing.T) {
	env := newTestEnv(t, WithIdentifier(fakeIdentifier{identity: identify.SongIdentity{Artist: "Muse"}}))

	res, err := env.pipe.Run(context.Background(), env.audioPath)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := stageStatus(t, res, StageOrganize); got != Skipped {
		t.Errorf("Organize = %s, expected skipped for an incomplete identity", got)
	}

	entries, _ := env.catalog.List()
	if len(entries) != 0 {
		t.Errorf("Catalog must stay empty when organize is skipped, got %d entries", len(entries))
	}
}

func TestRunLogIsJSONLines(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.pipe.Run(context.Background(), env.audioPath)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	f, err := os.Open(res.LogPath)
	if err != nil {
		t.Fatalf("Failed to open run log: %v", err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("Run log line %d is not JSON: %v", lines+1, err)
		}
		if rec.Level == "" || rec.Message == "" {
			t.Errorf("Run log line %d incomplete: %+v", lines+1, rec)
		}
		if rec.ElapsedSeconds < 0 {
			t.Errorf("Run log line %d has negative elapsed time", lines+1)
		}
		lines++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("Failed to scan run log: %v", err)
	}
	if lines == 0 {
		t.Error("Run log is empty")
	}
}
