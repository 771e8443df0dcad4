package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/beatforge/beatforge/internal/catalog"
	"github.com/beatforge/beatforge/internal/features"
	"github.com/beatforge/beatforge/internal/identify"
	"github.com/beatforge/beatforge/internal/lyrics"
	"github.com/beatforge/beatforge/internal/pipeline"
	"github.com/beatforge/beatforge/internal/scores"
)

var (
	port           int
	dataDir        string
	indexPath      string
	tempDir        string
	sampleRate     int
	lyricsURL      string
	noLyrics       bool
	allowedOrigins string
)

func init() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dataDir, "data", getEnvOrDefault("BEATFORGE_DATA_DIR", "data"), "Data directory (uploads, processed songs, scores)")
	flag.StringVar(&indexPath, "index", getEnvOrDefault("BEATFORGE_INDEX_PATH", ""), "Path to the acoustic fingerprint database (empty disables acoustic identification)")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("BEATFORGE_TEMP_DIR", "/tmp"), "Temporary directory for audio conversion")
	flag.IntVar(&sampleRate, "rate", 11025, "Audio sample rate for fingerprinting")
	flag.StringVar(&lyricsURL, "lyrics-url", getEnvOrDefault("BEATFORGE_LYRICS_URL", ""), "Base URL of the synced lyrics service (empty uses the default)")
	flag.BoolVar(&noLyrics, "no-lyrics", false, "Disable lyrics fetching")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	flag.Parse()

	// Parse allowed origins
	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	processedDir := filepath.Join(dataDir, "processed")
	cat := catalog.NewStore(filepath.Join(dataDir, "songs.json"), nil)
	sc := scores.NewStore(filepath.Join(dataDir, "scores"), nil)

	var fetcher lyrics.Fetcher
	if !noLyrics {
		fetcher = lyrics.NewClient(lyricsURL)
	}

	pipe, err := pipeline.New(
		pipeline.WithIdentifier(identify.NewIdentifier(
			identify.WithIndexPath(indexPath),
			identify.WithTempDir(tempDir),
			identify.WithSampleRate(sampleRate),
		)),
		pipeline.WithExtractor(features.NewExtractor(
			features.WithSampleRate(sampleRate),
			features.WithTempDir(tempDir),
		)),
		pipeline.WithLyrics(fetcher),
		pipeline.WithCatalog(cat),
		pipeline.WithScores(sc),
		pipeline.WithProcessedDir(processedDir),
	)
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}

	config := &ServerConfig{
		Port:           port,
		UploadsDir:     filepath.Join(dataDir, "uploads"),
		ProcessedDir:   processedDir,
		AllowedOrigins: origins,
	}

	server := NewServer(pipe, cat, sc, config)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
