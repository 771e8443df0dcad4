package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/beatforge/beatforge/internal/catalog"
	"github.com/beatforge/beatforge/internal/features"
	"github.com/beatforge/beatforge/internal/identify"
	"github.com/beatforge/beatforge/internal/lyrics"
	"github.com/beatforge/beatforge/internal/pipeline"
	"github.com/beatforge/beatforge/internal/scores"
	"github.com/beatforge/beatforge/pkg/logger"
	"github.com/beatforge/beatforge/pkg/utils"
)

// Global flags
var (
	dataDir    string
	indexPath  string
	tempDir    string
	sampleRate int
)

func init() {
	flag.StringVar(&dataDir, "data", getEnvOrDefault("BEATFORGE_DATA_DIR", "data"), "Data directory (uploads, processed songs, scores)")
	flag.StringVar(&indexPath, "index", getEnvOrDefault("BEATFORGE_INDEX_PATH", ""), "Path to the acoustic fingerprint database")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("BEATFORGE_TEMP_DIR", "/tmp"), "Directory for temporary audio conversion files")
	flag.IntVar(&sampleRate, "rate", 11025, "Audio sample rate for fingerprinting")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func catalogStore() *catalog.Store {
	return catalog.NewStore(filepath.Join(dataDir, "songs.json"), nil)
}

func scoresStore() *scores.Store {
	return scores.NewStore(filepath.Join(dataDir, "scores"), nil)
}

func main() {
	log := logger.GetLogger()

	printBanner()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	log.Infof("Executing command: %s", command)

	switch command {
	case "process":
		handleProcess()
	case "list":
		handleList()
	case "score":
		handleScore()
	case "rebrand":
		handleRebrand()
	case "index":
		handleIndex()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
 ____             _   _____
| __ )  ___  __ _| |_|  ___|__  _ __ __ _  ___
|  _ \ / _ \/ _` + "`" + ` | __| |_ / _ \| '__/ _` + "`" + ` |/ _ \
| |_) |  __/ (_| | |_|  _| (_) | | | (_| |  __/
|____/ \___|\__,_|\__|_|  \___/|_|  \__, |\___|
                                    |___/
           Song Processing CLI Tool
`
	fmt.Println(banner)
}

func printUsage() {
	fmt.Println("Usage: beatforge <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  process <audio_file> [--no-lyrics]        Run the full processing pipeline on a file")
	fmt.Println("  list                                      List the processed song catalog")
	fmt.Println("  score <songKey> <initials> <score>        Submit a score to a song's leaderboard")
	fmt.Println("  rebrand <filename> --artist <name>        Overwrite a catalog entry's artist")
	fmt.Println("  index <audio_file> --title <t> --artist <a>  Add a fingerprint to the acoustic index")
	fmt.Println()
	fmt.Println("Global flags: -data <dir> -index <path> -temp <dir> -rate <hz>")
}

func handleProcess() {
	log := logger.GetLogger()

	if len(os.Args) < 3 {
		fmt.Println("Error: audio file path required")
		fmt.Println("Usage: beatforge process <audio_file> [--no-lyrics]")
		os.Exit(1)
	}
	audioPath := os.Args[2]

	processCmd := flag.NewFlagSet("process", flag.ExitOnError)
	noLyrics := processCmd.Bool("no-lyrics", false, "Disable lyrics fetching")
	processCmd.Parse(os.Args[3:])

	if _, err := os.Stat(audioPath); err != nil {
		fmt.Printf("Error: cannot read %s: %v\n", audioPath, err)
		os.Exit(1)
	}

	var fetcher lyrics.Fetcher
	if !*noLyrics {
		fetcher = lyrics.NewClient("")
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
		pipeline.WithCatalog(catalogStore()),
		pipeline.WithScores(scoresStore()),
		pipeline.WithProcessedDir(filepath.Join(dataDir, "processed")),
	)
	if err != nil {
		fmt.Printf("❌ Failed to create pipeline: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n🎵 Processing %s...\n", filepath.Base(audioPath))
	res, err := pipe.Run(context.Background(), audioPath)
	if err != nil {
		fmt.Printf("❌ Processing failed: %v\n", err)
		log.Errorf("Processing failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("\n✅ Done: %s - %s\n", res.Identity.Artist, res.Identity.Title)
	for _, st := range res.Stages {
		fmt.Printf("   %-16s %s\n", st.Stage, st.Status)
	}
	fmt.Printf("   Run log: %s\n", res.LogPath)
}

func handleList() {
	entries, err := catalogStore().List()
	if err != nil {
		fmt.Printf("❌ Failed to read catalog: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("Catalog is empty.")
		return
	}

	fmt.Printf("\n📋 %d songs in catalog:\n\n", len(entries))
	for _, e := range entries {
		fmt.Printf("   %s - %s\n", e.Artist, e.Title)
		fmt.Printf("      key: %s  duration: %.1fs  tempo: %.1f BPM\n", utils.SongKey(e.Filename), e.Duration, e.Tempo)
	}
}

func handleScore() {
	if len(os.Args) < 5 {
		fmt.Println("Error: songKey, initials and score required")
		fmt.Println("Usage: beatforge score <songKey> <initials> <score>")
		os.Exit(1)
	}
	songKey := os.Args[2]
	initials := os.Args[3]
	score, err := strconv.Atoi(os.Args[4])
	if err != nil {
		fmt.Printf("Error: score must be an integer: %v\n", err)
		os.Exit(1)
	}

	top, rank, err := scoresStore().Submit(songKey, initials, score)
	if err != nil {
		fmt.Printf("❌ Failed to submit score: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n🏆 Score saved at rank %d. Top scores for %s:\n\n", rank, songKey)
	for i, e := range top {
		fmt.Printf("   %2d. %-3s %8d  %s\n", i+1, e.Initials, e.Score, e.Date)
	}
}

func handleRebrand() {
	if len(os.Args) < 3 {
		fmt.Println("Error: filename required")
		fmt.Println("Usage: beatforge rebrand <filename> --artist <name>")
		os.Exit(1)
	}
	filename := os.Args[2]

	rebrandCmd := flag.NewFlagSet("rebrand", flag.ExitOnError)
	artist := rebrandCmd.String("artist", "", "New artist name (required)")
	rebrandCmd.Parse(os.Args[3:])

	if *artist == "" {
		fmt.Println("Error: --artist is required")
		os.Exit(1)
	}

	if err := catalogStore().Rebrand(filename, *artist); err != nil {
		fmt.Printf("❌ Rebrand failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ %s is now credited to %s\n", filename, *artist)
}

func handleIndex() {
	if len(os.Args) < 3 {
		fmt.Println("Error: audio file path required")
		fmt.Println("Usage: beatforge index <audio_file> --title <title> --artist <artist>")
		os.Exit(1)
	}
	audioPath := os.Args[2]

	indexCmd := flag.NewFlagSet("index", flag.ExitOnError)
	title := indexCmd.String("title", "", "Song title (required)")
	artist := indexCmd.String("artist", "", "Artist name (required)")
	indexCmd.Parse(os.Args[3:])

	if *title == "" || *artist == "" {
		fmt.Println("Error: --title and --artist are required")
		os.Exit(1)
	}
	if indexPath == "" {
		fmt.Println("Error: -index <path> (or BEATFORGE_INDEX_PATH) is required for indexing")
		os.Exit(1)
	}

	id := identify.NewIdentifier(
		identify.WithIndexPath(indexPath),
		identify.WithTempDir(tempDir),
		identify.WithSampleRate(sampleRate),
	)
	acoustic, ok := id.(*identify.Acoustic)
	if !ok {
		fmt.Println("❌ Acoustic index could not be opened")
		os.Exit(1)
	}

	songID, err := acoustic.Register(audioPath, *title, *artist)
	if err != nil {
		fmt.Printf("❌ Indexing failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Indexed %s - %s (id %s)\n", *artist, *title, songID)
}
