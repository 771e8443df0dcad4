package identify

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dhowden/tag"

	"github.com/beatforge/beatforge/internal/audio"
	"github.com/beatforge/beatforge/internal/fingerprint"
	"github.com/beatforge/beatforge/internal/identify/index"
	"github.com/beatforge/beatforge/pkg/logger"
)

// minVotes is the smallest aligned-hash count accepted as a confident match.
const minVotes = 10

// Acoustic identifies a file by fingerprinting it against the local index.
// Lookup misses fall through to embedded tags, then to the filename
// heuristic. Internal errors never escape; they convert to the fallback
// result.
type Acoustic struct {
	db         *index.DB
	tempDir    string
	sampleRate int
	log        *logger.Logger
}

func (a *Acoustic) Identify(path string) SongIdentity {
	if id, ok := a.lookup(path); ok {
		return id
	}
	if id, ok := readTags(path); ok {
		a.log.Infof("Identified %s from embedded tags", filepath.Base(path))
		return id
	}
	return FromFilename(path)
}

func (a *Acoustic) lookup(path string) (SongIdentity, bool) {
	samples, sr, err := audio.LoadSamples(context.Background(), path, a.tempDir, a.sampleRate)
	if err != nil {
		a.log.Warnf("Fingerprinting failed for %s: %v", filepath.Base(path), err)
		return SongIdentity{}, false
	}

	spec, err := fingerprint.ComputeSpectrogram(samples)
	if err != nil {
		a.log.Warnf("Spectrogram failed for %s: %v", filepath.Base(path), err)
		return SongIdentity{}, false
	}

	peaks := fingerprint.ExtractPeaks(spec, sr)
	queryHashes := fingerprint.Hash(peaks, "")
	a.log.Debugf("Query has %d peaks, %d unique hashes", len(peaks), len(queryHashes))

	hashes := make([]uint32, 0, len(queryHashes))
	for h := range queryHashes {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	dbCouples, err := a.db.CouplesByHashes(hashes)
	if err != nil {
		a.log.Warnf("Index lookup failed: %v", err)
		return SongIdentity{}, false
	}

	matches := fingerprint.VoteMatches(queryHashes, dbCouples)
	for _, m := range matches {
		if m.Count < minVotes {
			break
		}
		song, err := a.db.SongByID(m.SongID)
		if err != nil {
			a.log.Warnf("Failed to load matched song %s: %v", m.SongID, err)
			continue
		}
		// Skip placeholder track-number labels; the next candidate in
		// confidence order takes over.
		if isPlaceholderTitle(song.Title) {
			continue
		}
		a.log.Infof("Acoustic match: %s by %s (%d votes)", song.Title, song.Artist, m.Count)
		return SongIdentity{
			Artist:   song.Artist,
			Title:    song.Title,
			Filename: filepath.Base(path),
		}, true
	}
	return SongIdentity{}, false
}

// Register fingerprints a file and stores it in the index under the given
// identity so future uploads of the same recording resolve acoustically.
func (a *Acoustic) Register(path, title, artist string) (string, error) {
	samples, sr, err := audio.LoadSamples(context.Background(), path, a.tempDir, a.sampleRate)
	if err != nil {
		return "", err
	}
	spec, err := fingerprint.ComputeSpectrogram(samples)
	if err != nil {
		return "", err
	}
	peaks := fingerprint.ExtractPeaks(spec, sr)

	songID, err := a.db.RegisterSong(title, artist)
	if err != nil {
		return "", err
	}
	fps := fingerprint.Hash(peaks, songID)
	a.log.Infof("Indexing %s: %d peaks, %d unique hashes", filepath.Base(path), len(peaks), len(fps))
	if err := a.db.StoreFingerprints(fps); err != nil {
		return "", err
	}
	return songID, nil
}

func isPlaceholderTitle(title string) bool {
	return strings.HasPrefix(strings.ToLower(title), "track ")
}

func readTags(path string) (SongIdentity, bool) {
	f, err := os.Open(path)
	if err != nil {
		return SongIdentity{}, false
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return SongIdentity{}, false
	}
	title := strings.TrimSpace(m.Title())
	artist := strings.TrimSpace(m.Artist())
	if title == "" {
		return SongIdentity{}, false
	}
	if artist == "" {
		artist = UnknownArtist
	}
	return SongIdentity{Artist: artist, Title: title, Filename: filepath.Base(path)}, true
}
