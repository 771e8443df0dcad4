// Package catalog maintains the published song catalog: one JSON file
// holding every processed song's metadata and artifact locations. The store
// owns the read-modify-write cycle; the underlying file has no transaction
// support of its own.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/beatforge/beatforge/pkg/logger"
	"github.com/beatforge/beatforge/pkg/utils"
)

// Entry is one published song. FilePath and friends are client-relative so
// the game layer can fetch them directly.
type Entry struct {
	Title        string  `json:"title"`
	Artist       string  `json:"artist"`
	Filename     string  `json:"filename"`
	Duration     float64 `json:"duration"`
	Tempo        float64 `json:"tempo"`
	FilePath     string  `json:"file_path"`
	AnalysisPath string  `json:"analysis_path"`
	LyricsPath   string  `json:"lyrics_path,omitempty"`
}

// Store is safe for concurrent use; a whole-store mutex serializes every
// load-mutate-persist cycle.
type Store struct {
	mu   sync.Mutex
	path string
	log  *logger.Logger
}

func NewStore(path string, log *logger.Logger) *Store {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Store{path: path, log: log}
}

// Upsert replaces any existing entry with the same filename, otherwise
// appends. At most one entry per filename survives; the replacement is whole,
// never a field merge.
func (s *Store) Upsert(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	replaced := false
	for i := range entries {
		if entries[i].Filename == entry.Filename {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if replaced {
		s.log.Infof("%s already in catalog, updating entry", entry.Filename)
	} else {
		entries = append(entries, entry)
	}

	return s.save(entries)
}

// List returns the catalog ordered by (artist, title).
func (s *Store) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Artist != entries[j].Artist {
			return entries[i].Artist < entries[j].Artist
		}
		return entries[i].Title < entries[j].Title
	})
	return entries, nil
}

// Rebrand overwrites the artist of the entry matching filename, used to mark
// curated tracks.
func (s *Store) Rebrand(filename, artist string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	for i := range entries {
		if entries[i].Filename == filename {
			entries[i].Artist = artist
			return s.save(entries)
		}
	}
	return fmt.Errorf("no catalog entry for %s", filename)
}

// load reads the persisted catalog. A missing file is an empty catalog; a
// corrupt file is logged and reset rather than surfaced to the caller.
func (s *Store) load() []Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warnf("Catalog file unreadable, resetting: %v", err)
		}
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.log.Warnf("Catalog file is corrupt, resetting: %v", err)
		return nil
	}
	return entries
}

func (s *Store) save(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding catalog: %w", err)
	}

	if err := utils.MakeDir(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("creating catalog dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing catalog: %w", err)
	}
	return utils.MoveFile(tmp, s.path)
}
