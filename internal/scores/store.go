// Package scores keeps the per-song high-score tables. Each song gets one
// JSON file; the store serializes writers per song key since the files have
// no concurrency control of their own.
package scores

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/beatforge/beatforge/pkg/logger"
	"github.com/beatforge/beatforge/pkg/utils"
)

// ErrInvalidScore rejects malformed submissions synchronously.
var ErrInvalidScore = errors.New("score must be a non-negative integer")

// TopN is the number of entries returned by reads and submit responses. The
// persisted list itself is never pre-truncated, so ranks beyond TopN stay
// retrievable from raw storage.
const TopN = 10

// Seeded defaults for a freshly processed song.
const (
	DefaultInitials = "BTF"
	DefaultScore    = 100
)

type Entry struct {
	Initials string `json:"initials"`
	Score    int    `json:"score"`
	Date     string `json:"date"`
}

type board struct {
	Scores []Entry `json:"scores"`
}

type Store struct {
	dir string
	log *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(dir string, log *logger.Logger) *Store {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Store{dir: dir, log: log, locks: make(map[string]*sync.Mutex)}
}

// keyLock returns the mutex serializing access to one song's file.
func (s *Store) keyLock(songKey string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[songKey]
	if !ok {
		l = &sync.Mutex{}
		s.locks[songKey] = l
	}
	return l
}

func (s *Store) filePath(songKey string) string {
	return filepath.Join(s.dir, songKey+"_scores.json")
}

// Submit appends a score, re-sorts the full list descending (stable on ties)
// and persists it untruncated. It returns the top-N slice and the 1-based
// rank of the new record, located by value equality — when two submissions
// are byte-identical the first match wins.
func (s *Store) Submit(songKey, initials string, score int) ([]Entry, int, error) {
	if score < 0 {
		return nil, 0, ErrInvalidScore
	}
	initials = strings.ToUpper(strings.TrimSpace(initials))
	if initials == "" {
		return nil, 0, ErrInvalidScore
	}
	if len(initials) > 3 {
		initials = initials[:3]
	}

	lock := s.keyLock(songKey)
	lock.Lock()
	defer lock.Unlock()

	b := s.load(songKey)
	entry := Entry{
		Initials: initials,
		Score:    score,
		Date:     time.Now().Format("2006-01-02"),
	}
	b.Scores = append(b.Scores, entry)
	sortDescending(b.Scores)

	if err := s.save(songKey, b); err != nil {
		return nil, 0, err
	}

	rank := -1
	for i, e := range b.Scores {
		if e == entry {
			rank = i + 1
			break
		}
	}
	return top(b.Scores), rank, nil
}

// Top returns the song's top-N scores, sorted descending.
func (s *Store) Top(songKey string) ([]Entry, error) {
	lock := s.keyLock(songKey)
	lock.Lock()
	defer lock.Unlock()

	b := s.load(songKey)
	sortDescending(b.Scores)
	return top(b.Scores), nil
}

// Seed lazily creates a song's leaderboard with one default entry. An
// existing board is left untouched, making pipeline re-runs safe.
func (s *Store) Seed(songKey string) error {
	lock := s.keyLock(songKey)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(s.filePath(songKey)); err == nil {
		s.log.Infof("Leaderboard for %s already exists, leaving untouched", songKey)
		return nil
	}

	b := board{Scores: []Entry{{
		Initials: DefaultInitials,
		Score:    DefaultScore,
		Date:     time.Now().Format("2006-01-02"),
	}}}
	if err := s.save(songKey, b); err != nil {
		return err
	}
	s.log.Infof("Seeded leaderboard for %s", songKey)
	return nil
}

func sortDescending(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
}

func top(entries []Entry) []Entry {
	if len(entries) > TopN {
		entries = entries[:TopN]
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// load reads a song's board; a missing file is an empty board, a corrupt one
// is logged and reset.
func (s *Store) load(songKey string) board {
	data, err := os.ReadFile(s.filePath(songKey))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warnf("Scores file for %s unreadable, resetting: %v", songKey, err)
		}
		return board{}
	}
	var b board
	if err := json.Unmarshal(data, &b); err != nil {
		s.log.Warnf("Scores file for %s is corrupt, resetting: %v", songKey, err)
		return board{}
	}
	return b
}

func (s *Store) save(songKey string, b board) error {
	if b.Scores == nil {
		b.Scores = []Entry{}
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding scores: %w", err)
	}
	if err := utils.MakeDir(s.dir); err != nil {
		return fmt.Errorf("creating scores dir: %w", err)
	}
	tmp := s.filePath(songKey) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing scores: %w", err)
	}
	return utils.MoveFile(tmp, s.filePath(songKey))
}
