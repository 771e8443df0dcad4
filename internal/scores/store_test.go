package scores

import (
	"encoding/json"
	"errors"
	"os"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), nil)
}

func TestSubmitOrdering(t *testing.T) {
	store := newTestStore(t)

	for _, score := range []int{100, 500, 300} {
		if _, _, err := store.Submit("songkey", "AAA", score); err != nil {
			t.Fatalf("Submit(%d) failed: %v", score, err)
		}
	}

	top, err := store.Top("songkey")
	if err != nil {
		t.Fatalf("Top failed: %v", err)
	}
	want := []int{500, 300, 100}
	if len(top) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(top))
	}
	for i, w := range want {
		if top[i].Score != w {
			t.Errorf("Position %d has score %d, expected %d", i, top[i].Score, w)
		}
	}
}

func TestSubmitRank(t *testing.T) {
	store := newTestStore(t)

	if _, _, err := store.Submit("songkey", "AAA", 500); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, _, err := store.Submit("songkey", "BBB", 100); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	_, rank, err := store.Submit("songkey", "CCC", 300)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if rank != 2 {
		t.Errorf("Rank = %d, expected 2", rank)
	}
}

func TestSubmitInitialsNormalized(t *testing.T) {
	store := newTestStore(t)

	top, _, err := store.Submit("songkey", "  wxyz  ", 50)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if top[0].Initials != "WXY" {
		t.Errorf("Initials = %q, expected uppercase three-letter truncation", top[0].Initials)
	}
}

func TestSubmitRejectsInvalid(t *testing.T) {
	store := newTestStore(t)

	if _, _, err := store.Submit("songkey", "AAA", -1); !errors.Is(err, ErrInvalidScore) {
		t.Errorf("Negative score: err = %v, expected ErrInvalidScore", err)
	}
	if _, _, err := store.Submit("songkey", "   ", 10); !errors.Is(err, ErrInvalidScore) {
		t.Errorf("Blank initials: err = %v, expected ErrInvalidScore", err)
	}
}

func TestTopTruncatesButFileDoesNot(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 15; i++ {
		if _, _, err := store.Submit("songkey", "AAA", i*10); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	top, err := store.Top("songkey")
	if err != nil {
		t.Fatalf("Top failed: %v", err)
	}
	if len(top) != TopN {
		t.Errorf("Top returned %d entries, expected %d", len(top), TopN)
	}

	data, err := os.ReadFile(store.filePath("songkey"))
	if err != nil {
		t.Fatalf("Failed to read scores file: %v", err)
	}
	var persisted board
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("Failed to parse scores file: %v", err)
	}
	if len(persisted.Scores) != 15 {
		t.Errorf("Persisted %d entries, expected all 15", len(persisted.Scores))
	}
}

func TestSeed(t *testing.T) {
	store := newTestStore(t)

	if err := store.Seed("songkey"); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	top, err := store.Top("songkey")
	if err != nil {
		t.Fatalf("Top failed: %v", err)
	}
	if len(top) != 1 {
		t.Fatalf("Expected 1 seeded entry, got %d", len(top))
	}
	if top[0].Initials != DefaultInitials || top[0].Score != DefaultScore {
		t.Errorf("Seeded entry = %+v, expected %s/%d", top[0], DefaultInitials, DefaultScore)
	}
}

func TestSeedLeavesExistingBoardAlone(t *testing.T) {
	store := newTestStore(t)

	if _, _, err := store.Submit("songkey", "AAA", 9000); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := store.Seed("songkey"); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	top, err := store.Top("songkey")
	if err != nil {
		t.Fatalf("Top failed: %v", err)
	}
	if len(top) != 1 || top[0].Score != 9000 {
		t.Errorf("Seed modified an existing board: %+v", top)
	}
}

func TestCorruptBoardResets(t *testing.T) {
	store := newTestStore(t)

	if err := os.MkdirAll(store.dir, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(store.filePath("songkey"), []byte("not json"), 0o644); err != nil {
		t.Fatalf("Failed to write corrupt file: %v", err)
	}

	top, err := store.Top("songkey")
	if err != nil {
		t.Fatalf("Top must not fail on a corrupt board: %v", err)
	}
	if len(top) != 0 {
		t.Errorf("Corrupt board should read as empty, got %d entries", len(top))
	}

	if _, _, err := store.Submit("songkey", "AAA", 10); err != nil {
		t.Fatalf("Submit after reset failed: %v", err)
	}
}

func TestBoardsAreIsolatedPerSong(t *testing.T) {
	store := newTestStore(t)

	if _, _, err := store.Submit("song_one", "AAA", 100); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	top, err := store.Top("song_two")
	if err != nil {
		t.Fatalf("Top failed: %v", err)
	}
	if len(top) != 0 {
		t.Errorf("Scores leaked across song keys: %+v", top)
	}
}
