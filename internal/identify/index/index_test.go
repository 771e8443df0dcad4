package index

import (
	"path/filepath"
	"testing"

	"github.com/beatforge/beatforge/internal/fingerprint"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "index.sqlite3"))
	if err != nil {
		t.Fatalf("Failed to open index: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRegisterSong(t *testing.T) {
	db := openTestDB(t)

	id, err := db.RegisterSong("Sober", "Tool")
	if err != nil {
		t.Fatalf("RegisterSong failed: %v", err)
	}
	if id == "" {
		t.Fatal("Empty song ID")
	}

	song, err := db.SongByID(id)
	if err != nil {
		t.Fatalf("SongByID failed: %v", err)
	}
	if song.Title != "Sober" || song.Artist != "Tool" {
		t.Errorf("Stored song = %+v", song)
	}
}

func TestRegisterSongIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	first, err := db.RegisterSong("Sober", "Tool")
	if err != nil {
		t.Fatalf("First register failed: %v", err)
	}
	second, err := db.RegisterSong("Sober", "Tool")
	if err != nil {
		t.Fatalf("Second register failed: %v", err)
	}
	if first != second {
		t.Errorf("Same (title, artist) produced two IDs: %s, %s", first, second)
	}
}

func TestStoreAndQueryFingerprints(t *testing.T) {
	db := openTestDB(t)

	id, err := db.RegisterSong("Lithium", "Nirvana")
	if err != nil {
		t.Fatalf("RegisterSong failed: %v", err)
	}

	fps := map[uint32][]fingerprint.Couple{
		1111: {{SongID: id, AnchorTimeMs: 100}, {SongID: id, AnchorTimeMs: 900}},
		2222: {{SongID: id, AnchorTimeMs: 450}},
	}
	if err := db.StoreFingerprints(fps); err != nil {
		t.Fatalf("StoreFingerprints failed: %v", err)
	}

	got, err := db.CouplesByHashes([]uint32{1111, 2222, 3333})
	if err != nil {
		t.Fatalf("CouplesByHashes failed: %v", err)
	}
	if len(got[1111]) != 2 || len(got[2222]) != 1 {
		t.Errorf("Unexpected couples: %+v", got)
	}
	if _, ok := got[3333]; ok {
		t.Error("Unknown hash returned couples")
	}
	for _, c := range got[1111] {
		if c.SongID != id {
			t.Errorf("Couple carries song ID %q, expected %q", c.SongID, id)
		}
	}

	count, err := db.FingerprintCount(id)
	if err != nil {
		t.Fatalf("FingerprintCount failed: %v", err)
	}
	if count != 3 {
		t.Errorf("FingerprintCount = %d, expected 3", count)
	}
}

func TestCouplesByHashesEmptyQuery(t *testing.T) {
	db := openTestDB(t)

	got, err := db.CouplesByHashes(nil)
	if err != nil {
		t.Fatalf("CouplesByHashes failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected empty result, got %d buckets", len(got))
	}
}

func TestNilDBGuards(t *testing.T) {
	var db *DB

	if _, err := db.RegisterSong("a", "b"); err == nil {
		t.Error("RegisterSong on nil DB should fail")
	}
	if err := db.StoreFingerprints(nil); err == nil {
		t.Error("StoreFingerprints on nil DB should fail")
	}
	if _, err := db.CouplesByHashes([]uint32{1}); err == nil {
		t.Error("CouplesByHashes on nil DB should fail")
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close on nil DB should be a no-op, got %v", err)
	}
}
