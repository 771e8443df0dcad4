package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"Around the World", "Around_the_World"},
		{"Song (Live)", "Song_Live"},
		{"plain", "plain"},
		{"a (b) c", "a_b_c"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.out {
			t.Errorf("SanitizeName(%q) = %q, expected %q", tt.in, got, tt.out)
		}
	}
}

func TestSongKey(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"Muse - Uprising.mp3", "Muse_-_Uprising"},
		{"/uploads/bulletbfly.wav", "bulletbfly"},
		{"Song (Remix).flac", "Song_Remix"},
	}
	for _, tt := range tests {
		if got := SongKey(tt.in); got != tt.out {
			t.Errorf("SongKey(%q) = %q, expected %q", tt.in, got, tt.out)
		}
	}
}

func TestSongKeyStableUnderSanitizedUpload(t *testing.T) {
	// Uploads are saved under a sanitized basename; both spellings must map
	// to the same key so score lookups work after reprocessing.
	original := "My Song (Demo).mp3"
	saved := SanitizeName(original)
	if SongKey(original) != SongKey(saved) {
		t.Errorf("Key mismatch: %q vs %q", SongKey(original), SongKey(saved))
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")

	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("Failed to write source: %v", err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("Failed to read copy: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("Copy content = %q", got)
	}

	// Overwrite an existing destination.
	if err := os.WriteFile(src, []byte("updated"), 0o644); err != nil {
		t.Fatalf("Failed to update source: %v", err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile overwrite failed: %v", err)
	}
	got, _ = os.ReadFile(dst)
	if string(got) != "updated" {
		t.Errorf("Overwritten copy content = %q", got)
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "b.txt")

	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to write source: %v", err)
	}
	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile failed: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("Source still exists after move")
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("Destination missing after move: %v", err)
	}
}

func TestMakeDirNested(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c")
	if err := MakeDir(path); err != nil {
		t.Fatalf("MakeDir failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		t.Errorf("Nested directory not created: %v", err)
	}
}
