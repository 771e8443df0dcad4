package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchSynced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("artist_name"); got != "Muse" {
			t.Errorf("artist_name = %q", got)
		}
		if got := r.URL.Query().Get("track_name"); got != "Uprising" {
			t.Errorf("track_name = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"syncedLyrics": "[00:01.00] They will not force us",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	got, err := c.FetchSynced(context.Background(), "Muse", "Uprising")
	if err != nil {
		t.Fatalf("FetchSynced failed: %v", err)
	}
	if got != "[00:01.00] They will not force us" {
		t.Errorf("Lyrics = %q", got)
	}
}

func TestFetchSyncedNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.FetchSynced(context.Background(), "Nobody", "Nothing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, expected ErrNotFound", err)
	}
}

func TestFetchSyncedEmptyLyricsIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"syncedLyrics": ""})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.FetchSynced(context.Background(), "A", "B"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, expected ErrNotFound for plain-lyrics-only songs", err)
	}
}

func TestFetchSyncedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.FetchSynced(context.Background(), "A", "B"); err == nil {
		t.Error("Expected an error for a 500 response")
	}
}

func TestFetchSyncedHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL)
	if _, err := c.FetchSynced(ctx, "A", "B"); err == nil {
		t.Error("Expected an error for a cancelled context")
	}
}
