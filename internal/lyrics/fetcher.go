// Package lyrics fetches synchronized (LRC) lyric text from an external
// lookup service. Failures here are always soft at the pipeline level.
package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrNotFound reports that the service has no synced lyrics for the song.
var ErrNotFound = errors.New("no synced lyrics found")

// Fetcher retrieves synced lyric text for a song.
type Fetcher interface {
	FetchSynced(ctx context.Context, artist, title string) (string, error)
}

const DefaultBaseURL = "https://lrclib.net/api/get"

// Client talks to an lrclib-shaped GET endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type lookupResponse struct {
	SyncedLyrics string `json:"syncedLyrics"`
}

func (c *Client) FetchSynced(ctx context.Context, artist, title string) (string, error) {
	q := url.Values{}
	q.Set("artist_name", artist)
	q.Set("track_name", title)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("lyrics lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("lyrics lookup: unexpected status %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding lyrics response: %w", err)
	}
	if body.SyncedLyrics == "" {
		return "", ErrNotFound
	}
	return body.SyncedLyrics, nil
}
