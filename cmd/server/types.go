package main

import (
	"encoding/json"
	"fmt"
)

// SongDTO represents a catalog entry in API responses.
type SongDTO struct {
	Title        string  `json:"title"`
	Artist       string  `json:"artist"`
	Filename     string  `json:"filename"`
	SongKey      string  `json:"songKey"`
	Duration     float64 `json:"duration"`
	Tempo        float64 `json:"tempo"`
	FilePath     string  `json:"file_path"`
	AnalysisPath string  `json:"analysis_path"`
	LyricsPath   string  `json:"lyrics_path,omitempty"`
}

// ListSongsResponse is the response for GET /api/songs
type ListSongsResponse struct {
	Songs []SongDTO `json:"songs"`
	Count int       `json:"count"`
}

// UploadResponse is the response for POST /api/upload. Processing continues
// in the background, so the client gets the saved filename and run ID only.
type UploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
	SongKey  string `json:"songKey"`
}

// ProcessRequest is the request body for POST /api/process
type ProcessRequest struct {
	// Filename of a previously uploaded file, relative to the uploads dir.
	Filename string `json:"filename"`
}

// Validate checks if the request is valid
func (r *ProcessRequest) Validate() error {
	if r.Filename == "" {
		return fmt.Errorf("filename is required")
	}
	return nil
}

// ProcessResponse is the response for a synchronous POST /api/process run.
type ProcessResponse struct {
	Message string            `json:"message"`
	RunID   string            `json:"runId"`
	SongKey string            `json:"songKey"`
	Artist  string            `json:"artist"`
	Title   string            `json:"title"`
	Stages  map[string]string `json:"stages"`
}

// SubmitScoreRequest is the request body for POST /api/scores. Score is a
// json.Number so clients sending "1500" or 1500.0 both coerce to an int.
type SubmitScoreRequest struct {
	SongID   string      `json:"songId"`
	Initials string      `json:"initials"`
	Score    json.Number `json:"score"`
}

// Validate checks the fields that don't need store state. The score value
// itself is validated during coercion.
func (r *SubmitScoreRequest) Validate() error {
	if r.SongID == "" {
		return fmt.Errorf("songId is required")
	}
	if r.Initials == "" {
		return fmt.Errorf("initials is required")
	}
	return nil
}

// ScoreInt coerces the submitted score to an int. Fractional values are
// accepted and truncated, matching how game clients serialize scores.
func (r *SubmitScoreRequest) ScoreInt() (int, error) {
	if i, err := r.Score.Int64(); err == nil {
		return int(i), nil
	}
	f, err := r.Score.Float64()
	if err != nil {
		return 0, fmt.Errorf("score must be a number")
	}
	return int(f), nil
}

// ScoreEntryDTO represents one leaderboard row in API responses.
type ScoreEntryDTO struct {
	Initials string `json:"initials"`
	Score    int    `json:"score"`
	Date     string `json:"date"`
}

// ScoresResponse is the response for GET /api/scores/{songKey} and for a
// successful submission, in which case Rank is the new entry's 1-based rank.
type ScoresResponse struct {
	SongKey string          `json:"songKey"`
	Scores  []ScoreEntryDTO `json:"scores"`
	Rank    int             `json:"rank,omitempty"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
