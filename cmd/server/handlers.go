package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"

	"github.com/beatforge/beatforge/internal/catalog"
	"github.com/beatforge/beatforge/internal/pipeline"
	"github.com/beatforge/beatforge/internal/scores"
	"github.com/beatforge/beatforge/pkg/logger"
	"github.com/beatforge/beatforge/pkg/utils"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	pipeline *pipeline.Pipeline
	catalog  *catalog.Store
	scores   *scores.Store
	config   *ServerConfig
	log      *logger.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	UploadsDir     string
	ProcessedDir   string
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(p *pipeline.Pipeline, cat *catalog.Store, sc *scores.Store, config *ServerConfig) *Server {
	return &Server{
		pipeline: p,
		catalog:  cat,
		scores:   sc,
		config:   config,
		log:      logger.GetLogger(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "BeatForge API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":      "GET /health",
			"songs":       "GET /api/songs",
			"upload":      "POST /api/upload",
			"process":     "POST /api/process",
			"getScores":   "GET /api/scores/{songKey}",
			"submitScore": "POST /api/scores",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleListSongs handles GET /api/songs
func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.catalog.List()
	if err != nil {
		s.log.Errorf("Failed to list songs: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve songs")
		return
	}

	songs := make([]SongDTO, 0, len(entries))
	for _, e := range entries {
		songs = append(songs, SongDTO{
			Title:        e.Title,
			Artist:       e.Artist,
			Filename:     e.Filename,
			SongKey:      utils.SongKey(e.Filename),
			Duration:     e.Duration,
			Tempo:        e.Tempo,
			FilePath:     e.FilePath,
			AnalysisPath: e.AnalysisPath,
			LyricsPath:   e.LyricsPath,
		})
	}
	s.respondJSON(w, http.StatusOK, ListSongsResponse{Songs: songs, Count: len(songs)})
}

// handleUpload handles POST /api/upload. The file is saved under a sanitized
// name and the pipeline runs in its own goroutine, one per upload.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Missing 'file' field")
		return
	}
	defer file.Close()

	name := utils.SanitizeName(filepath.Base(header.Filename))
	if name == "" || name == "." {
		s.respondError(w, http.StatusBadRequest, "Invalid filename")
		return
	}

	if err := utils.MakeDir(s.config.UploadsDir); err != nil {
		s.log.Errorf("Failed to create uploads dir: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to store upload")
		return
	}

	dst := filepath.Join(s.config.UploadsDir, name)
	out, err := os.Create(dst)
	if err != nil {
		s.log.Errorf("Failed to create upload file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to store upload")
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		s.log.Errorf("Failed to write upload file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to store upload")
		return
	}
	if err := out.Close(); err != nil {
		s.log.Errorf("Failed to close upload file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to store upload")
		return
	}

	s.log.Infof("Upload saved: %s, starting background processing", dst)
	go func() {
		if _, err := s.pipeline.Run(context.Background(), dst); err != nil {
			s.log.Errorf("Background processing of %s failed: %v", name, err)
		}
	}()

	s.respondJSON(w, http.StatusAccepted, UploadResponse{
		Message:  "Upload accepted, processing started",
		Filename: name,
		SongKey:  utils.SongKey(name),
	})
}

// handleProcess handles POST /api/process. Unlike upload this runs the
// pipeline synchronously so the caller sees per-stage outcomes.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	path := filepath.Join(s.config.UploadsDir, filepath.Base(req.Filename))
	if _, err := os.Stat(path); err != nil {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("No uploaded file named %s", req.Filename))
		return
	}

	res, err := s.pipeline.Run(r.Context(), path)
	if err != nil {
		s.log.Errorf("Processing of %s failed: %v", req.Filename, err)
		s.respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Processing failed: %v", err))
		return
	}

	stages := make(map[string]string, len(res.Stages))
	for _, st := range res.Stages {
		stages[string(st.Stage)] = st.Status.String()
	}
	s.respondJSON(w, http.StatusOK, ProcessResponse{
		Message: "Processing complete",
		RunID:   res.RunID,
		SongKey: res.SongKey,
		Artist:  res.Identity.Artist,
		Title:   res.Identity.Title,
		Stages:  stages,
	})
}

// handleGetScores handles GET /api/scores/{songKey}
func (s *Server) handleGetScores(w http.ResponseWriter, r *http.Request) {
	songKey := mux.Vars(r)["songKey"]

	entries, err := s.scores.Top(songKey)
	if err != nil {
		s.log.Errorf("Failed to read scores for %s: %v", songKey, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve scores")
		return
	}
	s.respondJSON(w, http.StatusOK, ScoresResponse{SongKey: songKey, Scores: toScoreDTOs(entries)})
}

// handleSubmitScore handles POST /api/scores
func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	var req SubmitScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	score, err := req.ScoreInt()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	top, rank, err := s.scores.Submit(req.SongID, req.Initials, score)
	if err != nil {
		if errors.Is(err, scores.ErrInvalidScore) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Errorf("Failed to submit score for %s: %v", req.SongID, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save score")
		return
	}
	s.respondJSON(w, http.StatusOK, ScoresResponse{
		SongKey: req.SongID,
		Scores:  toScoreDTOs(top),
		Rank:    rank,
	})
}

func toScoreDTOs(entries []scores.Entry) []ScoreEntryDTO {
	out := make([]ScoreEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, ScoreEntryDTO(e))
	}
	return out
}
