package main

import (
	"fmt"
	"net/http"
	"os"

	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// setupRoutes registers all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	r := mux.NewRouter()

	// Root endpoint
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)

	// Health endpoint
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// Song catalog and processing endpoints
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/songs", s.handleListSongs).Methods(http.MethodGet)
	api.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	api.HandleFunc("/process", s.handleProcess).Methods(http.MethodPost)

	// Leaderboard endpoints
	api.HandleFunc("/scores/{songKey}", s.handleGetScores).Methods(http.MethodGet)
	api.HandleFunc("/scores", s.handleSubmitScore).Methods(http.MethodPost)

	// Serve processed artifacts (audio, analysis JSON, lyrics) to the game client
	r.PathPrefix("/processed/").Handler(
		http.StripPrefix("/processed/", http.FileServer(http.Dir(s.config.ProcessedDir))))

	// Wrap with CORS and request logging middleware
	cors := ghandlers.CORS(
		ghandlers.AllowedOrigins(s.config.AllowedOrigins),
		ghandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		ghandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With"}),
	)
	return ghandlers.LoggingHandler(os.Stdout, cors(r))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	handler := s.setupRoutes()

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.log.Infof("🚀 BeatForge server starting on %s", addr)
	s.log.Infof("   Uploads:   %s", s.config.UploadsDir)
	s.log.Infof("   Processed: %s", s.config.ProcessedDir)
	s.log.Infof("   CORS Origins: %v", s.config.AllowedOrigins)
	s.log.Infof("\nEndpoints:")
	s.log.Infof("   GET    /health                  - Health check")
	s.log.Infof("   GET    /api/songs               - List processed songs")
	s.log.Infof("   POST   /api/upload              - Upload and process a song")
	s.log.Infof("   POST   /api/process             - Re-run processing on an upload")
	s.log.Infof("   GET    /api/scores/{songKey}    - Top scores for a song")
	s.log.Infof("   POST   /api/scores              - Submit a score")

	return http.ListenAndServe(addr, handler)
}
