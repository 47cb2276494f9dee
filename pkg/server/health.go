package server

import (
	"net/http"
	"time"
)

// ProbeResponse is the body of /health and /ready.
type ProbeResponse struct {
	Status     string    `json:"status"`
	Version    string    `json:"version,omitempty"`
	Components int       `json:"components"`
	Templates  int       `json:"templates"`
	CheckedAt  time.Time `json:"checked_at"`
}

func (s *Server) probe(status string) ProbeResponse {
	return ProbeResponse{
		Status:     status,
		Version:    s.config.Version,
		Components: len(s.service.Components()),
		Templates:  len(s.service.Templates()),
		CheckedAt:  time.Now().UTC(),
	}
}

// handleHealth answers liveness: the process serves HTTP.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.probe("alive"))
}

// handleReady answers 503 until Start runs and again once Shutdown begins.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.isReady() {
		respondJSON(w, http.StatusServiceUnavailable, s.probe("unavailable"))
		return
	}
	respondJSON(w, http.StatusOK, s.probe("ready"))
}
