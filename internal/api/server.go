// Package api exposes the pipeline over HTTP: one endpoint to start an
// analysis run and one persistent NDJSON connection carrying its event stream.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/example/diagram-agent/internal/models"
	"github.com/example/diagram-agent/internal/scheduler"
	"github.com/example/diagram-agent/internal/sectionsource"
)

// Runner is the scheduler entry point the server drives.
type Runner interface {
	Run(ctx context.Context, runID string, doc models.Document)
}

type Server struct {
	runner Runner
	hub    *scheduler.Hub
	log    *slog.Logger
}

func NewServer(runner Runner, hub *scheduler.Hub, logger *slog.Logger) *Server {
	return &Server{runner: runner, hub: hub, log: logger}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /runs", s.createRun)
	mux.HandleFunc("GET /runs/{id}/events", s.streamEvents)
}

// RunRequest accepts pre-extracted sections, or raw markdown/PDF input which
// the sectionsource adapters split. Exactly one of the three must be present.
type RunRequest struct {
	Title     string           `json:"title"`
	URL       string           `json:"url,omitempty"`
	Sections  []models.Section `json:"sections,omitempty"`
	Markdown  string           `json:"markdown,omitempty"`
	PDFBase64 string           `json:"pdf_base64,omitempty"`
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sections, err := s.resolveSections(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(sections) == 0 {
		http.Error(w, "no sections in request", http.StatusBadRequest)
		return
	}

	runID := uuid.NewString()
	// Create the stream before the run starts so a subscriber connecting
	// right after the 202 never misses events.
	s.hub.Stream(runID)
	doc := models.Document{Title: req.Title, URL: req.URL, Sections: sections}
	go s.runner.Run(context.Background(), runID, doc)

	s.log.Info("run started", "run", runID, "sections", len(sections))
	respondJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) resolveSections(req RunRequest) ([]models.Section, error) {
	switch {
	case len(req.Sections) > 0:
		return sectionsource.Normalize(req.Sections), nil
	case req.Markdown != "":
		return sectionsource.SplitMarkdown([]byte(req.Markdown)), nil
	case req.PDFBase64 != "":
		data, err := base64.StdEncoding.DecodeString(req.PDFBase64)
		if err != nil {
			return nil, err
		}
		return sectionsource.FromPDF(data)
	}
	return nil, nil
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	stream, ok := s.hub.Lookup(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-stream.Events():
			if !open {
				s.hub.Drop(id)
				return
			}
			if err := enc.Encode(ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
