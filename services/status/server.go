// Package status exposes the sync artifacts over a small read-only HTTP
// surface: collection summaries, health probes, and Prometheus metrics. It
// is an operational endpoint, not a gallery front-end; it serves the same
// JSON documents the rendering layer consumes from disk.
package status

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const summaryFileName = "summary.json"

// Server serves collection summaries from the local content store.
type Server struct {
	storeRoot   string
	collections map[string]struct{}
	keys        []string
	logger      *log.Logger
}

// NewServer creates a Server rooted at storeRoot, restricted to the given
// collection keys. Requests for any other key are rejected, which also
// keeps path traversal out of the URL namespace.
func NewServer(storeRoot string, keys []string, logger *log.Logger) (*Server, error) {
	if storeRoot == "" {
		return nil, errors.New("store root is required")
	}
	if len(keys) == 0 {
		return nil, errors.New("at least one collection key is required")
	}

	collections := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		collections[key] = struct{}{}
	}

	return &Server{
		storeRoot:   storeRoot,
		collections: collections,
		keys:        keys,
		logger:      logger,
	}, nil
}

// Router builds the HTTP router. middleware, when non-nil, wraps every
// route; the caller passes the telemetry middleware here.
func (s *Server) Router(middleware func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	if middleware != nil {
		r.Use(middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Method("GET", "/metrics", promhttp.Handler())

	r.Get("/collections", s.handleListCollections)
	r.Get("/collections/{key}/summary", s.handleSummary)

	return r
}

type collectionStatus struct {
	Key        string `json:"key"`
	HasSummary bool   `json:"has_summary"`
}

func (s *Server) handleListCollections(w http.ResponseWriter, _ *http.Request) {
	statuses := make([]collectionStatus, 0, len(s.keys))
	for _, key := range s.keys {
		_, err := os.Stat(s.summaryPath(key))
		statuses = append(statuses, collectionStatus{Key: key, HasSummary: err == nil})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statuses); err != nil && s.logger != nil {
		s.logger.Printf("ERROR: encode collections response: %v", err)
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if _, ok := s.collections[key]; !ok {
		http.Error(w, "unknown collection", http.StatusNotFound)
		return
	}

	data, err := os.ReadFile(s.summaryPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "summary not generated yet", http.StatusNotFound)
			return
		}
		if s.logger != nil {
			s.logger.Printf("ERROR: read summary for %s: %v", key, err)
		}
		http.Error(w, "failed to read summary", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) summaryPath(key string) string {
	return filepath.Join(s.storeRoot, key, summaryFileName)
}
