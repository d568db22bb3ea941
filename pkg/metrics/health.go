package metrics

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// HealthServer serves the observability HTTP endpoints: /health for
// liveness and /metrics for Prometheus scraping.
type HealthServer struct {
	mux     *http.ServeMux
	version string
}

// NewHealthServer creates the observability endpoint handler
func NewHealthServer(version string) *HealthServer {
	hs := &HealthServer{
		mux:     http.NewServeMux(),
		version: version,
	}
	hs.mux.HandleFunc("/health", hs.healthHandler)
	hs.mux.Handle("/metrics", Handler())
	return hs
}

// Start starts the observability HTTP server. Blocks until the listener fails.
func (hs *HealthServer) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
