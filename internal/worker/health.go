package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Pinger is anything whose connectivity can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer serves /healthz for the worker process.
// It reports healthy only when both the broker and the result backend answer.
type HealthServer struct {
	server  *http.Server
	broker  Pinger
	backend Pinger
	logger  *slog.Logger
}

// HealthResponse represents the JSON response from the /healthz endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// NewHealthServer creates a health server listening on all interfaces at port.
func NewHealthServer(broker, backend Pinger, port int, logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	hs := &HealthServer{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		broker:  broker,
		backend: backend,
		logger:  logger,
	}

	mux.HandleFunc("/healthz", hs.handleHealthz)

	return hs
}

// Start binds the listening socket and serves in a background goroutine.
// Returns an error if the port cannot be bound.
func (hs *HealthServer) Start() error {
	ln, err := net.Listen("tcp", hs.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", hs.server.Addr, err)
	}

	go func() {
		hs.logger.Debug("health server starting", "addr", ln.Addr().String())
		if err := hs.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			hs.logger.Error("health server error", "error", err)
		}
		hs.logger.Debug("health server stopped")
	}()

	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (hs *HealthServer) Shutdown(ctx context.Context) error {
	return hs.server.Shutdown(ctx)
}

// handleHealthz returns 200 {"status":"healthy"} or 503 with the failing side.
func (hs *HealthServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{Status: "healthy"}
	statusCode := http.StatusOK

	if err := hs.broker.Ping(ctx); err != nil {
		response = HealthResponse{Status: "unhealthy", Error: fmt.Sprintf("broker: %v", err)}
		statusCode = http.StatusServiceUnavailable
	} else if err := hs.backend.Ping(ctx); err != nil {
		response = HealthResponse{Status: "unhealthy", Error: fmt.Sprintf("result backend: %v", err)}
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		hs.logger.Error("failed to encode health response", "error", err)
	}
}
