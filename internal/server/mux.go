// Package server provides HTTP construction for the heimdallr webhook:
// route wiring, the TokenReview handler, the liveness probe, and the
// listener lifecycle.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"

	"golang.org/x/sync/semaphore"

	"github.com/alexjbarnes/heimdallr/internal/kubernetes/v1beta1"
)

// Authenticator produces a decision for a bearer token. It never fails;
// every problem resolves to a denied status.
type Authenticator interface {
	Authenticate(token string) *v1beta1.TokenReviewStatus
}

// MuxConfig holds dependencies for building the HTTP mux.
type MuxConfig struct {
	Authenticator Authenticator
	Logger        *slog.Logger
	Version       string

	// MaxVerifications bounds concurrent signature verification.
	// Defaults to GOMAXPROCS when zero.
	MaxVerifications int64
}

// NewMux builds the webhook mux: the TokenReview endpoint and the liveness
// probe.
func NewMux(cfg MuxConfig) *http.ServeMux {
	limit := cfg.MaxVerifications
	if limit <= 0 {
		limit = int64(runtime.GOMAXPROCS(0))
	}

	sem := semaphore.NewWeighted(limit)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/authenticate", HandleAuthenticate(cfg.Authenticator, sem, cfg.Logger))
	mux.HandleFunc("/api/healthz", HandleHealthz(cfg.Version))

	return mux
}

// errorResponse is the body returned for envelope-level failures.
type errorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: true, Message: message})
}
