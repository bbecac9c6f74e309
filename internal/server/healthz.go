package server

import "net/http"

type healthResponse struct {
	Healthy bool   `json:"healthy"`
	Version string `json:"version"`
}

// HandleHealthz returns the GET /api/healthz liveness handler. It reads no
// request body and touches no external store.
func HandleHealthz(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		writeJSON(w, http.StatusOK, healthResponse{Healthy: true, Version: version})
	}
}
