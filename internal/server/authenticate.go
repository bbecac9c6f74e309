package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/sync/semaphore"

	"github.com/alexjbarnes/heimdallr/internal/kubernetes/v1beta1"
)

// maxBodyBytes caps the request body. TokenReview payloads are a few
// kilobytes at most.
const maxBodyBytes = 1 << 20

// HandleAuthenticate returns the POST /api/authenticate handler. Only an
// envelope that fails to decode produces a non-200 response; every
// engine-level failure comes back as 200 with a denied status, because the
// webhook contract gives Kubernetes no other error channel.
func HandleAuthenticate(auth Authenticator, sem *semaphore.Weighted, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		defer r.Body.Close()

		var review v1beta1.TokenReview
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&review); err != nil {
			logger.Warn("rejecting malformed token review", slog.String("error", err.Error()))
			writeJSONError(w, http.StatusBadRequest, decodeMessage(err))

			return
		}

		// Verification is CPU-bound; bounding it keeps a burst of slow or
		// malicious tokens from monopolizing the process. Acquisition
		// respects the request context, so a cancelled request abandons
		// the work before it starts.
		if err := sem.Acquire(r.Context(), 1); err != nil {
			return
		}
		review.Status = auth.Authenticate(review.Spec.Token)
		sem.Release(1)

		writeJSON(w, http.StatusOK, review)
	}
}

// decodeMessage maps a decode failure to a client-facing message. The
// codec's typed errors are safe to echo; anything else gets a generic
// message.
func decodeMessage(err error) string {
	var (
		missing    *v1beta1.MissingFieldError
		unknown    *v1beta1.UnknownFieldError
		apiVersion *v1beta1.InvalidAPIVersionError
		kind       *v1beta1.InvalidKindError
	)

	switch {
	case errors.As(err, &missing),
		errors.As(err, &unknown),
		errors.As(err, &apiVersion),
		errors.As(err, &kind):
		return err.Error()
	default:
		return "invalid request body"
	}
}
