package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexjbarnes/heimdallr/internal/kubernetes/v1beta1"
	"github.com/alexjbarnes/heimdallr/internal/token"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMux(t *testing.T) *http.ServeMux {
	t.Helper()

	return NewMux(MuxConfig{
		Authenticator: token.NewVerifier(testSecret, nil, testLogger()),
		Logger:        testLogger(),
		Version:       "test",
	})
}

// signedToken mints a valid HS256 token for the test secret.
func signedToken(t *testing.T) string {
	t.Helper()

	now := time.Now()
	userID := uuid.New()
	claims := token.Claims{
		Subject:   "svc",
		Issuer:    token.DefaultIssuer,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
		NotBefore: now.Unix(),
		ID:        uuid.New(),
		UserID:    &userID,
		Scopes:    []string{"read"},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	return signed
}

func postReview(t *testing.T, mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/authenticate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	return rec
}

// --- /api/authenticate ---

func TestAuthenticate_ValidToken(t *testing.T) {
	mux := testMux(t)
	body := `{"apiVersion":"authentication.k8s.io/v1beta1","kind":"TokenReview","spec":{"token":"` +
		signedToken(t) + `"}}`

	rec := postReview(t, mux, body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var review v1beta1.TokenReview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &review))
	require.NotNil(t, review.Status)
	require.NotNil(t, review.Status.Authenticated)
	assert.True(t, *review.Status.Authenticated)
	require.NotNil(t, review.Status.User)
	assert.Equal(t, "svc", review.Status.User.Username)
}

func TestAuthenticate_GarbageToken(t *testing.T) {
	mux := testMux(t)
	body := `{"apiVersion":"authentication.k8s.io/v1beta1","kind":"TokenReview","spec":{"token":"not-a-jwt"}}`

	rec := postReview(t, mux, body)
	// Engine failures are not transport failures: still 200, but denied.
	require.Equal(t, http.StatusOK, rec.Code)

	var review v1beta1.TokenReview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &review))
	require.NotNil(t, review.Status)
	require.NotNil(t, review.Status.Authenticated)
	assert.False(t, *review.Status.Authenticated)
	assert.Nil(t, review.Status.User)
}

func TestAuthenticate_MissingKind(t *testing.T) {
	mux := testMux(t)
	body := `{"apiVersion":"authentication.k8s.io/v1beta1","spec":{"token":"abc"}}`

	rec := postReview(t, mux, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["error"])
	assert.Contains(t, resp["message"], "kind")
}

func TestAuthenticate_WrongAPIVersion(t *testing.T) {
	mux := testMux(t)
	body := `{"apiVersion":"authentication.k8s.io/v1","kind":"TokenReview","spec":{"token":"abc"}}`

	rec := postReview(t, mux, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "authentication.k8s.io/v1beta1")
}

func TestAuthenticate_UnknownField(t *testing.T) {
	mux := testMux(t)
	body := `{"apiVersion":"authentication.k8s.io/v1beta1","kind":"TokenReview","spec":{"token":"abc"},"bogus":1}`

	rec := postReview(t, mux, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "bogus")
}

func TestAuthenticate_NotJSON(t *testing.T) {
	mux := testMux(t)

	rec := postReview(t, mux, "not json at all")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
}

func TestAuthenticate_WrongMethod(t *testing.T) {
	mux := testMux(t)
	req := httptest.NewRequest(http.MethodGet, "/api/authenticate", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// --- /api/healthz ---

func TestHealthz(t *testing.T) {
	mux := testMux(t)
	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Healthy)
	assert.Equal(t, "test", resp.Version)
}

func TestHealthz_WrongMethod(t *testing.T) {
	mux := testMux(t)
	req := httptest.NewRequest(http.MethodPost, "/api/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
