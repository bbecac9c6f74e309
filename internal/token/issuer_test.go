package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore records inserts and optionally fails them.
type fakeStore struct {
	inserted []*Token
	err      error
}

func (f *fakeStore) InsertToken(_ context.Context, tok *Token) error {
	if f.err != nil {
		return f.err
	}

	f.inserted = append(f.inserted, tok)

	return nil
}

func testIssuer(t *testing.T, store TokenStore) *Issuer {
	t.Helper()
	return NewIssuer(store, IssuerConfig{Secret: testSecret})
}

func TestIssue_BuildsClaims(t *testing.T) {
	store := &fakeStore{}
	issuer := testIssuer(t, store)
	userID := uuid.New()
	expiresAt := time.Now().Add(2 * time.Hour)

	tok, err := issuer.Issue(context.Background(), userID, []string{"read"}, expiresAt)
	require.NoError(t, err)

	assert.Equal(t, tok.ID, tok.Claims.ID)
	assert.Equal(t, userID, tok.UserID)
	require.NotNil(t, tok.Claims.UserID)
	assert.Equal(t, userID, *tok.Claims.UserID)
	assert.Equal(t, DefaultSubject, tok.Claims.Subject)
	assert.Equal(t, DefaultIssuer, tok.Claims.Issuer)
	assert.Equal(t, tok.Claims.IssuedAt, tok.Claims.NotBefore)
	assert.Equal(t, expiresAt.Unix(), tok.Claims.ExpiresAt)
	assert.Equal(t, expiresAt.Unix(), tok.ExpiresAt.Unix())
	assert.Equal(t, []string{"read"}, tok.Claims.Scopes)
	assert.NotEmpty(t, tok.Signed)

	require.Len(t, store.inserted, 1)
	assert.Same(t, tok, store.inserted[0])
}

func TestIssue_SubjectOverride(t *testing.T) {
	issuer := NewIssuer(&fakeStore{}, IssuerConfig{Secret: testSecret, Subject: "ci-bot"})

	tok, err := issuer.Issue(context.Background(), uuid.New(), nil, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "ci-bot", tok.Claims.Subject)
}

func TestIssue_SignedTokenVerifies(t *testing.T) {
	issuer := testIssuer(t, &fakeStore{})

	tok, err := issuer.Issue(context.Background(), uuid.New(), []string{"read"}, time.Now().Add(time.Hour))
	require.NoError(t, err)

	v := NewVerifier(testSecret, nil, testLogger())
	status := v.Authenticate(tok.Signed)
	require.NotNil(t, status.Authenticated)
	assert.True(t, *status.Authenticated)
	assert.Equal(t, DefaultSubject, status.User.Username)
	assert.Equal(t, tok.UserID.String(), status.User.UID)
}

func TestIssue_UniqueIDs(t *testing.T) {
	store := &fakeStore{}
	issuer := testIssuer(t, store)
	userID := uuid.New()
	expiresAt := time.Now().Add(time.Hour)

	seen := make(map[uuid.UUID]struct{})

	for i := 0; i < 1000; i++ {
		tok, err := issuer.Issue(context.Background(), userID, nil, expiresAt)
		require.NoError(t, err)

		_, dup := seen[tok.ID]
		require.False(t, dup, "generated a colliding token id")
		seen[tok.ID] = struct{}{}
	}
}

func TestIssue_ExpiryInThePast(t *testing.T) {
	store := &fakeStore{}
	issuer := testIssuer(t, store)

	_, err := issuer.Issue(context.Background(), uuid.New(), nil, time.Now().Add(-time.Minute))
	require.Error(t, err)
	assert.Empty(t, store.inserted)
}

func TestIssue_StoreError(t *testing.T) {
	storeErr := errors.New("connection refused")
	issuer := testIssuer(t, &fakeStore{err: storeErr})

	_, err := issuer.Issue(context.Background(), uuid.New(), nil, time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
}
