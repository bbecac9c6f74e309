package token

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token is a persisted issued-token record. ID equals the jti embedded in
// Claims; ExpiresAt is a denormalized copy of the claim expiry for cheap
// expiry queries. Signed carries the compact JWT and is never persisted.
type Token struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Claims    Claims
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	Signed    string
}

// TokenStore persists issued token records. Each insert is independent and
// keyed by a fresh id, so implementations need a single atomic insert and
// no application-level locking.
type TokenStore interface {
	InsertToken(ctx context.Context, tok *Token) error
}

// IssuerConfig configures an Issuer. Subject and Issuer fall back to the
// service defaults when empty.
type IssuerConfig struct {
	Secret  []byte
	Subject string
	Issuer  string
}

// Issuer creates signed tokens and persists their records. Records are
// never updated in place; reissuing means a new record under a new id.
type Issuer struct {
	store   TokenStore
	secret  []byte
	subject string
	issuer  string
	now     func() time.Time
}

// NewIssuer creates an Issuer backed by the given store.
func NewIssuer(store TokenStore, cfg IssuerConfig) *Issuer {
	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}

	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}

	return &Issuer{
		store:   store,
		secret:  cfg.Secret,
		subject: subject,
		issuer:  issuer,
		now:     time.Now,
	}
}

// Issue builds, signs and persists a token for userID expiring at
// expiresAt. The generated id serves as both jti and record key; a
// uniqueness violation on it is an internal fault surfaced from the store,
// not retried here.
func (i *Issuer) Issue(ctx context.Context, userID uuid.UUID, scopes []string, expiresAt time.Time) (*Token, error) {
	now := i.now().UTC().Truncate(time.Second)
	id := uuid.New()

	claims := Claims{
		Subject:   i.subject,
		Issuer:    i.issuer,
		IssuedAt:  now.Unix(),
		ExpiresAt: expiresAt.Unix(),
		NotBefore: now.Unix(),
		ID:        id,
		UserID:    &userID,
		Scopes:    scopes,
	}

	if err := claims.Validate(); err != nil {
		return nil, fmt.Errorf("building claims: %w", err)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}

	tok := &Token{
		ID:        id,
		UserID:    userID,
		Claims:    claims,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
		Signed:    signed,
	}

	if err := i.store.InsertToken(ctx, tok); err != nil {
		return nil, fmt.Errorf("persisting token: %w", err)
	}

	return tok, nil
}
