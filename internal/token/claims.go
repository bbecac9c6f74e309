// Package token implements the bearer token model: the JWT claims shape,
// signature verification against the webhook contract, and issuance of
// persisted token records.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultSubject is the subject placed in issued claims unless the
	// issuer is configured otherwise.
	DefaultSubject = "auth"

	// DefaultIssuer identifies this service in the iss claim.
	DefaultIssuer = "heimdallr"
)

// Claims is the JWT payload. Timestamps are epoch seconds. The jti doubles
// as the persisted record id; user_id is an optional back-reference to the
// owning identity.
type Claims struct {
	Subject   string     `json:"sub"`
	Issuer    string     `json:"iss"`
	IssuedAt  int64      `json:"iat"`
	ExpiresAt int64      `json:"exp"`
	NotBefore int64      `json:"nbf"`
	ID        uuid.UUID  `json:"jti"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	Scopes    []string   `json:"scopes"`
}

// Validate checks the claim window invariants: exp must come after iat,
// and nbf must not come after iat.
func (c Claims) Validate() error {
	if c.ExpiresAt <= c.IssuedAt {
		return fmt.Errorf("claims expire at %d, on or before issuance at %d", c.ExpiresAt, c.IssuedAt)
	}

	if c.NotBefore > c.IssuedAt {
		return fmt.Errorf("claims not valid before %d, after issuance at %d", c.NotBefore, c.IssuedAt)
	}

	return nil
}

// The jwt.Claims interface, so Claims can be parsed and signed directly.

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	return numericDate(c.ExpiresAt), nil
}

func (c Claims) GetIssuedAt() (*jwt.NumericDate, error) {
	return numericDate(c.IssuedAt), nil
}

func (c Claims) GetNotBefore() (*jwt.NumericDate, error) {
	return numericDate(c.NotBefore), nil
}

func (c Claims) GetIssuer() (string, error) {
	return c.Issuer, nil
}

func (c Claims) GetSubject() (string, error) {
	return c.Subject, nil
}

func (c Claims) GetAudience() (jwt.ClaimStrings, error) {
	return nil, nil
}

func numericDate(epoch int64) *jwt.NumericDate {
	if epoch == 0 {
		return nil
	}

	return jwt.NewNumericDate(time.Unix(epoch, 0))
}
