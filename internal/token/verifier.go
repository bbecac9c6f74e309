package token

import (
	"log/slog"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/alexjbarnes/heimdallr/internal/kubernetes/v1beta1"
)

// Verifier turns a raw bearer token into a TokenReviewStatus. Every failure
// mode resolves to a denied status rather than an error: the webhook
// contract has no error channel that Kubernetes could distinguish from a
// deny, so the engine fails closed and keeps the reason in the logs.
//
// A Verifier performs no I/O and is safe for concurrent use.
type Verifier struct {
	secret    []byte
	audiences []string
	logger    *slog.Logger
	parser    *jwt.Parser
	now       func() time.Time
}

// NewVerifier creates a Verifier for HS256 tokens signed with secret.
// audiences lists the identifiers reported as compatible on authenticated
// statuses; empty means the server default audience applies.
func NewVerifier(secret []byte, audiences []string, logger *slog.Logger) *Verifier {
	return &Verifier{
		secret:    secret,
		audiences: audiences,
		logger:    logger,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
		now: time.Now,
	}
}

// Authenticate verifies the token's signature and validity window and maps
// its claims to a user. The window is nbf <= now < exp: the not-before
// bound is inclusive, the expiry bound exclusive, so a token expiring at
// the current second is already rejected.
func (v *Verifier) Authenticate(tokenString string) *v1beta1.TokenReviewStatus {
	claims := &Claims{}

	// Temporal checks are done below against the injected clock; the
	// parser only covers structure and signature.
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		v.logger.Warn("token rejected", slog.String("reason", err.Error()))
		return v1beta1.Denied()
	}

	now := v.now().Unix()

	if claims.ExpiresAt == 0 || now >= claims.ExpiresAt {
		v.logger.Warn("token rejected", slog.String("reason", "expired"),
			slog.Int64("exp", claims.ExpiresAt))

		return v1beta1.Denied()
	}

	if now < claims.NotBefore {
		v.logger.Warn("token rejected", slog.String("reason", "not yet valid"),
			slog.Int64("nbf", claims.NotBefore))

		return v1beta1.Denied()
	}

	if claims.Subject == "" {
		v.logger.Warn("token rejected", slog.String("reason", "no subject"))
		return v1beta1.Denied()
	}

	user := v1beta1.UserInfo{
		Username: claims.Subject,
		Groups:   slices.Clone(claims.Scopes),
		Extra: map[string][]string{
			"heimdallr.io/jti": {claims.ID.String()},
		},
	}
	if claims.UserID != nil {
		user.UID = claims.UserID.String()
	}

	return v1beta1.Accepted(user, slices.Clone(v.audiences))
}
