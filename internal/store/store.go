// Package store persists issued token records in Postgres. Claims are kept
// schema-agnostic: they are encoded to a JSON document at this boundary and
// stored in a jsonb column, so claim shape changes never require a
// migration.
package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alexjbarnes/heimdallr/internal/token"
)

//go:embed schema.sql
var schema string

var (
	// ErrDuplicateToken reports a uniqueness violation on the generated
	// token id. With 128-bit random ids this is an internal fault, not a
	// condition to retry.
	ErrDuplicateToken = errors.New("token id already exists")

	// ErrTokenNotFound reports a lookup for an id that was never issued.
	ErrTokenNotFound = errors.New("token not found")
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store is a token store backed by a bounded Postgres connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to Postgres at databaseURL. maxConns bounds the pool when
// positive; zero keeps the pgxpool default.
func New(ctx context.Context, databaseURL string, maxConns int32, logger *slog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}

	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate applies the embedded schema. Statements are idempotent, so
// running at every startup is safe.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	s.logger.Debug("schema applied")

	return nil
}

// InsertToken persists a token record as a single atomic insert.
func (s *Store) InsertToken(ctx context.Context, tok *token.Token) error {
	claims, err := json.Marshal(tok.Claims)
	if err != nil {
		return fmt.Errorf("encoding claims: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO tokens (id, user_id, claims, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		tok.ID, tok.UserID, claims, tok.ExpiresAt, tok.CreatedAt, tok.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateToken, tok.ID)
		}

		return fmt.Errorf("inserting token: %w", err)
	}

	return nil
}

// GetToken reads a token record by id. Authentication does not consult the
// store; this read path exists so revocation checks can be added without a
// schema change.
func (s *Store) GetToken(ctx context.Context, id uuid.UUID) (*token.Token, error) {
	var (
		tok    token.Token
		claims []byte
	)

	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, claims, expires_at, created_at, updated_at
		 FROM tokens WHERE id = $1`,
		id,
	).Scan(&tok.ID, &tok.UserID, &claims, &tok.ExpiresAt, &tok.CreatedAt, &tok.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, id)
		}

		return nil, fmt.Errorf("reading token: %w", err)
	}

	if err := json.Unmarshal(claims, &tok.Claims); err != nil {
		return nil, fmt.Errorf("decoding claims: %w", err)
	}

	return &tok, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
