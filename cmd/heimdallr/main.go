package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alexjbarnes/heimdallr/internal/config"
	"github.com/alexjbarnes/heimdallr/internal/logging"
	"github.com/alexjbarnes/heimdallr/internal/server"
	"github.com/alexjbarnes/heimdallr/internal/store"
	"github.com/alexjbarnes/heimdallr/internal/token"
)

var Version = "dev"

func main() {
	// Handle issue-token subcommand before config loading.
	if len(os.Args) > 1 && os.Args[1] == "issue-token" {
		if err := issueToken(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)
	logger.Info("heimdallr starting",
		slog.String("version", Version),
		slog.String("listen", cfg.ListenAddr),
		slog.Bool("tls", cfg.TLSEnabled()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.New(ctx, cfg.DatabaseURL(), cfg.DatabasePoolSize,
		logger.With(slog.String("component", "store")))
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	verifier := token.NewVerifier([]byte(cfg.JWTSecret), cfg.Audiences,
		logger.With(slog.String("component", "verifier")))

	mux := server.NewMux(server.MuxConfig{
		Authenticator: verifier,
		Logger:        logger,
		Version:       Version,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, server.RunConfig{
			Addr:    cfg.ListenAddr,
			TLSCert: cfg.TLSCert,
			TLSKey:  cfg.TLSKey,
			Handler: mux,
			Logger:  logger,
		})
	})

	return g.Wait()
}

// issueToken mints and persists a token for a user, printing the record id
// and the signed JWT.
func issueToken(args []string) error {
	fs := flag.NewFlagSet("issue-token", flag.ExitOnError)
	userFlag := fs.String("user", "", "owning user id (uuid, required)")
	scopesFlag := fs.String("scopes", "", "comma-separated scope list")
	ttlFlag := fs.Duration("ttl", 0, "validity window (defaults to HEIMDALLR_TOKEN_TTL)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	userID, err := uuid.Parse(*userFlag)
	if err != nil {
		return fmt.Errorf("parsing -user: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)

	ttl := *ttlFlag
	if ttl <= 0 {
		ttl = cfg.TokenTTL
	}

	var scopes []string
	if *scopesFlag != "" {
		scopes = strings.Split(*scopesFlag, ",")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.New(ctx, cfg.DatabaseURL(), cfg.DatabasePoolSize,
		logger.With(slog.String("component", "store")))
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	issuer := token.NewIssuer(db, token.IssuerConfig{Secret: []byte(cfg.JWTSecret)})

	tok, err := issuer.Issue(ctx, userID, scopes, time.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}

	out, err := json.MarshalIndent(map[string]any{
		"id":         tok.ID,
		"user_id":    tok.UserID,
		"expires_at": tok.ExpiresAt.Format(time.RFC3339),
		"token":      tok.Signed,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}

	fmt.Println(string(out))

	return nil
}
