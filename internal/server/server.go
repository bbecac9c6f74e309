package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// RunConfig holds the listener settings for Run.
type RunConfig struct {
	Addr    string
	TLSCert string
	TLSKey  string
	Handler http.Handler
	Logger  *slog.Logger
}

// Run serves cfg.Handler on cfg.Addr until ctx is cancelled, then shuts
// down gracefully. TLS is used when a certificate pair is configured.
func Run(ctx context.Context, cfg RunConfig) error {
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      cfg.Handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		cfg.Logger.Info("shutting down webhook server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	tls := cfg.TLSCert != "" && cfg.TLSKey != ""
	cfg.Logger.Info("starting webhook server",
		slog.String("listen", cfg.Addr),
		slog.Bool("tls", tls),
	)

	var err error
	if tls {
		err = server.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
	} else {
		err = server.ListenAndServe()
	}

	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("webhook server error: %w", err)
	}

	return nil
}
