// Package server exposes the question store over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/taru-edu/taru/internal/auth"
	"github.com/taru-edu/taru/internal/questiongen"
	"github.com/taru-edu/taru/internal/questionstore"
)

// Config holds HTTP listener settings.
type Config struct {
	Addr            string
	CORSOrigin      string
	ShutdownTimeout time.Duration
}

// Server routes API requests to the question store.
type Server struct {
	store  *questionstore.Service
	gen    *questiongen.Service
	issuer *auth.Issuer
	cfg    Config
	logger *slog.Logger
	valid  *requestValidator

	newRequestID func() string
}

func New(store *questionstore.Service, gen *questiongen.Service, issuer *auth.Issuer, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	return &Server{
		store:        store,
		gen:          gen,
		issuer:       issuer,
		cfg:          cfg,
		logger:       logger,
		valid:        newRequestValidator(),
		newRequestID: uuid.NewString,
	}
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server exited")
	return nil
}
