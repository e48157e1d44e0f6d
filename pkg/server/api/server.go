package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lockbook/lockbook-core/internal/logger"
	"github.com/lockbook/lockbook-core/pkg/server/api/auth"
)

// Server is the reference lockbookd HTTP server: the sync protocol's
// endpoint set plus, optionally, the admin API.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer builds a Server over svc. When cfg.Admin.Enabled(), the admin
// login/refresh/me/accounts routes are mounted behind a JWT issued from
// cfg.Admin's secret; otherwise the admin surface isn't mounted at all.
func NewServer(cfg Config, svc *Service) (*Server, error) {
	cfg.applyDefaults()

	var adminSvc *adminService
	if cfg.Admin.Enabled() {
		jwtSvc, err := auth.NewService(auth.Config{
			Secret:               cfg.Admin.JWTSecret,
			AccessTokenDuration:  cfg.Admin.TokenTTL,
			RefreshTokenDuration: cfg.Admin.RefreshTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("build admin session issuer: %w", err)
		}
		adminSvc = newAdminService(cfg.Admin.Username, cfg.Admin.PasswordHash, jwtSvc, svc.store)
	}

	router := NewRouter(svc, adminSvc)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &Server{server: httpServer, config: cfg}, nil
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("lockbookd listening", "port", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("lockbookd shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("lockbookd server failed: %w", err)
	}
}

// Stop gracefully shuts the server down. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("lockbookd shutdown error: %w", err)
			logger.Error("lockbookd shutdown error", "error", err)
			return
		}
		logger.Info("lockbookd stopped gracefully")
	})
	return shutdownErr
}

// Port returns the TCP port the server listens on.
func (s *Server) Port() int { return s.config.Port }
