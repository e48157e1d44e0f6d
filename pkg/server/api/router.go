package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lockbook/lockbook-core/internal/logger"
	"github.com/lockbook/lockbook-core/pkg/server/api/auth"
)

// NewRouter wires the sync protocol's seven endpoints plus, when cfg.Admin
// is configured, the operator-facing admin API behind a JWT session.
//
// Routes:
//   - GET  /health                unauthenticated liveness probe
//   - POST /new-account           envelope-authenticated
//   - POST /get-updates           envelope-authenticated
//   - POST /upsert                envelope-authenticated
//   - POST /change-doc            envelope-authenticated
//   - POST /get-doc               envelope-authenticated
//   - POST /get-usage             envelope-authenticated
//   - POST /get-public-key        envelope-authenticated
//   - POST /admin/login           admin credential exchange
//   - POST /admin/refresh         admin session refresh
//   - GET  /admin/me              JWT-authenticated
//   - GET  /admin/accounts        JWT-authenticated
func NewRouter(svc *Service, adminSvc *adminService) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Post("/new-account", svc.handleNewAccount)
	r.Post("/get-updates", svc.handleGetUpdates)
	r.Post("/upsert", svc.handleUpsert)
	r.Post("/change-doc", svc.handleChangeDoc)
	r.Post("/get-doc", svc.handleGetDoc)
	r.Post("/get-usage", svc.handleGetUsage)
	r.Post("/get-public-key", svc.handleGetPublicKey)

	if adminSvc != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", adminSvc.handleLogin)
			r.Post("/refresh", adminSvc.handleRefresh)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin(adminSvc.jwt))
				r.Get("/me", adminSvc.handleMe)
				r.Get("/accounts", adminSvc.handleListAccounts)
			})
		})
	}

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("server request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
