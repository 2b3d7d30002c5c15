package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/pseudodev/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Read-only endpoints (no auth required)
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/audit", s.handleListAudit)
		r.Get("/devices", s.handleListDevices)
		r.Get("/devices/{handle}", s.handleGetDevice)

		// Operator endpoints
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.With(requirePermission(auth.PermDeviceProbe)).Post("/devices", s.handleProbeDevice)
			r.With(requirePermission(auth.PermDeviceProbe)).Delete("/devices/{handle}", s.handleRemoveDevice)
			r.With(requirePermission(auth.PermEventStream)).Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"attached": s.registry.Count(),
		"size":     s.registry.Size(),
	})
}
