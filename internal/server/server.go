// Package server exposes the tracker over HTTP. It is a thin layer:
// request decoding, tenant-header plumbing and error mapping; every
// decision lives in the usecase and domain layers.
package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"capatrack/internal/usecase/tracker"
)

const tenantHeader = "X-Tenant-ID"

type Server struct {
	svc *tracker.Service
}

// New returns the HTTP handler for the tracker API.
func New(svc *tracker.Service) http.Handler {
	s := &Server{svc: svc}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)

	router.Get("/healthz", s.handleHealth)

	router.Route("/v1", func(r chi.Router) {
		r.Use(requireTenant)

		r.Route("/findings", func(r chi.Router) {
			r.Get("/", s.handleListFindings)
			r.Post("/", s.handleCreateFinding)
			r.Get("/{findingID}", s.handleGetFinding)
			r.Post("/{findingID}/transition", s.handleFindingTransition)
			r.Get("/{findingID}/transitions", s.handleFindingAllowedNext)
			r.Get("/{findingID}/history", s.handleFindingHistory)
		})

		r.Route("/capas", func(r chi.Router) {
			r.Get("/", s.handleListCapas)
			r.Post("/", s.handleCreateCapa)
			r.Get("/{capaID}", s.handleGetCapa)
			r.Post("/{capaID}/transition", s.handleCapaTransition)
			r.Get("/{capaID}/transitions", s.handleCapaAllowedNext)
			r.Get("/{capaID}/history", s.handleCapaHistory)
			r.Post("/{capaID}/tasks", s.handleAddTask)
			r.Post("/{capaID}/tasks/{taskID}/status", s.handleSetTaskStatus)
		})

		r.Get("/history/export", s.handleExportHistory)
	})

	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireTenant rejects requests without a tenant header; everything
// under /v1 is tenant-scoped.
func requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(r.Header.Get(tenantHeader)) == "" {
			writeError(w, http.StatusBadRequest, "missing_tenant", tenantHeader+" header is required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tenantID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(tenantHeader))
}
