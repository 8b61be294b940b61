// Package api implements the threatmap REST API using chi.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/threatmap/internal/modelservice"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(svc *modelservice.Service, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	// Records.
	r.Get("/threats", h.ListThreats)
	r.Get("/threats/{id}", h.GetThreat)
	r.Put("/threats/{id}", h.PutThreat)
	r.Delete("/threats/{id}", h.DeleteThreat)
	r.Get("/threats/{id}/mitigations", h.ListThreatMitigations)
	r.Get("/mitigations", h.ListMitigations)
	r.Get("/mitigations/{id}", h.GetMitigation)
	r.Put("/mitigations/{id}", h.PutMitigation)
	r.Delete("/mitigations/{id}", h.DeleteMitigation)
	r.Get("/subdomains", h.ListSubdomains)
	r.Put("/subdomains/{id}", h.PutSubdomain)

	// Working session.
	r.Get("/workspace", h.Workspace)
	r.Post("/workspace/reset", h.ResetWorkspace)
	r.Put("/workspace/threats/{id}", h.SelectThreat)
	r.Delete("/workspace/threats/{id}", h.DeselectThreat)
	r.Put("/workspace/mitigations/{id}", h.SelectMitigation)
	r.Delete("/workspace/mitigations/{id}", h.DeselectMitigation)

	// Architecture graph.
	r.Get("/graph", h.Graph)
	r.Post("/interactions", h.AddInteraction)
	r.Delete("/interactions/{index}", h.RemoveInteraction)
	r.Put("/domains/{name}", h.PutDomain)
	r.Delete("/domains/{name}", h.DeleteDomain)

	// Analysis.
	r.Get("/analysis", h.Analysis)
	r.Get("/overview", h.Overview)

	// Iterations.
	r.Get("/iterations", h.ListIterations)
	r.Post("/iterations", h.SaveIteration)
	r.Post("/iterations/{name}/load", h.LoadIteration)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
