package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/threatmap/internal/apperr"
	"github.com/starford/threatmap/internal/models"
)

// Workspace handles GET /api/workspace.
//
//	@Summary		Get the working session
//	@Tags			workspace
//	@Produce		json
//	@Success		200	{object}	session.State
//	@Router			/workspace [get]
func (h *Handler) Workspace(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Workspace())
}

// ResetWorkspace handles POST /api/workspace/reset.
func (h *Handler) ResetWorkspace(w http.ResponseWriter, _ *http.Request) {
	h.svc.ResetToDefault()
	writeJSON(w, http.StatusOK, h.svc.Workspace())
}

// SelectThreat handles PUT /api/workspace/threats/{id}.
func (h *Handler) SelectThreat(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.SelectThreat(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "select threat", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// DeselectThreat handles DELETE /api/workspace/threats/{id}. The response
// lists the mitigations deselected along with the threat.
func (h *Handler) DeselectThreat(w http.ResponseWriter, r *http.Request) {
	removed := h.svc.DeselectThreat(chi.URLParam(r, "id"))
	if removed == nil {
		removed = []string{}
	}
	writeJSON(w, http.StatusOK, SelectionResponse{Removed: removed})
}

// SelectMitigation handles PUT /api/workspace/mitigations/{id}.
func (h *Handler) SelectMitigation(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.SelectMitigation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "select mitigation", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// DeselectMitigation handles DELETE /api/workspace/mitigations/{id}.
func (h *Handler) DeselectMitigation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removed := []string{}
	if h.svc.DeselectMitigation(id) {
		removed = append(removed, id)
	}
	writeJSON(w, http.StatusOK, SelectionResponse{Removed: removed})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the render model of the architecture
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	graph.RenderModel
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Layout())
}

// AddInteraction handles POST /api/interactions.
func (h *Handler) AddInteraction(w http.ResponseWriter, r *http.Request) {
	var in models.Interaction
	if !readJSON(w, r, &in) {
		return
	}
	if err := h.svc.AddInteraction(in); err != nil {
		writeError(w, "add interaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.svc.Layout())
}

// RemoveInteraction handles DELETE /api/interactions/{index}.
func (h *Handler) RemoveInteraction(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, "remove interaction", apperr.Invalid("index", "must be an integer"))
		return
	}
	if err := h.svc.RemoveInteraction(index); err != nil {
		writeError(w, "remove interaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PutDomain handles PUT /api/domains/{name}.
func (h *Handler) PutDomain(w http.ResponseWriter, r *http.Request) {
	var d models.Domain
	if !readJSON(w, r, &d) {
		return
	}
	if err := h.svc.UpsertDomain(chi.URLParam(r, "name"), d); err != nil {
		writeError(w, "save domain", err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Layout())
}

// DeleteDomain handles DELETE /api/domains/{name}. Interactions that name
// the domain are kept and skipped by the layout.
func (h *Handler) DeleteDomain(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveDomain(chi.URLParam(r, "name")); err != nil {
		writeError(w, "delete domain", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Analysis handles GET /api/analysis.
func (h *Handler) Analysis(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Analyze())
}

// Overview handles GET /api/overview.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.svc.Overview(r.Context())
	if err != nil {
		writeError(w, "overview", err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// ListIterations handles GET /api/iterations.
func (h *Handler) ListIterations(w http.ResponseWriter, r *http.Request) {
	its, err := h.svc.ListIterations(r.Context())
	if err != nil {
		writeError(w, "list iterations", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"iterations": its,
		"current":    h.svc.CurrentIteration(),
	})
}

// SaveIteration handles POST /api/iterations.
//
//	@Summary		Save the working session as a named iteration
//	@Tags			iterations
//	@Accept			json
//	@Param			body	body	IterationRequest	true	"Iteration name and description"
//	@Success		201
//	@Failure		422	{object}	errResponse
//	@Failure		500	{object}	errResponse
//	@Router			/iterations [post]
func (h *Handler) SaveIteration(w http.ResponseWriter, r *http.Request) {
	var req IterationRequest
	if !readJSON(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if err := h.svc.SaveCurrentAsIteration(r.Context(), name, req.Description); err != nil {
		writeError(w, "save iteration", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": name})
}

// LoadIteration handles POST /api/iterations/{name}/load.
func (h *Handler) LoadIteration(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.LoadIterationByName(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, "load iteration", err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Workspace())
}
