package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/threatmap/internal/models"
	"github.com/starford/threatmap/internal/modelservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *modelservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *modelservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListThreats handles GET /api/threats.
//
//	@Summary		List threats ordered by id
//	@Tags			threats
//	@Produce		json
//	@Success		200	{array}	models.Threat
//	@Router			/threats [get]
func (h *Handler) ListThreats(w http.ResponseWriter, r *http.Request) {
	threats, err := h.svc.ListThreats(r.Context())
	if err != nil {
		writeError(w, "list threats", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"threats": threats})
}

// GetThreat handles GET /api/threats/{id}.
//
//	@Summary		Get a threat
//	@Tags			threats
//	@Produce		json
//	@Param			id	path		string	true	"Threat id"
//	@Success		200	{object}	models.Threat
//	@Failure		404	{object}	errResponse
//	@Router			/threats/{id} [get]
func (h *Handler) GetThreat(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetThreat(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get threat", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// PutThreat handles PUT /api/threats/{id}.
//
//	@Summary		Create or replace a threat
//	@Tags			threats
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Threat id"
//	@Param			body	body		ThreatRequest	true	"Threat fields"
//	@Success		200		{object}	models.Threat
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Router			/threats/{id} [put]
func (h *Handler) PutThreat(w http.ResponseWriter, r *http.Request) {
	var req ThreatRequest
	if !readJSON(w, r, &req) {
		return
	}
	t, err := h.svc.SaveThreat(r.Context(), models.Threat{
		ID:          chi.URLParam(r, "id"),
		Name:        req.Name,
		Description: req.Description,
		Severity:    req.Severity,
		Domain:      req.Domain,
	})
	if err != nil {
		writeError(w, "save threat", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// DeleteThreat handles DELETE /api/threats/{id}. The threat's mitigations
// are deleted with it.
func (h *Handler) DeleteThreat(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteThreat(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete threat", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListThreatMitigations handles GET /api/threats/{id}/mitigations.
func (h *Handler) ListThreatMitigations(w http.ResponseWriter, r *http.Request) {
	ms, err := h.svc.ListMitigations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "list mitigations", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mitigations": ms})
}

// ListMitigations handles GET /api/mitigations.
func (h *Handler) ListMitigations(w http.ResponseWriter, r *http.Request) {
	ms, err := h.svc.ListAllMitigations(r.Context())
	if err != nil {
		writeError(w, "list all mitigations", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mitigations": ms})
}

// GetMitigation handles GET /api/mitigations/{id}.
func (h *Handler) GetMitigation(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.GetMitigation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get mitigation", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// PutMitigation handles PUT /api/mitigations/{id}.
//
//	@Summary		Create or replace a mitigation
//	@Tags			mitigations
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Mitigation id"
//	@Param			body	body		MitigationRequest	true	"Mitigation fields"
//	@Success		200		{object}	models.Mitigation
//	@Failure		422		{object}	errResponse
//	@Router			/mitigations/{id} [put]
func (h *Handler) PutMitigation(w http.ResponseWriter, r *http.Request) {
	var req MitigationRequest
	if !readJSON(w, r, &req) {
		return
	}
	m, err := h.svc.SaveMitigation(r.Context(), models.Mitigation{
		ID:          chi.URLParam(r, "id"),
		ThreatID:    req.ThreatID,
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Domain:      req.Domain,
	})
	if err != nil {
		writeError(w, "save mitigation", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// DeleteMitigation handles DELETE /api/mitigations/{id}.
func (h *Handler) DeleteMitigation(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteMitigation(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete mitigation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSubdomains handles GET /api/subdomains?parent=.
func (h *Handler) ListSubdomains(w http.ResponseWriter, r *http.Request) {
	sds, err := h.svc.ListSubdomains(r.Context(), r.URL.Query().Get("parent"))
	if err != nil {
		writeError(w, "list subdomains", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subdomains": sds})
}

// PutSubdomain handles PUT /api/subdomains/{id}.
func (h *Handler) PutSubdomain(w http.ResponseWriter, r *http.Request) {
	var req SubdomainRequest
	if !readJSON(w, r, &req) {
		return
	}
	sd, err := h.svc.SaveSubdomain(r.Context(), models.Subdomain{
		ID:           chi.URLParam(r, "id"),
		ParentDomain: req.ParentDomain,
		Name:         req.Name,
		Description:  req.Description,
	})
	if err != nil {
		writeError(w, "save subdomain", err)
		return
	}
	writeJSON(w, http.StatusOK, sd)
}
