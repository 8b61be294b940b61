package api

import (
	"github.com/starford/threatmap/internal/models"
)

// ThreatRequest is the request body for saving a threat. The id comes from
// the path.
type ThreatRequest struct {
	Name        string          `json:"name" example:"Credential stuffing" validate:"required"`
	Description string          `json:"description" example:"Reuse of leaked passwords"`
	Severity    models.Severity `json:"severity" example:"High" validate:"required"`
	Domain      string          `json:"domain" example:"Services" validate:"required"`
}

// MitigationRequest is the request body for saving a mitigation.
type MitigationRequest struct {
	ThreatID    string        `json:"threat_id" example:"ADV001" validate:"required"`
	Name        string        `json:"name" example:"MFA" validate:"required"`
	Description string        `json:"description"`
	Status      models.Status `json:"status" example:"Planned" validate:"required"`
	Domain      string        `json:"domain" example:"Services" validate:"required"`
}

// SubdomainRequest is the request body for saving a subdomain.
type SubdomainRequest struct {
	ParentDomain string `json:"parent_domain" example:"Services" validate:"required"`
	Name         string `json:"name" example:"Portal" validate:"required"`
	Description  string `json:"description"`
}

// IterationRequest is the request body for saving the working session.
type IterationRequest struct {
	Name        string `json:"name" example:"Q3 review" validate:"required"`
	Description string `json:"description"`
}

// SelectionResponse reports the outcome of a deselect.
type SelectionResponse struct {
	Removed []string `json:"removed"`
}
