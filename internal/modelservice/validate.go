package modelservice

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/threatmap/internal/apperr"
	"github.com/starford/threatmap/internal/models"
)

func severityValues() []any {
	var out []any
	for _, v := range models.Severities() {
		out = append(out, v)
	}
	return out
}

func statusValues() []any {
	var out []any
	for _, v := range models.Statuses() {
		out = append(out, v)
	}
	return out
}

func validateThreat(t *models.Threat) error {
	t.ID = strings.TrimSpace(t.ID)
	t.Name = strings.TrimSpace(t.Name)
	return apperr.Validation(validation.ValidateStruct(t,
		validation.Field(&t.ID, validation.Required),
		validation.Field(&t.Name, validation.Required),
		validation.Field(&t.Severity, validation.Required, validation.In(severityValues()...)),
		validation.Field(&t.Domain, validation.Required),
	))
}

func validateMitigation(m *models.Mitigation) error {
	m.ID = strings.TrimSpace(m.ID)
	m.ThreatID = strings.TrimSpace(m.ThreatID)
	m.Name = strings.TrimSpace(m.Name)
	return apperr.Validation(validation.ValidateStruct(m,
		validation.Field(&m.ID, validation.Required),
		validation.Field(&m.ThreatID, validation.Required),
		validation.Field(&m.Name, validation.Required),
		validation.Field(&m.Status, validation.Required, validation.In(statusValues()...)),
		validation.Field(&m.Domain, validation.Required),
	))
}

func validateSubdomain(sd *models.Subdomain) error {
	sd.Name = strings.TrimSpace(sd.Name)
	return apperr.Validation(validation.ValidateStruct(sd,
		validation.Field(&sd.ParentDomain, validation.Required),
		validation.Field(&sd.Name, validation.Required),
	))
}
