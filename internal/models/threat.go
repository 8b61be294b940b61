// Package models defines the record and working-state types of threatmap.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Severity ranks a threat. The store accepts any value; the service layer
// restricts input to the four known levels.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Severities returns the known severities from least to most severe.
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	for _, v := range Severities() {
		if s == v {
			return true
		}
	}
	return false
}

// Status tracks a mitigation through its lifecycle.
type Status string

const (
	StatusPlanned     Status = "Planned"
	StatusInProgress  Status = "In Progress"
	StatusImplemented Status = "Implemented"
	StatusVerified    Status = "Verified"
)

// Statuses returns the known statuses in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPlanned, StatusInProgress, StatusImplemented, StatusVerified}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, v := range Statuses() {
		if s == v {
			return true
		}
	}
	return false
}

// Threat is a cataloged risk item owned by a domain.
type Threat struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	Domain      string    `json:"domain"`
	CreatedDate time.Time `json:"created_date"`
}

// UnmarshalJSON accepts both the object form and the positional row form
// [id, name, description, severity, domain, created_date] found in older
// iteration snapshots.
func (t *Threat) UnmarshalJSON(data []byte) error {
	if isArray(data) {
		f, err := tupleFields(data, 6)
		if err != nil {
			return fmt.Errorf("threat: %w", err)
		}
		created, _ := ParseTimestamp(f[5])
		*t = Threat{
			ID:          f[0],
			Name:        f[1],
			Description: f[2],
			Severity:    Severity(f[3]),
			Domain:      f[4],
			CreatedDate: created,
		}
		return nil
	}
	type plain Threat
	return json.Unmarshal(data, (*plain)(t))
}

// Mitigation is a remediation action tied to exactly one threat.
type Mitigation struct {
	ID          string    `json:"id"`
	ThreatID    string    `json:"threat_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Domain      string    `json:"domain"`
	CreatedDate time.Time `json:"created_date"`
}

// UnmarshalJSON accepts both the object form and the positional row form
// [id, threat_id, name, description, status, domain, created_date].
func (m *Mitigation) UnmarshalJSON(data []byte) error {
	if isArray(data) {
		f, err := tupleFields(data, 7)
		if err != nil {
			return fmt.Errorf("mitigation: %w", err)
		}
		created, _ := ParseTimestamp(f[6])
		*m = Mitigation{
			ID:          f[0],
			ThreatID:    f[1],
			Name:        f[2],
			Description: f[3],
			Status:      Status(f[4]),
			Domain:      f[5],
			CreatedDate: created,
		}
		return nil
	}
	type plain Mitigation
	return json.Unmarshal(data, (*plain)(m))
}

// MitigationWithThreat pairs a mitigation with the name of its parent threat.
// ThreatName is empty when the parent no longer exists.
type MitigationWithThreat struct {
	Mitigation
	ThreatName string `json:"threat_name"`
}

// Subdomain is a flat annotation under a parent domain.
type Subdomain struct {
	ID           string    `json:"id"`
	ParentDomain string    `json:"parent_domain"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	CreatedDate  time.Time `json:"created_date"`
}

// IterationInfo is the listing view of a saved iteration.
type IterationInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedDate time.Time `json:"created_date"`
}

func isArray(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

// tupleFields decodes a JSON array of nullable strings into exactly n fields.
// Missing trailing fields decode as empty strings.
func tupleFields(data []byte, n int) ([]string, error) {
	var raw []*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if len(raw) > n {
		return nil, fmt.Errorf("row has %d fields, want at most %d", len(raw), n)
	}
	out := make([]string, n)
	for i, v := range raw {
		if v != nil {
			out[i] = *v
		}
	}
	return out, nil
}
