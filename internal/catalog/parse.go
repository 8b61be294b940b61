package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/starford/threatmap/internal/models"
)

// File is the content of one catalog file.
type File struct {
	Threats    []ThreatEntry    `yaml:"threats" json:"threats"`
	Subdomains []SubdomainEntry `yaml:"subdomains,omitempty" json:"subdomains"`
}

// ThreatEntry declares a threat and the mitigations addressing it.
type ThreatEntry struct {
	ID          string            `yaml:"id" json:"id"`
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description"`
	Severity    string            `yaml:"severity" json:"severity"`
	Domain      string            `yaml:"domain" json:"domain"`
	Mitigations []MitigationEntry `yaml:"mitigations,omitempty" json:"mitigations"`
}

// MitigationEntry declares a mitigation of the enclosing threat.
type MitigationEntry struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description"`
	Status      string `yaml:"status" json:"status"`
	Domain      string `yaml:"domain" json:"domain"`
}

// SubdomainEntry declares a subdomain.
type SubdomainEntry struct {
	ID           string `yaml:"id" json:"id"`
	ParentDomain string `yaml:"parent_domain" json:"parent_domain"`
	Name         string `yaml:"name" json:"name"`
	Description  string `yaml:"description,omitempty" json:"description"`
}

// subdomainNamespace scopes the ids derived for subdomains declared
// without one.
var subdomainNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("threatmap:catalog:subdomain"))

func severityValues() []any {
	out := make([]any, 0, len(models.Severities()))
	for _, v := range models.Severities() {
		out = append(out, string(v))
	}
	return out
}

func statusValues() []any {
	out := make([]any, 0, len(models.Statuses()))
	for _, v := range models.Statuses() {
		out = append(out, string(v))
	}
	return out
}

// Validate checks the fields every threat entry needs. Everything the
// service would reject is caught here, so a bad file imports nothing.
func (e ThreatEntry) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.ID, validation.Required),
		validation.Field(&e.Name, validation.Required),
		validation.Field(&e.Severity, validation.Required, validation.In(severityValues()...)),
		validation.Field(&e.Domain, validation.Required),
		validation.Field(&e.Mitigations),
	)
}

// Validate checks the fields every mitigation entry needs.
func (e MitigationEntry) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.ID, validation.Required),
		validation.Field(&e.Name, validation.Required),
		validation.Field(&e.Status, validation.Required, validation.In(statusValues()...)),
		validation.Field(&e.Domain, validation.Required),
	)
}

// Validate checks the fields every subdomain entry needs.
func (e SubdomainEntry) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.ParentDomain, validation.Required),
		validation.Field(&e.Name, validation.Required),
	)
}

// Validate checks every entry and rejects ids declared twice in the file.
func (f *File) Validate() error {
	if err := validation.ValidateStruct(f,
		validation.Field(&f.Threats),
		validation.Field(&f.Subdomains),
	); err != nil {
		return err
	}
	threats := map[string]bool{}
	mitigations := map[string]bool{}
	for _, t := range f.Threats {
		if threats[t.ID] {
			return fmt.Errorf("threat %s declared twice", t.ID)
		}
		threats[t.ID] = true
		for _, m := range t.Mitigations {
			if mitigations[m.ID] {
				return fmt.Errorf("mitigation %s declared twice", m.ID)
			}
			mitigations[m.ID] = true
		}
	}
	return nil
}

// Parse decodes and validates a catalog file. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("catalog: invalid: %w", err)
	}
	return &f, nil
}

// Marshal encodes f as YAML.
func Marshal(f *File) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, fmt.Errorf("catalog: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("catalog: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Threat converts the entry into a threat record.
func (e ThreatEntry) Threat() models.Threat {
	return models.Threat{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Severity:    models.Severity(e.Severity),
		Domain:      e.Domain,
	}
}

// Mitigation converts the entry into a mitigation of threatID.
func (e MitigationEntry) Mitigation(threatID string) models.Mitigation {
	return models.Mitigation{
		ID:          e.ID,
		ThreatID:    threatID,
		Name:        e.Name,
		Description: e.Description,
		Status:      models.Status(e.Status),
		Domain:      e.Domain,
	}
}

// Subdomain converts the entry into a subdomain record. An entry without an
// id gets one derived from its parent domain and name, so importing the
// same file again updates the record instead of adding a copy.
func (e SubdomainEntry) Subdomain() models.Subdomain {
	id := strings.TrimSpace(e.ID)
	if id == "" {
		key := strings.TrimSpace(e.ParentDomain) + "/" + strings.TrimSpace(e.Name)
		id = uuid.NewSHA1(subdomainNamespace, []byte(key)).String()
	}
	return models.Subdomain{
		ID:           id,
		ParentDomain: e.ParentDomain,
		Name:         e.Name,
		Description:  e.Description,
	}
}
