package catalog

import (
	"strings"
	"testing"

	"github.com/starford/threatmap/internal/models"
)

const sample = `
threats:
  - id: ADV001
    name: Credential stuffing
    severity: High
    domain: Services
    mitigations:
      - {id: MIT001, name: MFA, status: Planned, domain: Services}
      - id: MIT002
        name: Rate limiting
        description: Per-IP login throttling
        status: Implemented
        domain: Services
subdomains:
  - {id: SD01, parent_domain: Services, name: Portal}
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(f.Threats) != 1 || len(f.Threats[0].Mitigations) != 2 || len(f.Subdomains) != 1 {
		t.Fatalf("parsed %+v", f)
	}

	th := f.Threats[0].Threat()
	if th.Severity != models.SeverityHigh || th.Domain != "Services" {
		t.Errorf("threat = %+v", th)
	}
	m := f.Threats[0].Mitigations[1].Mitigation(th.ID)
	if m.ThreatID != "ADV001" || m.Status != models.StatusImplemented || m.Description == "" {
		t.Errorf("mitigation = %+v", m)
	}
}

func TestParse_Empty(t *testing.T) {
	f, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(f.Threats) != 0 {
		t.Errorf("threats = %v", f.Threats)
	}
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":          "threats: []\nowners: [me]\n",
		"missing threat id":    "threats:\n  - {name: x, severity: Low, domain: People}\n",
		"missing mitigation":   "threats:\n  - id: T1\n    name: x\n    mitigations:\n      - {id: M1}\n",
		"duplicate threat":     "threats:\n  - {id: T1, name: a}\n  - {id: T1, name: b}\n",
		"duplicate mitigation": "threats:\n  - id: T1\n    name: a\n    mitigations: [{id: M1, name: x}]\n  - id: T2\n    name: b\n    mitigations: [{id: M1, name: y}]\n",
		"subdomain parent":     "subdomains:\n  - {id: S1, name: Portal}\n",
		"unknown severity":     "threats:\n  - {id: T1, name: x, severity: Extreme, domain: People}\n",
		"missing domain":       "threats:\n  - {id: T1, name: x, severity: Low}\n",
		"unknown status":       "threats:\n  - id: T1\n    name: x\n    severity: Low\n    domain: People\n    mitigations: [{id: M1, name: y, status: Done, domain: People}]\n",
		"not yaml":             "threats: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Errorf("expected error for %q", doc)
			}
		})
	}
}

func TestMarshal_ParsesBack(t *testing.T) {
	f, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	data, err := Marshal(f)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), "parent_domain: Services") {
		t.Errorf("unexpected yaml:\n%s", data)
	}
	again, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse(Marshal): %v", err)
	}
	if len(again.Threats[0].Mitigations) != 2 {
		t.Errorf("mitigations lost: %+v", again)
	}
}

func TestSubdomain_DerivedIDIsStable(t *testing.T) {
	a := SubdomainEntry{ParentDomain: "Services", Name: "Portal"}.Subdomain()
	b := SubdomainEntry{ParentDomain: " Services", Name: "Portal "}.Subdomain()
	if a.ID == "" || a.ID != b.ID {
		t.Errorf("ids = %q, %q", a.ID, b.ID)
	}
	other := SubdomainEntry{ParentDomain: "People", Name: "Portal"}.Subdomain()
	if other.ID == a.ID {
		t.Errorf("different parents share id %q", a.ID)
	}
	if got := (SubdomainEntry{ID: "SD01", ParentDomain: "Services", Name: "Portal"}).Subdomain().ID; got != "SD01" {
		t.Errorf("explicit id = %q", got)
	}
}
