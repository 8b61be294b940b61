package graph

import "github.com/starford/threatmap/internal/models"

var defaultDomains = map[string]models.Domain{
	"Physical Domain": {
		Color:      "#FFE4B5",
		Position:   models.Position{X: 0.85, Y: 0.8},
		Components: []string{"Facilities", "Hardware", "Infrastructure"},
	},
	"Logical Domain": {
		Color:      "#E6F3FF",
		Position:   models.Position{X: 0.85, Y: 0.6},
		Components: []string{"Network", "Platform", "Applications"},
	},
	"Business Value": {
		Color:      "#F0E6FF",
		Position:   models.Position{X: 0.3, Y: 0.9},
		Components: []string{"Financial Value", "Social Impact"},
	},
	"Services": {
		Color:      "#FFE6F0",
		Position:   models.Position{X: 0.3, Y: 0.7},
		Components: []string{"Customer Services", "Internal Services"},
	},
	"People": {
		Color:      "#E6FFE6",
		Position:   models.Position{X: 0.2, Y: 0.5},
		Components: []string{"Employees", "Contractors", "Partners"},
	},
	"Processes": {
		Color:      "#FFFFE6",
		Position:   models.Position{X: 0.4, Y: 0.5},
		Components: []string{"Business Processes", "IT Processes"},
	},
	"Information": {
		Color:      "#E6FFFF",
		Position:   models.Position{X: 0.6, Y: 0.6},
		Components: []string{"Data", "Documents", "Knowledge"},
	},
	"Information Technology": {
		Color:      "#F5F5DC",
		Position:   models.Position{X: 0.4, Y: 0.3},
		Components: []string{"Applications", "Platform", "Network", "Data"},
	},
	"Customer": {
		Color:      "#FFF0F5",
		Position:   models.Position{X: 0.1, Y: 0.7},
		Components: []string{"End Users", "Business Users"},
	},
}

// "Financial Value" is a component of Business Value, not a domain, so the
// second default interaction never renders until such a domain is added.
var defaultInteractions = []models.Interaction{
	{From: "Customer", To: "Services", Relationship: "request"},
	{From: "Services", To: "Financial Value", Relationship: "create"},
	{From: "Services", To: "Information", Relationship: "expose/manipulate"},
	{From: "People", To: "Services", Relationship: "build"},
	{From: "People", To: "Processes", Relationship: "support"},
	{From: "Processes", To: "Information", Relationship: "connect"},
	{From: "Information Technology", To: "Information", Relationship: "host"},
	{From: "Information Technology", To: "Physical Domain", Relationship: "host"},
	{From: "Information", To: "Physical Domain", Relationship: "transfer"},
	{From: "Physical Domain", To: "Logical Domain", Relationship: "represent"},
}

// DefaultDomains returns a fresh copy of the built-in domain set.
func DefaultDomains() map[string]models.Domain {
	return CloneDomains(defaultDomains)
}

// DefaultInteractions returns a fresh copy of the built-in interactions.
func DefaultInteractions() []models.Interaction {
	return CloneInteractions(defaultInteractions)
}

// DomainNames returns the built-in domain names in sorted order.
func DomainNames() []string {
	return sortedNames(defaultDomains)
}

// CloneDomains deep-copies a domain map, including component slices.
func CloneDomains(in map[string]models.Domain) map[string]models.Domain {
	if in == nil {
		return nil
	}
	out := make(map[string]models.Domain, len(in))
	for name, d := range in {
		if d.Components != nil {
			components := make([]string, len(d.Components))
			copy(components, d.Components)
			d.Components = components
		}
		out[name] = d
	}
	return out
}

// CloneInteractions copies an interaction list.
func CloneInteractions(in []models.Interaction) []models.Interaction {
	if in == nil {
		return nil
	}
	out := make([]models.Interaction, len(in))
	copy(out, in)
	return out
}
