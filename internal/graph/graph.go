// Package graph holds the domain/interaction model of the architecture view
// and the pure layout that turns it into drawable coordinates.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/threatmap/internal/apperr"
	"github.com/starford/threatmap/internal/models"
)

// AddInteraction appends in to interactions. Self-loops and empty
// relationships are rejected and the list is returned unchanged.
func AddInteraction(interactions []models.Interaction, in models.Interaction) ([]models.Interaction, error) {
	in.From = strings.TrimSpace(in.From)
	in.To = strings.TrimSpace(in.To)
	in.Relationship = strings.TrimSpace(in.Relationship)

	switch {
	case in.From == "" || in.To == "":
		return interactions, apperr.Invalid("interaction", "from and to domains are required")
	case in.From == in.To:
		return interactions, apperr.Invalid("interaction", "a domain cannot interact with itself")
	case in.Relationship == "":
		return interactions, apperr.Invalid("relationship", "cannot be blank")
	}
	return append(interactions, in), nil
}

// RemoveInteractionAt returns a new list without the interaction at index.
func RemoveInteractionAt(interactions []models.Interaction, index int) ([]models.Interaction, error) {
	if index < 0 || index >= len(interactions) {
		return interactions, apperr.Invalid("index", fmt.Sprintf("%d out of range [0,%d)", index, len(interactions)))
	}
	out := make([]models.Interaction, 0, len(interactions)-1)
	out = append(out, interactions[:index]...)
	out = append(out, interactions[index+1:]...)
	return out, nil
}

// UpsertDomain adds or replaces the domain called name.
func UpsertDomain(domains map[string]models.Domain, name string, d models.Domain) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Invalid("name", "cannot be blank")
	}
	if strings.TrimSpace(d.Color) == "" {
		return apperr.Invalid("color", "cannot be blank")
	}
	if !inUnit(d.Position.X) || !inUnit(d.Position.Y) {
		return apperr.Invalid("position", "x and y must be within [0,1]")
	}
	domains[name] = d
	return nil
}

// RemoveDomain deletes the domain called name. Interactions that reference it
// are kept; the layout skips them while the endpoint is missing.
func RemoveDomain(domains map[string]models.Domain, name string) error {
	if _, ok := domains[name]; !ok {
		return fmt.Errorf("domain %q: %w", name, apperr.ErrNotFound)
	}
	delete(domains, name)
	return nil
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}

func sortedNames(domains map[string]models.Domain) []string {
	names := make([]string, 0, len(domains))
	for name := range domains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
