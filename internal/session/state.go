// Package session holds the working state of one analyst session: the
// architecture graph, the selected threats and mitigations, and the name of
// the iteration it was loaded from.
//
// A State is a plain value owned by its caller. It does no locking and
// touches no storage; the service layer serializes access to it.
package session

import (
	"fmt"

	"github.com/starford/threatmap/internal/apperr"
	"github.com/starford/threatmap/internal/graph"
	"github.com/starford/threatmap/internal/models"
)

// State is the in-memory working set.
type State struct {
	Domains             map[string]models.Domain     `json:"domains"`
	Interactions        []models.Interaction         `json:"interactions"`
	SelectedThreats     map[string]models.Threat     `json:"selected_threats"`
	SelectedMitigations map[string]models.Mitigation `json:"selected_mitigations"`
	CurrentIteration    string                       `json:"current_iteration,omitempty"`
}

// New returns a state holding the built-in architecture and no selections.
func New() *State {
	s := &State{}
	s.Reset()
	return s
}

// Reset restores the built-in domains and interactions, clears both
// selections and forgets the current iteration.
func (s *State) Reset() {
	s.Domains = graph.DefaultDomains()
	s.Interactions = graph.DefaultInteractions()
	s.SelectedThreats = map[string]models.Threat{}
	s.SelectedMitigations = map[string]models.Mitigation{}
	s.CurrentIteration = ""
}

// SelectThreat adds t keyed by id. A threat that is already selected keeps
// the copy taken when it was first selected. Reports whether t was added.
func (s *State) SelectThreat(t models.Threat) bool {
	if _, ok := s.SelectedThreats[t.ID]; ok {
		return false
	}
	s.SelectedThreats[t.ID] = t
	return true
}

// DeselectThreat removes the threat and every selected mitigation whose
// parent is that threat. It returns the ids of the mitigations dropped.
func (s *State) DeselectThreat(id string) []string {
	if _, ok := s.SelectedThreats[id]; !ok {
		return nil
	}
	delete(s.SelectedThreats, id)

	var dropped []string
	for mid, m := range s.SelectedMitigations {
		if m.ThreatID == id {
			delete(s.SelectedMitigations, mid)
			dropped = append(dropped, mid)
		}
	}
	return dropped
}

// SelectMitigation adds or refreshes m. The parent threat must already be
// selected so that the mitigation selection stays a subset of the selected
// threats' mitigations.
func (s *State) SelectMitigation(m models.Mitigation) error {
	if _, ok := s.SelectedThreats[m.ThreatID]; !ok {
		return apperr.Invalid("mitigation", fmt.Sprintf("parent threat %q is not selected", m.ThreatID))
	}
	s.SelectedMitigations[m.ID] = m
	return nil
}

// DeselectMitigation removes one mitigation. The parent threat stays selected.
func (s *State) DeselectMitigation(id string) bool {
	if _, ok := s.SelectedMitigations[id]; !ok {
		return false
	}
	delete(s.SelectedMitigations, id)
	return true
}

// AddInteraction appends a validated interaction.
func (s *State) AddInteraction(in models.Interaction) error {
	next, err := graph.AddInteraction(s.Interactions, in)
	if err != nil {
		return err
	}
	s.Interactions = next
	return nil
}

// RemoveInteractionAt drops the interaction at index.
func (s *State) RemoveInteractionAt(index int) error {
	next, err := graph.RemoveInteractionAt(s.Interactions, index)
	if err != nil {
		return err
	}
	s.Interactions = next
	return nil
}

// UpsertDomain adds or replaces a domain.
func (s *State) UpsertDomain(name string, d models.Domain) error {
	return graph.UpsertDomain(s.Domains, name, d)
}

// RemoveDomain deletes a domain and leaves interactions untouched.
func (s *State) RemoveDomain(name string) error {
	return graph.RemoveDomain(s.Domains, name)
}

// Layout computes the render model of the current architecture.
func (s *State) Layout() graph.RenderModel {
	return graph.ComputeLayout(s.Domains, s.Interactions)
}

// Snapshot deep-copies the persisted parts of the state.
func (s *State) Snapshot() models.Snapshot {
	return models.Snapshot{
		Domains:             graph.CloneDomains(s.Domains),
		Interactions:        graph.CloneInteractions(s.Interactions),
		SelectedThreats:     cloneMap(s.SelectedThreats),
		SelectedMitigations: cloneMap(s.SelectedMitigations),
	}
}

// Restore replaces the whole state with snap and records name as the current
// iteration. Nothing is checked against the live store: a loaded iteration
// shows exactly what was selected when it was saved. Missing domains or
// interactions fall back to the built-in ones.
func (s *State) Restore(name string, snap models.Snapshot) {
	if snap.Domains != nil {
		s.Domains = graph.CloneDomains(snap.Domains)
	} else {
		s.Domains = graph.DefaultDomains()
	}
	if snap.Interactions != nil {
		s.Interactions = graph.CloneInteractions(snap.Interactions)
	} else {
		s.Interactions = graph.DefaultInteractions()
	}
	s.SelectedThreats = cloneMap(snap.SelectedThreats)
	if s.SelectedThreats == nil {
		s.SelectedThreats = map[string]models.Threat{}
	}
	s.SelectedMitigations = cloneMap(snap.SelectedMitigations)
	if s.SelectedMitigations == nil {
		s.SelectedMitigations = map[string]models.Mitigation{}
	}
	s.CurrentIteration = name
}

// Clone returns an independent copy of s.
func (s *State) Clone() *State {
	snap := s.Snapshot()
	return &State{
		Domains:             snap.Domains,
		Interactions:        snap.Interactions,
		SelectedThreats:     snap.SelectedThreats,
		SelectedMitigations: snap.SelectedMitigations,
		CurrentIteration:    s.CurrentIteration,
	}
}

func cloneMap[V any](in map[string]V) map[string]V {
	if in == nil {
		return nil
	}
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
