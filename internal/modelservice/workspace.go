package modelservice

import (
	"context"
	"strconv"

	"github.com/starford/threatmap/internal/graph"
	"github.com/starford/threatmap/internal/models"
	"github.com/starford/threatmap/internal/session"
)

// Workspace returns a copy of the working session.
func (s *Service) Workspace() *session.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// SelectThreat adds the stored threat to the selection. Selecting it again
// keeps the first copy.
func (s *Service) SelectThreat(ctx context.Context, id string) (models.Threat, error) {
	t, err := s.store.GetThreat(ctx, id)
	if err != nil {
		return models.Threat{}, err
	}
	var added bool
	_ = s.withState(func(st *session.State) error {
		added = st.SelectThreat(t)
		return nil
	})
	if added {
		s.notify(SelectionChanged, id)
	}
	return t, nil
}

// DeselectThreat removes the threat and its mitigations from the selection.
// It reports the ids of the mitigations removed with it.
func (s *Service) DeselectThreat(id string) []string {
	var (
		dropped []string
		present bool
	)
	_ = s.withState(func(st *session.State) error {
		_, present = st.SelectedThreats[id]
		dropped = st.DeselectThreat(id)
		return nil
	})
	if present {
		s.notify(SelectionChanged, id)
	}
	return dropped
}

// SelectMitigation adds the stored mitigation to the selection. Its threat
// must already be selected.
func (s *Service) SelectMitigation(ctx context.Context, id string) (models.Mitigation, error) {
	m, err := s.store.GetMitigation(ctx, id)
	if err != nil {
		return models.Mitigation{}, err
	}
	if err := s.withState(func(st *session.State) error {
		return st.SelectMitigation(m)
	}); err != nil {
		return models.Mitigation{}, err
	}
	s.notify(SelectionChanged, id)
	return m, nil
}

// DeselectMitigation removes one mitigation from the selection.
func (s *Service) DeselectMitigation(id string) bool {
	var removed bool
	_ = s.withState(func(st *session.State) error {
		removed = st.DeselectMitigation(id)
		return nil
	})
	if removed {
		s.notify(SelectionChanged, id)
	}
	return removed
}

// AddInteraction appends an interaction to the architecture.
func (s *Service) AddInteraction(in models.Interaction) error {
	if err := s.withState(func(st *session.State) error {
		return st.AddInteraction(in)
	}); err != nil {
		return err
	}
	s.notify(GraphChanged, in.From+"->"+in.To)
	return nil
}

// RemoveInteraction drops the interaction at index.
func (s *Service) RemoveInteraction(index int) error {
	if err := s.withState(func(st *session.State) error {
		return st.RemoveInteractionAt(index)
	}); err != nil {
		return err
	}
	s.notify(GraphChanged, strconv.Itoa(index))
	return nil
}

// UpsertDomain adds or replaces a domain.
func (s *Service) UpsertDomain(name string, d models.Domain) error {
	if err := s.withState(func(st *session.State) error {
		return st.UpsertDomain(name, d)
	}); err != nil {
		return err
	}
	s.notify(GraphChanged, name)
	return nil
}

// RemoveDomain deletes a domain. Interactions naming it stay in place and
// are skipped by the layout.
func (s *Service) RemoveDomain(name string) error {
	if err := s.withState(func(st *session.State) error {
		return st.RemoveDomain(name)
	}); err != nil {
		return err
	}
	s.notify(GraphChanged, name)
	return nil
}

// Layout returns the render model of the current architecture.
func (s *Service) Layout() graph.RenderModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Layout()
}

// Analyze returns the aggregates over the current selection.
func (s *Service) Analyze() session.Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Analyze()
}

// Overview summarizes the store contents. It is shown while nothing is
// selected.
type Overview struct {
	TotalThreats        int                    `json:"total_threats"`
	ThreatsBySeverity   []session.Count        `json:"threats_by_severity"`
	TotalMitigations    int                    `json:"total_mitigations"`
	MitigationsByStatus []session.Count        `json:"mitigations_by_status"`
	TotalIterations     int                    `json:"total_iterations"`
	RecentIterations    []models.IterationInfo `json:"recent_iterations"`
}

const recentIterations = 5

// Overview counts the stored threats, mitigations and iterations.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	threats, err := s.store.ListThreats(ctx)
	if err != nil {
		return Overview{}, err
	}
	mitigations, err := s.store.ListAllMitigations(ctx)
	if err != nil {
		return Overview{}, err
	}
	iterations, err := s.store.ListIterations(ctx)
	if err != nil {
		return Overview{}, err
	}

	severities := make([]string, len(threats))
	for i, t := range threats {
		severities[i] = string(t.Severity)
	}
	statuses := make([]string, len(mitigations))
	for i, m := range mitigations {
		statuses[i] = string(m.Status)
	}
	recent := iterations
	if len(recent) > recentIterations {
		recent = recent[:recentIterations]
	}
	return Overview{
		TotalThreats:        len(threats),
		ThreatsBySeverity:   session.Tally(severities),
		TotalMitigations:    len(mitigations),
		MitigationsByStatus: session.Tally(statuses),
		TotalIterations:     len(iterations),
		RecentIterations:    recent,
	}, nil
}
