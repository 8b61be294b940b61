package modelservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/starford/threatmap/internal/apperr"
	"github.com/starford/threatmap/internal/models"
	"github.com/starford/threatmap/internal/session"
)

// SaveThreat validates and stores t, returning the stored record. A threat
// that is already selected keeps the copy taken at selection time.
func (s *Service) SaveThreat(ctx context.Context, t models.Threat) (models.Threat, error) {
	if err := validateThreat(&t); err != nil {
		return models.Threat{}, err
	}
	if err := s.store.UpsertThreat(ctx, t); err != nil {
		return models.Threat{}, err
	}
	saved, err := s.store.GetThreat(ctx, t.ID)
	if err != nil {
		return models.Threat{}, err
	}
	s.notify(ThreatSaved, t.ID)
	return saved, nil
}

// GetThreat returns one threat.
func (s *Service) GetThreat(ctx context.Context, id string) (models.Threat, error) {
	return s.store.GetThreat(ctx, id)
}

// ListThreats returns every threat ordered by id.
func (s *Service) ListThreats(ctx context.Context) ([]models.Threat, error) {
	return s.store.ListThreats(ctx)
}

// DeleteThreat removes the threat and its mitigations from the store and
// from the working selection.
func (s *Service) DeleteThreat(ctx context.Context, id string) error {
	if err := s.store.DeleteThreat(ctx, id); err != nil {
		return err
	}
	var deselected bool
	_ = s.withState(func(st *session.State) error {
		_, deselected = st.SelectedThreats[id]
		st.DeselectThreat(id)
		return nil
	})
	s.notify(ThreatDeleted, id)
	if deselected {
		s.notify(SelectionChanged, id)
	}
	return nil
}

// SaveMitigation validates and stores m. Its threat must exist.
func (s *Service) SaveMitigation(ctx context.Context, m models.Mitigation) (models.Mitigation, error) {
	if err := validateMitigation(&m); err != nil {
		return models.Mitigation{}, err
	}
	if _, err := s.store.GetThreat(ctx, m.ThreatID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.Mitigation{}, apperr.Invalid("threat_id", fmt.Sprintf("threat %q does not exist", m.ThreatID))
		}
		return models.Mitigation{}, err
	}
	if err := s.store.UpsertMitigation(ctx, m); err != nil {
		return models.Mitigation{}, err
	}
	saved, err := s.store.GetMitigation(ctx, m.ID)
	if err != nil {
		return models.Mitigation{}, err
	}
	s.notify(MitigationSaved, m.ID)
	return saved, nil
}

// GetMitigation returns one mitigation.
func (s *Service) GetMitigation(ctx context.Context, id string) (models.Mitigation, error) {
	return s.store.GetMitigation(ctx, id)
}

// ListMitigations returns the mitigations of one threat.
func (s *Service) ListMitigations(ctx context.Context, threatID string) ([]models.Mitigation, error) {
	return s.store.ListMitigationsForThreat(ctx, threatID)
}

// ListAllMitigations returns every mitigation with its threat's name.
func (s *Service) ListAllMitigations(ctx context.Context) ([]models.MitigationWithThreat, error) {
	return s.store.ListAllMitigations(ctx)
}

// DeleteMitigation removes a mitigation from the store and the selection.
func (s *Service) DeleteMitigation(ctx context.Context, id string) error {
	if err := s.store.DeleteMitigation(ctx, id); err != nil {
		return err
	}
	var deselected bool
	_ = s.withState(func(st *session.State) error {
		deselected = st.DeselectMitigation(id)
		return nil
	})
	s.notify(MitigationDeleted, id)
	if deselected {
		s.notify(SelectionChanged, id)
	}
	return nil
}

// SaveSubdomain validates and stores sd. An empty id is generated.
func (s *Service) SaveSubdomain(ctx context.Context, sd models.Subdomain) (models.Subdomain, error) {
	if err := validateSubdomain(&sd); err != nil {
		return models.Subdomain{}, err
	}
	if sd.ID == "" {
		sd.ID = uuid.NewString()
	}
	if err := s.store.UpsertSubdomain(ctx, sd); err != nil {
		return models.Subdomain{}, err
	}
	s.notify(SubdomainSaved, sd.ID)
	siblings, err := s.store.ListSubdomains(ctx, sd.ParentDomain)
	if err != nil {
		return models.Subdomain{}, err
	}
	for _, stored := range siblings {
		if stored.ID == sd.ID {
			return stored, nil
		}
	}
	return sd, nil
}

// ListSubdomains returns subdomains, all of them when parent is empty.
func (s *Service) ListSubdomains(ctx context.Context, parent string) ([]models.Subdomain, error) {
	return s.store.ListSubdomains(ctx, parent)
}
