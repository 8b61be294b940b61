package catalog

import (
	"context"
	"log/slog"

	"github.com/starford/threatmap/internal/models"
)

// Source lists the records to export.
type Source interface {
	ListThreats(ctx context.Context) ([]models.Threat, error)
	ListAllMitigations(ctx context.Context) ([]models.MitigationWithThreat, error)
	ListSubdomains(ctx context.Context, parent string) ([]models.Subdomain, error)
}

// Build collects the store contents into one catalog file. Mitigations whose
// threat no longer exists cannot be expressed and are left out.
func Build(ctx context.Context, src Source) (*File, error) {
	threats, err := src.ListThreats(ctx)
	if err != nil {
		return nil, err
	}
	mitigations, err := src.ListAllMitigations(ctx)
	if err != nil {
		return nil, err
	}
	subdomains, err := src.ListSubdomains(ctx, "")
	if err != nil {
		return nil, err
	}

	f := &File{Threats: make([]ThreatEntry, 0, len(threats))}
	index := make(map[string]int, len(threats))
	for i, t := range threats {
		index[t.ID] = i
		f.Threats = append(f.Threats, ThreatEntry{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			Severity:    string(t.Severity),
			Domain:      t.Domain,
		})
	}
	for _, m := range mitigations {
		i, ok := index[m.ThreatID]
		if !ok {
			slog.Warn("export: skipping orphaned mitigation", slog.String("id", m.ID), slog.String("threat_id", m.ThreatID))
			continue
		}
		f.Threats[i].Mitigations = append(f.Threats[i].Mitigations, MitigationEntry{
			ID:          m.ID,
			Name:        m.Name,
			Description: m.Description,
			Status:      string(m.Status),
			Domain:      m.Domain,
		})
	}
	for _, sd := range subdomains {
		f.Subdomains = append(f.Subdomains, SubdomainEntry{
			ID:           sd.ID,
			ParentDomain: sd.ParentDomain,
			Name:         sd.Name,
			Description:  sd.Description,
		})
	}
	return f, nil
}

// Export writes the store contents to path inside dir.
func Export(ctx context.Context, src Source, dir *Dir, path string) (*File, error) {
	f, err := Build(ctx, src)
	if err != nil {
		return nil, err
	}
	data, err := Marshal(f)
	if err != nil {
		return nil, err
	}
	if err := dir.Write(path, data); err != nil {
		return nil, err
	}
	return f, nil
}
