package session

import (
	"sort"

	"github.com/starford/threatmap/internal/models"
)

// Count is one bar or slice of an aggregate chart.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Summary holds the headline numbers of the analysis view.
type Summary struct {
	TotalThreats           int     `json:"total_threats"`
	TotalMitigations       int     `json:"total_mitigations"`
	CriticalThreats        int     `json:"critical_threats"`
	CriticalShare          float64 `json:"critical_share"`
	ImplementedMitigations int     `json:"implemented_mitigations"`
	CompletionRate         float64 `json:"completion_rate"`
}

// ThreatRow is one line of the selected-threats overview.
type ThreatRow struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Severity         models.Severity `json:"severity"`
	Domain           string          `json:"domain"`
	TotalMitigations int             `json:"total_mitigations"`
	Implemented      int             `json:"implemented"`
	Coverage         float64         `json:"coverage"`
}

// CoverageRow is one line of the risk coverage matrix.
type CoverageRow struct {
	ThreatID    string  `json:"threat_id"`
	Total       int     `json:"total"`
	Implemented int     `json:"implemented"`
	InProgress  int     `json:"in_progress"`
	Planned     int     `json:"planned"`
	Coverage    float64 `json:"coverage"`
}

// Analysis is the aggregate view over the current selection. Percentages are
// in the range [0,100].
type Analysis struct {
	Summary            Summary       `json:"summary"`
	Threats            []ThreatRow   `json:"threats"`
	BySeverity         []Count       `json:"by_severity"`
	ByThreatDomain     []Count       `json:"by_threat_domain"`
	ByStatus           []Count       `json:"by_status"`
	ByMitigationDomain []Count       `json:"by_mitigation_domain"`
	Coverage           []CoverageRow `json:"coverage"`
}

// CountBySeverity counts selected threats per severity.
func (s *State) CountBySeverity() []Count {
	return countBy(s.SelectedThreats, func(t models.Threat) string { return string(t.Severity) })
}

// CountByStatus counts selected mitigations per status.
func (s *State) CountByStatus() []Count {
	return countBy(s.SelectedMitigations, func(m models.Mitigation) string { return string(m.Status) })
}

// Coverage is the percentage of the threat's selected mitigations that are
// Implemented, or 0 when none are selected.
func (s *State) Coverage(threatID string) float64 {
	total, implemented := 0, 0
	for _, m := range s.SelectedMitigations {
		if m.ThreatID != threatID {
			continue
		}
		total++
		if m.Status == models.StatusImplemented {
			implemented++
		}
	}
	return percent(implemented, total)
}

// Analyze computes every aggregate of the analysis view.
func (s *State) Analyze() Analysis {
	a := Analysis{
		Threats:            []ThreatRow{},
		Coverage:           []CoverageRow{},
		BySeverity:         s.CountBySeverity(),
		ByStatus:           s.CountByStatus(),
		ByThreatDomain:     countBy(s.SelectedThreats, func(t models.Threat) string { return t.Domain }),
		ByMitigationDomain: countBy(s.SelectedMitigations, func(m models.Mitigation) string { return m.Domain }),
	}

	perThreat := make(map[string]*CoverageRow, len(s.SelectedThreats))
	for _, id := range sortedKeys(s.SelectedThreats) {
		perThreat[id] = &CoverageRow{ThreatID: id}
	}
	for _, m := range s.SelectedMitigations {
		if m.Status == models.StatusImplemented {
			a.Summary.ImplementedMitigations++
		}
		row, ok := perThreat[m.ThreatID]
		if !ok {
			continue
		}
		row.Total++
		switch m.Status {
		case models.StatusImplemented:
			row.Implemented++
		case models.StatusInProgress:
			row.InProgress++
		case models.StatusPlanned:
			row.Planned++
		}
	}

	for _, id := range sortedKeys(s.SelectedThreats) {
		t := s.SelectedThreats[id]
		row := perThreat[id]
		row.Coverage = percent(row.Implemented, row.Total)
		a.Coverage = append(a.Coverage, *row)
		a.Threats = append(a.Threats, ThreatRow{
			ID:               id,
			Name:             t.Name,
			Severity:         t.Severity,
			Domain:           t.Domain,
			TotalMitigations: row.Total,
			Implemented:      row.Implemented,
			Coverage:         row.Coverage,
		})
		if t.Severity == models.SeverityCritical {
			a.Summary.CriticalThreats++
		}
	}

	a.Summary.TotalThreats = len(s.SelectedThreats)
	a.Summary.TotalMitigations = len(s.SelectedMitigations)
	a.Summary.CriticalShare = percent(a.Summary.CriticalThreats, a.Summary.TotalThreats)
	a.Summary.CompletionRate = percent(a.Summary.ImplementedMitigations, a.Summary.TotalMitigations)
	return a
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// countBy groups values by key, largest group first, ties by key.
func countBy[V any](items map[string]V, key func(V) string) []Count {
	keys := make([]string, 0, len(items))
	for _, v := range items {
		keys = append(keys, key(v))
	}
	return Tally(keys)
}

// Tally counts equal keys, largest group first, ties by key.
func Tally(keys []string) []Count {
	counts := make(map[string]int)
	for _, k := range keys {
		counts[k]++
	}
	out := make([]Count, 0, len(counts))
	for k, n := range counts {
		out = append(out, Count{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
