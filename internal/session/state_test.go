package session

import (
	"reflect"
	"testing"
	"time"

	"github.com/starford/threatmap/internal/apperr"
	"github.com/starford/threatmap/internal/models"
)

func threat(id string, sev models.Severity) models.Threat {
	return models.Threat{
		ID:          id,
		Name:        "threat " + id,
		Severity:    sev,
		Domain:      "Services",
		CreatedDate: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func mitigation(id, threatID string, st models.Status) models.Mitigation {
	return models.Mitigation{
		ID:          id,
		ThreatID:    threatID,
		Name:        "mitigation " + id,
		Status:      st,
		Domain:      "Information",
		CreatedDate: time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestNew_DefaultState(t *testing.T) {
	s := New()
	if len(s.Domains) != 9 || len(s.Interactions) != 10 {
		t.Fatalf("domains=%d interactions=%d, want 9/10", len(s.Domains), len(s.Interactions))
	}
	if len(s.SelectedThreats) != 0 || len(s.SelectedMitigations) != 0 {
		t.Error("new state should have no selections")
	}
	if s.CurrentIteration != "" {
		t.Errorf("current iteration = %q, want empty", s.CurrentIteration)
	}
}

func TestSelectThreat_Idempotent(t *testing.T) {
	s := New()
	first := threat("T1", models.SeverityHigh)
	if !s.SelectThreat(first) {
		t.Fatal("first select should add")
	}
	changed := first
	changed.Name = "renamed"
	if s.SelectThreat(changed) {
		t.Error("second select should be a no-op")
	}
	if s.SelectedThreats["T1"].Name != first.Name {
		t.Errorf("selected copy = %q, want the first copy", s.SelectedThreats["T1"].Name)
	}
}

func TestDeselectThreat_CascadesToMitigations(t *testing.T) {
	s := New()
	s.SelectedThreats = map[string]models.Threat{"T1": threat("T1", models.SeverityLow)}
	s.SelectedMitigations = map[string]models.Mitigation{
		"M1": mitigation("M1", "T1", models.StatusPlanned),
		"M2": mitigation("M2", "T2", models.StatusPlanned),
	}

	dropped := s.DeselectThreat("T1")

	if len(s.SelectedThreats) != 0 {
		t.Errorf("selected threats = %v, want empty", s.SelectedThreats)
	}
	if _, ok := s.SelectedMitigations["M1"]; ok {
		t.Error("M1 should be removed with its threat")
	}
	if _, ok := s.SelectedMitigations["M2"]; !ok {
		t.Error("M2 belongs to T2 and must be kept")
	}
	if !reflect.DeepEqual(dropped, []string{"M1"}) {
		t.Errorf("dropped = %v, want [M1]", dropped)
	}
}

func TestDeselectThreat_Unknown(t *testing.T) {
	s := New()
	s.SelectedMitigations["M9"] = mitigation("M9", "T9", models.StatusPlanned)
	if dropped := s.DeselectThreat("T9"); dropped != nil {
		t.Errorf("deselecting an unselected threat dropped %v", dropped)
	}
	if len(s.SelectedMitigations) != 1 {
		t.Error("unselected threat must not cascade")
	}
}

func TestSelectMitigation_RequiresSelectedParent(t *testing.T) {
	s := New()
	err := s.SelectMitigation(mitigation("M1", "T1", models.StatusPlanned))
	if !apperr.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if len(s.SelectedMitigations) != 0 {
		t.Error("rejected mitigation was stored")
	}

	s.SelectThreat(threat("T1", models.SeverityLow))
	if err := s.SelectMitigation(mitigation("M1", "T1", models.StatusPlanned)); err != nil {
		t.Fatalf("SelectMitigation: %v", err)
	}
	if !s.DeselectMitigation("M1") {
		t.Error("DeselectMitigation should report removal")
	}
	if _, ok := s.SelectedThreats["T1"]; !ok {
		t.Error("deselecting a mitigation must not deselect its threat")
	}
}

func TestCoverage(t *testing.T) {
	s := New()
	s.SelectThreat(threat("T1", models.SeverityHigh))
	s.SelectThreat(threat("T2", models.SeverityLow))
	for _, m := range []models.Mitigation{
		mitigation("M1", "T1", models.StatusImplemented),
		mitigation("M2", "T1", models.StatusImplemented),
		mitigation("M3", "T1", models.StatusPlanned),
		mitigation("M4", "T1", models.StatusVerified),
	} {
		if err := s.SelectMitigation(m); err != nil {
			t.Fatal(err)
		}
	}

	if got := s.Coverage("T1"); got != 50.0 {
		t.Errorf("coverage(T1) = %v, want 50", got)
	}
	if got := s.Coverage("T2"); got != 0 {
		t.Errorf("coverage(T2) = %v, want 0", got)
	}
}

func TestRestore_FallsBackToDefaults(t *testing.T) {
	s := New()
	s.SelectThreat(threat("T1", models.SeverityHigh))

	s.Restore("empty", models.Snapshot{})

	if len(s.Domains) != 9 || len(s.Interactions) != 10 {
		t.Errorf("missing parts should fall back to defaults")
	}
	if s.SelectedThreats == nil || len(s.SelectedThreats) != 0 {
		t.Errorf("selected threats = %v, want empty map", s.SelectedThreats)
	}
	if s.CurrentIteration != "empty" {
		t.Errorf("current iteration = %q", s.CurrentIteration)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := New()
	snap := s.Snapshot()
	d := snap.Domains["Services"]
	d.Components[0] = "changed"
	snap.Interactions[0].Relationship = "changed"

	if s.Domains["Services"].Components[0] == "changed" {
		t.Error("snapshot shares component slices with state")
	}
	if s.Interactions[0].Relationship == "changed" {
		t.Error("snapshot shares interactions with state")
	}
}

func TestReset(t *testing.T) {
	s := New()
	s.SelectThreat(threat("T1", models.SeverityHigh))
	_ = s.RemoveDomain("Customer")
	s.CurrentIteration = "v1"

	s.Reset()

	if _, ok := s.Domains["Customer"]; !ok {
		t.Error("reset should restore default domains")
	}
	if len(s.SelectedThreats) != 0 || s.CurrentIteration != "" {
		t.Error("reset should clear selections and the current iteration")
	}
}
