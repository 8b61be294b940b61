package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starford/threatmap/internal/models"
	"github.com/starford/threatmap/internal/modelservice"
	"github.com/starford/threatmap/internal/testutil"
)

// testEnv sets up an in-memory store, a service and the router.
func testEnv(t *testing.T) (*modelservice.Service, http.Handler) {
	t.Helper()
	svc := modelservice.NewService(testutil.TestMemDB(t))
	return svc, NewRouter(svc, nil)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func seed(t *testing.T, h http.Handler) {
	t.Helper()
	w := do(t, h, http.MethodPut, "/threats/T1", ThreatRequest{Name: "Phishing", Severity: "High", Domain: "People"})
	if w.Code != http.StatusOK {
		t.Fatalf("put threat = %d, body = %s", w.Code, w.Body.String())
	}
	for id, status := range map[string]models.Status{"M1": models.StatusImplemented, "M2": models.StatusPlanned} {
		w = do(t, h, http.MethodPut, "/mitigations/"+id, MitigationRequest{
			ThreatID: "T1", Name: "Control " + id, Status: status, Domain: "People",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("put mitigation %s = %d, body = %s", id, w.Code, w.Body.String())
		}
	}
}

func TestPutAndGetThreat(t *testing.T) {
	_, router := testEnv(t)
	seed(t, router)

	w := do(t, router, http.MethodGet, "/threats/T1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var got struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Severity string `json:"severity"`
	}
	decode(t, w, &got)
	if got.ID != "T1" || got.Name != "Phishing" || got.Severity != "High" {
		t.Errorf("got %+v", got)
	}

	w = do(t, router, http.MethodGet, "/threats/T1/mitigations", nil)
	var list struct {
		Mitigations []struct {
			ID string `json:"id"`
		} `json:"mitigations"`
	}
	decode(t, w, &list)
	if len(list.Mitigations) != 2 || list.Mitigations[0].ID != "M1" {
		t.Errorf("mitigations = %+v", list.Mitigations)
	}
}

func TestGetThreat_NotFound(t *testing.T) {
	_, router := testEnv(t)
	w := do(t, router, http.MethodGet, "/threats/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestPutThreat_Invalid(t *testing.T) {
	_, router := testEnv(t)

	w := do(t, router, http.MethodPut, "/threats/T1", ThreatRequest{Name: "X", Severity: "Extreme", Domain: "People"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}

	req := httptest.NewRequest(http.MethodPut, "/threats/T1", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d, want 400", rec.Code)
	}
}

func TestPutMitigation_UnknownThreat(t *testing.T) {
	_, router := testEnv(t)
	w := do(t, router, http.MethodPut, "/mitigations/M1", MitigationRequest{
		ThreatID: "ghost", Name: "MFA", Status: "Planned", Domain: "People",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
}

func TestDeleteThreat(t *testing.T) {
	_, router := testEnv(t)
	seed(t, router)

	if w := do(t, router, http.MethodDelete, "/threats/T1", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/mitigations/M1", nil); w.Code != http.StatusNotFound {
		t.Errorf("mitigation after cascade = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/threats/T1", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestSelectionFlow(t *testing.T) {
	svc, router := testEnv(t)
	seed(t, router)

	if w := do(t, router, http.MethodPut, "/workspace/mitigations/M1", nil); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("select mitigation before threat = %d, want 422", w.Code)
	}
	if w := do(t, router, http.MethodPut, "/workspace/threats/T1", nil); w.Code != http.StatusOK {
		t.Fatalf("select threat = %d", w.Code)
	}
	for _, id := range []string{"M1", "M2"} {
		if w := do(t, router, http.MethodPut, "/workspace/mitigations/"+id, nil); w.Code != http.StatusOK {
			t.Fatalf("select %s = %d", id, w.Code)
		}
	}

	w := do(t, router, http.MethodGet, "/analysis", nil)
	var an struct {
		Summary struct {
			TotalThreats   int     `json:"total_threats"`
			CompletionRate float64 `json:"completion_rate"`
		} `json:"summary"`
	}
	decode(t, w, &an)
	if an.Summary.TotalThreats != 1 || an.Summary.CompletionRate != 50 {
		t.Errorf("summary = %+v", an.Summary)
	}

	w = do(t, router, http.MethodDelete, "/workspace/threats/T1", nil)
	var sel SelectionResponse
	decode(t, w, &sel)
	if len(sel.Removed) != 2 {
		t.Errorf("removed = %v, want both mitigations", sel.Removed)
	}
	if ws := svc.Workspace(); len(ws.SelectedMitigations) != 0 {
		t.Errorf("selected mitigations = %d, want 0", len(ws.SelectedMitigations))
	}
}

func TestInteractionsAndDomains(t *testing.T) {
	svc, router := testEnv(t)
	before := len(svc.Workspace().Interactions)

	w := do(t, router, http.MethodPost, "/interactions", map[string]string{
		"from": "Customer", "to": "Information", "relationship": "read",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("add interaction = %d, body = %s", w.Code, w.Body.String())
	}
	if got := len(svc.Workspace().Interactions); got != before+1 {
		t.Errorf("interactions = %d, want %d", got, before+1)
	}

	w = do(t, router, http.MethodPost, "/interactions", map[string]string{
		"from": "Customer", "to": "Customer", "relationship": "loop",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("self loop = %d, want 422", w.Code)
	}

	if w := do(t, router, http.MethodDelete, "/interactions/abc", nil); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("non-numeric index = %d, want 422", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/interactions/0", nil); w.Code != http.StatusNoContent {
		t.Errorf("remove interaction = %d", w.Code)
	}

	w = do(t, router, http.MethodPut, "/domains/Partners", map[string]any{
		"color": "#ABCDEF", "position": map[string]float64{"x": 0.5, "y": 0.5},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("put domain = %d, body = %s", w.Code, w.Body.String())
	}
	if _, ok := svc.Workspace().Domains["Partners"]; !ok {
		t.Error("domain not added")
	}
	if w := do(t, router, http.MethodDelete, "/domains/Partners", nil); w.Code != http.StatusNoContent {
		t.Errorf("delete domain = %d", w.Code)
	}
}

func TestIterations(t *testing.T) {
	svc, router := testEnv(t)
	seed(t, router)
	do(t, router, http.MethodPut, "/workspace/threats/T1", nil)

	if w := do(t, router, http.MethodPost, "/iterations", IterationRequest{Name: " "}); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("blank name = %d, want 422", w.Code)
	}
	w := do(t, router, http.MethodPost, "/iterations", IterationRequest{Name: "  baseline "})
	if w.Code != http.StatusCreated {
		t.Fatalf("save = %d, body = %s", w.Code, w.Body.String())
	}
	var saved map[string]string
	decode(t, w, &saved)
	if saved["name"] != "baseline" {
		t.Errorf("saved name = %q, want the trimmed name", saved["name"])
	}

	do(t, router, http.MethodPost, "/workspace/reset", nil)
	if n := len(svc.Workspace().SelectedThreats); n != 0 {
		t.Fatalf("selected after reset = %d", n)
	}

	if w := do(t, router, http.MethodPost, "/iterations/baseline/load", nil); w.Code != http.StatusOK {
		t.Fatalf("load = %d", w.Code)
	}
	if _, ok := svc.Workspace().SelectedThreats["T1"]; !ok {
		t.Error("T1 not restored")
	}
	if svc.CurrentIteration() != "baseline" {
		t.Errorf("current = %q", svc.CurrentIteration())
	}

	if w := do(t, router, http.MethodPost, "/iterations/missing/load", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing iteration = %d, want 404", w.Code)
	}

	w = do(t, router, http.MethodGet, "/iterations", nil)
	var list struct {
		Iterations []struct {
			Name string `json:"name"`
		} `json:"iterations"`
		Current string `json:"current"`
	}
	decode(t, w, &list)
	if len(list.Iterations) != 1 || list.Current != "baseline" {
		t.Errorf("iterations = %+v", list)
	}
}

func TestOverview(t *testing.T) {
	_, router := testEnv(t)
	seed(t, router)

	w := do(t, router, http.MethodGet, "/overview", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var ov modelservice.Overview
	decode(t, w, &ov)
	if ov.TotalThreats != 1 || ov.TotalMitigations != 2 {
		t.Errorf("overview = %+v", ov)
	}
}

func TestSubdomains(t *testing.T) {
	_, router := testEnv(t)
	w := do(t, router, http.MethodPut, "/subdomains/SD1", SubdomainRequest{ParentDomain: "Services", Name: "Portal"})
	if w.Code != http.StatusOK {
		t.Fatalf("put = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodGet, "/subdomains?parent=Services", nil)
	var list struct {
		Subdomains []struct {
			ID string `json:"id"`
		} `json:"subdomains"`
	}
	decode(t, w, &list)
	if len(list.Subdomains) != 1 || list.Subdomains[0].ID != "SD1" {
		t.Errorf("subdomains = %+v", list.Subdomains)
	}
}
