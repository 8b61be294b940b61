package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/threatmap/internal/modelservice"
	"github.com/starford/threatmap/internal/testutil"
)

func testServer(t *testing.T) (*Server, *modelservice.Service) {
	t.Helper()
	svc := modelservice.NewService(testutil.TestMemDB(t))
	return New(svc), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_threats":
		result, err = srv.listThreats(ctx, req)
	case "get_threat":
		result, err = srv.getThreat(ctx, req)
	case "save_threat":
		result, err = srv.saveThreat(ctx, req)
	case "save_mitigation":
		result, err = srv.saveMitigation(ctx, req)
	case "delete_threat":
		result, err = srv.deleteThreat(ctx, req)
	case "list_iterations":
		result, err = srv.listIterations(ctx, req)
	case "get_analysis":
		result, err = srv.getAnalysis(ctx, req)
	case "get_catalog_contract":
		result, err = srv.getCatalogContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func saveSample(t *testing.T, srv *Server) {
	t.Helper()
	r := callTool(t, srv, "save_threat", map[string]interface{}{
		"id": "ADV001", "name": "Credential stuffing", "severity": "High", "domain": "Services",
	})
	if r.IsError {
		t.Fatalf("save_threat: %s", resultText(r))
	}
	r = callTool(t, srv, "save_mitigation", map[string]interface{}{
		"id": "MIT001", "threat_id": "ADV001", "name": "MFA", "status": "Planned", "domain": "Services",
	})
	if r.IsError {
		t.Fatalf("save_mitigation: %s", resultText(r))
	}
}

func TestSaveAndGetThreat(t *testing.T) {
	srv, _ := testServer(t)
	saveSample(t, srv)

	r := callTool(t, srv, "get_threat", map[string]interface{}{"id": "ADV001"})
	text := resultText(r)
	if r.IsError || !strings.Contains(text, `"Credential stuffing"`) || !strings.Contains(text, `"MIT001"`) {
		t.Errorf("get_threat = %q", text)
	}

	r = callTool(t, srv, "list_threats", map[string]interface{}{})
	if !strings.Contains(resultText(r), "ADV001") {
		t.Errorf("list_threats = %q", resultText(r))
	}
}

func TestSaveThreatInvalidSeverity(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "save_threat", map[string]interface{}{
		"id": "ADV001", "name": "X", "severity": "Extreme", "domain": "Services",
	})
	if !r.IsError {
		t.Error("expected error for invalid severity")
	}
}

func TestGetThreatMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_threat", map[string]interface{}{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing threat")
	}
	r = callTool(t, srv, "get_threat", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing id argument")
	}
}

func TestDeleteThreat(t *testing.T) {
	srv, _ := testServer(t)
	saveSample(t, srv)

	r := callTool(t, srv, "delete_threat", map[string]interface{}{"id": "ADV001"})
	if resultText(r) != "deleted: ADV001" {
		t.Errorf("delete = %q", resultText(r))
	}
	r = callTool(t, srv, "get_threat", map[string]interface{}{"id": "ADV001"})
	if !r.IsError {
		t.Error("threat still present after delete")
	}
}

func TestGetAnalysis(t *testing.T) {
	srv, svc := testServer(t)
	saveSample(t, srv)

	r := callTool(t, srv, "get_analysis", map[string]interface{}{})
	if !strings.Contains(resultText(r), `"total_threats": 1`) {
		t.Errorf("overview = %q", resultText(r))
	}

	if _, err := svc.SelectThreat(context.Background(), "ADV001"); err != nil {
		t.Fatal(err)
	}
	r = callTool(t, srv, "get_analysis", map[string]interface{}{})
	if !strings.Contains(resultText(r), `"summary"`) {
		t.Errorf("analysis = %q", resultText(r))
	}
}

func TestListIterations(t *testing.T) {
	srv, svc := testServer(t)
	r := callTool(t, srv, "list_iterations", map[string]interface{}{})
	if resultText(r) != "no iterations saved" {
		t.Errorf("empty list = %q", resultText(r))
	}
	if err := svc.SaveCurrentAsIteration(context.Background(), "baseline", ""); err != nil {
		t.Fatal(err)
	}
	r = callTool(t, srv, "list_iterations", map[string]interface{}{})
	if !strings.Contains(resultText(r), "baseline") {
		t.Errorf("list = %q", resultText(r))
	}
}

func TestCatalogContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_catalog_contract", map[string]interface{}{})
	if !strings.HasPrefix(resultText(r), "# Threatmap Catalog Format") {
		t.Error("unexpected contract text")
	}
	res, err := srv.readCatalogFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(res) != 1 {
		t.Fatalf("resource = %v, %v", res, err)
	}
}
