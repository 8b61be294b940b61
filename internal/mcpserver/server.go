// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes threat model tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/threatmap/internal/apperr"
	"github.com/starford/threatmap/internal/models"
	"github.com/starford/threatmap/internal/modelservice"
)

const catalogFormatURI = "threatmap://catalog-format"

// Server wraps the MCP server with threat model tools.
type Server struct {
	mcp *server.MCPServer
	svc *modelservice.Service
}

func severityNames() []string {
	out := make([]string, 0, len(models.Severities()))
	for _, s := range models.Severities() {
		out = append(out, string(s))
	}
	return out
}

func statusNames() []string {
	out := make([]string, 0, len(models.Statuses()))
	for _, s := range models.Statuses() {
		out = append(out, string(s))
	}
	return out
}

// New creates a new MCP server with all tools registered.
func New(svc *modelservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Threatmap",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_threats",
		mcp.WithDescription("List all threats in the catalog, ordered by id."),
	), s.listThreats)

	s.mcp.AddTool(mcp.NewTool("get_threat",
		mcp.WithDescription("Get one threat together with its mitigations."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Threat id (e.g. ADV001)")),
	), s.getThreat)

	s.mcp.AddTool(mcp.NewTool("save_threat",
		mcp.WithDescription("Create or replace a threat. An existing id is overwritten."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Threat id")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Short threat name")),
		mcp.WithString("description", mcp.Description("Longer description")),
		mcp.WithString("severity", mcp.Required(), mcp.Enum(severityNames()...)),
		mcp.WithString("domain", mcp.Required(), mcp.Description("Architecture domain the threat targets")),
	), s.saveThreat)

	s.mcp.AddTool(mcp.NewTool("save_mitigation",
		mcp.WithDescription("Create or replace a mitigation of an existing threat."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Mitigation id")),
		mcp.WithString("threat_id", mcp.Required(), mcp.Description("Id of the threat it mitigates")),
		mcp.WithString("name", mcp.Required()),
		mcp.WithString("description"),
		mcp.WithString("status", mcp.Required(), mcp.Enum(statusNames()...)),
		mcp.WithString("domain", mcp.Required()),
	), s.saveMitigation)

	s.mcp.AddTool(mcp.NewTool("delete_threat",
		mcp.WithDescription("Delete a threat and all of its mitigations."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Threat id")),
	), s.deleteThreat)

	s.mcp.AddTool(mcp.NewTool("list_iterations",
		mcp.WithDescription("List saved iterations, newest first."),
	), s.listIterations)

	s.mcp.AddTool(mcp.NewTool("get_analysis",
		mcp.WithDescription("Summary, counts and coverage of the current selection. "+
			"When nothing is selected the store overview is returned instead."),
	), s.getAnalysis)

	s.mcp.AddTool(mcp.NewTool("get_catalog_contract",
		mcp.WithDescription("Returns the YAML catalog format. "+
			"Call this before drafting catalog files."),
	), s.getCatalogContract)

	s.mcp.AddResource(
		mcp.NewResource(catalogFormatURI, "Catalog Format",
			mcp.WithResourceDescription("YAML format of threat catalog files."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readCatalogFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toolError turns a service error into a tool-level error. Validation and
// not-found messages are shown as is.
func toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) && !apperr.IsValidation(err) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %v", err))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) listThreats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	threats, err := s.svc.ListThreats(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(threats)
}

func (s *Server) getThreat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := s.svc.GetThreat(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	ms, err := s.svc.ListMitigations(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(struct {
		models.Threat
		Mitigations []models.Mitigation `json:"mitigations"`
	}{t, ms})
}

func (s *Server) saveThreat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := s.svc.SaveThreat(ctx, models.Threat{
		ID:          id,
		Name:        req.GetString("name", ""),
		Description: req.GetString("description", ""),
		Severity:    models.Severity(req.GetString("severity", "")),
		Domain:      req.GetString("domain", ""),
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(t)
}

func (s *Server) saveMitigation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.svc.SaveMitigation(ctx, models.Mitigation{
		ID:          id,
		ThreatID:    req.GetString("threat_id", ""),
		Name:        req.GetString("name", ""),
		Description: req.GetString("description", ""),
		Status:      models.Status(req.GetString("status", "")),
		Domain:      req.GetString("domain", ""),
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(m)
}

func (s *Server) deleteThreat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.DeleteThreat(ctx, id); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) listIterations(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	its, err := s.svc.ListIterations(ctx)
	if err != nil {
		return toolError(err), nil
	}
	if len(its) == 0 {
		return mcp.NewToolResultText("no iterations saved"), nil
	}
	return jsonResult(its)
}

func (s *Server) getAnalysis(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ws := s.svc.Workspace()
	if len(ws.SelectedThreats) == 0 {
		ov, err := s.svc.Overview(ctx)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(ov)
	}
	return jsonResult(s.svc.Analyze())
}

func (s *Server) getCatalogContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CatalogFormatContract), nil
}

func (s *Server) readCatalogFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      catalogFormatURI,
			MIMEType: "text/markdown",
			Text:     CatalogFormatContract,
		},
	}, nil
}
