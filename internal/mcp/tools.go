package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hijo-electricity/hijo/internal/store"
)

const (
	defaultLimit = 25
	maxLimit     = 500
)

func (s *MCPServer) registerTools(srv *server.MCPServer) {
	srv.AddTool(
		mcp.NewTool("hijo_list_projects",
			mcp.WithDescription(
				"List portfolio projects, newest first. Each project has English and "+
					"optional Arabic title and description plus the public image path.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of projects to return (default 25, max 500)"),
				mcp.Min(1),
			),
		),
		s.handleListProjects,
	)

	srv.AddTool(
		mcp.NewTool("hijo_get_project",
			mcp.WithDescription("Get one portfolio project by id."),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Project id"),
				mcp.Min(1),
			),
		),
		s.handleGetProject,
	)

	srv.AddTool(
		mcp.NewTool("hijo_list_contacts",
			mcp.WithDescription(
				"List contact form submissions, newest first. Contains visitor names, "+
					"emails and phone numbers.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of submissions to return (default 25, max 500)"),
				mcp.Min(1),
			),
		),
		s.handleListContacts,
	)

	srv.AddTool(
		mcp.NewTool("hijo_get_contact",
			mcp.WithDescription("Get one contact form submission by id."),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Submission id"),
				mcp.Min(1),
			),
		),
		s.handleGetContact,
	)
}

func (s *MCPServer) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "mcp list projects", "error", err)
		return toolError("Failed to list projects: %v", err)
	}
	limit := clamp(request.GetInt("limit", defaultLimit), 1, maxLimit)
	return successJSON(map[string]interface{}{
		"total":    len(projects),
		"projects": window(projects, limit),
	})
}

func (s *MCPServer) handleGetProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(request)
	if err != nil {
		return toolError("%v", err)
	}
	p, err := s.store.GetProject(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return toolError("Project %d not found", id)
	}
	if err != nil {
		return toolError("Failed to get project %d: %v", id, err)
	}
	return successJSON(p)
}

func (s *MCPServer) handleListContacts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contacts, err := s.store.ListContacts(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "mcp list contacts", "error", err)
		return toolError("Failed to list contacts: %v", err)
	}
	limit := clamp(request.GetInt("limit", defaultLimit), 1, maxLimit)
	return successJSON(map[string]interface{}{
		"total":    len(contacts),
		"contacts": window(contacts, limit),
	})
}

func (s *MCPServer) handleGetContact(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(request)
	if err != nil {
		return toolError("%v", err)
	}
	c, err := s.store.GetContact(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return toolError("Contact %d not found", id)
	}
	if err != nil {
		return toolError("Failed to get contact %d: %v", id, err)
	}
	return successJSON(c)
}
