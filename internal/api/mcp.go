package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Israelam72/mini-seller-console/internal/conversion"
	"github.com/Israelam72/mini-seller-console/internal/crm"
	"github.com/Israelam72/mini-seller-console/internal/export"
	"github.com/Israelam72/mini-seller-console/internal/persistence"
	"github.com/Israelam72/mini-seller-console/internal/query"
)

const exportResourceURI = "crm://leads/export"

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Query      *query.Service
	Conversion *conversion.Workflow
	Store      *persistence.Store
}

// NewMCPServer creates an MCP server with the CRM tools and the lead export
// resource registered.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"miniseller",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("miniseller: triage sales leads and convert them into opportunities."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("query_leads",
			mcp.WithDescription("List leads, optionally filtered by a search term and statuses, sorted by a field."),
			mcp.WithString("search", mcp.Description("Case-insensitive match on name, company, email or source")),
			mcp.WithArray("statuses", mcp.Description("Keep only these statuses (New, Contacted, Qualified, Unqualified)")),
			mcp.WithString("sort_by", mcp.Description("Field to sort by (default score)")),
			mcp.WithString("sort_order", mcp.Description("asc or desc (default desc)")),
		),
		mcpQueryLeads(deps),
	)

	s.AddTool(
		mcp.NewTool("update_lead",
			mcp.WithDescription("Change the email and/or status of a lead."),
			mcp.WithNumber("id", mcp.Description("Lead id"), mcp.Required()),
			mcp.WithString("email", mcp.Description("New email address")),
			mcp.WithString("status", mcp.Description("New status")),
		),
		mcpUpdateLead(deps),
	)

	s.AddTool(
		mcp.NewTool("convert_lead",
			mcp.WithDescription("Convert a lead into an opportunity and remove it from the lead list."),
			mcp.WithNumber("id", mcp.Description("Lead id"), mcp.Required()),
		),
		mcpConvertLead(deps),
	)

	s.AddTool(
		mcp.NewTool("query_opportunities",
			mcp.WithDescription("List opportunities, optionally filtered by a search term."),
			mcp.WithString("search", mcp.Description("Case-insensitive match on name, stage, amount or account")),
		),
		mcpQueryOpportunities(deps),
	)

	s.AddResource(
		mcp.NewResource(
			exportResourceURI,
			"Lead Export",
			mcp.WithResourceDescription("Every stored lead as an indented JSON array"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceExport(deps),
	)

	return s
}

func mcpQueryLeads(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var statuses []crm.Status
		for _, s := range req.GetStringSlice("statuses", nil) {
			statuses = append(statuses, crm.Status(s))
		}

		leads, err := deps.Query.QueryLeads(ctx, query.LeadQuery{
			Search:    req.GetString("search", ""),
			Statuses:  statuses,
			SortBy:    req.GetString("sort_by", ""),
			SortOrder: req.GetString("sort_order", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("query failed: %v", err)), nil
		}

		return mcpJSON(leads)
	}
}

func mcpUpdateLead(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireInt("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		var upd UpdateLeadRequest
		args := req.GetArguments()
		if _, ok := args["email"]; ok {
			email := req.GetString("email", "")
			upd.Email = &email
		}
		if _, ok := args["status"]; ok {
			status := req.GetString("status", "")
			upd.Status = &status
		}
		if upd.Email == nil && upd.Status == nil {
			return mcpError("at least one of email or status is required"), nil
		}

		if err := updateLead(ctx, deps.Store, deps.Query, id, upd); err != nil {
			return mcpError(fmt.Sprintf("update failed: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Updated lead %d", id)), nil
	}
}

func mcpConvertLead(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireInt("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		res, err := deps.Conversion.ConvertByID(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("conversion failed: %v", err)), nil
		}

		return mcpJSON(res)
	}
}

func mcpQueryOpportunities(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		opps, err := deps.Query.QueryOpportunities(ctx, query.OpportunityQuery{
			Search: req.GetString("search", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("query failed: %v", err)), nil
		}

		return mcpJSON(opps)
	}
}

func mcpResourceExport(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		var buf bytes.Buffer
		if err := export.WriteLeads(&buf, export.Leads(ctx, deps.Store, nil)); err != nil {
			return nil, err
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     buf.String(),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
