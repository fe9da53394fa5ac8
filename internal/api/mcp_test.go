package api

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Israelam72/mini-seller-console/internal/conversion"
	"github.com/Israelam72/mini-seller-console/internal/crm"
	"github.com/Israelam72/mini-seller-console/internal/query"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) MCPDeps {
	t.Helper()
	app, _ := newTestDeps(t, query.Instant{})
	return MCPDeps{Query: app.Query, Conversion: app.Conversion, Store: app.Store}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tests ---

func TestMCPTool_QueryLeads(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpQueryLeads(deps)

	req := makeCallToolRequest("query_leads", map[string]interface{}{
		"statuses":   []interface{}{"Contacted", "Qualified"},
		"sort_by":    "name",
		"sort_order": "asc",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var leads []crm.Lead
	if err := json.Unmarshal([]byte(toolText(t, result)), &leads); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(leads) != 2 || leads[0].Name != "Bob" || leads[1].Name != "Cy" {
		t.Fatalf("unexpected leads: %+v", leads)
	}
}

func TestMCPTool_QueryLeads_InvalidSort(t *testing.T) {
	deps := newTestMCPDeps(t)

	result, err := mcpQueryLeads(deps)(context.Background(), makeCallToolRequest("query_leads", map[string]interface{}{
		"sort_by": "phone",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
}

func TestMCPTool_UpdateLead(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpUpdateLead(deps)

	req := makeCallToolRequest("update_lead", map[string]interface{}{
		"id":     3,
		"status": "Unqualified",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if text := toolText(t, result); text != "Updated lead 3" {
		t.Fatalf("unexpected response: %s", text)
	}

	got, err := deps.Store.GetLead(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != crm.StatusUnqualified || got.Email != "cy@corp.org" {
		t.Fatalf("lead = %+v", got)
	}
}

func TestMCPTool_UpdateLead_Errors(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpUpdateLead(deps)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing id", map[string]interface{}{"status": "New"}, "id is required"},
		{"no fields", map[string]interface{}{"id": 1}, "at least one"},
		{"bad email", map[string]interface{}{"id": 1, "email": "x"}, "email"},
		{"unknown lead", map[string]interface{}{"id": 42, "status": "New"}, "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := handler(context.Background(), makeCallToolRequest("update_lead", tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Fatal("expected error result")
			}
			if text := toolText(t, result); !strings.Contains(text, tt.want) {
				t.Errorf("text = %q, want it to contain %q", text, tt.want)
			}
		})
	}
}

func TestMCPTool_ConvertLead(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpConvertLead(deps)

	result, err := handler(context.Background(), makeCallToolRequest("convert_lead", map[string]interface{}{"id": 1}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var res conversion.Result
	if err := json.Unmarshal([]byte(toolText(t, result)), &res); err != nil {
		t.Fatal(err)
	}
	if res.Opportunity.ID != 1 || res.Opportunity.Stage != crm.InitialStage {
		t.Fatalf("result = %+v", res)
	}

	opps, err := deps.Query.QueryOpportunities(context.Background(), query.OpportunityQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
}

func TestMCPTool_QueryOpportunities_Empty(t *testing.T) {
	deps := newTestMCPDeps(t)

	result, err := mcpQueryOpportunities(deps)(context.Background(), makeCallToolRequest("query_opportunities", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text := toolText(t, result); text != "[]" {
		t.Fatalf("expected empty array, got: %s", text)
	}
}

func TestMCPResource_Export(t *testing.T) {
	deps := newTestMCPDeps(t)

	contents, err := mcpResourceExport(deps)(context.Background(), makeReadResourceRequest(exportResourceURI))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.MIMEType != "application/json" || tc.URI != exportResourceURI {
		t.Errorf("contents = %+v", tc)
	}

	var leads []crm.Lead
	if err := json.Unmarshal([]byte(tc.Text), &leads); err != nil {
		t.Fatal(err)
	}
	if len(leads) != 3 {
		t.Errorf("exported %d leads, want 3", len(leads))
	}
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	deps := newTestMCPDeps(t)
	updateHandler := mcpUpdateLead(deps)
	queryHandler := mcpQueryLeads(deps)

	var wg sync.WaitGroup
	errs := make(chan error, 20)

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := makeCallToolRequest("update_lead", map[string]interface{}{
				"id":     2,
				"status": "Qualified",
			})
			if _, err := updateHandler(context.Background(), req); err != nil {
				errs <- err
			}
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := queryHandler(context.Background(), makeCallToolRequest("query_leads", nil)); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent call failed: %v", err)
	}
	if got, _ := deps.Store.GetLead(context.Background(), 2); got.Status != crm.StatusQualified {
		t.Errorf("status = %s, want Qualified", got.Status)
	}
}

func TestNewMCPServer(t *testing.T) {
	if s := NewMCPServer(newTestMCPDeps(t), "test"); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
