package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hijo-electricity/hijo/internal/model"
	"github.com/hijo-electricity/hijo/internal/store"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		val      int
		min      int
		max      int
		expected int
	}{
		{"value in range", 5, 1, 10, 5},
		{"value below min", -3, 1, 10, 1},
		{"value above max", 15, 1, 10, 10},
		{"value equals min", 1, 1, 10, 1},
		{"value equals max", 10, 1, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clamp(tt.val, tt.min, tt.max)
			if got != tt.expected {
				t.Errorf("clamp(%d, %d, %d) = %d, want %d", tt.val, tt.min, tt.max, got, tt.expected)
			}
		})
	}
}

func newTestServer(t *testing.T) (*MCPServer, *store.Store) {
	t.Helper()
	st, err := store.Open(store.DefaultConfig())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMCPServer(st, "test", logger), st
}

func call(t *testing.T, s *MCPServer, tool string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	st, ok := s.Server().ListTools()[tool]
	if !ok {
		t.Fatalf("tool %q not registered", tool)
	}
	res, err := st.Handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: tool, Arguments: args},
	})
	if err != nil {
		t.Fatalf("%s: %v", tool, err)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(res.Content))
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T", res.Content[0])
	}
	return tc.Text
}

func TestToolsAreReadOnly(t *testing.T) {
	s, _ := newTestServer(t)
	tools := s.Server().ListTools()
	for _, name := range []string{"hijo_list_projects", "hijo_get_project", "hijo_list_contacts", "hijo_get_contact"} {
		st, ok := tools[name]
		if !ok {
			t.Errorf("missing tool %q", name)
			continue
		}
		if hint := st.Tool.Annotations.ReadOnlyHint; hint == nil || !*hint {
			t.Errorf("%s is not annotated read-only", name)
		}
	}
	if len(tools) != 4 {
		t.Errorf("expected 4 tools, got %d", len(tools))
	}
}

func TestListProjectsLimit(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()
	for _, title := range []string{"Villa lighting", "Factory panel", "Shop rewiring"} {
		if err := st.CreateProject(ctx, &model.Project{TitleEn: title, DescriptionEn: "d", Image: "/uploads/projects/x.jpg"}); err != nil {
			t.Fatalf("CreateProject: %v", err)
		}
	}

	res := call(t, s, "hijo_list_projects", map[string]any{"limit": float64(2)})
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	var out struct {
		Total    int             `json:"total"`
		Projects []model.Project `json:"projects"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Total != 3 || len(out.Projects) != 2 {
		t.Errorf("total=%d returned=%d, want 3 and 2", out.Total, len(out.Projects))
	}
}

func TestGetContact(t *testing.T) {
	s, st := newTestServer(t)
	c := &model.Contact{Name: "Omar", Email: "omar@example.com", Message: "Please call me back."}
	if err := st.CreateContact(context.Background(), c); err != nil {
		t.Fatalf("CreateContact: %v", err)
	}

	res := call(t, s, "hijo_get_contact", map[string]any{"id": float64(c.ID)})
	if res.IsError || !strings.Contains(resultText(t, res), "omar@example.com") {
		t.Errorf("unexpected result: %s", resultText(t, res))
	}

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing", map[string]any{"id": float64(c.ID + 100)}, "not found"},
		{"zero", map[string]any{"id": float64(0)}, "positive integer"},
		{"absent", map[string]any{}, "positive integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, s, "hijo_get_contact", tt.args)
			if !res.IsError {
				t.Fatal("expected a tool error")
			}
			if got := resultText(t, res); !strings.Contains(got, tt.want) {
				t.Errorf("error = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}
