package mcpserver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ftmemo/internal/memo"
	"github.com/starford/ftmemo/internal/resolve"
	"github.com/starford/ftmemo/internal/testutil"
)

func testServer(t *testing.T) (*Server, *memo.Service) {
	t.Helper()
	rec := testutil.TestHistory(t)
	svc := testutil.TestService(t, memo.WithRecorder(rec))
	return New(svc, rec), svc
}

func tempFile(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	canon := resolve.Path(p)
	if canon == "" {
		t.Fatalf("could not canonicalize %s", p)
	}
	return canon
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handler
	// functions are exercised directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_mappings":
		result, err = srv.listMappings(ctx, req)
	case "get_filetype":
		result, err = srv.getFiletype(ctx, req)
	case "set_filetype":
		result, err = srv.setFiletype(ctx, req)
	case "clear_mapping":
		result, err = srv.clearMapping(ctx, req)
	case "run_cleanup":
		result, err = srv.runCleanup(ctx, req)
	case "recent_changes":
		result, err = srv.recentChanges(ctx, req)
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

func TestSetAndGetFiletype(t *testing.T) {
	srv, _ := testServer(t)
	f := tempFile(t, "a.py")

	r := callTool(t, srv, "set_filetype", map[string]interface{}{
		"path":     f,
		"filetype": "python",
	})
	if r.IsError {
		t.Fatalf("set_filetype failed: %s", resultText(r))
	}

	r = callTool(t, srv, "get_filetype", map[string]interface{}{"path": f})
	if got := resultText(r); got != "python" {
		t.Errorf("get_filetype = %q, want python", got)
	}
}

func TestGetFiletype_NotFound(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_filetype", map[string]interface{}{"path": "/nothing"})
	if !r.IsError {
		t.Error("expected error result for missing mapping")
	}
}

func TestListMappings(t *testing.T) {
	srv, svc := testServer(t)

	r := callTool(t, srv, "list_mappings", nil)
	if got := resultText(r); got != "no stored mappings" {
		t.Errorf("empty list = %q", got)
	}

	f := tempFile(t, "a.py")
	_ = svc.Assign(f, "python")

	r = callTool(t, srv, "list_mappings", nil)
	if got := resultText(r); !strings.Contains(got, f) || !strings.Contains(got, "python") {
		t.Errorf("list missing entry: %q", got)
	}
}

func TestClearMapping(t *testing.T) {
	srv, svc := testServer(t)
	f := tempFile(t, "a.py")
	_ = svc.Assign(f, "python")

	r := callTool(t, srv, "clear_mapping", map[string]interface{}{"path": f})
	if r.IsError {
		t.Fatalf("clear_mapping failed: %s", resultText(r))
	}
	if _, ok := svc.Lookup(f); ok {
		t.Error("mapping still present after clear")
	}

	r = callTool(t, srv, "clear_mapping", map[string]interface{}{"path": f})
	if !r.IsError {
		t.Error("expected error clearing absent mapping")
	}
}

func TestRunCleanup(t *testing.T) {
	srv, svc := testServer(t)
	f := tempFile(t, "a.py")
	_ = svc.Assign(f, "python")
	_ = os.Remove(f)

	r := callTool(t, srv, "run_cleanup", nil)
	if got := resultText(r); !strings.Contains(got, "removed 1") {
		t.Errorf("run_cleanup = %q", got)
	}
}

func TestRecentChanges(t *testing.T) {
	srv, svc := testServer(t)
	f := tempFile(t, "a.py")
	_ = svc.Assign(f, "python")

	r := callTool(t, srv, "recent_changes", map[string]interface{}{})
	got := resultText(r)
	if !strings.Contains(got, "manual") || !strings.Contains(got, f) {
		t.Errorf("recent_changes = %q", got)
	}
}

func TestRecentChanges_DisabledHistory(t *testing.T) {
	svc := testutil.TestService(t)
	srv := New(svc, nil)
	r := callTool(t, srv, "recent_changes", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error when change log is disabled")
	}
}

func TestProtocolResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readProtocolResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || !strings.Contains(tc.Text, "/api/events/open") {
		t.Errorf("protocol resource missing event docs")
	}
}
