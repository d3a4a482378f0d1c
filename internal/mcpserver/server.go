// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the filetype mapping store for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ftmemo/internal/apperr"
	"github.com/starford/ftmemo/internal/history"
	"github.com/starford/ftmemo/internal/memo"
	"github.com/starford/ftmemo/internal/resolve"
)

// Server wraps the MCP server with ftmemo tools.
type Server struct {
	mcp *server.MCPServer
	svc *memo.Service
	rec history.Recorder
}

// New creates a new MCP server with all ftmemo tools registered.
// rec may be nil when the change log is disabled.
func New(svc *memo.Service, rec history.Recorder) *Server {
	s := &Server{svc: svc, rec: rec}

	s.mcp = server.NewMCPServer(
		"ftmemo",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_mappings",
		mcp.WithDescription("List every stored path-to-filetype mapping."),
	), s.listMappings)

	s.mcp.AddTool(mcp.NewTool("get_filetype",
		mcp.WithDescription("Look up the stored filetype for a file path."),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path to look up")),
	), s.getFiletype)

	s.mcp.AddTool(mcp.NewTool("set_filetype",
		mcp.WithDescription("Store a filetype mapping for an existing file, as if the user had set it manually."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of an existing file")),
		mcp.WithString("filetype", mcp.Required(), mcp.Description("Filetype name to remember (non-empty)")),
	), s.setFiletype)

	s.mcp.AddTool(mcp.NewTool("clear_mapping",
		mcp.WithDescription("Remove the stored mapping for a file path."),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path whose mapping should be removed")),
	), s.clearMapping)

	s.mcp.AddTool(mcp.NewTool("run_cleanup",
		mcp.WithDescription("Remove mappings whose files no longer exist on disk."),
	), s.runCleanup)

	s.mcp.AddTool(mcp.NewTool("recent_changes",
		mcp.WithDescription("Show recent mapping changes from the change log (manual saves, restores, clears, sweeps)."),
		mcp.WithString("path", mcp.Description("Optional path to filter by")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default 50)")),
	), s.recentChanges)

	// Resource: editor integration protocol.
	s.mcp.AddResource(
		mcp.NewResource("ftmemo://protocol", "Editor Integration Protocol",
			mcp.WithResourceDescription("HTTP event protocol and timing contract for editor plugins."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readProtocolResource,
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

// canonical maps a user-supplied path to the mapping key, falling back to the
// raw value for files that no longer exist.
func canonical(path string) string {
	if p := resolve.Path(path); p != "" {
		return p
	}
	return path
}

func (s *Server) listMappings(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items := s.svc.List()
	if len(items) == 0 {
		return mcp.NewToolResultText("no stored mappings"), nil
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getFiletype(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ft, ok := s.svc.Lookup(canonical(path))
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no mapping stored for %s", path)), nil
	}
	return mcp.NewToolResultText(ft), nil
}

func (s *Server) setFiletype(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ft, err := req.RequireString("filetype")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Assign(path, ft); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("stored: %s -> %s", path, ft)), nil
}

func (s *Server) clearMapping(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.ClearPath(canonical(path)); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("no mapping stored for %s", path)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("cleared: %s", path)), nil
}

func (s *Server) runCleanup(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	removed, err := s.svc.Cleanup()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("removed %d stale mapping(s)", removed)), nil
}

func (s *Server) recentChanges(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.rec == nil {
		return mcp.NewToolResultError("change log is disabled"), nil
	}

	limit := 0
	if n, err := req.RequireFloat("limit"); err == nil {
		limit = int(n)
	}

	var (
		entries []history.Entry
		err     error
	)
	if path, pathErr := req.RequireString("path"); pathErr == nil && path != "" {
		entries, err = s.rec.ForPath(canonical(path), limit)
	} else {
		entries, err = s.rec.Recent(limit)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("no recorded changes"), nil
	}

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s  %-8s  %s: %q -> %q\n",
			e.RecordedAt.Format("2006-01-02 15:04:05"), e.Source, e.Path, e.OldFiletype, e.NewFiletype)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) readProtocolResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "ftmemo://protocol",
			MIMEType: "text/markdown",
			Text:     EditorProtocolContract,
		},
	}, nil
}
