package tools

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/DeusData/depclosure/internal/deps"
	"github.com/DeusData/depclosure/internal/store"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is reported in the MCP implementation info.
var Version = "dev"

// Server wraps the MCP server with tool handlers.
type Server struct {
	mcp      *mcp.Server
	resolver *deps.Resolver
	store    *store.Store
}

// NewServer creates a new MCP server with all tools registered.
func NewServer(r *deps.Resolver, s *store.Store) *Server {
	srv := &Server{
		resolver: r,
		store:    s,
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "depclosure",
				Version: Version,
			},
			nil,
		),
	}
	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "dependencies_of",
		Description: "List every file a source file transitively depends on (imports, @use/@import, load-css), resolved to absolute paths on disk. Unresolvable references are skipped.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {
					"type": "string",
					"description": "Path of the root file (absolute, or relative to the server's working directory)"
				}
			},
			"required": ["path"]
		}`),
	}, s.handleDependenciesOf)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "is_stale",
		Description: "Report whether a file or any of its transitive dependencies was modified after a reference time. Without 'since', the last recorded build stamp is used; a file that was never stamped is stale.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {
					"type": "string",
					"description": "Path of the root file"
				},
				"since": {
					"type": "string",
					"description": "Reference time in RFC 3339 (e.g. 2026-01-02T15:04:05Z). Optional."
				}
			},
			"required": ["path"]
		}`),
	}, s.handleIsStale)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "record_stamp",
		Description: "Record that a file was built now, together with a fingerprint of its dependency closure.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {
					"type": "string",
					"description": "Path of the root file"
				}
			},
			"required": ["path"]
		}`),
	}, s.handleRecordStamp)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_stamps",
		Description: "List all recorded build stamps with their build time and closure fingerprint.",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, s.handleListStamps)
}

// jsonResult marshals data to JSON and returns as tool result.
func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}

// errResult returns a tool result indicating an error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// parseArgs unmarshals the raw JSON arguments into a map.
func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if req.Params == nil || len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

// getStringArg extracts a string argument from parsed args.
func getStringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// pathArg returns the absolute form of the required "path" argument.
func pathArg(args map[string]any) (string, error) {
	p := getStringArg(args, "path")
	if p == "" {
		return "", fmt.Errorf("path is required")
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	return abs, nil
}
