package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/DeusData/depclosure/internal/stamp"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleDependenciesOf(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	root, err := pathArg(args)
	if err != nil {
		return errResult(err.Error()), nil
	}

	closure, err := s.resolver.DependenciesOf(root)
	if err != nil {
		return errResult(fmt.Sprintf("dependencies of %s: %v", root, err)), nil
	}

	return jsonResult(map[string]any{
		"root":         root,
		"count":        len(closure),
		"dependencies": closure.Sorted(),
	}), nil
}

func (s *Server) handleIsStale(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	root, err := pathArg(args)
	if err != nil {
		return errResult(err.Error()), nil
	}

	var since *time.Time
	if raw := getStringArg(args, "since"); raw != "" {
		ts, parseErr := time.Parse(time.RFC3339, raw)
		if parseErr != nil {
			return errResult(fmt.Sprintf("invalid since: %v", parseErr)), nil
		}
		since = &ts
	}

	stale, err := stamp.Check(s.resolver, s.store, root, since)
	if err != nil {
		return errResult(fmt.Sprintf("stale check %s: %v", root, err)), nil
	}
	return jsonResult(map[string]any{
		"root":  root,
		"stale": stale,
	}), nil
}

func (s *Server) handleRecordStamp(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	root, err := pathArg(args)
	if err != nil {
		return errResult(err.Error()), nil
	}

	st, err := stamp.Record(s.resolver, s.store, root, time.Now())
	if err != nil {
		return errResult(fmt.Sprintf("record stamp %s: %v", root, err)), nil
	}
	return jsonResult(map[string]any{
		"root":        st.RootPath,
		"built_at":    st.BuiltAt.UTC().Format(time.RFC3339Nano),
		"fingerprint": st.Fingerprint,
	}), nil
}

func (s *Server) handleListStamps(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stamps, err := s.store.ListStamps()
	if err != nil {
		return errResult(fmt.Sprintf("list stamps: %v", err)), nil
	}

	type stampInfo struct {
		Root        string `json:"root"`
		BuiltAt     string `json:"built_at"`
		Fingerprint string `json:"fingerprint"`
	}
	result := make([]stampInfo, 0, len(stamps))
	for _, st := range stamps {
		result = append(result, stampInfo{
			Root:        st.RootPath,
			BuiltAt:     st.BuiltAt.UTC().Format(time.RFC3339Nano),
			Fingerprint: st.Fingerprint,
		})
	}
	return jsonResult(result), nil
}
