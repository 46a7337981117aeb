package main

import (
	"log/slog"

	"github.com/DeusData/depclosure/internal/tools"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the dependency tools over MCP on stdio",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	srv := tools.NewServer(e.resolver, s)
	slog.Debug("mcp.start", "version", version)
	return srv.MCPServer().Run(ctx, &mcp.StdioTransport{})
}
