package cmd

import (
	"github.com/agentic-research/hl7find/internal/mcpserver"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the find_structures tool over MCP on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.Info("serving MCP on stdio")
		return mcpserver.ServeStdio(mcpserver.NewHandler(cfg.ProfileRegistry(), logger), version)
	},
}
