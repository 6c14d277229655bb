package main

import (
	"context"

	"github.com/imfeniljikadara/nexus-ai/internal/app"
	"github.com/imfeniljikadara/nexus-ai/internal/mcpServer"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the ask_pdf and forget_pdf tools over stdio",
	Long: `Starts an MCP server on stdin/stdout. Example client configuration:

  {
    "mcpServers": {
      "pdfchat": {
        "command": "pdfchat",
        "args": ["mcp"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			server, err := mcpServer.NewServer(a.Sessions, a)
			if err != nil {
				return err
			}
			return server.Run(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
