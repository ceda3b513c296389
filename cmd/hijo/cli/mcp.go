package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	hmcp "github.com/hijo-electricity/hijo/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the read-only MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes the project
portfolio and the contact inbox as read-only tools.

In stdio mode, the server communicates over stdin/stdout using JSON-RPC,
suitable for desktop MCP clients. In HTTP mode it listens on the given port
using the Streamable HTTP transport.`,
		Example: `  hijo mcp                                # stdio mode
  hijo mcp --transport http --port 3001   # Streamable HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(transport, port)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")

	return cmd
}

func runMCP(transport string, port int) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	logger := newLogger(s)

	st, err := openStore(s)
	if err != nil {
		return err
	}
	defer st.Close()

	mcpSrv := hmcp.NewMCPServer(st, versionString(), logger)

	switch transport {
	case "stdio":
		return mcpSrv.ServeStdio()
	case "http":
		return mcpSrv.ServeHTTP(fmt.Sprintf(":%d", port))
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
	}
}
