package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/concierge"
	"github.com/aretw0/concierge/internal/cli"
	"github.com/aretw0/concierge/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the concierge as an MCP Server.
This allows other agents to start, approve and continue runs as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")
		if transport != "stdio" && transport != "sse" {
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}

		path, debug := configFlags(cmd)
		cfg, err := cli.LoadConfig(path, debug)
		if err != nil {
			return err
		}
		// Logs go to stderr so they never corrupt JSON-RPC on stdout.
		stack, err := cli.Build(cfg, cli.WithLogWriter(os.Stderr))
		if err != nil {
			return err
		}
		defer stack.Close()

		srv := mcp.NewServer(stack.Engine, concierge.Version, mcp.WithLogger(stack.Logger))

		switch transport {
		case "stdio":
			log.SetOutput(os.Stderr)
			stack.Logger.Info("Starting concierge MCP Server (Stdio)")
			return srv.ServeStdio()
		default:
			stack.Logger.Info("Starting concierge MCP Server (SSE)", "port", port)

			// Create a context that cancels on interrupt signal
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.ServeSSE(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			stack.Logger.Info("MCP Server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
}
