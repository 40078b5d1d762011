package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-knowledge/internal/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long:  "Run the MCP server over stdio (for agent hosts) or streamable HTTP.",
		Run:   runServe,
	}

	cmd.Flags().String("transport", server.TransportStdio, "Transport: stdio or http")
	cmd.Flags().String("addr", ":8081", "Listen address (http only)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	transport, _ := cmd.Flags().GetString("transport")
	addr, _ := cmd.Flags().GetString("addr")

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := openApp(ctx)
	defer a.Close()

	if err := server.Serve(ctx, a, transport, addr); err != nil {
		a.Close()
		exitErr("serve", err)
	}
}
