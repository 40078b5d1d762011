// Package cli implements the agent-knowledge CLI commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/rcliao/agent-knowledge/internal/app"
	"github.com/rcliao/agent-knowledge/internal/config"
)

var (
	formatFlag string

	// logger writes diagnostics to stderr; stdout carries command output
	// and, under serve, the stdio MCP stream.
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "agent-knowledge",
	})
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "agent-knowledge",
	Short: "Personal knowledge store for AI agents",
	Long: titleStyle.Render("agent-knowledge") + " - knowledge entries and conversation sessions in SQLite,\n" +
		"mirrored into a vector index for semantic search. Serve it to agents over MCP.",
}

func init() {
	RootCmd.PersistentFlags().String("data-dir", "", "Data directory (default: $AGENT_KNOWLEDGE_DIR or ~/.agent-knowledge)")
	RootCmd.PersistentFlags().String("config", "", "Config file (default: <data-dir>/config.yaml)")
	RootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

// loadConfig resolves configuration and applies the log level.
func loadConfig() config.Config {
	cfg, err := config.Load(RootCmd.PersistentFlags())
	if err != nil {
		exitErr("load config", err)
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		exitErr("load config", fmt.Errorf("log_level: %w", err))
	}
	logger.SetLevel(level)
	return cfg
}

func openApp(ctx context.Context) *app.App {
	a, err := app.Open(ctx, loadConfig(), logger)
	if err != nil {
		exitErr("open", err)
	}
	return a
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

func parseID(arg string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		exitErr("parse id", fmt.Errorf("invalid id %q", arg))
	}
	return id
}

// splitTags parses a comma-separated tag list.
func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
