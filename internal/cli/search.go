package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-knowledge/internal/service"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search knowledge",
		Long:  "Semantic search over knowledge entries. Use --text for keyword matching instead.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().Bool("text", false, "Keyword search instead of semantic search")
	cmd.Flags().IntP("limit", "l", service.DefaultSearchLimit, "Max results")
	cmd.Flags().Float64("min-score", service.DefaultMinScore, "Minimum similarity score (semantic only)")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	text, _ := cmd.Flags().GetBool("text")
	limit, _ := cmd.Flags().GetInt("limit")
	minScore, _ := cmd.Flags().GetFloat64("min-score")
	query := strings.Join(args, " ")

	a := openApp(cmd.Context())
	defer a.Close()

	if text {
		entries, err := a.Knowledge.SearchText(cmd.Context(), query, limit)
		if err != nil {
			exitErr("search", err)
		}
		emit(entries, func() { printEntries(entries) })
		return
	}

	hits, err := a.Knowledge.Search(cmd.Context(), query, limit, minScore)
	if err != nil {
		exitErr("search", err)
	}
	emit(hits, func() { printHits(hits) })
}
