package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/agent-knowledge/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge entries, newest first",
		Run:   runList,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().Int("offset", 0, "Entries to skip")
	cmd.Flags().StringP("tags", "t", "", "Only entries with any of these comma-separated tags")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	tagsStr, _ := cmd.Flags().GetString("tags")

	a := openApp(cmd.Context())
	defer a.Close()

	entries, err := a.Knowledge.List(cmd.Context(), store.ListKnowledgeParams{
		Limit:  limit,
		Offset: offset,
		Tags:   splitTags(tagsStr),
	})
	if err != nil {
		exitErr("list", err)
	}
	emit(entries, func() { printEntries(entries) })
}
