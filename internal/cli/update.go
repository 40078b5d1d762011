package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-knowledge/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a knowledge entry",
		Long:  "Update a knowledge entry. Only the flags given are changed; --tags replaces the tag list.",
		Args:  cobra.ExactArgs(1),
		Run:   runUpdate,
	}

	cmd.Flags().String("title", "", "New title")
	cmd.Flags().String("content", "", "New content")
	cmd.Flags().String("source", "", "New source")
	cmd.Flags().String("tags", "", "Comma-separated replacement tags")

	RootCmd.AddCommand(cmd)
}

func runUpdate(cmd *cobra.Command, args []string) {
	id := parseID(args[0])

	var p store.UpdateKnowledgeParams
	flags := cmd.Flags()
	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		p.Title = &v
	}
	if flags.Changed("content") {
		v, _ := flags.GetString("content")
		p.Content = &v
	}
	if flags.Changed("source") {
		v, _ := flags.GetString("source")
		p.Source = &v
	}
	if flags.Changed("tags") {
		v, _ := flags.GetString("tags")
		p.Tags = splitTags(v)
		if p.Tags == nil {
			p.Tags = []string{}
		}
	}

	a := openApp(cmd.Context())
	defer a.Close()

	res, err := a.Knowledge.Update(cmd.Context(), id, p)
	if err != nil {
		exitErr("update", err)
	}
	if !res.Success {
		exitErr("update", fmt.Errorf("entry %d not found", id))
	}
	emit(res, func() { printEntry(res.Entry) })
}
