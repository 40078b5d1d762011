package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-knowledge/internal/service"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add <title> [content]",
		Short: "Store a knowledge entry",
		Long:  "Store a knowledge entry. Content can be a positional arg or piped via stdin.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAdd,
	}

	cmd.Flags().StringP("source", "s", "", "Where the knowledge came from")
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	source, _ := cmd.Flags().GetString("source")
	tagsStr, _ := cmd.Flags().GetString("tags")

	title := args[0]
	var content string
	if len(args) > 1 {
		content = strings.Join(args[1:], " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}
	if strings.TrimSpace(content) == "" {
		exitErr("add", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	var src *string
	if source != "" {
		src = &source
	}

	a := openApp(cmd.Context())
	defer a.Close()

	res, err := a.Knowledge.Add(cmd.Context(), service.AddKnowledgeParams{
		Title:   title,
		Content: content,
		Source:  src,
		Tags:    splitTags(tagsStr),
	})
	if err != nil {
		exitErr("add", err)
	}

	emit(res, func() {
		msg := fmt.Sprintf("stored entry #%d", res.ID)
		if !res.Vectorized {
			msg += dimStyle.Render(" (not indexed: embedding unavailable)")
		}
		line(msg)
	})
}
