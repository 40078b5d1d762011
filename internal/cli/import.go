package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-knowledge/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import knowledge entries from JSON",
		Long:  "Import knowledge entries from JSON (file or stdin). Expects the format produced by export; ids are reassigned.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	var r io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			exitErr("open file", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		exitErr("read input", err)
	}

	var entries []model.KnowledgeEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		exitErr("parse json", err)
	}

	a := openApp(cmd.Context())
	defer a.Close()

	imported, err := a.Knowledge.Import(cmd.Context(), entries)
	if err != nil {
		exitErr("import", fmt.Errorf("after %d entries: %w", imported, err))
	}
	emit(map[string]any{"ok": true, "imported": imported}, func() {
		line(fmt.Sprintf("imported %d entries", imported))
	})
}
