package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all knowledge entries as JSON",
		Run:   runExport,
	}

	cmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	output, _ := cmd.Flags().GetString("output")

	a := openApp(cmd.Context())
	defer a.Close()

	entries, err := a.Knowledge.Export(cmd.Context())
	if err != nil {
		exitErr("export", err)
	}

	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		exitErr("export", err)
	}
	if output == "" {
		fmt.Fprintln(out, string(b))
		return
	}
	if err := os.WriteFile(output, append(b, '\n'), 0o644); err != nil {
		exitErr("export", err)
	}
	logger.Info("exported", "entries", len(entries), "file", output)
}
