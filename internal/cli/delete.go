package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a knowledge entry",
		Args:    cobra.ExactArgs(1),
		Run:     runDelete,
	}

	RootCmd.AddCommand(cmd)
}

func runDelete(cmd *cobra.Command, args []string) {
	id := parseID(args[0])

	a := openApp(cmd.Context())
	defer a.Close()

	ok, err := a.Knowledge.Delete(cmd.Context(), id)
	if err != nil {
		exitErr("delete", err)
	}
	if !ok {
		exitErr("delete", fmt.Errorf("entry %d not found", id))
	}
	emit(map[string]any{"ok": true, "id": id}, func() {
		line(fmt.Sprintf("deleted entry #%d", id))
	})
}
