package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a knowledge entry",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	id := parseID(args[0])

	a := openApp(cmd.Context())
	defer a.Close()

	e, err := a.Knowledge.Get(cmd.Context(), id)
	if err != nil {
		exitErr("get", err)
	}
	if e == nil {
		exitErr("get", fmt.Errorf("entry %d not found", id))
	}
	emit(e, func() { printEntry(e) })
}
