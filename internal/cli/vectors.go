package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "vectors",
		Short: "Manage the vector index",
	}

	convertCmd := &cobra.Command{
		Use:   "convert",
		Short: "Rebuild knowledge vectors from the database",
		Long: "Re-embed every knowledge entry into the vector index. Session messages are only\n" +
			"embedded when logged and are not rebuilt.",
		Run: runVectorsConvert,
	}
	convertCmd.Flags().Bool("clear", false, "Drop the index first (also drops session message vectors)")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show vector index statistics",
		Run:   runVectorsStats,
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every vector; session message vectors cannot be rebuilt",
		Run:   runVectorsClear,
	}
	clearCmd.Flags().Bool("yes", false, "Confirm")

	cmd.AddCommand(convertCmd, statsCmd, clearCmd)
	RootCmd.AddCommand(cmd)
}

func runVectorsConvert(cmd *cobra.Command, args []string) {
	drop, _ := cmd.Flags().GetBool("clear")
	ctx := cmd.Context()

	a := openApp(ctx)
	defer a.Close()

	if drop {
		if err := a.Index.Clear(ctx); err != nil {
			exitErr("clear vectors", err)
		}
	}
	res, err := a.Knowledge.Reindex(ctx)
	if err != nil {
		exitErr("convert", err)
	}
	emit(res, func() {
		line(fmt.Sprintf("indexed %d of %d entries", res.Indexed, res.Total))
		if res.Failed > 0 {
			line(dimStyle.Render(fmt.Sprintf("%d failed; is the embedding provider running?", res.Failed)))
		}
	})
}

func runVectorsStats(cmd *cobra.Command, args []string) {
	a := openApp(cmd.Context())
	defer a.Close()

	vs, err := a.Index.Stats(cmd.Context())
	if err != nil {
		exitErr("vector stats", err)
	}
	emit(vs, func() { printVectorStats(vs) })
}

func runVectorsClear(cmd *cobra.Command, args []string) {
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		exitErr("clear", fmt.Errorf("pass --yes to drop all vectors"))
	}

	a := openApp(cmd.Context())
	defer a.Close()

	if err := a.Index.Clear(cmd.Context()); err != nil {
		exitErr("clear", err)
	}
	emit(map[string]any{"ok": true}, func() { line("vector index cleared") })
}
