package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-knowledge/internal/store"
	"github.com/rcliao/agent-knowledge/internal/vector"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge, session and vector index statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

type statsOutput struct {
	DataDir   string                `json:"data_dir"`
	Knowledge *store.KnowledgeStats `json:"knowledge"`
	Sessions  *store.SessionStats   `json:"sessions"`
	Vectors   vector.Stats          `json:"vectors"`
}

func runStats(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	a := openApp(ctx)
	defer a.Close()

	ks, err := a.Knowledge.Stats(ctx)
	if err != nil {
		exitErr("stats", err)
	}
	ss, err := a.Sessions.Stats(ctx)
	if err != nil {
		exitErr("stats", err)
	}
	vs, err := a.Index.Stats(ctx)
	if err != nil {
		exitErr("stats", err)
	}

	res := statsOutput{DataDir: a.Config.DataDir, Knowledge: ks, Sessions: ss, Vectors: vs}
	emit(res, func() {
		line(titleStyle.Render("Knowledge"))
		printKV("Entries", ks.Total)
		if ks.Oldest != nil && ks.Newest != nil {
			printKV("Range", stamp(*ks.Oldest)+" .. "+stamp(*ks.Newest))
		}
		for _, tc := range ks.Tags {
			printKV("#"+tc.Tag, tc.Count)
		}
		line()
		line(titleStyle.Render("Sessions"))
		printKV("Total", ss.TotalSessions)
		printKV("Active", ss.ActiveSessions)
		printKV("Messages", ss.TotalMessages)
		roles := make([]string, 0, len(ss.MessagesByRole))
		for r := range ss.MessagesByRole {
			roles = append(roles, r)
		}
		sort.Strings(roles)
		for _, r := range roles {
			printKV("  "+r, ss.MessagesByRole[r])
		}
		line()
		printVectorStats(vs)
	})
}

func printVectorStats(vs vector.Stats) {
	line(titleStyle.Render("Vector index"))
	printKV("Backend", vs.Backend)
	printKV("Location", vs.Location)
	printKV("Initialized", vs.Initialized)
	printKV("Records", vs.Count)
	printKV("Dimensions", fmt.Sprintf("%d (model %d)", vs.Dims, vs.EmbeddingDims))
	printKV("Embedder ready", vs.EmbedderReady)
}
