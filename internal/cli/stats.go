package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/reelfeed/reelfeed/internal/cache"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache, index, and snapshot statistics",
		Run:   runStats,
	}
	RootCmd.AddCommand(cmd)
}

type statsOutput struct {
	Cache         *cache.Stats `json:"cache"`
	IndexedItems  int          `json:"indexed_items"`
	SnapshotAge   string       `json:"snapshot_age,omitempty"`
	SnapshotFresh bool         `json:"snapshot_fresh"`
	SnapshotItems int          `json:"snapshot_items"`
}

func runStats(cmd *cobra.Command, args []string) {
	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	ctx := cmd.Context()
	out := statsOutput{
		Cache:        a.cache.Stats(ctx),
		IndexedItems: a.index.Size(ctx),
	}

	if snap := a.engine.Current(ctx); snap != nil {
		out.SnapshotAge = time.Since(snap.GeneratedAt).Round(time.Second).String()
		out.SnapshotFresh = snap.Valid(time.Now())
		out.SnapshotItems = len(snap.Recommendations)
	}

	printJSON(out)
}
