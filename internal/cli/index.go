package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	index := &cobra.Command{
		Use:   "index",
		Short: "(Re)index the catalog into the vector similarity index",
		Run:   runIndex,
	}

	similar := &cobra.Command{
		Use:   "similar <type-id>",
		Short: "Find the nearest neighbors of an indexed item (e.g. movie-603)",
		Args:  cobra.ExactArgs(1),
		Run:   runSimilar,
	}
	similar.Flags().IntP("top", "t", 10, "Max results")

	RootCmd.AddCommand(index, similar)
}

func runIndex(cmd *cobra.Command, args []string) {
	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	items := a.static.Items()
	if err := a.index.IndexItems(cmd.Context(), items); err != nil {
		exitErr("index", err)
	}
	fmt.Printf("indexed %d items (%d in index)\n", len(items), a.index.Size(cmd.Context()))
}

func runSimilar(cmd *cobra.Command, args []string) {
	topK, _ := cmd.Flags().GetInt("top")

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	ctx := cmd.Context()
	query, ok := a.index.GetVector(ctx, args[0])
	if !ok {
		exitErr("similar", fmt.Errorf("%s is not indexed (run 'reelfeed index' first)", args[0]))
	}

	matches := a.index.FindSimilar(ctx, query, topK, []string{args[0]})
	if formatFlag == "text" {
		for _, m := range matches {
			fmt.Printf("%.4f  %-10s %s\n", m.Score, m.ID, m.Metadata.Title)
		}
		return
	}
	printJSON(matches)
}
