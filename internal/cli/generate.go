package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	gen := &cobra.Command{
		Use:   "generate",
		Short: "Generate (or return the cached) recommendation feed",
		Run:   runGenerate,
	}
	gen.Flags().Bool("force", false, "Invalidate the current snapshot first")

	inv := &cobra.Command{
		Use:   "invalidate",
		Short: "Force-expire the current snapshot without deleting it",
		Run:   runInvalidate,
	}

	RootCmd.AddCommand(gen, inv)
}

func runGenerate(cmd *cobra.Command, args []string) {
	force, _ := cmd.Flags().GetBool("force")

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	ctx := cmd.Context()
	if force {
		a.engine.Invalidate(ctx)
	}
	snap := a.engine.Generate(ctx)

	if formatFlag == "text" {
		fmt.Printf("generated %s, expires %s\n", snap.GeneratedAt.Format("2006-01-02 15:04"), snap.ExpiresAt.Format("2006-01-02 15:04"))
		for i, r := range snap.Recommendations {
			fmt.Printf("%2d. [%5.1f] %-40s %s\n", i+1, r.Score, r.Title, r.Reason)
		}
		return
	}
	printJSON(snap)
}

func runInvalidate(cmd *cobra.Command, args []string) {
	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	a.engine.Invalidate(cmd.Context())
	fmt.Println("snapshot invalidated")
}
