package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and evict the catalog cache",
	}

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached entries",
		Run:   runCacheClear,
	}
	clear.Flags().StringP("source", "s", "", "Only clear one source namespace (e.g. tmdb)")

	expired := &cobra.Command{
		Use:   "expired",
		Short: "Remove entries past their TTL",
		Run:   runCacheExpired,
	}

	oldest := &cobra.Command{
		Use:   "oldest",
		Short: "Remove the oldest entries (default: oldest half)",
		Run:   runCacheOldest,
	}
	oldest.Flags().Duration("max-age", 0, "Remove everything older than this instead (e.g. 72h)")
	oldest.Flags().Float64P("percent", "p", 0, "Remove the oldest N percent instead")

	maintain := &cobra.Command{
		Use:   "maintain",
		Short: "Run the housekeeping policy (clear expired, bound entry count)",
		Run:   runCacheMaintain,
	}

	cacheCmd.AddCommand(clear, expired, oldest, maintain)
	RootCmd.AddCommand(cacheCmd)
}

func runCacheClear(cmd *cobra.Command, args []string) {
	source, _ := cmd.Flags().GetString("source")

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	removed := a.cache.Clear(cmd.Context(), source)
	fmt.Printf("cleared %d entries\n", removed)
}

func runCacheExpired(cmd *cobra.Command, args []string) {
	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	removed := a.cache.ClearExpired(cmd.Context())
	fmt.Printf("cleared %d expired entries\n", removed)
}

func runCacheOldest(cmd *cobra.Command, args []string) {
	maxAge, _ := cmd.Flags().GetDuration("max-age")
	percent, _ := cmd.Flags().GetFloat64("percent")

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	var removed int
	switch {
	case percent > 0:
		removed = a.cache.ClearOldestPercentage(cmd.Context(), percent)
	case maxAge > 0:
		removed = a.cache.ClearOldest(cmd.Context(), maxAge)
	default:
		removed = a.cache.ClearOldest(cmd.Context(), time.Duration(0))
	}
	fmt.Printf("cleared %d entries\n", removed)
}

func runCacheMaintain(cmd *cobra.Command, args []string) {
	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	a.cache.Maintain(cmd.Context(), a.cfg.Cache.MaxEntries)
	printJSON(a.cache.Stats(cmd.Context()))
}
