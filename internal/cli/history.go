package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/reelfeed/reelfeed/internal/model"
)

func init() {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Manage the local watch history",
	}

	add := &cobra.Command{
		Use:   "add <movie|tv> <id>",
		Short: "Add a catalog item to the watch history",
		Args:  cobra.ExactArgs(2),
		Run:   runHistoryAdd,
	}
	add.Flags().StringP("status", "s", string(model.StatusWantToWatch), "Status: want_to_watch or watched")

	rate := &cobra.Command{
		Use:   "rate <movie|tv> <id> <-1|0|1>",
		Short: "Rate a watched item",
		Args:  cobra.ExactArgs(3),
		Run:   runHistoryRate,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the watch history",
		Run:   runHistoryList,
	}

	rm := &cobra.Command{
		Use:   "rm <movie|tv> <id>",
		Short: "Remove an item from the watch history",
		Args:  cobra.ExactArgs(2),
		Run:   runHistoryRm,
	}

	historyCmd.AddCommand(add, rate, list, rm)
	RootCmd.AddCommand(historyCmd)
}

func runHistoryAdd(cmd *cobra.Command, args []string) {
	mt, id, err := parseMedia(args)
	if err != nil {
		exitErr("history add", err)
	}
	statusStr, _ := cmd.Flags().GetString("status")
	status := model.WatchStatus(statusStr)
	if status != model.StatusWantToWatch && status != model.StatusWatched {
		exitErr("history add", fmt.Errorf("status must be want_to_watch or watched, got %q", statusStr))
	}

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	var found *model.CatalogItem
	for _, item := range a.static.Items() {
		if item.ExternalID == id && item.Type == mt {
			found = &item
			break
		}
	}
	if found == nil {
		exitErr("history add", fmt.Errorf("item %s not in catalog", model.ContentID(mt, id)))
	}

	item, err := a.history.Add(cmd.Context(), *found, status)
	if err != nil {
		exitErr("history add", err)
	}

	// A history change makes the current feed stale.
	a.engine.Invalidate(cmd.Context())
	printJSON(item)
}

func runHistoryRate(cmd *cobra.Command, args []string) {
	mt, id, err := parseMedia(args[:2])
	if err != nil {
		exitErr("history rate", err)
	}
	rating, err := strconv.Atoi(args[2])
	if err != nil {
		exitErr("history rate", fmt.Errorf("invalid rating %q", args[2]))
	}

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	if err := a.history.Rate(cmd.Context(), mt, id, rating); err != nil {
		exitErr("history rate", err)
	}
	a.engine.Invalidate(cmd.Context())
	fmt.Printf("rated %s: %d\n", model.ContentID(mt, id), rating)
}

func runHistoryList(cmd *cobra.Command, args []string) {
	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	items, err := a.history.ListAll(cmd.Context())
	if err != nil {
		exitErr("history list", err)
	}

	if formatFlag == "text" {
		for _, item := range items {
			fmt.Printf("%-12s %-8s %2d  %s\n", item.Status, item.Type, item.Rating, item.Title)
		}
		return
	}
	printJSON(items)
}

func runHistoryRm(cmd *cobra.Command, args []string) {
	mt, id, err := parseMedia(args)
	if err != nil {
		exitErr("history rm", err)
	}

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	if err := a.history.Remove(cmd.Context(), mt, id); err != nil {
		exitErr("history rm", err)
	}
	a.engine.Invalidate(cmd.Context())
	fmt.Printf("removed %s\n", model.ContentID(mt, id))
}
