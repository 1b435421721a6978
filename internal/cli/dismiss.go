package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/reelfeed/reelfeed/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "dismiss <movie|tv> <id>",
		Short: "Hide an item from future recommendations",
		Args:  cobra.ExactArgs(2),
		Run:   runDismiss,
	}
	RootCmd.AddCommand(cmd)
}

func parseMedia(args []string) (model.MediaType, int, error) {
	mt := model.MediaType(args[0])
	if mt != model.MediaMovie && mt != model.MediaTV {
		return "", 0, fmt.Errorf("media type must be movie or tv, got %q", args[0])
	}
	id, err := strconv.Atoi(args[1])
	if err != nil {
		return "", 0, fmt.Errorf("invalid id %q", args[1])
	}
	return mt, id, nil
}

func runDismiss(cmd *cobra.Command, args []string) {
	mt, id, err := parseMedia(args)
	if err != nil {
		exitErr("dismiss", err)
	}

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	if err := a.engine.Dismiss(cmd.Context(), mt, id); err != nil {
		exitErr("dismiss", err)
	}
	fmt.Printf("dismissed %s\n", model.ContentID(mt, id))
}
