package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mangashelf/internal/catalog"
)

var rateCmd = &cobra.Command{
	Use:   "rate <rating> <path>...",
	Short: "Rate cataloged files (1-5, or 0 to clear)",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runRate,
}

func runRate(cmd *cobra.Command, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 || n > 5 {
		return fmt.Errorf("rating must be 1-5, or 0 to clear (got %q)", args[0])
	}
	var rating *int
	if n > 0 {
		rating = &n
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	ids, err := idsForPaths(ctx, store, args[1:])
	if err != nil {
		return err
	}
	if err := store.UpdateRatingBatch(ctx, ids, rating); err != nil {
		return err
	}

	if rating == nil {
		color.Green("Cleared rating on %d entries", len(ids))
	} else {
		color.Green("Rated %d entries %d/5", len(ids), n)
	}
	return nil
}

func idsForPaths(ctx context.Context, store *catalog.Store, paths []string) ([]int64, error) {
	entries, err := entriesForPaths(ctx, store, paths)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids, nil
}
