package cli

import (
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const timeRound = 10 * time.Millisecond

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Compact the catalog database",
	Long: `Runs VACUUM on the catalog database. Useful after large deletions or
thumbnail regeneration, when freed pages keep the file oversized.`,
	Args: cobra.NoArgs,
	RunE: runOptimize,
}

func runOptimize(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := store.Optimize(ctx)
	if err != nil {
		return err
	}

	color.Green("Optimized in %s: %s -> %s (reclaimed %s)",
		res.Duration.Round(timeRound),
		humanBytes(res.BytesBefore), humanBytes(res.BytesAfter),
		humanBytes(res.BytesBefore-res.BytesAfter))
	return nil
}
