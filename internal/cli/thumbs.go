package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mangashelf/internal/progress"
	"mangashelf/internal/thumbs"
)

var thumbsRegenerate bool

var thumbsCmd = &cobra.Command{
	Use:   "thumbs",
	Short: "Generate thumbnails for catalog entries",
	Long: `Generates 480x320 cover thumbnails for every catalog entry that lacks
one, reading the first usable image out of each archive. Unreadable
archives get a placeholder so they are not retried on every run.`,
	Args: cobra.NoArgs,
	RunE: runThumbs,
}

func init() {
	thumbsCmd.Flags().BoolVar(&thumbsRegenerate, "regenerate", false, "regenerate thumbnails even for entries that already have one")
}

func runThumbs(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.GetAllLight(ctx)
	if err != nil {
		return err
	}

	mode := thumbs.OnlyMissing
	if thumbsRegenerate {
		mode = thumbs.RegenerateAll
	}

	pipeline := thumbs.NewPipeline(store, thumbs.NewDisplayCache(currentSettings().CacheCapacity))
	reporter := progress.NewReporter(consoleProgress())
	res, err := pipeline.Run(ctx, entries, mode, reporter.Send)
	if err != nil {
		return err
	}
	reporter.Flush()
	printSummaryLine()

	color.Green("Thumbnails: %d generated, %d placeholders, %d skipped",
		res.Generated, res.Placeholders, res.Skipped)
	return nil
}
