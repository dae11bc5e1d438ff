package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog totals and a per-folder breakdown",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Statistics(ctx)
	if err != nil {
		return err
	}

	color.Cyan("Catalog: %s", store.Path())
	fmt.Printf("  %d files, %s total\n", stats.TotalFiles, humanBytes(stats.TotalBytes))
	fmt.Printf("  %d enriched, %d with thumbnails\n", stats.ProcessedFiles, stats.WithThumbnail)

	if len(stats.Folders) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FOLDER\tFILES\tSIZE")
		for _, f := range stats.Folders {
			fmt.Fprintf(w, "%s\t%d\t%s\n", f.Folder, f.FileCount, humanBytes(f.TotalBytes))
		}
		w.Flush()
	}
	return nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
