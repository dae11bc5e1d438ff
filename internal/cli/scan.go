package cli

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mangashelf/internal/progress"
	"mangashelf/internal/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan <root>...",
	Short: "Rebuild the catalog for one or more scan roots",
	Long: `Runs a full scan: prior catalog rows under each root are removed and
the root's archives are re-listed, parsed and inserted from scratch.
For routine updates prefer "sync", which only touches what changed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	sc := scanner.New(store, func() []string { return currentSettings().ScanRoots })
	reporter := progress.NewReporter(consoleProgress())

	total := 0
	for _, root := range args {
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", root, err)
		}

		removed, err := store.DeleteByFolder(ctx, abs)
		if err != nil {
			return err
		}
		if removed > 0 {
			fmt.Printf("Cleared %d prior entries under %s\n", removed, abs)
		}

		added, err := sc.FullScan(ctx, abs, reporter.Send)
		if err != nil {
			return err
		}
		total += added
	}
	reporter.Flush()
	printSummaryLine()

	color.Green("Scan complete: %d entries added", total)
	return nil
}
