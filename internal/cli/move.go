package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mangashelf/internal/catalog"
	"mangashelf/internal/progress"
	"mangashelf/internal/relocate"
)

var moveOnConflict string

var moveCmd = &cobra.Command{
	Use:   "move <dest-dir> <path>...",
	Short: "Move cataloged files to another directory",
	Long: `Moves the named files to <dest-dir> and updates the catalog to match.
Conflicts (destination already exists, or already in that folder) are
resolved per --on-conflict; with "ask", one answer per conflict type
covers every file in the batch that shares it.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMove,
}

func init() {
	moveCmd.Flags().StringVar(&moveOnConflict, "on-conflict", "ask", "conflict policy: skip, overwrite, cancel or ask")
}

func runMove(cmd *cobra.Command, args []string) error {
	resolver, err := resolverFor(moveOnConflict)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	destDir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve %s: %w", args[0], err)
	}

	entries, err := entriesForPaths(ctx, store, args[1:])
	if err != nil {
		return err
	}

	engine := relocate.New(store)
	reporter := progress.NewReporter(consoleProgress())
	result, err := engine.MoveBatch(ctx, entries, destDir, resolver, reporter.Send)
	reporter.Flush()
	printSummaryLine()

	if result != nil {
		if result.Cancelled {
			color.Yellow("Move cancelled: %d moved, %d skipped, %d errors",
				result.SuccessCount, result.SkippedCount, result.ErrorCount)
		} else {
			color.Green("Move complete: %d moved, %d skipped, %d errors",
				result.SuccessCount, result.SkippedCount, result.ErrorCount)
		}
		for _, msg := range result.Errors {
			color.Red("  %s", msg)
		}
	}
	return err
}

// entriesForPaths resolves command-line paths to catalog entries.
func entriesForPaths(ctx context.Context, store *catalog.Store, paths []string) ([]*catalog.Entry, error) {
	all, err := store.GetAllLight(ctx)
	if err != nil {
		return nil, err
	}
	byPath := make(map[string]*catalog.Entry, len(all))
	for _, e := range all {
		byPath[e.FilePath] = e
	}

	entries := make([]*catalog.Entry, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		e, ok := byPath[abs]
		if !ok {
			return nil, fmt.Errorf("%s is not in the catalog (run sync first?)", abs)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func resolverFor(policy string) (relocate.Resolver, error) {
	switch policy {
	case "skip":
		return func(relocate.ConflictType, relocate.ConflictContext) relocate.Resolution {
			return relocate.ResolutionSkip
		}, nil
	case "overwrite":
		return func(relocate.ConflictType, relocate.ConflictContext) relocate.Resolution {
			return relocate.ResolutionOverwrite
		}, nil
	case "cancel":
		return func(relocate.ConflictType, relocate.ConflictContext) relocate.Resolution {
			return relocate.ResolutionCancel
		}, nil
	case "ask":
		return promptResolver, nil
	default:
		return nil, fmt.Errorf("unknown conflict policy %q (want skip, overwrite, cancel or ask)", policy)
	}
}

// promptResolver asks on the terminal. An unreadable or unrecognized
// answer is treated as skip, the safest choice.
func promptResolver(ct relocate.ConflictType, cc relocate.ConflictContext) relocate.Resolution {
	switch ct {
	case relocate.ConflictSameFolder:
		if cc.Count > 1 {
			fmt.Printf("%d files are already in the destination folder.\n", cc.Count)
		} else {
			fmt.Printf("%s is already in the destination folder.\n", cc.SourcePath)
		}
	case relocate.ConflictFileExists:
		if cc.Count > 1 {
			fmt.Printf("%d destination files already exist.\n", cc.Count)
		} else {
			fmt.Printf("%s already exists.\n", cc.DestPath)
		}
	}
	if cc.Count > 1 {
		fmt.Print("Apply to all of them: [s]kip, [o]verwrite or [c]ancel? ")
	} else {
		fmt.Print("[s]kip, [o]verwrite or [c]ancel? ")
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return relocate.ResolutionSkip
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "o", "overwrite":
		return relocate.ResolutionOverwrite
	case "c", "cancel":
		return relocate.ResolutionCancel
	default:
		return relocate.ResolutionSkip
	}
}
