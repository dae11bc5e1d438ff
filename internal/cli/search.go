package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mangashelf/internal/catalog"
)

var (
	searchText      string
	searchGenre     string
	searchPublisher string
	searchRating    int
	searchProcessed bool
	searchPending   bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Query the catalog",
	Long: `Queries the catalog by text (matched against title, authors and file
name) and/or structured filters. All given filters must match.`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchText, "text", "", "substring over title, authors and file name")
	searchCmd.Flags().StringVar(&searchGenre, "genre", "", "genre substring")
	searchCmd.Flags().StringVar(&searchPublisher, "publisher", "", "publisher substring")
	searchCmd.Flags().IntVar(&searchRating, "rating", 0, "exact rating (1-5)")
	searchCmd.Flags().BoolVar(&searchProcessed, "processed", false, "only entries with enriched metadata")
	searchCmd.Flags().BoolVar(&searchPending, "pending", false, "only entries without enriched metadata")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	criteria := catalog.SearchCriteria{
		Text:      searchText,
		Genre:     searchGenre,
		Publisher: searchPublisher,
	}
	if cmd.Flags().Changed("rating") {
		criteria.Rating = &searchRating
	}
	if searchProcessed && searchPending {
		return fmt.Errorf("--processed and --pending are mutually exclusive")
	}
	if searchProcessed {
		t := true
		criteria.Processed = &t
	}
	if searchPending {
		f := false
		criteria.Processed = &f
	}

	entries, err := store.Search(ctx, criteria)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TITLE\tVOL\tAUTHOR\tRATING\tFILE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			deref(e.Title), volumeLabel(e), deref(e.OriginalAuthor), ratingLabel(e.Rating), e.FileName)
	}
	w.Flush()

	color.Green("%d entries", len(entries))
	return nil
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func volumeLabel(e *catalog.Entry) string {
	if e.VolumeRange != nil {
		return *e.VolumeRange
	}
	if e.VolumeNumber != nil {
		return fmt.Sprintf("%d", *e.VolumeNumber)
	}
	return "-"
}

func ratingLabel(r *int) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *r)
}
