package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/54b3r/manualqa-go/internal/catalog"
	"github.com/54b3r/manualqa-go/internal/logging"
)

// NewInfoCmd constructs the `manualqa info` command, which reports the
// collection schema, point count, and the cataloged documents.
func NewInfoCmd() *cobra.Command {
	var (
		collection string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show collection statistics and indexed documents",
		Long: `Show the Qdrant collection's vector schema and point count, plus the
locally cataloged documents and their most recent indexing runs.

Examples:
  manualqa info
  manualqa info --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			bold := color.New(color.Bold)
			dim := color.New(color.Faint)

			store, err := buildStore(collection)
			if err != nil {
				return fmt.Errorf("info: %w", err)
			}
			defer store.Close()

			info, err := store.Info(ctx)
			if err != nil {
				return fmt.Errorf("info: %w", err)
			}

			bold.Printf("collection %q\n", info.Name)
			fmt.Printf("  points: %d\n", info.PointCount)
			for name, size := range info.VectorFields {
				fmt.Printf("  vector %-14s width %d\n", name, size)
			}

			dbPath := os.Getenv("MANUALQA_CATALOG_DB")
			if dbPath == "disabled" {
				return nil
			}
			if dbPath == "" {
				dbPath, err = catalog.DefaultDBPath()
				if err != nil {
					dim.Printf("catalog unavailable: %v\n", err)
					return nil
				}
			}
			cat, err := catalog.Open(dbPath)
			if err != nil {
				dim.Printf("catalog unavailable: %v\n", err)
				return nil
			}
			defer cat.Close()

			docs, err := cat.Documents(ctx)
			if err != nil {
				return fmt.Errorf("info: %w", err)
			}
			if len(docs) == 0 {
				dim.Println("no documents cataloged")
				return nil
			}

			fmt.Println()
			bold.Println("documents:")
			for _, d := range docs {
				fmt.Printf("  %-24s %4d pages  indexed %s",
					d.ID, d.Pages, d.LastIndexedAt.Format("2006-01-02 15:04"))
				if d.Title != "" {
					dim.Printf("  %s", d.Title)
				}
				fmt.Println()

				if verbose {
					runs, err := cat.Runs(ctx, d.ID, 5)
					if err != nil {
						continue
					}
					for _, r := range runs {
						dim.Printf("    run %s: %d/%d ok, %d failed (%s)\n",
							r.StartedAt.Format("2006-01-02 15:04"),
							r.Succeeded, r.Attempted, r.Failed,
							r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "Qdrant collection name (default: QDRANT_COLLECTION or manual-pages)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Include recent indexing runs per document")

	return cmd
}
