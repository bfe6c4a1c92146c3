package commands

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/54b3r/manualqa-go/internal/embedding"
	"github.com/54b3r/manualqa-go/internal/logging"
	"github.com/54b3r/manualqa-go/internal/manual"
	"github.com/54b3r/manualqa-go/internal/retrieval"
	"github.com/54b3r/manualqa-go/internal/vectorstore"
)

// NewSearchCmd constructs the `manualqa search` command, which runs a raw
// retrieval query and prints the scored pages without answer composition.
func NewSearchCmd() *cobra.Command {
	var (
		limit      int
		threshold  float32
		vectorName string
		documentID string
		collection string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Args:  cobra.MinimumNArgs(1),
		Short: "Search indexed manual pages and print the scored hits",
		Long: `Run a similarity search over the indexed pages and print the results.

The --vector flag selects the named vector field. The default "initial"
field uses full late-interaction scoring and is the most accurate;
"max_pooling" and "mean_pooling" trade accuracy for speed and suit
coarse first-pass filtering.

Examples:
  manualqa search "hydraulic pump pressure specifications"
  manualqa search "wiring diagram main contactor" --limit 10 --threshold 5
  manualqa search "torque values" --vector mean_pooling --document-id fanuc-r30ib`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			store, err := buildStore(collection)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer store.Close()

			engine := retrieval.NewEngine(buildEmbedder("", 0), store)

			q := retrieval.Query{
				Text:           strings.Join(args, " "),
				VectorName:     vectorName,
				Limit:          limit,
				ScoreThreshold: threshold,
			}
			switch vectorName {
			case vectorstore.VectorMaxPooling:
				q.Pooling = embedding.PoolMax
			case vectorstore.VectorMeanPooling:
				q.Pooling = embedding.PoolMean
			}
			if documentID != "" {
				q.Filter.DocumentID = documentID
			}

			results, err := engine.Search(ctx, q)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if len(results) == 0 {
				fmt.Println("no pages matched")
				return nil
			}

			bold := color.New(color.Bold)
			scoreColor := color.New(color.FgGreen)
			dimColor := color.New(color.Faint)

			for i, r := range results {
				page, err := manual.PageFromPayload(r.Payload)
				if err != nil {
					dimColor.Printf("%2d. %s (unreadable payload: %v)\n", i+1, r.ID, err)
					continue
				}
				bold.Printf("%2d. %s page %d", i+1, page.Document.ID, page.Number)
				scoreColor.Printf("  score %.2f\n", r.Score)
				if page.Document.Title != "" {
					dimColor.Printf("    %s", page.Document.Title)
					if page.Document.Revision != "" {
						dimColor.Printf(" (rev %s)", page.Document.Revision)
					}
					fmt.Println()
				}
				for _, el := range page.Elements {
					if el.Title == "" {
						continue
					}
					fmt.Printf("    - %s: %s\n", el.Type, el.Title)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 6, "Maximum number of hits")
	cmd.Flags().Float32VarP(&threshold, "score-threshold", "t", 0, "Exclude hits scoring below this value (0 = no threshold)")
	cmd.Flags().StringVar(&vectorName, "vector", vectorstore.VectorInitial, "Vector field: initial, max_pooling, mean_pooling")
	cmd.Flags().StringVar(&documentID, "document-id", "", "Restrict the search to one document")
	cmd.Flags().StringVar(&collection, "collection", "", "Qdrant collection name (default: QDRANT_COLLECTION or manual-pages)")

	return cmd
}
