package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/54b3r/manualqa-go/internal/answer"
	"github.com/54b3r/manualqa-go/internal/logging"
	"github.com/54b3r/manualqa-go/internal/provider"
	"github.com/54b3r/manualqa-go/internal/retrieval"
	"github.com/54b3r/manualqa-go/internal/tracing"
)

// NewAskCmd constructs the `manualqa ask` command, which answers a single
// question with citations to the tables and figures backing the answer.
func NewAskCmd() *cobra.Command {
	var (
		limit        int
		threshold    float32
		collection   string
		artifactsDir string
		attachImages bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Args:  cobra.MinimumNArgs(1),
		Short: "Answer a question about the indexed manuals",
		Long: `Compose a grounded answer to a question about the indexed manuals.

The question is decomposed into sub-questions, each sub-question
retrieves its own pages, and the chat model answers from the retrieved
pages only. The output cites the tables and figures the answer is based
on, with their file paths under the artifacts directory.

The chat model is selected via MODEL_PROVIDER (ollama, openai, azure,
gemini). With --attach-images and a vision-capable model, the rendered
page images are sent alongside the text so the model can read diagrams
directly.

Examples:
  manualqa ask "What is the torque spec for the spindle motor bolts?"
  manualqa ask --attach-images --artifacts-dir ./output/pages "How do I replace the main contactor?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Langfuse tracing is opt-in; a no-op when keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			}

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			store, err := buildStore(collection)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer store.Close()

			if artifactsDir == "" {
				artifactsDir = os.Getenv("MANUALQA_ARTIFACTS_DIR")
			}

			engine := retrieval.NewEngine(buildEmbedder("", 0), store)
			composer := answer.NewComposer(chatModel, engine, answer.Config{
				Limit:            limit,
				ScoreThreshold:   threshold,
				ArtifactsDir:     artifactsDir,
				AttachPageImages: attachImages,
			}, log)

			ans, err := composer.Answer(ctx, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			printAnswer(ans)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 6, "Pages retrieved per sub-question")
	cmd.Flags().Float32VarP(&threshold, "score-threshold", "t", 4, "Exclude retrieval hits scoring below this value")
	cmd.Flags().StringVar(&collection, "collection", "", "Qdrant collection name (default: QDRANT_COLLECTION or manual-pages)")
	cmd.Flags().StringVar(&artifactsDir, "artifacts-dir", "", "Extraction output directory holding page_N/ artifacts")
	cmd.Flags().BoolVar(&attachImages, "attach-images", false, "Send page images to the model (needs a vision-capable model)")

	return cmd
}

// printAnswer renders the answer and its references for the terminal.
func printAnswer(ans *answer.Answer) {
	bold := color.New(color.Bold)
	dim := color.New(color.Faint)

	fmt.Println(ans.Text)

	if len(ans.SubQuestions) > 1 {
		fmt.Println()
		dim.Println("sub-questions:")
		for _, sq := range ans.SubQuestions {
			dim.Printf("  - %s\n", sq)
		}
	}

	if len(ans.References.Tables) > 0 {
		fmt.Println()
		bold.Println("Tables:")
		for _, t := range ans.References.Tables {
			fmt.Printf("  %s (page %d)", t.ElementID, t.PageNumber)
			if t.HTMLFile != "" {
				dim.Printf("  %s", t.HTMLFile)
			}
			fmt.Println()
		}
	}
	if len(ans.References.Figures) > 0 {
		fmt.Println()
		bold.Println("Figures:")
		for _, f := range ans.References.Figures {
			fmt.Printf("  %s (page %d)", f.Label, f.PageNumber)
			if f.PNGFile != "" {
				dim.Printf("  %s", f.PNGFile)
			}
			fmt.Println()
		}
	}
}
