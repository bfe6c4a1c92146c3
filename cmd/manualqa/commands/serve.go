package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/manualqa-go/internal/answer"
	"github.com/54b3r/manualqa-go/internal/catalog"
	"github.com/54b3r/manualqa-go/internal/logging"
	"github.com/54b3r/manualqa-go/internal/provider"
	"github.com/54b3r/manualqa-go/internal/retrieval"
	"github.com/54b3r/manualqa-go/internal/server"
	"github.com/54b3r/manualqa-go/internal/tracing"
)

// NewServeCmd constructs the `manualqa serve` command, which starts the
// HTTP server exposing the question answering API.
func NewServeCmd() *cobra.Command {
	var (
		host         string
		port         int
		artifactsDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the manualqa HTTP server",
		Long: `Start the manualqa HTTP server.

Endpoints:
  POST /api/answer     Compose a grounded answer with table/figure references
  GET  /api/search     Raw retrieval over the indexed pages
  GET  /api/documents  List indexed manuals from the local catalog
  GET  /api/health     Liveness check
  GET  /api/ready      Readiness check probing the embedder and Qdrant
  GET  /metrics        Prometheus metrics
  GET  /pages/...      Static page artifacts (tables, figures, page images)

Set MANUALQA_API_KEY to require Bearer token authentication on /api routes.

Examples:
  manualqa serve
  manualqa serve --port 9090 --artifacts-dir ./output/pages
  MODEL_PROVIDER=openai manualqa serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Langfuse tracing is opt-in; a no-op when keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}

			emb := buildEmbedder("", 0)
			store, err := buildStore("")
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer store.Close()

			if artifactsDir == "" {
				artifactsDir = os.Getenv("MANUALQA_ARTIFACTS_DIR")
			}

			engine := retrieval.NewEngine(emb, store)
			composer := answer.NewComposer(chatModel, engine, answer.Config{
				ArtifactsDir:     artifactsDir,
				AttachPageImages: artifactsDir != "",
			}, log)

			// Catalog is optional; the server degrades to an empty document
			// listing without it.
			var cat *catalog.Catalog
			dbPath := os.Getenv("MANUALQA_CATALOG_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = catalog.DefaultDBPath()
					if err != nil {
						log.Warn("catalog: could not resolve default DB path, disabling", slog.Any("error", err))
						dbPath = ""
					}
				}
				if dbPath != "" {
					c, catErr := catalog.Open(dbPath)
					if catErr != nil {
						log.Warn("catalog: failed to open, disabling", slog.Any("error", catErr))
					} else {
						cat = c
						defer func() { _ = c.Close() }()
						log.Info("catalog: opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("catalog: disabled via MANUALQA_CATALOG_DB=disabled")
			}

			srv, err := server.New(composer, engine, cat, &server.Config{
				Host:   host,
				Port:   port,
				Logger: log,
				Pingers: []server.Pinger{
					server.NewEmbedderPinger(emb),
					server.NewQdrantPinger(store.Client()),
				},
				APIKey:       os.Getenv("MANUALQA_API_KEY"),
				ArtifactsDir: artifactsDir,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8600, "TCP port to listen on")
	cmd.Flags().StringVar(&artifactsDir, "artifacts-dir", "", "Extraction output directory served under /pages/")

	return cmd
}
