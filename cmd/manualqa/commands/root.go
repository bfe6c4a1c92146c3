// Package commands defines all Cobra CLI commands for the manualqa binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/54b3r/manualqa-go/internal/audit"
	"github.com/54b3r/manualqa-go/internal/config"
	"github.com/54b3r/manualqa-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "manualqa",
		Short: "Page-level retrieval and question answering for technical service manuals",
		Long: `manualqa indexes service manual pages as multi-vector visual embeddings
in Qdrant and answers questions about them with citations to the exact
tables and figures the answer is based on.

Pages are embedded with a ColPali-style late-interaction model served by
a companion embedding service (EMBEDDING_URL). Answers are composed by a
chat model selected via MODEL_PROVIDER or a YAML config file
(~/.manualqa/config.yaml).
See 'manualqa --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A local .env is a convenience for development; absence is fine.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.manualqa/config.yaml)")

	root.AddCommand(
		NewIndexCmd(),
		NewSearchCmd(),
		NewAskCmd(),
		NewInfoCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
