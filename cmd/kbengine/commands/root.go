// Package commands defines all Cobra CLI commands for the kbengine binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/callvox/kbengine/internal/audit"
	"github.com/callvox/kbengine/internal/config"
	"github.com/callvox/kbengine/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kbengine",
		Short: "Multi-tenant knowledge retrieval engine for call agents",
		Long: `kbengine stores tenant-scoped knowledge documents, embeds them, and
serves similarity search, prompt-context assembly, and corpus statistics.

Documents live in a local SQLite database; an optional Qdrant instance
accelerates candidate selection for large corpora. The embedding backend is
selected via EMBEDDING_PROVIDER (local, ollama, openai, azure) or a YAML
config file (~/.kbengine/config.yaml).
See 'kbengine --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Best-effort .env loading for local development; existing env
			// vars are never overwritten.
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

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.kbengine/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewSearchCmd(),
		NewStatsCmd(),
		NewVersionCmd(),
	)

	return root
}
