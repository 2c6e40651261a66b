// Package main is the entry point for the folio search service and its
// administration commands.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

// newRootCmd builds the command tree
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "folio",
		Short: "Structured multi-tenant search over CMS content",
		Long: `folio serves structured search over the posts, media, users and taxonomies
of a multi-tenant CMS. Callers authenticate with organization-scoped API keys.

Configuration is read from --config (default ./folio.yaml), FOLIO_* environment
variables and command line flags, in increasing precedence.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file (default: ./folio.yaml)")
	root.PersistentFlags().String("driver", "", "storage driver: postgres or sqlite3")
	root.PersistentFlags().String("storage-url", "", "storage connection URL")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(),
		newKeygenCmd(),
		newListKeysCmd(),
		newRevokeKeyCmd(),
		newInitDBCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
