package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fluxctl",
		Short: "Command-line client for Fluxbase deployments",
		Long: `fluxctl talks to a Fluxbase deployment over the sync protocol.

It can run one-shot queries, mutations, and actions, and stream
live query results as they change on the server.

Examples:
  fluxctl query messages:list --deployment=https://happy-otter-123.flux.cloud
  fluxctl mutation messages:send '{"body":"hello"}'
  fluxctl watch messages:list`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagDeployment, "deployment", os.Getenv("FLUX_DEPLOYMENT"),
		"Deployment URL (default from FLUX_DEPLOYMENT)")
	rootCmd.PersistentFlags().StringVar(&flagAuth, "auth", os.Getenv("FLUX_AUTH_TOKEN"),
		"Auth token (default from FLUX_AUTH_TOKEN)")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 0,
		"Per-operation timeout (default 30s)")
	rootCmd.PersistentFlags().StringVar(&flagDebugAddr, "debug-addr", "",
		"Serve /metrics and /healthz on this address")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"Enable debug logging")

	rootCmd.AddCommand(
		queryCmd(),
		mutationCmd(),
		actionCmd(),
		watchCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
