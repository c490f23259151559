package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "evalctl",
	Short: "Operate the corpus-qa retrieval engine from the command line",
	Long: `evalctl ingests documents and runs retrieval quality evaluations
against a corpus-qa deployment. It talks to the same postgres and NATS
instances as the worker; configuration comes from the environment.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
