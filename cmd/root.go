package cmd

import (
	"github.com/spf13/cobra"
	"worker-evaluation/config"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "worker-evaluation",
		Short: "evaluate recorded interview answers",
	}
	rootCmd.AddCommand(server(config))
	rootCmd.AddCommand(processPending(config))
	rootCmd.AddCommand(resetFailed(config))
	return rootCmd
}
