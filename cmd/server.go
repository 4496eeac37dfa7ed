package cmd

import (
	"github.com/spf13/cobra"
	"worker-evaluation/config"
	server2 "worker-evaluation/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start http server, queue consumer and uploads watcher",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunHttp(config)
		},
	}
}
