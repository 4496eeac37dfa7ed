package cmd

import (
	"fmt"
	"github.com/spf13/cobra"
	"time"
	"worker-evaluation/config"
	"worker-evaluation/repository"
	server2 "worker-evaluation/server"
)

func resetFailed(cfg *config.Config) *cobra.Command {
	var stuck time.Duration

	cmd := &cobra.Command{
		Use:   "reset-failed",
		Short: "move failed videos back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := server2.SetupLogger(cfg)
			if cfg.DB == nil {
				return fmt.Errorf("postgresql_host is not set")
			}
			repo, err := repository.NewRepo(cfg.DB)
			if err != nil {
				return err
			}

			failed, err := repo.ResetFailed(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %d failed videos to pending\n", failed)

			if stuck > 0 {
				n, err := repo.ResetStuck(ctx, stuck)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reset %d videos stuck in processing for more than %s\n", n, stuck)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&stuck, "stuck", 0, "also reset videos left in processing longer than this")
	return cmd
}
