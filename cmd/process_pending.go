package cmd

import (
	"context"
	"fmt"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"worker-evaluation/config"
	"worker-evaluation/constant"
	"worker-evaluation/dto"
	"worker-evaluation/pkg/rabbitmq"
	server2 "worker-evaluation/server"
	"worker-evaluation/service"
)

func processPending(cfg *config.Config) *cobra.Command {
	var publish bool

	cmd := &cobra.Command{
		Use:   "process-pending",
		Short: "evaluate every pending video",
		Long:  "Runs the evaluation pipeline for every pending video one after another, or publishes them to the evaluation queue with --publish.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := server2.SetupLogger(cfg)
			if publish {
				return publishPending(ctx, cfg)
			}
			return runPending(ctx, cfg, cmd)
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "publish pending videos to the evaluation queue instead of running them here")
	return cmd
}

func runPending(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	deps, err := server2.BuildDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Dispatcher.Stop()

	videos, err := deps.Repo.ListByStatus(ctx, constant.EvaluationStatusPending)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Int("count", len(videos)).Msg("processing pending videos")

	counts := map[service.Outcome]int{}
	for _, video := range videos {
		outcome := deps.Pipeline.Run(ctx, service.NewRequest(video, deps.Uploads))
		counts[outcome]++
	}

	fmt.Fprintf(cmd.OutOrStdout(), "processed %d videos: %d completed, %d failed, %d skipped\n",
		len(videos), counts[service.OutcomeCompleted], counts[service.OutcomeFailed], counts[service.OutcomeSkipped])
	return nil
}

func publishPending(ctx context.Context, cfg *config.Config) error {
	if !cfg.Queue.Enabled() {
		return fmt.Errorf("--publish requires rabbitmq_host")
	}
	deps, err := server2.BuildDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Dispatcher.Stop()

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		return err
	}
	defer conn.Close()

	videos, err := deps.Repo.ListByStatus(ctx, constant.EvaluationStatusPending)
	if err != nil {
		return err
	}

	publisher := rabbitmq.NewPublisher(conn, cfg.Queue, rabbitmq.EvaluationQueue)
	for _, video := range videos {
		if err := publisher.Publish(ctx, dto.EvaluationMessage{VideoId: video.ID}); err != nil {
			return fmt.Errorf("publish %s: %w", video.ID, err)
		}
	}
	zerolog.Ctx(ctx).Info().Int("count", len(videos)).Msg("published pending videos")
	return nil
}
