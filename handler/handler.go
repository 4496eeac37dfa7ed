package handler

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"worker-evaluation/config"
	"worker-evaluation/constant"
	"worker-evaluation/dto"
	"worker-evaluation/repository"
	"worker-evaluation/service"
)

type ServiceDependencies struct {
	Repo     repository.VideoRepository
	Pipeline service.Pipeline
	Uploads  config.Uploads
}

// EvaluationHandler runs the pipeline synchronously for a queued video so the delivery is acked
// only after the run reached a terminal state.
func EvaluationHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var message dto.EvaluationMessage
	if err := json.Unmarshal(msg.Body, &message); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal evaluation message")
		return backoff.Permanent(err)
	}

	zerolog.Ctx(ctx).Info().Str("video_id", message.VideoId.String()).Msg("received evaluation message")

	video, err := deps.Repo.GetByID(ctx, message.VideoId)
	if errors.Is(err, repository.ErrNotFound) {
		return backoff.Permanent(err)
	}
	if err != nil {
		return err
	}

	outcome := deps.Pipeline.Run(ctx, service.NewRequest(video, deps.Uploads))
	zerolog.Ctx(ctx).Info().Str("video_id", message.VideoId.String()).Str("outcome", string(outcome)).Msg("evaluation message handled")
	return nil
}

// UploadHandler resolves a file found by the uploads watcher to its record and triggers evaluation.
func UploadHandler(deps ServiceDependencies) func(ctx context.Context, path string) {
	return func(ctx context.Context, path string) {
		relative, err := deps.Uploads.StoredPath(path)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("file", path).Msg("upload outside uploads dir")
			return
		}

		video, err := deps.Repo.FindByFilePath(ctx, relative)
		if errors.Is(err, repository.ErrNotFound) {
			zerolog.Ctx(ctx).Info().Str("file_path", relative).Msg("no record for upload")
			return
		}
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("file_path", relative).Msg("failed to look up upload")
			return
		}
		if video.EvaluationStatus != constant.EvaluationStatusPending {
			zerolog.Ctx(ctx).Info().Str("file_path", relative).Str("status", video.EvaluationStatus.String()).Msg("upload already evaluated, skipping")
			return
		}

		req := service.NewRequest(video, deps.Uploads)
		req.FilePath = path
		deps.Pipeline.Trigger(req)
	}
}
