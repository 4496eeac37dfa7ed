package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/rs/zerolog"
	"path/filepath"
	"worker-evaluation/config"
	"worker-evaluation/constant"
	"worker-evaluation/pkg/emotion"
	"worker-evaluation/pkg/llm"
	"worker-evaluation/pkg/snapshot"
	"worker-evaluation/pkg/transcript"
	"worker-evaluation/repository"
	"worker-evaluation/service"
)

type Dependencies struct {
	Repo       repository.VideoRepository
	Snapshots  snapshot.Store
	Pipeline   service.Pipeline
	Dispatcher *service.Dispatcher
	Uploads    config.Uploads
}

// BuildDependencies wires the pipeline from configuration. The caller owns Dispatcher and must Stop it.
func BuildDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	if cfg.DB == nil {
		return nil, errors.New("postgresql_host is not set")
	}
	repo, err := repository.NewRepo(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	uploads := cfg.Uploads
	uploads.Dir, err = filepath.Abs(uploads.Dir)
	if err != nil {
		return nil, err
	}

	transcripts, err := transcript.New(cfg.Transcript)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("no transcription backend, every evaluation will fail")
		transcripts = transcript.Unavailable{Err: err}
	}

	var completer llm.ChatCompleter = llm.NotConfigured{}
	if cfg.LLM.APIKey != "" {
		completer = llm.NewClient(llm.Config{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		})
	} else {
		zerolog.Ctx(ctx).Warn().Msg("llm.api_key is not set, answer evaluation will fail")
	}

	dispatcher := service.NewDispatcher(ctx, cfg.Server.Workers, cfg.Server.QueueSize)
	snapshots := newSnapshotStore(cfg)

	pipeline := service.NewPipeline(service.PipelineDependencies{
		Repo:             repo,
		Transcripts:      transcripts,
		Emotions:         emotion.New(cfg.Emotion),
		AnswerEvaluator:  service.NewAnswerEvaluator(completer),
		EmotionEvaluator: service.NewEmotionEvaluator(completer),
		Snapshots:        snapshots,
		Dispatcher:       dispatcher,
		Weights: service.Weights{
			Answer:  cfg.Pipeline.AnswerWeight,
			Emotion: cfg.Pipeline.EmotionWeight,
		},
	})

	return &Dependencies{
		Repo:       repo,
		Snapshots:  snapshots,
		Pipeline:   pipeline,
		Dispatcher: dispatcher,
		Uploads:    uploads,
	}, nil
}

func newSnapshotStore(cfg *config.Config) snapshot.Store {
	var backend snapshot.Backend = snapshot.NewFileBackend(cfg.Snapshot.Dir)
	if cfg.Snapshot.Backend == constant.SnapshotBackendMinIO {
		backend = snapshot.NewMinIOBackend(cfg.Storage, cfg.MinIOBucket, cfg.Snapshot.Prefix)
	}

	var opts []snapshot.Option
	if cfg.Redis != nil {
		opts = append(opts, snapshot.WithLocker(snapshot.NewRedisLocker(cfg.Redis, cfg.Snapshot.LockTTL)))
	}
	return snapshot.NewStore(backend, opts...)
}
