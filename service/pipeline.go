package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"strings"
	"time"
	"worker-evaluation/config"
	"worker-evaluation/constant"
	"worker-evaluation/entities"
	"worker-evaluation/pkg/emotion"
	"worker-evaluation/pkg/metrics"
	"worker-evaluation/pkg/provider"
	"worker-evaluation/pkg/snapshot"
	"worker-evaluation/pkg/transcript"
	"worker-evaluation/repository"
)

var (
	ErrEvaluationFailed = errors.New("evaluation failed")
	ErrEmptyTranscript  = errors.New("transcript is empty")
)

type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// Request identifies one video to evaluate. Optional fields are filled from the record when missing.
type Request struct {
	VideoID      uuid.UUID
	FilePath     string
	QuestionText string
	SessionID    *uuid.UUID
	QuestionID   *int
	Filename     string
	Weights      *Weights
}

// NewRequest builds a request from a stored record, resolving its uploads/ path onto the uploads dir.
func NewRequest(video *entities.SessionVideo, uploads config.Uploads) Request {
	sessionID := video.SessionID
	questionID := video.QuestionID
	return Request{
		VideoID:      video.ID,
		FilePath:     uploads.Resolve(video.FilePath),
		QuestionText: video.Question(),
		SessionID:    &sessionID,
		QuestionID:   &questionID,
		Filename:     video.Filename,
	}
}

type Pipeline interface {
	// Run evaluates synchronously. It never panics; failures end in a failed status.
	Run(ctx context.Context, req Request) Outcome
	// Trigger schedules Run on the dispatcher and returns immediately.
	Trigger(req Request)
}

type PipelineDependencies struct {
	Repo             repository.VideoRepository
	Transcripts      transcript.Provider
	Emotions         emotion.Provider
	AnswerEvaluator  AnswerEvaluator
	EmotionEvaluator EmotionEvaluator
	Snapshots        snapshot.Store
	Dispatcher       *Dispatcher
	Weights          Weights
}

type pipeline struct {
	deps PipelineDependencies
	now  func() time.Time
}

type acquisition struct {
	transcript    *transcript.Result
	transcriptErr error
	emotion       *entities.EmotionResult
	emotionErr    error
}

func (p *pipeline) Trigger(req Request) {
	task, err := NewTask("evaluate:"+req.VideoID.String(),
		func(ctx context.Context) error {
			p.Run(ctx, req)
			return nil
		},
		func(ctx context.Context, err error) {
			if errors.Is(err, ErrQueueFull) {
				zerolog.Ctx(ctx).Warn().Str("video_id", req.VideoID.String()).Msg("dispatcher is full, video stays pending")
				return
			}
			p.markFailed(ctx, req.VideoID, err)
		},
	)
	if err != nil {
		return
	}
	p.deps.Dispatcher.Submit(task)
}

func (p *pipeline) Run(ctx context.Context, req Request) (outcome Outcome) {
	ctx = context.WithoutCancel(ctx)
	logger := zerolog.Ctx(ctx).With().Str("video_id", req.VideoID.String()).Logger()
	ctx = logger.WithContext(ctx)

	claimed, err := p.deps.Repo.ClaimForProcessing(ctx, req.VideoID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to claim video")
		metrics.PipelineRuns.WithLabelValues(string(OutcomeSkipped)).Inc()
		return OutcomeSkipped
	}
	if !claimed {
		logger.Info().Msg("video is missing or not pending, skipping")
		metrics.PipelineRuns.WithLabelValues(string(OutcomeSkipped)).Inc()
		return OutcomeSkipped
	}

	logger.Info().Str("file", req.FilePath).Msg("starting evaluation")
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = errors.Join(ErrEvaluationFailed, fmt.Errorf("panic: %v", r))
		}
		outcome = OutcomeCompleted
		if err != nil {
			p.markFailed(ctx, req.VideoID, err)
			outcome = OutcomeFailed
		}
		metrics.PipelineRuns.WithLabelValues(string(outcome)).Inc()
		metrics.PipelineDuration.WithLabelValues(string(outcome)).Observe(time.Since(start).Seconds())
	}()

	err = p.evaluate(ctx, req)
	return outcome
}

func (p *pipeline) evaluate(ctx context.Context, req Request) error {
	acq := p.acquire(ctx, req.FilePath)

	if acq.transcriptErr != nil {
		zerolog.Ctx(ctx).Error().Err(acq.transcriptErr).Msg("transcription failed")
		return errors.Join(ErrEvaluationFailed, fmt.Errorf("transcribe: %w", acq.transcriptErr))
	}
	if acq.transcript == nil || strings.TrimSpace(acq.transcript.Text) == "" {
		zerolog.Ctx(ctx).Error().Msg("empty transcript")
		return errors.Join(ErrEvaluationFailed, ErrEmptyTranscript)
	}
	transcriptText := acq.transcript.Text
	zerolog.Ctx(ctx).Info().Int("length", len(transcriptText)).Msg("transcript done")

	if acq.emotionErr != nil {
		zerolog.Ctx(ctx).Warn().Err(acq.emotionErr).Msg("emotion analysis failed, continuing without emotion data")
	}

	qa := &entities.QAContext{Question: req.QuestionText, Answer: transcriptText}
	answer, err := p.deps.AnswerEvaluator.Evaluate(ctx, req.QuestionText, transcriptText, qa)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("answer evaluation failed")
		return errors.Join(ErrEvaluationFailed, err)
	}

	var emotionEval *entities.EmotionEvaluation
	switch {
	case acq.emotion != nil:
		emotionEval = p.deps.EmotionEvaluator.Evaluate(ctx, acq.emotion.Summary, answer.ExpectedEmotions, req.QuestionText)
	case acq.emotionErr != nil:
		emotionEval = UnavailableEmotionEvaluation("emotion analysis failed: " + acq.emotionErr.Error())
	default:
		emotionEval = UnavailableEmotionEvaluation("emotion analysis is not configured")
	}

	weights := p.deps.Weights
	if req.Weights != nil {
		weights = *req.Weights
	}
	composition := Compose(answer.Score, emotionEval.Score, weights)
	zerolog.Ctx(ctx).Info().
		Float64("answer_score", answer.Score).
		Float64("emotion_score", emotionEval.Score).
		Float64("overall_score", composition.Overall).
		Msg("scores composed")

	document := answer.Document()
	document["answer_score"] = answer.Score
	document["emotion_score"] = emotionEval.Score
	document["overall_score"] = composition.Overall
	document["score_breakdown"] = composition.Breakdown
	document["emotion_evaluation"] = emotionEval.Detail
	evaluationJSON, err := json.Marshal(document)
	if err != nil {
		return errors.Join(ErrEvaluationFailed, err)
	}

	err = p.deps.Repo.UpdateEvaluation(ctx, req.VideoID, repository.EvaluationUpdate{
		TranscriptText:     transcriptText,
		AnswerText:         answer.AnswerSummary,
		ExpectedExpression: answer.ExpectedAnswerProfile,
		EvaluationJSON:     evaluationJSON,
		Score:              composition.Overall,
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to save evaluation")
		return err
	}
	zerolog.Ctx(ctx).Info().Float64("score", composition.Overall).Msg("evaluation saved, video completed")

	// The record is completed from here on; snapshot problems are only logged.
	p.fillFromRecord(ctx, &req)
	entry := entities.VideoEvaluationEntry{
		SessionVideoID:     req.VideoID.String(),
		QuestionID:         req.QuestionID,
		QuestionText:       req.QuestionText,
		Filename:           req.Filename,
		FilePath:           req.FilePath,
		QA:                 qa,
		TranscriptText:     transcriptText,
		AnswerText:         answer.AnswerSummary,
		ExpectedExpression: answer.ExpectedAnswerProfile,
		Evaluation:         answer.EvaluationDetail,
		AnswerScore:        answer.Score,
		EmotionScore:       emotionEval.Score,
		OverallScore:       composition.Overall,
		ScoreBreakdown:     composition.Breakdown,
		EmotionEvaluation:  emotionEval.Detail,
		Score:              composition.Overall,
		EvaluatedAt:        p.now(),
	}
	if acq.emotion != nil {
		entry.EmotionAnalysis = &entities.EmotionAnalysis{Timeline: acq.emotion.Timeline, Summary: acq.emotion.Summary}
	}

	if req.SessionID == nil {
		zerolog.Ctx(ctx).Warn().Msg("no session id, snapshot not written")
		return nil
	}
	location, err := p.deps.Snapshots.Upsert(ctx, req.SessionID.String(), entry)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to update session evaluation snapshot")
		return nil
	}
	zerolog.Ctx(ctx).Info().Str("location", location).Msg("session evaluation snapshot updated")
	return nil
}

// acquire runs both providers concurrently. Each settles on its own; a panic in one is
// reported as that provider's error and does not affect the other.
func (p *pipeline) acquire(ctx context.Context, filePath string) acquisition {
	var acq acquisition
	var wg conc.WaitGroup

	wg.Go(func() {
		acq.transcript, acq.transcriptErr = settle(func() (*transcript.Result, error) {
			return p.deps.Transcripts.Transcribe(ctx, filePath)
		})
		if acq.transcriptErr != nil {
			metrics.ProviderFailures.WithLabelValues("transcript", string(provider.CodeOf(acq.transcriptErr))).Inc()
		}
	})
	wg.Go(func() {
		acq.emotion, acq.emotionErr = settle(func() (*entities.EmotionResult, error) {
			return p.deps.Emotions.Analyze(ctx, filePath)
		})
		if acq.emotionErr != nil {
			metrics.ProviderFailures.WithLabelValues("emotion", string(provider.CodeOf(acq.emotionErr))).Inc()
		}
	})
	wg.Wait()

	return acq
}

func settle[T any](fn func() (T, error)) (res T, err error) {
	var catcher panics.Catcher
	catcher.Try(func() {
		res, err = fn()
	})
	if recovered := catcher.Recovered(); recovered != nil {
		var zero T
		return zero, recovered.AsError()
	}
	return res, err
}

func (p *pipeline) fillFromRecord(ctx context.Context, req *Request) {
	if req.SessionID != nil && req.QuestionID != nil && req.Filename != "" && req.QuestionText != "" {
		return
	}
	video, err := p.deps.Repo.GetByID(ctx, req.VideoID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to load video metadata for snapshot")
		return
	}
	if req.SessionID == nil && video.SessionID != uuid.Nil {
		sessionID := video.SessionID
		req.SessionID = &sessionID
	}
	if req.QuestionID == nil {
		questionID := video.QuestionID
		req.QuestionID = &questionID
	}
	if req.Filename == "" {
		req.Filename = video.Filename
	}
	if req.QuestionText == "" {
		req.QuestionText = video.Question()
	}
}

func (p *pipeline) markFailed(ctx context.Context, id uuid.UUID, cause error) {
	zerolog.Ctx(ctx).Error().Err(cause).Msg("evaluation failed, marking video failed")
	if err := p.deps.Repo.SetStatus(ctx, id, constant.EvaluationStatusFailed); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to update evaluation status")
	}
}

func NewPipeline(deps PipelineDependencies) Pipeline {
	if deps.Weights == (Weights{}) {
		deps.Weights = DefaultWeights
	}
	return &pipeline{
		deps: deps,
		now:  func() time.Time { return time.Now().UTC() },
	}
}
