package service

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/rs/zerolog"
	"worker-evaluation/constant"
	"worker-evaluation/entities"
	"worker-evaluation/pkg/llm"
	"worker-evaluation/pkg/metrics"
)

// EmotionEvaluator never fails: any problem degrades to the neutral score.
type EmotionEvaluator interface {
	Evaluate(ctx context.Context, summary entities.EmotionSummary, expected entities.ExpectedEmotionProfile, question string) *entities.EmotionEvaluation
}

type emotionEvaluator struct {
	llm llm.ChatCompleter
}

const emotionSystemPrompt = "You assess a candidate's facial expression during an interview answer. Output ONLY valid JSON with no markdown or extra text."

const emotionPromptTemplate = `Interview question: %q

Facial emotion summary measured over the whole answer:
%s

Emotions a strong answer is expected to show, and red flags:
%s

Score how well the observed emotions fit the expected profile. Return one JSON object:
{"score": <integer 1-10>, "evaluation": {"alignment": "...", "red_flags_observed": "...", "overall": "..."}}`

func (e *emotionEvaluator) Evaluate(ctx context.Context, summary entities.EmotionSummary, expected entities.ExpectedEmotionProfile, question string) *entities.EmotionEvaluation {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return e.fallback(ctx, "emotion summary could not be encoded", err)
	}
	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		return e.fallback(ctx, "expected emotion profile could not be encoded", err)
	}

	raw, err := e.llm.Complete(ctx, emotionSystemPrompt, fmt.Sprintf(emotionPromptTemplate, question, summaryJSON, expectedJSON))
	if err != nil {
		return e.fallback(ctx, "emotion evaluation call failed", err)
	}

	parsed := llm.ParseJSONObject(raw)
	if !parsed.OK() {
		return e.fallback(ctx, "emotion evaluation returned invalid JSON", parsed.Err)
	}

	score := ClampScore(parsed.Object["score"])
	detail, ok := parsed.Object["evaluation"].(map[string]any)
	if !ok {
		detail = map[string]any{"overall": stringify(parsed.Object["evaluation"])}
	}
	detail["available"] = true
	detail["score"] = score

	zerolog.Ctx(ctx).Info().Float64("emotion_score", score).Msg("emotion evaluation done")
	return &entities.EmotionEvaluation{Score: score, Detail: detail, Available: true}
}

func (e *emotionEvaluator) fallback(ctx context.Context, reason string, err error) *entities.EmotionEvaluation {
	zerolog.Ctx(ctx).Warn().Err(err).Msg(reason + ", using neutral emotion score")
	metrics.EvaluatorFallbacks.WithLabelValues("emotion").Inc()
	return UnavailableEmotionEvaluation(reason)
}

// UnavailableEmotionEvaluation is the neutral placeholder recorded when no emotion signal could be scored.
func UnavailableEmotionEvaluation(reason string) *entities.EmotionEvaluation {
	return &entities.EmotionEvaluation{
		Score: constant.NeutralEmotionScore,
		Detail: map[string]any{
			"available": false,
			"reason":    reason,
			"overall":   "Emotion signal unavailable; a neutral score was applied.",
			"score":     constant.NeutralEmotionScore,
		},
	}
}

func NewEmotionEvaluator(client llm.ChatCompleter) EmotionEvaluator {
	return &emotionEvaluator{llm: client}
}
