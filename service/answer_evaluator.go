package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/rs/zerolog"
	"worker-evaluation/entities"
	"worker-evaluation/pkg/llm"
)

var ErrInvalidEvaluation = errors.New("evaluator returned invalid JSON")

type AnswerEvaluator interface {
	Evaluate(ctx context.Context, question, transcript string, qa *entities.QAContext) (*entities.AnswerEvaluation, error)
}

type answerEvaluator struct {
	llm llm.ChatCompleter
}

const answerSystemPrompt = "You are an interview evaluator. Output ONLY valid JSON with no markdown or extra text."

const answerPromptTemplate = `Interview question: %q

Candidate's spoken answer (transcript): %q%s

Return one JSON object with:
- expected_expression: what a strong answer to this question would cover, in 2-4 sentences.
- answer_text: a concise summary of the candidate's answer in 1-3 sentences.
- evaluation: an object with completeness, relevance, clarity, structure, examples and overall (1-3 sentences each).
- expected_emotions: {"should_show": [...], "red_flags": [...]} describing the demeanour a strong answer shows (arrays may be empty).
- score: an integer from 1 to 10 for how well the question was answered.

Example shape:
{"expected_expression":"...","answer_text":"...","evaluation":{"completeness":"...","relevance":"...","clarity":"...","structure":"...","examples":"...","overall":"..."},"expected_emotions":{"should_show":["confidence"],"red_flags":[]},"score":7}`

func (e *answerEvaluator) Evaluate(ctx context.Context, question, transcript string, qa *entities.QAContext) (*entities.AnswerEvaluation, error) {
	qaBlock := ""
	if qa != nil {
		encoded, err := json.Marshal(qa)
		if err != nil {
			return nil, err
		}
		qaBlock = "\n\nQuestion/answer context:\n" + string(encoded)
	}

	zerolog.Ctx(ctx).Info().Msg("calling llm for answer evaluation")
	raw, err := e.llm.Complete(ctx, answerSystemPrompt, fmt.Sprintf(answerPromptTemplate, question, transcript, qaBlock))
	if err != nil {
		return nil, fmt.Errorf("answer evaluation: %w", err)
	}

	parsed := llm.ParseJSONObject(raw)
	if !parsed.OK() {
		zerolog.Ctx(ctx).Error().Err(parsed.Err).Str("raw", truncate(raw, 600)).Msg("answer evaluator returned unparseable output")
		return nil, errors.Join(ErrInvalidEvaluation, parsed.Err)
	}
	zerolog.Ctx(ctx).Debug().Str("stage", string(parsed.Stage)).Msg("answer evaluation parsed")

	result := normalizeAnswerEvaluation(parsed.Object)
	zerolog.Ctx(ctx).Info().Float64("score", result.Score).Msg("answer evaluation done")
	return result, nil
}

func normalizeAnswerEvaluation(obj map[string]any) *entities.AnswerEvaluation {
	detail, ok := obj["evaluation"].(map[string]any)
	if !ok {
		detail = map[string]any{"overall": stringify(obj["evaluation"])}
	}

	return &entities.AnswerEvaluation{
		AnswerSummary:         stringify(obj["answer_text"]),
		ExpectedAnswerProfile: stringify(obj["expected_expression"]),
		EvaluationDetail:      detail,
		ExpectedEmotions:      expectedEmotions(obj["expected_emotions"]),
		Score:                 ClampScore(obj["score"]),
	}
}

func expectedEmotions(v any) entities.ExpectedEmotionProfile {
	profile := entities.ExpectedEmotionProfile{ShouldShow: []string{}, RedFlags: []string{}}
	obj, ok := v.(map[string]any)
	if !ok {
		return profile
	}
	profile.ShouldShow = stringList(obj["should_show"])
	profile.RedFlags = stringList(obj["red_flags"])
	return profile
}

func stringList(v any) []string {
	out := []string{}
	items, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		if s := stringify(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64, bool:
		return fmt.Sprint(s)
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(encoded)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func NewAnswerEvaluator(client llm.ChatCompleter) AnswerEvaluator {
	return &answerEvaluator{llm: client}
}
