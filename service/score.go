package service

import (
	"math"
	"strconv"
	"strings"
	"worker-evaluation/constant"
	"worker-evaluation/entities"
)

type Weights struct {
	Answer  float64
	Emotion float64
}

var DefaultWeights = Weights{Answer: 0.7, Emotion: 0.3}

// Compose combines both sub-scores into the overall 1-10 score.
func Compose(answerScore, emotionScore float64, weights Weights) entities.ScoreComposition {
	weightedAnswer := answerScore * weights.Answer
	weightedEmotion := emotionScore * weights.Emotion
	overall := clamp(round1(weightedAnswer+weightedEmotion), constant.MinScore, constant.MaxScore)

	return entities.ScoreComposition{
		Overall: overall,
		Breakdown: entities.ScoreBreakdown{
			AnswerScore:     answerScore,
			AnswerWeight:    weights.Answer,
			EmotionScore:    emotionScore,
			EmotionWeight:   weights.Emotion,
			WeightedAnswer:  round1(weightedAnswer),
			WeightedEmotion: round1(weightedEmotion),
		},
	}
}

// ClampScore coerces an untrusted model value into [1,10]. Anything non-numeric becomes 1.
func ClampScore(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return constant.MinScore
		}
		f = parsed
	default:
		return constant.MinScore
	}
	if math.IsNaN(f) {
		return constant.MinScore
	}
	return clamp(f, constant.MinScore, constant.MaxScore)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
