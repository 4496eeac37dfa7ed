package entities

// AnswerEvaluation is the normalized output of the answer evaluator.
type AnswerEvaluation struct {
	AnswerSummary         string
	ExpectedAnswerProfile string
	EvaluationDetail      map[string]any
	ExpectedEmotions      ExpectedEmotionProfile
	Score                 float64
}

// Document is the structured evaluation stored on the video record.
func (a AnswerEvaluation) Document() map[string]any {
	return map[string]any{
		"expected_expression": a.ExpectedAnswerProfile,
		"answer_text":         a.AnswerSummary,
		"evaluation":          a.EvaluationDetail,
		"expected_emotions":   a.ExpectedEmotions,
		"score":               a.Score,
	}
}

type EmotionEvaluation struct {
	Score     float64
	Detail    map[string]any
	Available bool
}

type ScoreBreakdown struct {
	AnswerScore     float64 `json:"answer_score"`
	AnswerWeight    float64 `json:"answer_weight"`
	EmotionScore    float64 `json:"emotion_score"`
	EmotionWeight   float64 `json:"emotion_weight"`
	WeightedAnswer  float64 `json:"weighted_answer"`
	WeightedEmotion float64 `json:"weighted_emotion"`
}

type ScoreComposition struct {
	Overall   float64
	Breakdown ScoreBreakdown
}
