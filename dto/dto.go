package dto

import "github.com/google/uuid"

// EvaluationMessage asks the worker to evaluate one stored session video.
type EvaluationMessage struct {
	VideoId uuid.UUID `json:"videoId"`
}

type VideoStatusResponse struct {
	Id               uuid.UUID `json:"id"`
	SessionId        uuid.UUID `json:"sessionId"`
	QuestionId       int       `json:"questionId"`
	Filename         string    `json:"filename"`
	EvaluationStatus string    `json:"evaluationStatus"`
	Score            *float64  `json:"score"`
}

type ResetResponse struct {
	Failed int64 `json:"failed"`
	Stuck  int64 `json:"stuck"`
}
