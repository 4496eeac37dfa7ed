package entities

import (
	"math"
	"sort"
	"time"
)

type EmotionAnalysis struct {
	Timeline []EmotionFrame `json:"emotions_timeline"`
	Summary  EmotionSummary `json:"summary"`
}

type QAContext struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// VideoEvaluationEntry is one evaluated answer inside a session snapshot.
type VideoEvaluationEntry struct {
	SessionVideoID     string           `json:"session_video_id"`
	QuestionID         *int             `json:"question_id"`
	QuestionText       string           `json:"question_text,omitempty"`
	Filename           string           `json:"filename,omitempty"`
	FilePath           string           `json:"file_path,omitempty"`
	QA                 *QAContext       `json:"qa_json,omitempty"`
	TranscriptText     string           `json:"transcript_text"`
	AnswerText         string           `json:"answer_text"`
	ExpectedExpression string           `json:"expected_expression"`
	Evaluation         map[string]any   `json:"evaluation"`
	AnswerScore        float64          `json:"answer_score"`
	EmotionScore       float64          `json:"emotion_score"`
	OverallScore       float64          `json:"overall_score"`
	ScoreBreakdown     ScoreBreakdown   `json:"score_breakdown"`
	EmotionEvaluation  map[string]any   `json:"emotion_evaluation"`
	EmotionAnalysis    *EmotionAnalysis `json:"emotion_analysis"`
	Score              float64          `json:"score"`
	EvaluatedAt        time.Time        `json:"evaluated_at"`
}

type EvaluationSummary struct {
	TotalVideos         int       `json:"total_videos"`
	AverageOverallScore float64   `json:"average_overall_score"`
	AverageAnswerScore  float64   `json:"average_answer_score"`
	AverageEmotionScore float64   `json:"average_emotion_score"`
	OverallScores       []float64 `json:"overall_scores"`
	AverageScore        float64   `json:"average_score"`
	Scores              []float64 `json:"scores"`
}

// SessionEvaluation is the per-session snapshot document browsed by reviewers.
type SessionEvaluation struct {
	SessionID string                          `json:"session_id"`
	UpdatedAt time.Time                       `json:"updated_at"`
	Videos    map[string]VideoEvaluationEntry `json:"videos"`
	Summary   EvaluationSummary               `json:"summary"`
}

func NewSessionEvaluation(sessionID string, now time.Time) *SessionEvaluation {
	return &SessionEvaluation{
		SessionID: sessionID,
		UpdatedAt: now,
		Videos:    map[string]VideoEvaluationEntry{},
		Summary:   EvaluationSummary{OverallScores: []float64{}, Scores: []float64{}},
	}
}

// RecomputeSummary rebuilds Summary from Videos. Scores are listed in evaluation order.
func (s *SessionEvaluation) RecomputeSummary() {
	keys := make([]string, 0, len(s.Videos))
	for k := range s.Videos {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := s.Videos[keys[i]], s.Videos[keys[j]]
		if !a.EvaluatedAt.Equal(b.EvaluatedAt) {
			return a.EvaluatedAt.Before(b.EvaluatedAt)
		}
		return keys[i] < keys[j]
	})

	overall := make([]float64, 0, len(keys))
	var answerSum, emotionSum, overallSum float64
	for _, k := range keys {
		v := s.Videos[k]
		overall = append(overall, v.OverallScore)
		overallSum += v.OverallScore
		answerSum += v.AnswerScore
		emotionSum += v.EmotionScore
	}

	summary := EvaluationSummary{TotalVideos: len(keys), OverallScores: overall}
	if n := float64(len(keys)); n > 0 {
		summary.AverageOverallScore = round2(overallSum / n)
		summary.AverageAnswerScore = round2(answerSum / n)
		summary.AverageEmotionScore = round2(emotionSum / n)
	}
	summary.AverageScore = summary.AverageOverallScore
	summary.Scores = append([]float64{}, overall...)
	s.Summary = summary
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
