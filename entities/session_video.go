package entities

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"time"
	"worker-evaluation/constant"
)

type SessionVideo struct {
	ID                 uuid.UUID                 `json:"id" gorm:"type:uuid;primary_key"`
	SessionID          uuid.UUID                 `json:"session_id" gorm:"type:uuid;not null;index:idx_session_videos_session_id"`
	QuestionID         int                       `json:"question_id" gorm:"not null;default:0"`
	QuestionText       *string                   `json:"question_text" gorm:"type:text"`
	Filename           string                    `json:"filename" gorm:"type:varchar(500);not null"`
	FilePath           string                    `json:"file_path" gorm:"type:varchar(1000);not null;index:idx_session_videos_file_path"`
	FileSizeBytes      *int64                    `json:"file_size_bytes" gorm:"type:bigint"`
	EvaluationStatus   constant.EvaluationStatus `json:"evaluation_status" gorm:"type:varchar(20);not null;default:'pending';index:idx_session_videos_status"`
	TranscriptText     *string                   `json:"transcript_text" gorm:"type:text"`
	AnswerText         *string                   `json:"answer_text" gorm:"type:text"`
	ExpectedExpression *string                   `json:"expected_expression" gorm:"type:text"`
	EvaluationJSON     datatypes.JSON            `json:"evaluation_json" gorm:"column:evaluation_json"`
	Score              *float64                  `json:"score" gorm:"type:numeric(4,1)"`
	CreatedAt          time.Time                 `json:"created_at" gorm:"not null"`
	UpdatedAt          time.Time                 `json:"updated_at" gorm:"not null"`
}

func (SessionVideo) TableName() string {
	return "session_videos"
}

func (v *SessionVideo) BeforeCreate(_ *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.EvaluationStatus == "" {
		v.EvaluationStatus = constant.EvaluationStatusPending
	}
	return nil
}

// Question returns the stored question text or an empty string.
func (v *SessionVideo) Question() string {
	if v.QuestionText == nil {
		return ""
	}
	return *v.QuestionText
}
