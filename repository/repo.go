package repository

import (
	"context"
	"database/sql"
	"errors"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"time"
	"worker-evaluation/constant"
	"worker-evaluation/entities"
)

var (
	ErrNotFound          = errors.New("session video not found")
	ErrInvalidTransition = errors.New("invalid evaluation status transition")
	ErrNotClaimed        = errors.New("session video is not in processing state")
)

// EvaluationUpdate is the payload written when a run completes.
type EvaluationUpdate struct {
	TranscriptText     string
	AnswerText         string
	ExpectedExpression string
	EvaluationJSON     datatypes.JSON
	Score              float64
}

type VideoRepository interface {
	GetDB() *gorm.DB
	Create(ctx context.Context, video *entities.SessionVideo) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.SessionVideo, error)
	FindByFilePath(ctx context.Context, filePath string) (*entities.SessionVideo, error)
	ListByStatus(ctx context.Context, status constant.EvaluationStatus) ([]*entities.SessionVideo, error)
	ClaimForProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	SetStatus(ctx context.Context, id uuid.UUID, status constant.EvaluationStatus) error
	UpdateEvaluation(ctx context.Context, id uuid.UUID, update EvaluationUpdate) error
	ResetFailed(ctx context.Context) (int64, error)
	ResetStuck(ctx context.Context, olderThan time.Duration) (int64, error)
}

type repo struct {
	db *gorm.DB
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

func (r *repo) Create(ctx context.Context, video *entities.SessionVideo) error {
	return r.GetDB().WithContext(ctx).Create(video).Error
}

func (r *repo) GetByID(ctx context.Context, id uuid.UUID) (*entities.SessionVideo, error) {
	video := &entities.SessionVideo{}
	err := r.GetDB().WithContext(ctx).First(video, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return video, nil
}

func (r *repo) FindByFilePath(ctx context.Context, filePath string) (*entities.SessionVideo, error) {
	video := &entities.SessionVideo{}
	err := r.GetDB().WithContext(ctx).Where("file_path = ?", filePath).Order("created_at DESC").First(video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return video, nil
}

func (r *repo) ListByStatus(ctx context.Context, status constant.EvaluationStatus) ([]*entities.SessionVideo, error) {
	var videos []*entities.SessionVideo
	err := r.GetDB().WithContext(ctx).Where("evaluation_status = ?", status).Order("created_at ASC").Find(&videos).Error
	if err != nil {
		return nil, err
	}
	return videos, nil
}

// ClaimForProcessing atomically moves a pending record to processing. It reports false when
// the record is missing or another run already claimed it.
func (r *repo) ClaimForProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.GetDB().WithContext(ctx).Model(&entities.SessionVideo{}).
		Where("id = ? AND evaluation_status = ?", id, constant.EvaluationStatusPending).
		Updates(map[string]interface{}{
			"evaluation_status": constant.EvaluationStatusProcessing,
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetStatus only applies transitions allowed by the status machine.
func (r *repo) SetStatus(ctx context.Context, id uuid.UUID, status constant.EvaluationStatus) error {
	from := status.RequiredSource()
	if len(from) == 0 {
		return ErrInvalidTransition
	}

	res := r.GetDB().WithContext(ctx).Model(&entities.SessionVideo{}).
		Where("id = ? AND evaluation_status IN ?", id, from).
		Updates(map[string]interface{}{
			"evaluation_status": status,
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (r *repo) UpdateEvaluation(ctx context.Context, id uuid.UUID, update EvaluationUpdate) error {
	res := r.GetDB().WithContext(ctx).Model(&entities.SessionVideo{}).
		Where("id = ? AND evaluation_status = ?", id, constant.EvaluationStatusProcessing).
		Updates(map[string]interface{}{
			"transcript_text":     update.TranscriptText,
			"answer_text":         update.AnswerText,
			"expected_expression": update.ExpectedExpression,
			"evaluation_json":     update.EvaluationJSON,
			"score":               update.Score,
			"evaluation_status":   constant.EvaluationStatusCompleted,
			"updated_at":          time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotClaimed
	}
	return nil
}

func (r *repo) ResetFailed(ctx context.Context) (int64, error) {
	res := r.GetDB().WithContext(ctx).Model(&entities.SessionVideo{}).
		Where("evaluation_status = ?", constant.EvaluationStatusFailed).
		Updates(map[string]interface{}{
			"evaluation_status": constant.EvaluationStatusPending,
			"updated_at":        time.Now(),
		})
	return res.RowsAffected, res.Error
}

// ResetStuck returns processing records untouched for olderThan to pending, for runs lost to a crash.
func (r *repo) ResetStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := r.GetDB().WithContext(ctx).Model(&entities.SessionVideo{}).
		Where("evaluation_status = ? AND updated_at < ?", constant.EvaluationStatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"evaluation_status": constant.EvaluationStatusPending,
			"updated_at":        time.Now(),
		})
	return res.RowsAffected, res.Error
}

func NewRepo(db *sql.DB) (VideoRepository, error) {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	if err != nil {
		return nil, err
	}
	return NewRepoWithGorm(gormDB), nil
}

func NewRepoWithGorm(db *gorm.DB) VideoRepository {
	return &repo{
		db: db,
	}
}
