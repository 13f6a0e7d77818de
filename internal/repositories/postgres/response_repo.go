package postgres

import (
	"context"
	"errors"

	"github.com/prepstage/intervue/internal/models"
	"github.com/prepstage/intervue/internal/utils"
	"gorm.io/gorm"
)

type ResponseRepository interface {
	Insert(ctx context.Context, resp *models.Response) error
	GetByQuestion(ctx context.Context, interviewID, questionID string) (*models.Response, error)
	ListByInterview(ctx context.Context, interviewID string) ([]models.Response, error)
	CountByInterview(ctx context.Context, interviewID string) (int64, error)
}

type responseRepo struct {
	db *gorm.DB
}

func NewResponseRepo(db *gorm.DB) ResponseRepository {
	return &responseRepo{db: db}
}

func (r *responseRepo) Insert(ctx context.Context, resp *models.Response) error {
	return r.db.WithContext(ctx).Create(resp).Error
}

func (r *responseRepo) GetByQuestion(ctx context.Context, interviewID, questionID string) (*models.Response, error) {
	var row models.Response
	err := r.db.WithContext(ctx).
		Where("interview_id = ? AND question_id = ?", interviewID, questionID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *responseRepo) ListByInterview(ctx context.Context, interviewID string) ([]models.Response, error) {
	var rows []models.Response
	err := r.db.WithContext(ctx).
		Where("interview_id = ?", interviewID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *responseRepo) CountByInterview(ctx context.Context, interviewID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Response{}).
		Where("interview_id = ?", interviewID).
		Count(&n).Error
	return n, err
}
