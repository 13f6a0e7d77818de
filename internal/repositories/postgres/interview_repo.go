package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/prepstage/intervue/internal/models"
	"github.com/prepstage/intervue/internal/utils"
	"gorm.io/gorm"
)

type InterviewRepository interface {
	CreateWithQuestions(ctx context.Context, iv *models.Interview, questions []models.Question) error
	GetByID(ctx context.Context, id string) (*models.Interview, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Interview, error)
	GetQuestion(ctx context.Context, interviewID string, questionNumber int) (*models.Question, error)
	ListQuestions(ctx context.Context, interviewID string) ([]models.Question, error)
	SetStatus(ctx context.Context, id string, status models.InterviewStatus, completedAt *time.Time) error
	SetViolationTotal(ctx context.Context, id string, total int) error
}

type interviewRepo struct {
	db *gorm.DB
}

func NewInterviewRepo(db *gorm.DB) InterviewRepository {
	return &interviewRepo{db: db}
}

func (r *interviewRepo) CreateWithQuestions(ctx context.Context, iv *models.Interview, questions []models.Question) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(iv).Error; err != nil {
			return err
		}
		for i := range questions {
			questions[i].InterviewID = iv.ID
		}
		return tx.Create(&questions).Error
	})
}

func (r *interviewRepo) GetByID(ctx context.Context, id string) (*models.Interview, error) {
	var iv models.Interview
	err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_number ASC")
		}).
		Where("id = ?", id).
		Take(&iv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &iv, err
}

func (r *interviewRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.Interview, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.Interview
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *interviewRepo) GetQuestion(ctx context.Context, interviewID string, questionNumber int) (*models.Question, error) {
	var q models.Question
	err := r.db.WithContext(ctx).
		Where("interview_id = ? AND question_number = ?", interviewID, questionNumber).
		Take(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &q, err
}

func (r *interviewRepo) ListQuestions(ctx context.Context, interviewID string) ([]models.Question, error) {
	var rows []models.Question
	err := r.db.WithContext(ctx).
		Where("interview_id = ?", interviewID).
		Order("question_number ASC").
		Find(&rows).Error
	return rows, err
}

func (r *interviewRepo) SetStatus(ctx context.Context, id string, status models.InterviewStatus, completedAt *time.Time) error {
	updates := map[string]any{"status": status}
	if completedAt != nil {
		updates["completed_at"] = completedAt.UTC()
	}
	return r.db.WithContext(ctx).
		Model(&models.Interview{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *interviewRepo) SetViolationTotal(ctx context.Context, id string, total int) error {
	return r.db.WithContext(ctx).
		Model(&models.Interview{}).
		Where("id = ? AND total_gaze_violations < ?", id, total).
		Update("total_gaze_violations", total).Error
}
