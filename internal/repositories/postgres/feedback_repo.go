package postgres

import (
	"context"
	"errors"

	"github.com/prepstage/intervue/internal/models"
	"github.com/prepstage/intervue/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FeedbackRepository interface {
	GetByInterview(ctx context.Context, interviewID string) (*models.Feedback, error)
	Upsert(ctx context.Context, f *models.Feedback) error
}

type feedbackRepo struct {
	db *gorm.DB
}

func NewFeedbackRepo(db *gorm.DB) FeedbackRepository {
	return &feedbackRepo{db: db}
}

func (r *feedbackRepo) GetByInterview(ctx context.Context, interviewID string) (*models.Feedback, error) {
	var f models.Feedback
	err := r.db.WithContext(ctx).
		Where("interview_id = ?", interviewID).
		Take(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &f, err
}

// Upsert keeps one feedback row per interview: regenerating overwrites the
// existing record's fields in place, preserving its identity.
func (r *feedbackRepo) Upsert(ctx context.Context, f *models.Feedback) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "interview_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"overall_score", "content_score", "audio_score", "video_score",
				"strengths", "weaknesses", "recommendations", "overall_comment",
				"question_wise_analysis", "generated_at",
			}),
		}).
		Create(f).Error
}
