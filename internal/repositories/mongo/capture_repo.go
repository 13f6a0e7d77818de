package mongo

import (
	"context"
	"time"

	"github.com/prepstage/intervue/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CaptureRepository interface {
	StartBurst(ctx context.Context, b *models.CaptureBurst) error
	MarkAnalyzed(ctx context.Context, interviewID string, questionNumber int, b *models.CaptureBurst) error
	MarkDiscarded(ctx context.Context, interviewID string, questionNumber int) error
	ListByInterview(ctx context.Context, interviewID string, limit int64) ([]models.CaptureBurst, error)
}

type captureRepo struct {
	col *mongo.Collection
}

func NewCaptureRepo(db *mongo.Database) CaptureRepository {
	return &captureRepo{col: db.Collection("capture_bursts")}
}

func (r *captureRepo) StartBurst(ctx context.Context, b *models.CaptureBurst) error {
	if b.Timestamp.IsZero() {
		b.Timestamp = time.Now().UTC()
	}

	// A re-capture for the same question replaces the previous burst record.
	_, err := r.col.ReplaceOne(ctx,
		bson.M{"interview_id": b.InterviewID, "question_number": b.QuestionNumber},
		b,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *captureRepo) MarkAnalyzed(ctx context.Context, interviewID string, questionNumber int, b *models.CaptureBurst) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"interview_id": interviewID, "question_number": questionNumber},
		bson.M{"$set": bson.M{
			"status":                   "analyzed",
			"total_frames":             b.TotalFrames,
			"frames_with_face":         b.FramesWithFace,
			"face_detection_rate":      b.FaceDetectionRate,
			"frames_looking_at_camera": b.FramesLookingAtCamera,
			"eye_contact_score":        b.EyeContactScore,
			"gaze_violations":          b.GazeViolations,
			"violation_details":        b.ViolationDetails,
		}},
	)
	return err
}

func (r *captureRepo) MarkDiscarded(ctx context.Context, interviewID string, questionNumber int) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"interview_id": interviewID, "question_number": questionNumber},
		bson.M{"$set": bson.M{"status": "discarded"}},
	)
	return err
}

func (r *captureRepo) ListByInterview(ctx context.Context, interviewID string, limit int64) ([]models.CaptureBurst, error) {
	if limit <= 0 {
		limit = 50
	}

	cur, err := r.col.Find(ctx,
		bson.M{"interview_id": interviewID},
		options.Find().
			SetSort(bson.D{{Key: "question_number", Value: 1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.CaptureBurst
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
