package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prepstage/intervue/internal/analysis"
	"github.com/prepstage/intervue/internal/cache"
	"github.com/prepstage/intervue/internal/models"
	mongorepo "github.com/prepstage/intervue/internal/repositories/mongo"
	"github.com/prepstage/intervue/internal/utils"
)

// How long finished batch metrics wait for the answer submission to pick
// them up before expiring.
const captureMetricsTTL = 15 * time.Minute

type CaptureService interface {
	// Begin opens a new capture burst for a question, replacing any
	// unfinished one for the same key.
	Begin(ctx context.Context, interviewID string, questionNumber int) error

	// AppendFrame admits one live frame. Returns false when the frame was
	// dropped (buffer full or burst already stopped) — not an error.
	AppendFrame(interviewID string, questionNumber int, f analysis.Frame) (bool, error)

	// Finish stops admission, drains the buffer, and runs batch analysis.
	// A burst with zero frames yields a nil result: no video evidence.
	Finish(ctx context.Context, interviewID string, questionNumber int) (*analysis.BatchResult, error)

	// TakeMetrics hands a finished burst's metrics to the answer submission
	// path, consuming them.
	TakeMetrics(ctx context.Context, interviewID string, questionNumber int) (*analysis.BatchResult, error)
}

type captureService struct {
	gaze     *analysis.GazeAnalyzer
	bursts   mongorepo.CaptureRepository
	cache    cache.Cache
	capacity int
	log      *logrus.Logger

	mu      sync.Mutex
	buffers map[string]*analysis.FrameBuffer
}

func NewCaptureService(gaze *analysis.GazeAnalyzer, bursts mongorepo.CaptureRepository, c cache.Cache, capacity int, log *logrus.Logger) CaptureService {
	if capacity <= 0 {
		capacity = analysis.DefaultFrameCapacity
	}
	if log == nil {
		log = logrus.New()
	}
	return &captureService{
		gaze:     gaze,
		bursts:   bursts,
		cache:    c,
		capacity: capacity,
		log:      log,
		buffers:  make(map[string]*analysis.FrameBuffer),
	}
}

func captureKey(interviewID string, questionNumber int) string {
	return fmt.Sprintf("%s:%d", interviewID, questionNumber)
}

func metricsCacheKey(interviewID string, questionNumber int) string {
	return fmt.Sprintf("capture:%s:%d", interviewID, questionNumber)
}

func (s *captureService) Begin(ctx context.Context, interviewID string, questionNumber int) error {
	const op = "CaptureService.Begin"

	if interviewID == "" || questionNumber <= 0 {
		return utils.E(utils.CodeInvalidArgument, op, "interview_id and question_number (>0) are required", nil)
	}

	s.mu.Lock()
	s.buffers[captureKey(interviewID, questionNumber)] = analysis.NewFrameBuffer(s.capacity)
	s.mu.Unlock()

	now := time.Now().UTC()
	burst := &models.CaptureBurst{
		InterviewID:    interviewID,
		QuestionNumber: questionNumber,
		Status:         "capturing",
		Timestamp:      now,
		ExpiresAt:      now.Add(24 * time.Hour),
	}
	if err := s.bursts.StartBurst(ctx, burst); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to record capture burst", err)
	}
	return nil
}

func (s *captureService) AppendFrame(interviewID string, questionNumber int, f analysis.Frame) (bool, error) {
	const op = "CaptureService.AppendFrame"

	s.mu.Lock()
	buf := s.buffers[captureKey(interviewID, questionNumber)]
	s.mu.Unlock()

	if buf == nil {
		return false, utils.E(utils.CodeNotFound, op, "no active capture burst", nil)
	}
	if f.CapturedAt.IsZero() {
		f.CapturedAt = time.Now().UTC()
	}
	return buf.Push(f), nil
}

func (s *captureService) Finish(ctx context.Context, interviewID string, questionNumber int) (*analysis.BatchResult, error) {
	const op = "CaptureService.Finish"

	key := captureKey(interviewID, questionNumber)
	s.mu.Lock()
	buf := s.buffers[key]
	delete(s.buffers, key)
	s.mu.Unlock()

	if buf == nil {
		return nil, utils.E(utils.CodeNotFound, op, "no active capture burst", nil)
	}

	buf.Stop()
	frames := buf.Drain()

	if len(frames) == 0 {
		// Early cancellation: no video evidence, nothing to score.
		if err := s.bursts.MarkDiscarded(ctx, interviewID, questionNumber); err != nil {
			s.log.WithError(err).Warn("failed to mark empty burst discarded")
		}
		return nil, nil
	}

	result := s.gaze.AnalyzeBatch(ctx, frames)

	burst := &models.CaptureBurst{
		TotalFrames:           result.TotalFrames,
		FramesWithFace:        result.FramesWithFace,
		FaceDetectionRate:     result.FaceDetectionRate,
		FramesLookingAtCamera: result.FramesLookingAtCamera,
		EyeContactScore:       result.EyeContactScore,
		GazeViolations:        result.GazeViolations,
		ViolationDetails:      burstViolations(result.ViolationDetails),
	}
	if err := s.bursts.MarkAnalyzed(ctx, interviewID, questionNumber, burst); err != nil {
		s.log.WithError(err).Warn("failed to persist burst analysis")
	}

	if err := s.cache.SetJSON(ctx, metricsCacheKey(interviewID, questionNumber), result, captureMetricsTTL); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to stage capture metrics", err)
	}

	s.log.WithFields(logrus.Fields{
		"interview_id":    interviewID,
		"question_number": questionNumber,
		"total_frames":    result.TotalFrames,
		"dropped_frames":  buf.Dropped(),
		"violations":      result.GazeViolations,
	}).Info("capture burst analyzed")
	return &result, nil
}

func (s *captureService) TakeMetrics(ctx context.Context, interviewID string, questionNumber int) (*analysis.BatchResult, error) {
	key := metricsCacheKey(interviewID, questionNumber)

	var out analysis.BatchResult
	hit, err := s.cache.GetJSON(ctx, key, &out)
	if err != nil {
		return nil, err
	}
	if !hit {
		return nil, nil
	}

	_ = s.cache.Del(ctx, key)
	return &out, nil
}

func burstViolations(in []analysis.Violation) []models.BurstViolation {
	out := make([]models.BurstViolation, 0, len(in))
	for _, v := range in {
		out = append(out, models.BurstViolation{
			FrameNumber: v.FrameNumber,
			Timestamp:   v.Timestamp,
		})
	}
	return out
}
