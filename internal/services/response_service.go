package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/prepstage/intervue/internal/analysis"
	"github.com/prepstage/intervue/internal/models"
	"github.com/prepstage/intervue/internal/providers/stt"
	pgrepo "github.com/prepstage/intervue/internal/repositories/postgres"
	"github.com/prepstage/intervue/internal/storage"
	"github.com/prepstage/intervue/internal/utils"
)

type SubmitAnswerInput struct {
	InterviewID    string
	QuestionNumber int

	// Typed answer; when empty, Audio is transcribed instead.
	Transcript string
	Audio      []byte
	Language   string
}

type SubmitAnswerResult struct {
	Response       *models.Response `json:"response,omitempty"`
	Transcript     string           `json:"transcript"`
	Terminated     bool             `json:"terminated"`
	ViolationTotal int              `json:"violation_total"`
	Completed      bool             `json:"completed"`
}

type ResponseService interface {
	Submit(ctx context.Context, in SubmitAnswerInput) (*SubmitAnswerResult, error)
	ListByInterview(ctx context.Context, interviewID string) ([]models.Response, error)
}

type responseService struct {
	interviews    pgrepo.InterviewRepository
	responses     pgrepo.ResponseRepository
	interviewSvc  InterviewService
	captures      CaptureService
	text          *analysis.TextAnalyzer
	stt           stt.Provider
	audioUploader storage.Uploader
	log           *logrus.Logger
}

func NewResponseService(
	interviews pgrepo.InterviewRepository,
	responses pgrepo.ResponseRepository,
	interviewSvc InterviewService,
	captures CaptureService,
	text *analysis.TextAnalyzer,
	sttProvider stt.Provider,
	audioUploader storage.Uploader,
	log *logrus.Logger,
) ResponseService {
	if log == nil {
		log = logrus.New()
	}
	return &responseService{
		interviews:    interviews,
		responses:     responses,
		interviewSvc:  interviewSvc,
		captures:      captures,
		text:          text,
		stt:           sttProvider,
		audioUploader: audioUploader,
		log:           log,
	}
}

func (s *responseService) Submit(ctx context.Context, in SubmitAnswerInput) (*SubmitAnswerResult, error) {
	const op = "ResponseService.Submit"

	if in.InterviewID == "" || in.QuestionNumber <= 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "interview_id and question_number (>0) are required", nil)
	}
	if strings.TrimSpace(in.Transcript) == "" && len(in.Audio) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "a typed answer or audio is required", nil)
	}

	iv, err := s.interviews.GetByID(ctx, in.InterviewID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "interview not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load interview", err)
	}
	if iv.Status.Terminal() {
		return nil, utils.E(utils.CodeForbidden, op, "interview is no longer accepting answers", nil)
	}

	q, err := s.interviews.GetQuestion(ctx, in.InterviewID, in.QuestionNumber)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "question not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load question", err)
	}

	// Write-once: a question answered stays answered.
	if _, err := s.responses.GetByQuestion(ctx, in.InterviewID, q.ID); err == nil {
		return nil, utils.E(utils.CodeConflict, op, "question already answered", nil)
	} else if !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to check existing response", err)
	}

	transcript := strings.TrimSpace(in.Transcript)
	if transcript == "" {
		if s.stt == nil {
			return nil, utils.E(utils.CodeUnavailable, op, "speech-to-text is not configured", nil)
		}
		text, _, terr := s.stt.Transcribe(ctx, in.Audio, in.Language)
		if terr != nil {
			return nil, utils.E(utils.CodeUnavailable, op, "speech-to-text failed", terr)
		}
		transcript = strings.TrimSpace(text)
	}

	metrics := s.text.Analyze(ctx, transcript, q.ReferenceAnswer, q.ExpectedKeywords)

	// Video evidence, when a capture burst finished for this question.
	video, err := s.captures.TakeMetrics(ctx, in.InterviewID, in.QuestionNumber)
	if err != nil {
		s.log.WithError(err).Warn("failed to fetch capture metrics, scoring without video")
		video = nil
	}

	out := &SubmitAnswerResult{Transcript: transcript}

	if video != nil {
		total, terminated, verr := s.interviewSvc.RecordViolations(ctx, in.InterviewID, video.GazeViolations)
		if verr != nil {
			return nil, verr
		}
		out.ViolationTotal = total
		if terminated {
			// Hard cutoff: the crossing answer is not persisted and the
			// remaining questions stay unanswered.
			out.Terminated = true
			return out, nil
		}
	}

	row := s.buildResponse(ctx, iv.ID, q.ID, transcript, metrics, video, in.Audio)
	if err := s.responses.Insert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save response", err)
	}
	out.Response = row

	answered, err := s.responses.CountByInterview(ctx, in.InterviewID)
	if err == nil {
		questions, qerr := s.interviews.ListQuestions(ctx, in.InterviewID)
		if qerr == nil && int(answered) >= len(questions) {
			if cerr := s.interviewSvc.Complete(ctx, in.InterviewID); cerr != nil {
				s.log.WithError(cerr).Warn("failed to mark interview completed")
			} else {
				out.Completed = true
			}
		}
	}

	s.log.WithFields(logrus.Fields{
		"interview_id":    in.InterviewID,
		"question_number": in.QuestionNumber,
		"has_video":       video != nil,
		"sentiment":       row.SentimentLabel,
	}).Info("answer recorded")
	return out, nil
}

func (s *responseService) buildResponse(ctx context.Context, interviewID, questionID, transcript string, m analysis.TextMetrics, video *analysis.BatchResult, audio []byte) *models.Response {
	row := &models.Response{
		ID:          uuid.NewString(),
		InterviewID: interviewID,
		QuestionID:  questionID,
		Transcript:  transcript,

		SentimentScore:    m.Sentiment.Score,
		SentimentLabel:    m.Sentiment.Label,
		SentimentFallback: m.Sentiment.Fallback,

		GrammarScore:    m.Grammar.Score,
		GrammarFallback: m.Grammar.Fallback,

		KeywordMatchScore:  m.Content.KeywordMatchScore,
		MatchedKeywords:    m.Content.MatchedKeywords,
		SemanticSimilarity: m.Content.SemanticSimilarity,
		ContentFallback:    m.Content.Fallback,

		CreatedAt: time.Now().UTC(),
	}

	if len(m.Content.Embedding) > 0 {
		vec := pgvector.NewVector(m.Content.Embedding)
		row.TranscriptEmbedding = &vec
	}

	if video != nil {
		eye := video.EyeContactScore
		rate := video.FaceDetectionRate
		row.EyeContactScore = &eye
		row.FaceDetectionRate = &rate
		row.GazeViolations = video.GazeViolations
		if b, err := json.Marshal(video.ViolationDetails); err == nil {
			row.ViolationDetails = datatypes.JSON(b)
		}
	}

	if len(audio) > 0 && s.audioUploader != nil {
		object := fmt.Sprintf("answers/%s/%s.wav", interviewID, row.ID)
		path, err := s.audioUploader.Upload(ctx, object, "audio/wav", bytes.NewReader(audio))
		if err != nil {
			s.log.WithError(err).Warn("audio audit upload failed")
		} else {
			row.AudioPath = path
		}
	}

	return row
}

func (s *responseService) ListByInterview(ctx context.Context, interviewID string) ([]models.Response, error) {
	const op = "ResponseService.ListByInterview"

	if interviewID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "interview_id is required", nil)
	}

	rows, err := s.responses.ListByInterview(ctx, interviewID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list responses", err)
	}
	return rows, nil
}
