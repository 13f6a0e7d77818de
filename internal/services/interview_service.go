package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/prepstage/intervue/internal/analysis"
	"github.com/prepstage/intervue/internal/models"
	"github.com/prepstage/intervue/internal/providers/llm"
	pgrepo "github.com/prepstage/intervue/internal/repositories/postgres"
	"github.com/prepstage/intervue/internal/utils"
)

// QuestionCount is how many questions one interview carries.
const QuestionCount = 5

type CandidateProfile struct {
	Role       string `json:"role"`
	Domain     string `json:"domain"`
	Skills     string `json:"skills"`
	Experience int    `json:"experience"`
}

type InterviewService interface {
	Start(ctx context.Context, userID string, profile CandidateProfile) (*models.Interview, error)
	Get(ctx context.Context, interviewID string) (*models.Interview, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Interview, error)

	// RecordViolations adds one answer's gaze-violation batch to the
	// interview's running counter and, when the hard cutoff is reached,
	// transitions the interview to terminated.
	RecordViolations(ctx context.Context, interviewID string, n int) (total int, terminated bool, err error)

	Complete(ctx context.Context, interviewID string) error
}

type interviewService struct {
	interviews pgrepo.InterviewRepository
	llm        llm.Provider
	violations *analysis.ViolationRegistry
	log        *logrus.Logger
}

func NewInterviewService(interviews pgrepo.InterviewRepository, generator llm.Provider, violations *analysis.ViolationRegistry, log *logrus.Logger) InterviewService {
	if log == nil {
		log = logrus.New()
	}
	return &interviewService{
		interviews: interviews,
		llm:        generator,
		violations: violations,
		log:        log,
	}
}

func (s *interviewService) Start(ctx context.Context, userID string, profile CandidateProfile) (*models.Interview, error) {
	const op = "InterviewService.Start"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if profile.Role == "" || profile.Domain == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "profile role and domain are required", nil)
	}

	questions, err := s.generateQuestions(ctx, profile)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to generate interview questions", err)
	}

	iv := &models.Interview{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    models.StatusInProgress,
		StartedAt: time.Now().UTC(),
	}

	if err := s.interviews.CreateWithQuestions(ctx, iv, questions); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to persist interview", err)
	}

	// Only a new interview resets the running violation counter.
	s.violations.Reset(iv.ID)

	iv.Questions = questions
	s.log.WithFields(logrus.Fields{
		"interview_id": iv.ID,
		"user_id":      userID,
		"questions":    len(questions),
	}).Info("interview started")
	return iv, nil
}

type generatedQuestion struct {
	QuestionNumber   int      `json:"question_number"`
	QuestionText     string   `json:"question_text"`
	ReferenceAnswer  string   `json:"reference_answer"`
	ExpectedKeywords []string `json:"expected_keywords"`
	DifficultyLevel  string   `json:"difficulty_level"`
}

func (s *interviewService) generateQuestions(ctx context.Context, profile CandidateProfile) ([]models.Question, error) {
	prompt := fmt.Sprintf(`You are an expert interviewer. Generate exactly %d interview questions for a candidate with this profile:
Role: %s
Domain: %s
Skills: %s
Experience: %d years

Guidelines:
- Questions 1-2: Conceptual/theory questions (Easy to Medium)
- Questions 3-4: Practical/scenario-based questions (Medium)
- Question %d: Problem-solving or coding explanation (Medium to Hard)
- Match difficulty to experience level (easier for freshers)
- Focus on the skills they listed
- Make questions realistic for actual interviews

Return ONLY a JSON array with this exact format (no extra text):
[
    {
        "question_number": 1,
        "question_text": "Your question here",
        "reference_answer": "Brief 2-3 sentence answer",
        "expected_keywords": ["keyword1", "keyword2", "keyword3"],
        "difficulty_level": "Easy"
    }
]`, QuestionCount, profile.Role, profile.Domain, profile.Skills, profile.Experience, QuestionCount)

	raw, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var parsed []generatedQuestion
	if err := json.Unmarshal([]byte(utils.StripCodeFences(raw)), &parsed); err != nil {
		s.log.WithError(err).WithField("head", head(raw, 200)).Warn("question generation returned unparseable JSON")
		return nil, err
	}
	if len(parsed) == 0 {
		return nil, errors.New("model returned no questions")
	}

	now := time.Now().UTC()
	out := make([]models.Question, 0, len(parsed))
	for i, q := range parsed {
		if strings.TrimSpace(q.QuestionText) == "" {
			return nil, fmt.Errorf("question %d has empty text", i+1)
		}
		if q.QuestionNumber == 0 {
			q.QuestionNumber = i + 1
		}
		out = append(out, models.Question{
			ID:               uuid.NewString(),
			QuestionNumber:   q.QuestionNumber,
			QuestionText:     q.QuestionText,
			ReferenceAnswer:  q.ReferenceAnswer,
			ExpectedKeywords: q.ExpectedKeywords,
			DifficultyLevel:  q.DifficultyLevel,
			CreatedAt:        now,
		})
	}
	return out, nil
}

func (s *interviewService) Get(ctx context.Context, interviewID string) (*models.Interview, error) {
	const op = "InterviewService.Get"

	if interviewID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "interview_id is required", nil)
	}

	iv, err := s.interviews.GetByID(ctx, interviewID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "interview not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get interview", err)
	}
	return iv, nil
}

func (s *interviewService) ListByUser(ctx context.Context, userID string, limit int) ([]models.Interview, error) {
	const op = "InterviewService.ListByUser"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	rows, err := s.interviews.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list interviews", err)
	}
	return rows, nil
}

func (s *interviewService) RecordViolations(ctx context.Context, interviewID string, n int) (int, bool, error) {
	const op = "InterviewService.RecordViolations"

	iv, err := s.Get(ctx, interviewID)
	if err != nil {
		return 0, false, err
	}
	if iv.Status.Terminal() {
		return iv.TotalGazeViolations, true, nil
	}

	tracker := s.violations.Get(interviewID, iv.TotalGazeViolations)
	total := tracker.Record(n)

	if err := s.interviews.SetViolationTotal(ctx, interviewID, total); err != nil {
		return total, false, utils.E(utils.CodeInternal, op, "failed to persist violation total", err)
	}

	if !tracker.ShouldTerminate() {
		return total, false, nil
	}

	now := time.Now().UTC()
	if err := s.interviews.SetStatus(ctx, interviewID, models.StatusTerminated, &now); err != nil {
		return total, true, utils.E(utils.CodeInternal, op, "failed to terminate interview", err)
	}
	s.violations.Drop(interviewID)

	s.log.WithFields(logrus.Fields{
		"interview_id": interviewID,
		"violations":   total,
	}).Warn("interview terminated: gaze violation threshold reached")
	return total, true, nil
}

func (s *interviewService) Complete(ctx context.Context, interviewID string) error {
	const op = "InterviewService.Complete"

	if interviewID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "interview_id is required", nil)
	}

	now := time.Now().UTC()
	if err := s.interviews.SetStatus(ctx, interviewID, models.StatusCompleted, &now); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to complete interview", err)
	}
	s.violations.Drop(interviewID)
	return nil
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
