package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/prepstage/intervue/internal/cache"
	"github.com/prepstage/intervue/internal/models"
	"github.com/prepstage/intervue/internal/providers/llm"
	pgrepo "github.com/prepstage/intervue/internal/repositories/postgres"
	"github.com/prepstage/intervue/internal/utils"
)

const feedbackCacheTTL = time.Hour

// Overall weighting: content reflects subject-matter correctness and is
// weighted highest.
const (
	contentWeight = 0.5
	audioWeight   = 0.3
	videoWeight   = 0.2
)

type AggregateScores struct {
	OverallScore   float64 `json:"overall_score"`
	ContentScore   float64 `json:"content_score"`
	AudioScore     float64 `json:"audio_score"`
	VideoScore     float64 `json:"video_score"`
	TotalQuestions int     `json:"total_questions"`
}

type FeedbackService interface {
	Aggregate(ctx context.Context, interviewID string) (*AggregateScores, error)
	QuestionWiseAnalysis(ctx context.Context, interviewID string) ([]models.QuestionAnalysis, error)

	// Synthesize aggregates scores, generates narrative feedback, and
	// upserts the interview's feedback record. It never hard-fails on
	// narrative trouble: a generic payload is substituted instead.
	Synthesize(ctx context.Context, interviewID string) (*models.Feedback, error)

	Get(ctx context.Context, interviewID string) (*models.Feedback, error)
}

type feedbackService struct {
	interviews pgrepo.InterviewRepository
	responses  pgrepo.ResponseRepository
	feedbacks  pgrepo.FeedbackRepository
	llm        llm.Provider
	cache      cache.Cache
	log        *logrus.Logger
}

func NewFeedbackService(
	interviews pgrepo.InterviewRepository,
	responses pgrepo.ResponseRepository,
	feedbacks pgrepo.FeedbackRepository,
	generator llm.Provider,
	c cache.Cache,
	log *logrus.Logger,
) FeedbackService {
	if log == nil {
		log = logrus.New()
	}
	return &feedbackService{
		interviews: interviews,
		responses:  responses,
		feedbacks:  feedbacks,
		llm:        generator,
		cache:      c,
		log:        log,
	}
}

// sentimentAsPercentage maps a compound polarity in [-1, 1] onto [0, 100].
func sentimentAsPercentage(compound float64) float64 {
	return (compound + 1) / 2 * 100
}

func (s *feedbackService) Aggregate(ctx context.Context, interviewID string) (*AggregateScores, error) {
	const op = "FeedbackService.Aggregate"

	if interviewID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "interview_id is required", nil)
	}

	rows, err := s.responses.ListByInterview(ctx, interviewID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list responses", err)
	}
	if len(rows) == 0 {
		return nil, utils.E(utils.CodeNotFound, op, "no responses recorded for interview", nil)
	}

	var (
		audioSum, videoSum, contentSum float64
		audioCnt, videoCnt, contentCnt int
	)

	for _, r := range rows {
		// Audio blends delivery sentiment with grammatical well-formedness;
		// it only counts when both components exist on the response.
		if r.SentimentLabel != "" {
			audioSum += 0.5*sentimentAsPercentage(r.SentimentScore) + 0.5*r.GrammarScore
			audioCnt++
		}

		if r.EyeContactScore != nil {
			videoSum += *r.EyeContactScore
			videoCnt++
		}

		contentSum += r.KeywordMatchScore
		contentCnt++
	}

	avg := func(sum float64, n int) float64 {
		if n == 0 {
			return 0
		}
		return sum / float64(n)
	}

	content := avg(contentSum, contentCnt)
	audio := avg(audioSum, audioCnt)
	video := avg(videoSum, videoCnt)

	return &AggregateScores{
		OverallScore:   round2(contentWeight*content + audioWeight*audio + videoWeight*video),
		ContentScore:   round2(content),
		AudioScore:     round2(audio),
		VideoScore:     round2(video),
		TotalQuestions: len(rows),
	}, nil
}

func (s *feedbackService) QuestionWiseAnalysis(ctx context.Context, interviewID string) ([]models.QuestionAnalysis, error) {
	const op = "FeedbackService.QuestionWiseAnalysis"

	if interviewID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "interview_id is required", nil)
	}

	questions, err := s.interviews.ListQuestions(ctx, interviewID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list questions", err)
	}
	rows, err := s.responses.ListByInterview(ctx, interviewID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list responses", err)
	}

	byQuestion := make(map[string]*models.Response, len(rows))
	for i := range rows {
		byQuestion[rows[i].QuestionID] = &rows[i]
	}

	out := make([]models.QuestionAnalysis, 0, len(rows))
	for _, q := range questions {
		r, ok := byQuestion[q.ID]
		if !ok {
			continue
		}

		a := models.QuestionAnalysis{
			QuestionNumber:  q.QuestionNumber,
			QuestionText:    q.QuestionText,
			UserAnswer:      r.Transcript,
			KeywordMatch:    r.KeywordMatchScore,
			Sentiment:       r.SentimentLabel,
			Grammar:         r.GrammarScore,
			MatchedKeywords: r.MatchedKeywords,
		}
		if a.Sentiment == "" {
			a.Sentiment = "N/A"
		}
		if r.EyeContactScore != nil {
			a.EyeContact = *r.EyeContactScore
		}
		out = append(out, a)
	}
	return out, nil
}

type narrativeFeedback struct {
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Recommendations []string `json:"recommendations"`
	OverallComment  string   `json:"overall_comment"`
}

// genericFeedback is substituted whenever narrative generation or parsing
// fails; a blocked flow would be worse than generic advice.
func genericFeedback() narrativeFeedback {
	return narrativeFeedback{
		Strengths:       []string{"Completed the interview", "Answered all questions"},
		Weaknesses:      []string{"Analysis could not be completed"},
		Recommendations: []string{"Try regenerating feedback", "Review your answers manually"},
		OverallComment:  "Feedback generation encountered an issue. Please try regenerating.",
	}
}

func (s *feedbackService) Synthesize(ctx context.Context, interviewID string) (*models.Feedback, error) {
	const op = "FeedbackService.Synthesize"

	scores, err := s.Aggregate(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	analysisRows, err := s.QuestionWiseAnalysis(ctx, interviewID)
	if err != nil {
		return nil, err
	}

	narrative := s.generateNarrative(ctx, scores, analysisRows)

	snapshot, err := json.Marshal(analysisRows)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to encode question analysis", err)
	}

	f := &models.Feedback{
		ID:          uuid.NewString(),
		InterviewID: interviewID,

		OverallScore: scores.OverallScore,
		ContentScore: scores.ContentScore,
		AudioScore:   scores.AudioScore,
		VideoScore:   scores.VideoScore,

		Strengths:       strings.Join(narrative.Strengths, "\n"),
		Weaknesses:      strings.Join(narrative.Weaknesses, "\n"),
		Recommendations: strings.Join(narrative.Recommendations, "\n"),
		OverallComment:  narrative.OverallComment,

		QuestionWiseAnalysis: datatypes.JSON(snapshot),
		GeneratedAt:          time.Now().UTC(),
	}

	if err := s.feedbacks.Upsert(ctx, f); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to upsert feedback", err)
	}

	// Regeneration invalidates any cached copy; the stored row is the one
	// whose identity is stable.
	_ = s.cache.Del(ctx, feedbackCacheKey(interviewID))

	stored, err := s.feedbacks.GetByInterview(ctx, interviewID)
	if err == nil {
		return stored, nil
	}
	return f, nil
}

func (s *feedbackService) generateNarrative(ctx context.Context, scores *AggregateScores, rows []models.QuestionAnalysis) narrativeFeedback {
	prompt := buildFeedbackPrompt(scores, rows)

	raw, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		s.log.WithError(err).Error("narrative generation failed, using generic feedback")
		return genericFeedback()
	}

	var out narrativeFeedback
	if err := json.Unmarshal([]byte(utils.StripCodeFences(raw)), &out); err != nil {
		s.log.WithError(err).WithField("head", head(raw, 200)).Error("narrative JSON parse failed, using generic feedback")
		return genericFeedback()
	}
	return out
}

func buildFeedbackPrompt(scores *AggregateScores, rows []models.QuestionAnalysis) string {
	b := strings.Builder{}
	b.WriteString("You are an expert interview coach. Analyze this interview performance and provide constructive feedback.\n\n")
	fmt.Fprintf(&b, "Overall Scores:\n")
	fmt.Fprintf(&b, "- Content Knowledge: %.0f%%\n", scores.ContentScore)
	fmt.Fprintf(&b, "- Communication Quality: %.0f%%\n", scores.AudioScore)
	fmt.Fprintf(&b, "- Professional Presence: %.0f%%\n", scores.VideoScore)
	fmt.Fprintf(&b, "- Overall Score: %.0f%%\n\n", scores.OverallScore)

	b.WriteString("Question-wise Performance:\n")
	for _, q := range rows {
		fmt.Fprintf(&b, "\nQuestion %d: %s\n", q.QuestionNumber, q.QuestionText)
		fmt.Fprintf(&b, "- Keyword Match: %.0f%%\n", q.KeywordMatch)
		fmt.Fprintf(&b, "- Sentiment: %s\n", q.Sentiment)
		fmt.Fprintf(&b, "- Grammar: %.0f%%\n", q.Grammar)
		fmt.Fprintf(&b, "- Eye Contact: %.0f%%\n", q.EyeContact)
	}

	b.WriteString(`

Provide feedback in this EXACT JSON format:
{
    "strengths": ["strength 1", "strength 2", "strength 3"],
    "weaknesses": ["weakness 1", "weakness 2"],
    "recommendations": ["actionable tip 1", "actionable tip 2", "actionable tip 3"],
    "overall_comment": "2-3 sentence summary"
}

Be specific, encouraging, and actionable. Focus on concrete improvements.
`)
	return b.String()
}

func feedbackCacheKey(interviewID string) string {
	return "feedback:" + interviewID
}

func (s *feedbackService) Get(ctx context.Context, interviewID string) (*models.Feedback, error) {
	const op = "FeedbackService.Get"

	if interviewID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "interview_id is required", nil)
	}

	var cached models.Feedback
	if hit, err := s.cache.GetJSON(ctx, feedbackCacheKey(interviewID), &cached); err == nil && hit {
		return &cached, nil
	}

	f, err := s.feedbacks.GetByInterview(ctx, interviewID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "feedback not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get feedback", err)
	}

	_ = s.cache.SetJSON(ctx, feedbackCacheKey(interviewID), f, feedbackCacheTTL)
	return f, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
