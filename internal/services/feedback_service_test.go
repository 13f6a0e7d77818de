package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prepstage/intervue/internal/analysis"
	"github.com/prepstage/intervue/internal/models"
	"github.com/prepstage/intervue/internal/utils"
)

type memResponseRepo struct {
	rows []models.Response
}

func (r *memResponseRepo) Insert(_ context.Context, resp *models.Response) error {
	r.rows = append(r.rows, *resp)
	return nil
}

func (r *memResponseRepo) GetByQuestion(_ context.Context, interviewID, questionID string) (*models.Response, error) {
	for i := range r.rows {
		if r.rows[i].InterviewID == interviewID && r.rows[i].QuestionID == questionID {
			cp := r.rows[i]
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *memResponseRepo) ListByInterview(_ context.Context, interviewID string) ([]models.Response, error) {
	var out []models.Response
	for _, row := range r.rows {
		if row.InterviewID == interviewID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *memResponseRepo) CountByInterview(_ context.Context, interviewID string) (int64, error) {
	rows, _ := r.ListByInterview(context.Background(), interviewID)
	return int64(len(rows)), nil
}

type memFeedbackRepo struct {
	byInterview map[string]*models.Feedback
}

func newMemFeedbackRepo() *memFeedbackRepo {
	return &memFeedbackRepo{byInterview: map[string]*models.Feedback{}}
}

func (r *memFeedbackRepo) GetByInterview(_ context.Context, interviewID string) (*models.Feedback, error) {
	if f, ok := r.byInterview[interviewID]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, utils.ErrNotFound
}

func (r *memFeedbackRepo) Upsert(_ context.Context, f *models.Feedback) error {
	if prev, ok := r.byInterview[f.InterviewID]; ok {
		// Identity is preserved across regenerations.
		f.ID = prev.ID
	}
	cp := *f
	r.byInterview[f.InterviewID] = &cp
	return nil
}

type memCache struct {
	m map[string][]byte
}

func newMemCache() *memCache { return &memCache{m: map[string][]byte{}} }

func (c *memCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	b, ok := c.m[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) SetJSON(_ context.Context, key string, val any, _ time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	c.m[key] = b
	return nil
}

func (c *memCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.m, k)
	}
	return nil
}

func ptr(v float64) *float64 { return &v }

func seededInterview(t *testing.T) (*memInterviewRepo, *memResponseRepo, string) {
	t.Helper()

	repo := newMemInterviewRepo()
	iv := &models.Interview{ID: "iv-1", UserID: "user-1", Status: models.StatusCompleted, StartedAt: time.Now()}
	questions := []models.Question{
		{ID: "q-1", QuestionNumber: 1, QuestionText: "What is a goroutine?"},
		{ID: "q-2", QuestionNumber: 2, QuestionText: "Explain channels."},
	}
	if err := repo.CreateWithQuestions(context.Background(), iv, questions); err != nil {
		t.Fatalf("seed interview: %v", err)
	}

	responses := &memResponseRepo{rows: []models.Response{
		{
			InterviewID: "iv-1", QuestionID: "q-1",
			Transcript:        "Goroutines are lightweight threads",
			SentimentScore:    0.6, SentimentLabel: analysis.SentimentPositive,
			GrammarScore:      100,
			KeywordMatchScore: 80,
			MatchedKeywords:   []string{"goroutine"},
			EyeContactScore:   ptr(90.0),
		},
		{
			InterviewID: "iv-1", QuestionID: "q-2",
			Transcript:        "Channels pass values between goroutines",
			SentimentScore:    0, SentimentLabel: analysis.SentimentNeutral,
			GrammarScore:      60,
			KeywordMatchScore: 40,
			EyeContactScore:   nil, // no video evidence for this answer
		},
	}}

	return repo, responses, "iv-1"
}

func TestAggregate(t *testing.T) {
	repo, responses, ivID := seededInterview(t)
	svc := NewFeedbackService(repo, responses, newMemFeedbackRepo(), &stubLLM{}, newMemCache(), nil)

	scores, err := svc.Aggregate(context.Background(), ivID)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	// Audio per answer blends sentiment percentage with grammar:
	//   q1: 0.5*80 + 0.5*100 = 90, q2: 0.5*50 + 0.5*60 = 55 -> mean 72.5
	if scores.AudioScore != 72.5 {
		t.Fatalf("audio score = %v, want 72.5", scores.AudioScore)
	}
	// Video averages only the answers that carry an eye-contact score.
	if scores.VideoScore != 90 {
		t.Fatalf("video score = %v, want 90", scores.VideoScore)
	}
	if scores.ContentScore != 60 {
		t.Fatalf("content score = %v, want 60", scores.ContentScore)
	}
	want := 0.5*60 + 0.3*72.5 + 0.2*90
	if scores.OverallScore != want {
		t.Fatalf("overall score = %v, want %v", scores.OverallScore, want)
	}
	if scores.TotalQuestions != 2 {
		t.Fatalf("total questions = %d, want 2", scores.TotalQuestions)
	}
}

func TestAggregateWeighting(t *testing.T) {
	repo := newMemInterviewRepo()
	iv := &models.Interview{ID: "iv-w", UserID: "user-1", Status: models.StatusCompleted, StartedAt: time.Now()}
	questions := []models.Question{{ID: "qw-1", QuestionNumber: 1, QuestionText: "Describe your last project."}}
	if err := repo.CreateWithQuestions(context.Background(), iv, questions); err != nil {
		t.Fatalf("seed interview: %v", err)
	}
	// compound 0.2 maps to a 60% sentiment percentage, blending with
	// grammar 60 to an audio score of exactly 60.
	responses := &memResponseRepo{rows: []models.Response{{
		InterviewID: "iv-w", QuestionID: "qw-1",
		Transcript:        "I led the migration to a streaming pipeline",
		SentimentScore:    0.2, SentimentLabel: analysis.SentimentPositive,
		GrammarScore:      60,
		KeywordMatchScore: 80,
		EyeContactScore:   ptr(50.0),
	}}}
	svc := NewFeedbackService(repo, responses, newMemFeedbackRepo(), &stubLLM{}, newMemCache(), nil)

	scores, err := svc.Aggregate(context.Background(), "iv-w")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if scores.ContentScore != 80 || scores.AudioScore != 60 || scores.VideoScore != 50 {
		t.Fatalf("sub-scores = %v/%v/%v, want 80/60/50",
			scores.ContentScore, scores.AudioScore, scores.VideoScore)
	}
	if scores.OverallScore != 68 {
		t.Fatalf("overall score = %v, want 68", scores.OverallScore)
	}
}

func TestAggregateNoResponses(t *testing.T) {
	repo := newMemInterviewRepo()
	svc := NewFeedbackService(repo, &memResponseRepo{}, newMemFeedbackRepo(), &stubLLM{}, newMemCache(), nil)

	_, err := svc.Aggregate(context.Background(), "iv-empty")
	if !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
}

func TestQuestionWiseAnalysis(t *testing.T) {
	repo, responses, ivID := seededInterview(t)
	svc := NewFeedbackService(repo, responses, newMemFeedbackRepo(), &stubLLM{}, newMemCache(), nil)

	rows, err := svc.QuestionWiseAnalysis(context.Background(), ivID)
	if err != nil {
		t.Fatalf("QuestionWiseAnalysis: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].QuestionNumber != 1 || rows[0].EyeContact != 90 {
		t.Fatalf("row 0 = %+v", rows[0])
	}
	if rows[1].EyeContact != 0 {
		t.Fatalf("row 1 eye contact = %v, want 0 for missing video", rows[1].EyeContact)
	}
}

const narrativeJSON = `{
  "strengths": ["Clear explanations", "Strong fundamentals"],
  "weaknesses": ["Shallow on channels"],
  "recommendations": ["Practice concurrency patterns"],
  "overall_comment": "Solid performance with room to grow."
}`

func TestSynthesizeParsesFencedNarrative(t *testing.T) {
	repo, responses, ivID := seededInterview(t)
	feedbacks := newMemFeedbackRepo()
	svc := NewFeedbackService(repo, responses, feedbacks, &stubLLM{out: "```json\n" + narrativeJSON + "\n```"}, newMemCache(), nil)

	f, err := svc.Synthesize(context.Background(), ivID)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if f.Strengths != "Clear explanations\nStrong fundamentals" {
		t.Fatalf("strengths = %q", f.Strengths)
	}
	if f.OverallComment != "Solid performance with room to grow." {
		t.Fatalf("overall comment = %q", f.OverallComment)
	}

	var snapshot []models.QuestionAnalysis
	if err := json.Unmarshal(f.QuestionWiseAnalysis, &snapshot); err != nil {
		t.Fatalf("snapshot decode: %v", err)
	}
	if len(snapshot) != 2 {
		t.Fatalf("snapshot rows = %d, want 2", len(snapshot))
	}
}

func TestSynthesizeGenericOnLLMFailure(t *testing.T) {
	repo, responses, ivID := seededInterview(t)
	svc := NewFeedbackService(repo, responses, newMemFeedbackRepo(), &stubLLM{err: errors.New("quota exceeded")}, newMemCache(), nil)

	f, err := svc.Synthesize(context.Background(), ivID)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.Contains(f.Weaknesses, "Analysis could not be completed") {
		t.Fatalf("weaknesses = %q, want generic payload", f.Weaknesses)
	}
	// Scores are real even when the narrative is not.
	if f.OverallScore == 0 {
		t.Fatal("aggregated scores lost on narrative failure")
	}
}

func TestSynthesizeGenericOnUnparseableNarrative(t *testing.T) {
	repo, responses, ivID := seededInterview(t)
	svc := NewFeedbackService(repo, responses, newMemFeedbackRepo(), &stubLLM{out: "I think the candidate did well overall."}, newMemCache(), nil)

	f, err := svc.Synthesize(context.Background(), ivID)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.Contains(f.OverallComment, "Please try regenerating") {
		t.Fatalf("overall comment = %q, want generic payload", f.OverallComment)
	}
}

func TestSynthesizeKeepsIdentityAcrossRegenerations(t *testing.T) {
	repo, responses, ivID := seededInterview(t)
	feedbacks := newMemFeedbackRepo()
	svc := NewFeedbackService(repo, responses, feedbacks, &stubLLM{out: narrativeJSON}, newMemCache(), nil)

	first, err := svc.Synthesize(context.Background(), ivID)
	if err != nil {
		t.Fatalf("first Synthesize: %v", err)
	}
	second, err := svc.Synthesize(context.Background(), ivID)
	if err != nil {
		t.Fatalf("second Synthesize: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("feedback identity changed across regenerations: %q vs %q", first.ID, second.ID)
	}
}

func TestGetCachesFeedback(t *testing.T) {
	repo, responses, ivID := seededInterview(t)
	feedbacks := newMemFeedbackRepo()
	c := newMemCache()
	svc := NewFeedbackService(repo, responses, feedbacks, &stubLLM{out: narrativeJSON}, c, nil)

	if _, err := svc.Synthesize(context.Background(), ivID); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	first, err := svc.Get(context.Background(), ivID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	// Second Get must survive the backing store disappearing.
	feedbacks.byInterview = map[string]*models.Feedback{}
	second, err := svc.Get(context.Background(), ivID)
	if err != nil {
		t.Fatalf("cached Get: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("cached feedback id = %q, want %q", second.ID, first.ID)
	}
}

func TestGetNotFoundFeedback(t *testing.T) {
	repo := newMemInterviewRepo()
	svc := NewFeedbackService(repo, &memResponseRepo{}, newMemFeedbackRepo(), &stubLLM{}, newMemCache(), nil)

	_, err := svc.Get(context.Background(), "iv-none")
	if !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
}
