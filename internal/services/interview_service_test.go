package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prepstage/intervue/internal/analysis"
	"github.com/prepstage/intervue/internal/models"
	"github.com/prepstage/intervue/internal/utils"
)

type stubLLM struct {
	out string
	err error
}

func (s *stubLLM) Generate(context.Context, string) (string, error) { return s.out, s.err }
func (s *stubLLM) Close() error                                     { return nil }

// memInterviewRepo is an in-memory InterviewRepository good enough for
// service-level tests.
type memInterviewRepo struct {
	interviews map[string]*models.Interview
	questions  map[string][]models.Question
}

func newMemInterviewRepo() *memInterviewRepo {
	return &memInterviewRepo{
		interviews: map[string]*models.Interview{},
		questions:  map[string][]models.Question{},
	}
}

func (r *memInterviewRepo) CreateWithQuestions(_ context.Context, iv *models.Interview, questions []models.Question) error {
	for i := range questions {
		questions[i].InterviewID = iv.ID
	}
	cp := *iv
	r.interviews[iv.ID] = &cp
	r.questions[iv.ID] = questions
	return nil
}

func (r *memInterviewRepo) GetByID(_ context.Context, id string) (*models.Interview, error) {
	iv, ok := r.interviews[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *iv
	cp.Questions = r.questions[id]
	return &cp, nil
}

func (r *memInterviewRepo) ListByUser(_ context.Context, userID string, _ int) ([]models.Interview, error) {
	var out []models.Interview
	for _, iv := range r.interviews {
		if iv.UserID == userID {
			out = append(out, *iv)
		}
	}
	return out, nil
}

func (r *memInterviewRepo) GetQuestion(_ context.Context, interviewID string, questionNumber int) (*models.Question, error) {
	for _, q := range r.questions[interviewID] {
		if q.QuestionNumber == questionNumber {
			cp := q
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *memInterviewRepo) ListQuestions(_ context.Context, interviewID string) ([]models.Question, error) {
	return r.questions[interviewID], nil
}

func (r *memInterviewRepo) SetStatus(_ context.Context, id string, status models.InterviewStatus, completedAt *time.Time) error {
	iv, ok := r.interviews[id]
	if !ok {
		return utils.ErrNotFound
	}
	iv.Status = status
	if completedAt != nil {
		t := completedAt.UTC()
		iv.CompletedAt = &t
	}
	return nil
}

func (r *memInterviewRepo) SetViolationTotal(_ context.Context, id string, total int) error {
	iv, ok := r.interviews[id]
	if !ok {
		return utils.ErrNotFound
	}
	if total > iv.TotalGazeViolations {
		iv.TotalGazeViolations = total
	}
	return nil
}

const questionsJSON = `[
  {"question_number":1,"question_text":"What is a goroutine?","reference_answer":"A lightweight thread managed by the runtime.","expected_keywords":["goroutine","scheduler"],"difficulty_level":"Easy"},
  {"question_number":2,"question_text":"Explain channels.","reference_answer":"Typed conduits for communication.","expected_keywords":["channel","select"],"difficulty_level":"Medium"}
]`

func TestStartParsesFencedQuestions(t *testing.T) {
	repo := newMemInterviewRepo()
	svc := NewInterviewService(repo, &stubLLM{out: "```json\n" + questionsJSON + "\n```"}, analysis.NewViolationRegistry(), nil)

	iv, err := svc.Start(context.Background(), "user-1", CandidateProfile{Role: "Backend Engineer", Domain: "Go"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if iv.Status != models.StatusInProgress {
		t.Fatalf("status = %q, want in_progress", iv.Status)
	}
	if len(iv.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(iv.Questions))
	}
	if iv.Questions[0].ReferenceAnswer == "" || len(iv.Questions[0].ExpectedKeywords) != 2 {
		t.Fatalf("question not fully mapped: %+v", iv.Questions[0])
	}
}

func TestStartRejectsUnparseableQuestions(t *testing.T) {
	svc := NewInterviewService(newMemInterviewRepo(), &stubLLM{out: "Sure! Here are your questions:"}, analysis.NewViolationRegistry(), nil)

	_, err := svc.Start(context.Background(), "user-1", CandidateProfile{Role: "Backend Engineer", Domain: "Go"})
	if !utils.IsCode(err, utils.CodeUnavailable) {
		t.Fatalf("err = %v, want UNAVAILABLE", err)
	}
}

func TestStartRequiresProfile(t *testing.T) {
	svc := NewInterviewService(newMemInterviewRepo(), &stubLLM{out: questionsJSON}, analysis.NewViolationRegistry(), nil)

	_, err := svc.Start(context.Background(), "user-1", CandidateProfile{Role: "Backend Engineer"})
	if !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("err = %v, want INVALID_ARGUMENT", err)
	}
}

func TestRecordViolationsTerminatesAtThreshold(t *testing.T) {
	repo := newMemInterviewRepo()
	registry := analysis.NewViolationRegistry()
	svc := NewInterviewService(repo, &stubLLM{out: questionsJSON}, registry, nil)

	iv, err := svc.Start(context.Background(), "user-1", CandidateProfile{Role: "Backend Engineer", Domain: "Go"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	total, terminated, err := svc.RecordViolations(context.Background(), iv.ID, 2)
	if err != nil || terminated {
		t.Fatalf("first batch: total=%d terminated=%v err=%v", total, terminated, err)
	}
	if total != 2 {
		t.Fatalf("total = %d, want 2", total)
	}

	total, terminated, err = svc.RecordViolations(context.Background(), iv.ID, 3)
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if !terminated || total != 5 {
		t.Fatalf("total=%d terminated=%v, want 5 and true", total, terminated)
	}

	got, err := svc.Get(context.Background(), iv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.StatusTerminated {
		t.Fatalf("status = %q, want terminated", got.Status)
	}
	if got.TotalGazeViolations != 5 {
		t.Fatalf("persisted violations = %d, want 5", got.TotalGazeViolations)
	}
}

func TestRecordViolationsOnTerminatedInterview(t *testing.T) {
	repo := newMemInterviewRepo()
	registry := analysis.NewViolationRegistry()
	svc := NewInterviewService(repo, &stubLLM{out: questionsJSON}, registry, nil)

	iv, _ := svc.Start(context.Background(), "user-1", CandidateProfile{Role: "Backend Engineer", Domain: "Go"})
	if _, _, err := svc.RecordViolations(context.Background(), iv.ID, 6); err != nil {
		t.Fatalf("RecordViolations: %v", err)
	}

	total, terminated, err := svc.RecordViolations(context.Background(), iv.ID, 2)
	if err != nil {
		t.Fatalf("RecordViolations on terminated: %v", err)
	}
	if !terminated {
		t.Fatal("terminated interview reported as live")
	}
	if total != 6 {
		t.Fatalf("total = %d, want the persisted 6 (no further accumulation)", total)
	}
}

func TestCompleteSetsStatus(t *testing.T) {
	repo := newMemInterviewRepo()
	svc := NewInterviewService(repo, &stubLLM{out: questionsJSON}, analysis.NewViolationRegistry(), nil)

	iv, _ := svc.Start(context.Background(), "user-1", CandidateProfile{Role: "Backend Engineer", Domain: "Go"})
	if err := svc.Complete(context.Background(), iv.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got, _ := svc.Get(context.Background(), iv.ID)
	if got.Status != models.StatusCompleted || got.CompletedAt == nil {
		t.Fatalf("interview = %+v, want completed with timestamp", got)
	}
}

func TestGetNotFound(t *testing.T) {
	svc := NewInterviewService(newMemInterviewRepo(), &stubLLM{}, analysis.NewViolationRegistry(), nil)

	_, err := svc.Get(context.Background(), "missing")
	if !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
	if !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("err = %v, want to wrap ErrNotFound", err)
	}
}
