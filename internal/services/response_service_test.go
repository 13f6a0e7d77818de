package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prepstage/intervue/internal/analysis"
	"github.com/prepstage/intervue/internal/models"
	"github.com/prepstage/intervue/internal/providers/vision"
	"github.com/prepstage/intervue/internal/utils"
)

type fixedScorer struct{ compound float64 }

func (f fixedScorer) Polarity(string) float64 { return f.compound }

type stubSTT struct {
	text string
	err  error
}

func (s *stubSTT) Transcribe(context.Context, []byte, string) (string, float64, error) {
	return s.text, 0.95, s.err
}

func (s *stubSTT) Close() error { return nil }

func avertedLandmarks() *vision.FaceLandmarks {
	return &vision.FaceLandmarks{LeftEye: &vision.EyeLandmarks{
		Iris:        []vision.Point{{X: 0.58, Y: 0.5}},
		LeftCorner:  vision.Point{X: 0.4, Y: 0.5},
		RightCorner: vision.Point{X: 0.6, Y: 0.5},
	}}
}

type answerFixture struct {
	interviews *memInterviewRepo
	responses  *memResponseRepo
	captures   CaptureService
	svc        ResponseService
	interview  *models.Interview
}

func newAnswerFixture(t *testing.T, landmarks *vision.FaceLandmarks, speech *stubSTT) *answerFixture {
	t.Helper()

	repo := newMemInterviewRepo()
	iv := &models.Interview{ID: "iv-1", UserID: "user-1", Status: models.StatusInProgress, StartedAt: time.Now()}
	questions := []models.Question{
		{ID: "q-1", QuestionNumber: 1, QuestionText: "What is a goroutine?", ReferenceAnswer: "A lightweight thread.", ExpectedKeywords: []string{"goroutine"}},
		{ID: "q-2", QuestionNumber: 2, QuestionText: "Explain channels.", ReferenceAnswer: "Typed conduits.", ExpectedKeywords: []string{"channel"}},
	}
	if err := repo.CreateWithQuestions(context.Background(), iv, questions); err != nil {
		t.Fatalf("seed interview: %v", err)
	}

	registry := analysis.NewViolationRegistry()
	interviewSvc := NewInterviewService(repo, &stubLLM{out: questionsJSON}, registry, nil)

	gaze := analysis.NewGazeAnalyzer(fixedDetector{landmarks: landmarks}, nil)
	captureSvc := NewCaptureService(gaze, newMemCaptureRepo(), newMemCache(), 10, nil)

	text := analysis.NewTextAnalyzer(fixedScorer{compound: 0.4}, nil, nil, nil)
	responses := &memResponseRepo{}

	f := &answerFixture{
		interviews: repo,
		responses:  responses,
		captures:   captureSvc,
		interview:  iv,
	}
	if speech != nil {
		f.svc = NewResponseService(repo, responses, interviewSvc, captureSvc, text, speech, nil, nil)
	} else {
		f.svc = NewResponseService(repo, responses, interviewSvc, captureSvc, text, nil, nil, nil)
	}
	return f
}

func TestSubmitTypedAnswer(t *testing.T) {
	f := newAnswerFixture(t, lookingLandmarks(), nil)

	out, err := f.svc.Submit(context.Background(), SubmitAnswerInput{
		InterviewID:    "iv-1",
		QuestionNumber: 1,
		Transcript:     "A goroutine is a lightweight thread",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if out.Terminated || out.Completed {
		t.Fatalf("out = %+v, want in-progress interview", out)
	}
	r := out.Response
	if r == nil {
		t.Fatal("response not persisted")
	}
	if r.SentimentLabel != analysis.SentimentPositive {
		t.Fatalf("sentiment label = %q, want positive", r.SentimentLabel)
	}
	if r.KeywordMatchScore != 100 {
		t.Fatalf("keyword score = %v, want 100", r.KeywordMatchScore)
	}
	if !r.GrammarFallback {
		t.Fatal("grammar fallback not tagged when correction is unavailable")
	}
	if r.EyeContactScore != nil {
		t.Fatal("video fields set without a finished capture burst")
	}
}

func TestSubmitWriteOnce(t *testing.T) {
	f := newAnswerFixture(t, lookingLandmarks(), nil)
	in := SubmitAnswerInput{InterviewID: "iv-1", QuestionNumber: 1, Transcript: "first answer"}

	if _, err := f.svc.Submit(context.Background(), in); err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	in.Transcript = "second attempt"
	_, err := f.svc.Submit(context.Background(), in)
	if !utils.IsCode(err, utils.CodeConflict) {
		t.Fatalf("err = %v, want CONFLICT", err)
	}
}

func TestSubmitCompletesInterview(t *testing.T) {
	f := newAnswerFixture(t, lookingLandmarks(), nil)
	ctx := context.Background()

	if _, err := f.svc.Submit(ctx, SubmitAnswerInput{InterviewID: "iv-1", QuestionNumber: 1, Transcript: "goroutines"}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	out, err := f.svc.Submit(ctx, SubmitAnswerInput{InterviewID: "iv-1", QuestionNumber: 2, Transcript: "channels"})
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if !out.Completed {
		t.Fatal("final answer did not complete the interview")
	}

	iv, _ := f.interviews.GetByID(ctx, "iv-1")
	if iv.Status != models.StatusCompleted {
		t.Fatalf("interview status = %q, want completed", iv.Status)
	}
}

func TestSubmitRejectsTerminalInterview(t *testing.T) {
	f := newAnswerFixture(t, lookingLandmarks(), nil)
	now := time.Now()
	_ = f.interviews.SetStatus(context.Background(), "iv-1", models.StatusTerminated, &now)

	_, err := f.svc.Submit(context.Background(), SubmitAnswerInput{InterviewID: "iv-1", QuestionNumber: 1, Transcript: "late answer"})
	if !utils.IsCode(err, utils.CodeForbidden) {
		t.Fatalf("err = %v, want FORBIDDEN", err)
	}
}

func TestSubmitAudioAnswer(t *testing.T) {
	f := newAnswerFixture(t, lookingLandmarks(), &stubSTT{text: "a goroutine is a lightweight thread"})

	out, err := f.svc.Submit(context.Background(), SubmitAnswerInput{
		InterviewID:    "iv-1",
		QuestionNumber: 1,
		Audio:          []byte{1, 2, 3},
		Language:       "en-US",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Transcript != "a goroutine is a lightweight thread" {
		t.Fatalf("transcript = %q", out.Transcript)
	}
	if out.Response.KeywordMatchScore != 100 {
		t.Fatalf("keyword score = %v, want 100", out.Response.KeywordMatchScore)
	}
}

func TestSubmitAudioWithoutSTT(t *testing.T) {
	f := newAnswerFixture(t, lookingLandmarks(), nil)

	_, err := f.svc.Submit(context.Background(), SubmitAnswerInput{
		InterviewID:    "iv-1",
		QuestionNumber: 1,
		Audio:          []byte{1, 2, 3},
	})
	if !utils.IsCode(err, utils.CodeUnavailable) {
		t.Fatalf("err = %v, want UNAVAILABLE", err)
	}
}

func TestSubmitAudioSTTFailure(t *testing.T) {
	f := newAnswerFixture(t, lookingLandmarks(), &stubSTT{err: errors.New("deadline exceeded")})

	_, err := f.svc.Submit(context.Background(), SubmitAnswerInput{
		InterviewID:    "iv-1",
		QuestionNumber: 1,
		Audio:          []byte{1, 2, 3},
	})
	if !utils.IsCode(err, utils.CodeUnavailable) {
		t.Fatalf("err = %v, want UNAVAILABLE", err)
	}
}

func TestSubmitAttachesVideoMetrics(t *testing.T) {
	f := newAnswerFixture(t, lookingLandmarks(), nil)
	ctx := context.Background()

	if err := f.captures.Begin(ctx, "iv-1", 1); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := f.captures.AppendFrame("iv-1", 1, analysis.Frame{Image: []byte{1}}); err != nil {
			t.Fatalf("AppendFrame: %v", err)
		}
	}
	if _, err := f.captures.Finish(ctx, "iv-1", 1); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	out, err := f.svc.Submit(ctx, SubmitAnswerInput{InterviewID: "iv-1", QuestionNumber: 1, Transcript: "a goroutine"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	r := out.Response
	if r.EyeContactScore == nil || *r.EyeContactScore != 100 {
		t.Fatalf("eye contact = %v, want 100", r.EyeContactScore)
	}
	if r.FaceDetectionRate == nil || *r.FaceDetectionRate != 100 {
		t.Fatalf("face detection rate = %v, want 100", r.FaceDetectionRate)
	}
	if r.GazeViolations != 0 {
		t.Fatalf("gaze violations = %d, want 0", r.GazeViolations)
	}
}

func TestSubmitTerminatesOnViolationThreshold(t *testing.T) {
	// Every captured frame has an averted gaze: 6 violations in one burst.
	f := newAnswerFixture(t, avertedLandmarks(), nil)
	ctx := context.Background()

	if err := f.captures.Begin(ctx, "iv-1", 1); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	for i := 0; i < 6; i++ {
		if _, err := f.captures.AppendFrame("iv-1", 1, analysis.Frame{Image: []byte{1}}); err != nil {
			t.Fatalf("AppendFrame: %v", err)
		}
	}
	if _, err := f.captures.Finish(ctx, "iv-1", 1); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	out, err := f.svc.Submit(ctx, SubmitAnswerInput{InterviewID: "iv-1", QuestionNumber: 1, Transcript: "an answer"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !out.Terminated {
		t.Fatal("threshold crossing did not terminate the interview")
	}
	if out.ViolationTotal != 6 {
		t.Fatalf("violation total = %d, want 6", out.ViolationTotal)
	}
	// The crossing answer is not persisted.
	if out.Response != nil {
		t.Fatal("terminating answer was persisted")
	}
	if n, _ := f.responses.CountByInterview(ctx, "iv-1"); n != 0 {
		t.Fatalf("persisted responses = %d, want 0", n)
	}

	iv, _ := f.interviews.GetByID(ctx, "iv-1")
	if iv.Status != models.StatusTerminated {
		t.Fatalf("interview status = %q, want terminated", iv.Status)
	}
	if iv.TotalGazeViolations != 6 {
		t.Fatalf("persisted violations = %d, want 6", iv.TotalGazeViolations)
	}
}
