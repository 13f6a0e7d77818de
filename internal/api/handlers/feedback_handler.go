package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prepstage/intervue/internal/services"
	"github.com/prepstage/intervue/internal/utils"
)

type FeedbackHandler struct {
	svc        services.FeedbackService
	interviews services.InterviewService
}

func NewFeedbackHandler(svc services.FeedbackService, interviews services.InterviewService) *FeedbackHandler {
	return &FeedbackHandler{svc: svc, interviews: interviews}
}

func (h *FeedbackHandler) authorize(c *gin.Context, op string) (string, bool) {
	userID, ok := requireUserID(c)
	if !ok {
		return "", false
	}

	interviewID := c.Param("interview_id")
	iv, err := h.interviews.Get(c.Request.Context(), interviewID)
	if err != nil {
		writeError(c, err)
		return "", false
	}
	if iv.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, op, "forbidden", nil))
		return "", false
	}
	return interviewID, true
}

// Generate runs aggregation and narrative synthesis, replacing any previous
// feedback for the interview.
func (h *FeedbackHandler) Generate(c *gin.Context) {
	interviewID, ok := h.authorize(c, "FeedbackHandler.Generate")
	if !ok {
		return
	}

	f, err := h.svc.Synthesize(c.Request.Context(), interviewID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, f)
}

func (h *FeedbackHandler) Get(c *gin.Context) {
	interviewID, ok := h.authorize(c, "FeedbackHandler.Get")
	if !ok {
		return
	}

	f, err := h.svc.Get(c.Request.Context(), interviewID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, f)
}

// Analysis returns the live per-question breakdown without persisting
// anything; useful while an interview is still in progress.
func (h *FeedbackHandler) Analysis(c *gin.Context) {
	interviewID, ok := h.authorize(c, "FeedbackHandler.Analysis")
	if !ok {
		return
	}

	rows, err := h.svc.QuestionWiseAnalysis(c.Request.Context(), interviewID)
	if err != nil {
		writeError(c, err)
		return
	}
	scores, err := h.svc.Aggregate(c.Request.Context(), interviewID)
	if err != nil && !utils.IsCode(err, utils.CodeNotFound) {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scores":    scores,
		"questions": rows,
	})
}
