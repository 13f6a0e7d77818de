package handlers

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/prepstage/intervue/internal/services"
	"github.com/prepstage/intervue/internal/utils"
)

type ResponseHandler struct {
	svc        services.ResponseService
	interviews services.InterviewService

	// queue is optional; when set, audio answers can be enqueued for the
	// worker pool instead of scored inline.
	queue  *redis.Client
	stream string
}

func NewResponseHandler(svc services.ResponseService, interviews services.InterviewService, queue *redis.Client, stream string) *ResponseHandler {
	if stream == "" {
		stream = "answers:stream"
	}
	return &ResponseHandler{svc: svc, interviews: interviews, queue: queue, stream: stream}
}

type SubmitAnswerRequest struct {
	QuestionNumber int    `json:"question_number" binding:"required"`
	Transcript     string `json:"transcript"`
	AudioBase64    string `json:"audio_base64"`
	Language       string `json:"language"`
	Async          bool   `json:"async"`
}

func (h *ResponseHandler) authorize(c *gin.Context, op string) (string, bool) {
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

func (h *ResponseHandler) Submit(c *gin.Context) {
	const op = "ResponseHandler.Submit"

	interviewID, ok := h.authorize(c, op)
	if !ok {
		return
	}

	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return
	}
	if strings.TrimSpace(req.Transcript) == "" && req.AudioBase64 == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "transcript or audio_base64 is required", nil))
		return
	}

	if req.Async && h.queue != nil {
		if err := h.enqueue(c, interviewID, &req); err != nil {
			writeError(c, utils.E(utils.CodeUnavailable, op, "failed to enqueue answer", err))
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"status":          "queued",
			"question_number": req.QuestionNumber,
		})
		return
	}

	in := services.SubmitAnswerInput{
		InterviewID:    interviewID,
		QuestionNumber: req.QuestionNumber,
		Transcript:     req.Transcript,
		Language:       req.Language,
	}
	if strings.TrimSpace(req.Transcript) == "" {
		raw := req.AudioBase64
		if i := strings.Index(raw, ","); i >= 0 {
			raw = raw[i+1:]
		}
		audio, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid audio_base64", err))
			return
		}
		in.Audio = audio
	}

	result, err := h.svc.Submit(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}

	if result.Terminated {
		c.JSON(http.StatusOK, gin.H{
			"status":          "terminated",
			"violation_total": result.ViolationTotal,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":             "scored",
		"transcript":         result.Transcript,
		"response":           result.Response,
		"interview_complete": result.Completed,
	})
}

func (h *ResponseHandler) enqueue(c *gin.Context, interviewID string, req *SubmitAnswerRequest) error {
	return h.queue.XAdd(c.Request.Context(), &redis.XAddArgs{
		Stream: h.stream,
		Values: map[string]any{
			"interview_id":    interviewID,
			"question_number": strconv.Itoa(req.QuestionNumber),
			"transcript":      req.Transcript,
			"audio_base64":    req.AudioBase64,
			"language":        req.Language,
		},
	}).Err()
}

func (h *ResponseHandler) ListByInterview(c *gin.Context) {
	const op = "ResponseHandler.ListByInterview"

	interviewID, ok := h.authorize(c, op)
	if !ok {
		return
	}

	items, err := h.svc.ListByInterview(c.Request.Context(), interviewID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"responses": items})
}
