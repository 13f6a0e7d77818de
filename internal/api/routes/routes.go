package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/prepstage/intervue/internal/api/handlers"
	"github.com/prepstage/intervue/internal/api/middleware"
)

type Deps struct {
	Interview *handlers.InterviewHandler
	Response  *handlers.ResponseHandler
	Feedback  *handlers.FeedbackHandler
	CaptureWS *handlers.CaptureWSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	auth.POST("/interview/start", d.Interview.Start)
	auth.GET("/interviews", d.Interview.List)
	auth.GET("/interview/:interview_id", d.Interview.Get)

	auth.POST("/interview/:interview_id/answer", d.Response.Submit)
	auth.GET("/interview/:interview_id/responses", d.Response.ListByInterview)

	auth.POST("/interview/:interview_id/feedback", d.Feedback.Generate)
	auth.GET("/interview/:interview_id/feedback", d.Feedback.Get)
	auth.GET("/interview/:interview_id/analysis", d.Feedback.Analysis)

	// WebSocket
	auth.GET("/ws/interview/:interview_id/capture", d.CaptureWS.CaptureWS)
}
