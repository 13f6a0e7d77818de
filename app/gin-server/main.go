package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/prepstage/intervue/config"
	"github.com/prepstage/intervue/internal/analysis"
	"github.com/prepstage/intervue/internal/api/handlers"
	"github.com/prepstage/intervue/internal/api/middleware"
	"github.com/prepstage/intervue/internal/api/routes"
	"github.com/prepstage/intervue/internal/cache"
	"github.com/prepstage/intervue/internal/logger"
	"github.com/prepstage/intervue/internal/models"
	"github.com/prepstage/intervue/internal/providers/embedding"
	"github.com/prepstage/intervue/internal/providers/grammar"
	"github.com/prepstage/intervue/internal/providers/llm"
	"github.com/prepstage/intervue/internal/providers/sentiment"
	"github.com/prepstage/intervue/internal/providers/stt"
	"github.com/prepstage/intervue/internal/providers/vision"
	mongorepo "github.com/prepstage/intervue/internal/repositories/mongo"
	pgrepo "github.com/prepstage/intervue/internal/repositories/postgres"
	"github.com/prepstage/intervue/internal/services"
	"github.com/prepstage/intervue/internal/storage"
	"github.com/prepstage/intervue/internal/workers"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	appLog := logger.New()
	ctx := context.Background()

	// Init MongoDB
	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	fmt.Println("MongoDB connected")

	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}

	// Init PostgreSQL
	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	fmt.Println("PostgreSQL connected")

	if err := config.PostgresDB.AutoMigrate(
		&models.Interview{},
		&models.Question{},
		&models.Response{},
		&models.Feedback{},
	); err != nil {
		log.Fatalf("PostgreSQL migrate error: %v", err)
	}

	// Init Redis
	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	fmt.Println("Redis connected")

	// Providers
	projectID := os.Getenv("GCP_PROJECT_ID")
	if projectID == "" {
		log.Fatalf("GCP_PROJECT_ID environment variable is not set")
	}
	location := getenv("GCP_LOCATION", "us-central1")

	gemini, err := llm.NewVertexGemini(ctx, projectID, location, getenv("GEMINI_MODEL", "gemini-1.5-flash"))
	if err != nil {
		log.Fatalf("Vertex Gemini init error: %v", err)
	}
	defer gemini.Close()

	embedder, err := embedding.NewVertexEmbedder(ctx, projectID, location, os.Getenv("EMBEDDING_MODEL"))
	if err != nil {
		log.Fatalf("Vertex embedder init error: %v", err)
	}
	defer embedder.Close()

	speech, err := stt.NewGoogleSpeech(ctx)
	if err != nil {
		log.Fatalf("Google Speech init error: %v", err)
	}
	defer speech.Close()

	faces, err := vision.NewGoogleFaceDetector(ctx)
	if err != nil {
		log.Fatalf("Google Vision init error: %v", err)
	}
	defer faces.Close()

	var audioStore storage.Uploader
	if bucket := os.Getenv("GCS_BUCKET"); bucket != "" {
		gcs, err := storage.NewGCSUploader(ctx, bucket)
		if err != nil {
			log.Fatalf("GCS init error: %v", err)
		}
		audioStore = gcs
	}

	// Analyzers
	textAnalyzer := analysis.NewTextAnalyzer(sentiment.NewVaderScorer(), grammar.NewGeminiCorrector(gemini), embedder, appLog)
	gazeAnalyzer := analysis.NewGazeAnalyzer(faces, appLog)
	violations := analysis.NewViolationRegistry()

	// Repositories
	mongoDB := config.MongoClient.Database(getenv("MONGO_DB", "intervue"))
	interviewRepo := pgrepo.NewInterviewRepo(config.PostgresDB)
	responseRepo := pgrepo.NewResponseRepo(config.PostgresDB)
	feedbackRepo := pgrepo.NewFeedbackRepo(config.PostgresDB)
	captureRepo := mongorepo.NewCaptureRepo(mongoDB)

	rcache := cache.NewRedisCache(config.RedisClient)

	// Services
	interviewSvc := services.NewInterviewService(interviewRepo, gemini, violations, appLog)
	captureSvc := services.NewCaptureService(gazeAnalyzer, captureRepo, rcache, analysis.DefaultFrameCapacity, appLog)
	responseSvc := services.NewResponseService(interviewRepo, responseRepo, interviewSvc, captureSvc, textAnalyzer, speech, audioStore, appLog)
	feedbackSvc := services.NewFeedbackService(interviewRepo, responseRepo, feedbackRepo, gemini, rcache, appLog)

	// Answer worker pool
	pool := &workers.AnswerWorkerPool{
		Redis:     config.RedisClient,
		Responses: responseSvc,
		Logger:    appLog,
	}
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("worker pool start error: %v", err)
	}

	// Start Gin server
	r := gin.Default()
	r.Use(middleware.RequestLogger(appLog))

	routes.RegisterRoutes(r, routes.Deps{
		Interview: handlers.NewInterviewHandler(interviewSvc),
		Response:  handlers.NewResponseHandler(responseSvc, interviewSvc, config.RedisClient, ""),
		Feedback:  handlers.NewFeedbackHandler(feedbackSvc, interviewSvc),
		CaptureWS: handlers.NewCaptureWSHandler(interviewSvc, captureSvc, config.RedisClient),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
