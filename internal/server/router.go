package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/learnhubhq/learnhub-backend/internal/handlers"
	"github.com/learnhubhq/learnhub-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName        string
	AllowedOrigins     []string
	AuthMiddleware     *middleware.AuthMiddleware
	AuthHandler        *handlers.AuthHandler
	CourseHandler      *handlers.CourseHandler
	ProgressHandler    *handlers.ProgressHandler
	QuizHandler        *handlers.QuizHandler
	CertificateHandler *handlers.CertificateHandler
	SSEHandler         *handlers.SSEHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "learnhub"
	}
	router.Use(otelgin.Middleware(serviceName))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/register", cfg.AuthHandler.Register)
	router.POST("/login", cfg.AuthHandler.Login)

	// Protected
	protected := router.Group("/api")
	protected.Use(cfg.AuthMiddleware.RequireAuth())

	// User
	protected.GET("/me", cfg.AuthHandler.GetMe)

	// SSE
	protected.GET("/sse/stream", cfg.SSEHandler.Stream)
	protected.POST("/sse/subscribe", cfg.SSEHandler.Subscribe)
	protected.POST("/sse/unsubscribe", cfg.SSEHandler.Unsubscribe)

	// Courses
	protected.GET("/courses", cfg.CourseHandler.List)
	protected.GET("/courses/:courseID", cfg.CourseHandler.Get)
	protected.GET("/courses/:courseID/completion", cfg.CourseHandler.GetCompletion)
	protected.GET("/courses/:courseID/progress", cfg.ProgressHandler.GetCourseProgress)

	// Progress
	protected.POST("/progress/sample", cfg.ProgressHandler.Sample)
	protected.POST("/videos/:videoID/watched", cfg.ProgressHandler.MarkWatched)

	// Quizzes
	protected.GET("/courses/:courseID/quiz", cfg.QuizHandler.GetCourseQuiz)
	protected.POST("/courses/:courseID/quiz/attempts", cfg.QuizHandler.StartAttempt)
	protected.POST("/quizzes/:quizID/answer", cfg.QuizHandler.SelectAnswer)
	protected.POST("/quizzes/:quizID/next", cfg.QuizHandler.Next)
	protected.POST("/quizzes/:quizID/previous", cfg.QuizHandler.Previous)
	protected.POST("/quizzes/:quizID/submit", cfg.QuizHandler.Submit)
	protected.GET("/quizzes/:quizID/attempts", cfg.QuizHandler.ListAttempts)

	// Certificates
	protected.GET("/certificates", cfg.CertificateHandler.ListMine)
	protected.POST("/certificates/:certificateID/revoke", cfg.CertificateHandler.Revoke)

	return router
}
