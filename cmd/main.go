package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/learnhubhq/learnhub-backend/internal/clients/redis"
	"github.com/learnhubhq/learnhub-backend/internal/data/repos/assessment"
	"github.com/learnhubhq/learnhub-backend/internal/data/repos/credential"
	"github.com/learnhubhq/learnhub-backend/internal/data/repos/learning"
	userrepo "github.com/learnhubhq/learnhub-backend/internal/data/repos/user"
	"github.com/learnhubhq/learnhub-backend/internal/db"
	"github.com/learnhubhq/learnhub-backend/internal/handlers"
	"github.com/learnhubhq/learnhub-backend/internal/middleware"
	"github.com/learnhubhq/learnhub-backend/internal/observability"
	"github.com/learnhubhq/learnhub-backend/internal/platform/envutil"
	"github.com/learnhubhq/learnhub-backend/internal/platform/logger"
	"github.com/learnhubhq/learnhub-backend/internal/platform/quizconfig"
	"github.com/learnhubhq/learnhub-backend/internal/server"
	"github.com/learnhubhq/learnhub-backend/internal/services"
	"github.com/learnhubhq/learnhub-backend/internal/sse"
)

// busPublisher routes engine events through redis so every replica's SSE
// clients see them; the forwarder feeds them back into the local hub.
type busPublisher struct {
	log *logger.Logger
	bus redis.SSEBus
}

func (p *busPublisher) Broadcast(msg sse.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.bus.Publish(ctx, msg); err != nil {
		p.log.Warn("SSE bus publish failed", "error", err, "event", msg.Event)
	}
}

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	port := envutil.GetEnv("PORT", "8080", log)
	jwtSecretKey := envutil.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := envutil.GetEnvAsInt("ACCESS_TOKEN_TTL", 86400, log)
	debounceMs := envutil.GetEnvAsInt("PROGRESS_DEBOUNCE_MS", 2000, log)
	completionPercent := envutil.GetEnvAsInt("VIDEO_COMPLETION_PERCENT", 90, log)
	quizConfigPath := envutil.GetEnv("QUIZ_CONFIG_PATH", "", log)
	allowedOrigins := envutil.GetEnv("CORS_ALLOWED_ORIGINS", "", log)

	// Tracing
	ctx := context.Background()
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "learnhub",
		Environment: envutil.GetEnv("ENVIRONMENT", "development", log),
		Version:     envutil.GetEnv("SERVICE_VERSION", "dev", log),
	})

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	userRepo := userrepo.NewUserRepo(thePG, log)
	courseRepo := learning.NewCourseRepo(thePG, log)
	courseModuleRepo := learning.NewCourseModuleRepo(thePG, log)
	videoRepo := learning.NewVideoRepo(thePG, log)
	videoProgressRepo := learning.NewVideoProgressRepo(thePG, log)
	quizRepo := assessment.NewQuizRepo(thePG, log)
	quizQuestionRepo := assessment.NewQuizQuestionRepo(thePG, log)
	quizAttemptRepo := assessment.NewQuizAttemptRepo(thePG, log)
	certificateRepo := credential.NewCertificateRepo(thePG, log)

	_ = courseModuleRepo

	// SSE
	log.Info("Setting up SSE hub from main...")
	sseHub := sse.NewHub(log)

	var publisher sse.Publisher = sseHub
	sseBus, busErr := redis.NewSSEBus(log)
	if busErr != nil {
		log.Warn("Redis SSE bus unavailable; events stay instance-local", "error", busErr)
	} else {
		if err := sseBus.StartForwarder(ctx, sseHub.Broadcast); err != nil {
			log.Warn("Redis SSE forwarder failed to start; events stay instance-local", "error", err)
			_ = sseBus.Close()
		} else {
			publisher = &busPublisher{log: log, bus: sseBus}
			defer sseBus.Close()
		}
	}

	// Services
	log.Info("Setting up services from main...")
	authService := services.NewAuthService(thePG, log, userRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second)
	userService := services.NewUserService(thePG, log, userRepo)
	courseService := services.NewCourseService(thePG, log, courseRepo)
	completionService := services.NewCompletionService(thePG, log, videoRepo, videoProgressRepo, publisher)
	progressService := services.NewProgressService(thePG, log, videoProgressRepo, videoRepo, completionService, publisher, services.ProgressConfig{
		DebounceInterval:  time.Duration(debounceMs) * time.Millisecond,
		CompletionPercent: float64(completionPercent),
	})
	certificateService := services.NewCertificateService(thePG, log, certificateRepo, publisher)
	quizService := services.NewQuizService(thePG, log, quizRepo, quizQuestionRepo, quizAttemptRepo, courseRepo, completionService, certificateService, publisher)

	// Quiz definitions ship as operator config.
	if quizConfigPath != "" {
		cfgFile, err := quizconfig.Load(quizConfigPath)
		if err != nil {
			log.Fatal("Failed to load quiz config", "error", err, "path", quizConfigPath)
		}
		if err := quizService.ImportQuizzes(ctx, cfgFile.Quizzes); err != nil {
			log.Fatal("Failed to import quizzes", "error", err, "path", quizConfigPath)
		}
		log.Info("Imported quiz definitions", "count", len(cfgFile.Quizzes), "path", quizConfigPath)
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService, userService)
	courseHandler := handlers.NewCourseHandler(courseService, completionService)
	progressHandler := handlers.NewProgressHandler(progressService)
	quizHandler := handlers.NewQuizHandler(quizService)
	certificateHandler := handlers.NewCertificateHandler(certificateService)
	sseHandler := handlers.NewSSEHandler(log, sseHub)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	var origins []string
	if allowedOrigins != "" {
		for _, o := range strings.Split(allowedOrigins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}
	router := server.NewRouter(server.RouterConfig{
		ServiceName:        "learnhub",
		AllowedOrigins:     origins,
		AuthMiddleware:     authMiddleware,
		AuthHandler:        authHandler,
		CourseHandler:      courseHandler,
		ProgressHandler:    progressHandler,
		QuizHandler:        quizHandler,
		CertificateHandler: certificateHandler,
		SSEHandler:         sseHandler,
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Info("Listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Buffered progress samples get one last write before exit.
	progressService.FlushAll(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown failed", "error", err)
	}
	if otelShutdown != nil {
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Warn("Otel shutdown failed", "error", err)
		}
	}
}
