// @title QuizForge API
// @version 1.0
// @description Concurrent quiz generation runs with LLM validation and progress streaming.
// @host localhost:8090
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @description Type 'Bearer YOUR_JWT_TOKEN' to authorize.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"quizforge/internal/adapter"
	"quizforge/internal/adapter/quizgen"
	"quizforge/internal/adapter/validator"
	"quizforge/internal/cache"
	"quizforge/internal/config"
	"quizforge/internal/database"
	"quizforge/internal/domain"
	"quizforge/internal/handler"
	"quizforge/internal/logger"
	"quizforge/internal/middleware"
	"quizforge/internal/orchestrator"
	"quizforge/internal/repository"

	_ "quizforge/cmd/api/docs"

	"github.com/gofiber/swagger"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// requestLogger is a middleware that logs HTTP requests
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		path := c.Path()
		method := c.Method()

		err := c.Next()

		duration := time.Since(start)
		status := c.Response().StatusCode()

		logger.Get().Info("HTTP Request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("ip", c.IP()),
			zap.String("user_agent", c.Get("User-Agent")),
		)

		return err
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		panic(err)
	}
	appLogger := logger.Get()
	defer logger.Sync()

	// Separate clients so the validator model can differ from the
	// generator model.
	ollamaHTTPClient := &http.Client{Timeout: 120 * time.Second}
	generatorLLM, err := ollama.New(
		ollama.WithServerURL(cfg.LLM.ServerURL),
		ollama.WithModel(cfg.LLM.GeneratorModel),
		ollama.WithHTTPClient(ollamaHTTPClient),
	)
	if err != nil {
		appLogger.Fatal("Failed to create generator LLM client", zap.Error(err))
	}
	validatorLLM, err := ollama.New(
		ollama.WithServerURL(cfg.LLM.ServerURL),
		ollama.WithModel(cfg.LLM.ValidatorModel),
		ollama.WithHTTPClient(ollamaHTTPClient),
	)
	if err != nil {
		appLogger.Fatal("Failed to create validator LLM client", zap.Error(err))
	}

	generator := quizgen.NewLLMGenerator(generatorLLM, cfg.LLM.RequestsPerSecond)
	quizValidator := validator.NewLLMValidator(validatorLLM)

	// Persistence and result cache are best effort; the orchestrator
	// runs fully in memory when either is absent.
	var sink domain.PersistenceSink
	db, err := database.NewSQLXOracleDB(cfg.GetDSN())
	if err != nil {
		appLogger.Warn("Database unavailable, run results will not be persisted", zap.Error(err))
	} else {
		sink = repository.NewResultRepository(db)
		appLogger.Info("Connected to database")
	}

	var results domain.ResultCache
	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		appLogger.Warn("Redis unavailable, evicted run results will not be queryable", zap.Error(err))
	} else {
		results = adapter.NewRedisResultCache(redisClient, cfg.Redis.ResultTTL)
		appLogger.Info("Successfully connected to Redis")
	}

	orch := orchestrator.New(cfg.Generation, generator, quizValidator, sink, results, appLogger)
	runHandler := handler.NewRunHandler(orch)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  20 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: middleware.ErrorHandler(),
	})

	app.Use(requestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
		MaxAge:       300,
	}))
	app.Use(recover.New())

	app.Get("/swagger/*", swagger.HandlerDefault)

	apiGroup := app.Group("/api")
	apiGroup.Get("/health", runHandler.Health)

	runGroup := apiGroup.Group("/runs", middleware.Protected(cfg.Auth.JWTSecret))
	runGroup.Post("/", runHandler.SubmitRun)
	runGroup.Get("/:id/events", runHandler.StreamEvents)
	runGroup.Get("/:id/result", runHandler.GetResult)
	runGroup.Delete("/:id", runHandler.CancelRun)

	go func() {
		appLogger.Info("Starting server", zap.Int("port", cfg.Server.Port), zap.String("env", os.Getenv("ENV")))
		if err := app.Listen(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	appLogger.Info("Server exited gracefully")
}
