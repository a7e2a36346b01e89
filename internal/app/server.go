// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"jikoni-service/internal/config"
	"jikoni-service/internal/db"
	scheduleHandler "jikoni-service/internal/handlers/schedule"
	"jikoni-service/internal/middleware"
	"jikoni-service/internal/pkg/idempotency"
	"jikoni-service/internal/pkg/jwt"
	"jikoni-service/internal/repository/postgres"
	scheduleUsecase "jikoni-service/internal/service/schedule"
	"jikoni-service/internal/worker"
	"jikoni-service/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	runner *worker.Runner
}

func NewServer() *Server {
	cfg := config.Load()
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := postgres.Connect(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       0,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Println("[REDIS] ✅ Connected successfully")

	// ----- JWT Verifier -----
	verifier, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT verifier: %w", err)
	}

	// ----- WebSocket Hub -----
	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	// ----- Repositories -----
	dbWrapper := postgres.NewDB(pool)
	orderRepo := postgres.NewScheduledOrderRepository(pool)
	executionRepo := postgres.NewOrderExecutionRepository(pool)

	// ----- Services -----
	lifecycle := scheduleUsecase.NewLifecycle(time.Now)
	idempotencyStore := idempotency.NewStore(redisClient, s.cfg.IdempotencyTTL)
	scheduleService := scheduleUsecase.NewScheduleService(
		orderRepo,
		executionRepo,
		dbWrapper,
		lifecycle,
		idempotencyStore,
		hub,
		logger,
	)

	// ----- Sweep Worker -----
	s.runner = worker.NewRunner(logger, ctx)
	sweeper := worker.NewSweeper(scheduleService, logger)
	if err := sweeper.Register(s.runner, s.cfg.SweepInterval); err != nil {
		return fmt.Errorf("failed to register sweeper: %w", err)
	}
	s.runner.Start()

	// ----- Handlers -----
	scheduleHandlerInst := scheduleHandler.NewScheduleHandler(scheduleService)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(verifier)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		ScheduleHandler: scheduleHandlerInst,
		Hub:             hub,
		AuthMiddleware:  authMiddleware,
		RedisClient:     redisClient,
		RateLimitRPM:    s.cfg.RateLimitRPM,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	log.Printf("🚀 Server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}

// Shutdown drains the sweep worker. The HTTP listener stops with the process.
func (s *Server) Shutdown(ctx context.Context) {
	if s.runner != nil {
		s.runner.Stop()
	}
	if s.logger != nil {
		s.logger.Info("server shut down")
	}
	_ = ctx
}
