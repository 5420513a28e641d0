package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"codebattle/internal/api"
	"codebattle/internal/app/broadcast"
	"codebattle/internal/app/judge"
	"codebattle/internal/app/service"
	"codebattle/internal/app/worker"
	"codebattle/internal/common/logger"
	"codebattle/internal/common/security"
	"codebattle/internal/domain/repository"
	"codebattle/internal/platform/config"
	"codebattle/internal/platform/database"
	"codebattle/internal/platform/queue"

	"go.uber.org/zap"
)

func main() {
	// 1. Load Configuration
	config.Load()

	// 2. Initialize Logger
	if err := logger.Init(logger.Config{
		Level:  config.AppConfig.LogLevel,
		Format: config.AppConfig.LogFormat,
	}); err != nil {
		log.Fatalf("Could not initialize logger: %v", err)
	}
	defer logger.Sync()

	// 3. Initialize JWT
	security.InitJWT()

	// 4. Initialize Database
	database.Connect()
	defer database.Close()
	logger.Info("database connected")

	// 5. Initialize Redis
	queue.ConnectRedis()
	defer queue.CloseRedis()
	logger.Info("redis connected")

	// 6. Initialize Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	problemRepo := repository.NewPgProblemRepository(database.DB)
	battleRepo := repository.NewPgBattleRepository(database.DB)
	submissionRepo := repository.NewPgSubmissionRepository(database.DB)

	// 7. Initialize platform pieces
	publisher := broadcast.NewRedisPublisher(queue.RDB)
	judgeQueue := queue.NewRedisJudgeQueue(queue.RDB, config.AppConfig.JudgeQueueName)
	engine := judge.NewHTTPEngineClient(
		config.AppConfig.EngineURL,
		time.Duration(config.AppConfig.EngineTimeoutMs)*time.Millisecond,
	)
	orchestrator := judge.NewOrchestrator(problemRepo, engine,
		time.Duration(config.AppConfig.JudgeTimeoutSeconds)*time.Second)

	// 8. Initialize Services
	authService := service.NewAuthService(userRepo)
	problemService := service.NewProblemService(problemRepo, database.DB)
	battleService := service.NewBattleService(battleRepo, userRepo, problemRepo, submissionRepo, publisher, database.DB)
	submissionService := service.NewSubmissionService(
		submissionRepo, battleRepo, orchestrator, judgeQueue, publisher, battleService, database.DB)

	// Reschedule expiry for battles interrupted by the last shutdown.
	if err := battleService.RecoverInProgress(context.Background()); err != nil {
		logger.Error("battle recovery failed", zap.Error(err))
	}

	// 9. Start Judge Worker
	judgeWorker := worker.NewJudgeWorker(judgeQueue, submissionService, config.AppConfig.JudgePoolSize)
	judgeWorker.Start(context.Background())

	// 10. Router & HTTP Server
	router := api.NewRouter(authService, problemService, battleService, submissionService)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 11. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("port", config.AppConfig.APIPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	<-stop // Wait for interrupt signal

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	judgeWorker.Stop()       // Drains in-flight judging
	battleService.Shutdown() // Stops expiry timers

	logger.Info("stopped gracefully")
}
