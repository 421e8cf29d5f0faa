package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/pulse/internal/api"
	"github.com/wonny/pulse/internal/api/handlers"
	"github.com/wonny/pulse/internal/audit"
	"github.com/wonny/pulse/internal/scheduler"
	"github.com/wonny/pulse/pkg/config"
	"github.com/wonny/pulse/pkg/database"
	"github.com/wonny/pulse/pkg/logger"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 인트라데이 스냅샷 조회 엔드포인트 제공
- 감사 리포트 엔드포인트 제공

Endpoints:
  GET  /health                  - Health check
  GET  /api/intraday/{symbol}   - 인트라데이 스냅샷 조회
  POST /api/intraday/warm       - 캐시 워밍 트리거
  GET  /api/audit/report        - 감사 리포트 생성
  GET  /api/jobs                - 스케줄러 작업 상태

Example:
  go run ./cmd/pulse api
  go run ./cmd/pulse api --port 8080 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: config PORT)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "스케줄러를 함께 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Pulse API Server ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Override port if flag is set
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	log.Info("Connected to database")

	// 4. Build the intraday cache
	cache, cacheCleanup, err := initIntradayCache(cfg, log)
	if err != nil {
		return fmt.Errorf("init intraday cache: %w", err)
	}
	defer cacheCleanup()

	// 5. Create audit engine
	engine := audit.NewEngine(db, log)

	// 6. Optionally embed the scheduler
	var sched *scheduler.Scheduler
	if apiWithScheduler {
		s, schedCleanup, err := initScheduler()
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		defer schedCleanup()

		s.Start()
		defer s.Stop()

		sched = s
		log.Info("Embedded scheduler started")
	}

	// 7. Create handlers
	intradayHandler := handlers.NewIntradayHandler(cache, log)
	auditHandler := handlers.NewAuditHandler(engine, log)
	jobsHandler := handlers.NewJobsHandler(sched, log)

	// 8. Create router and server
	router := api.NewRouter(intradayHandler, auditHandler, jobsHandler, log)
	server := api.New(cfg, log, router)

	// 9. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Println()
	PrintSuccess(fmt.Sprintf("Server running on http://localhost:%s", cfg.Port))
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /api/intraday/{symbol}")
	fmt.Println("  POST /api/intraday/warm")
	fmt.Println("  GET  /api/audit/report")
	fmt.Println("  GET  /api/jobs")
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
