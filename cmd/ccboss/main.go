// Package main is the entry point for the ccboss fleet service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jhinpan/cc-boss/internal/api"
	"github.com/jhinpan/cc-boss/internal/bus"
	"github.com/jhinpan/cc-boss/internal/config"
	"github.com/jhinpan/cc-boss/internal/logging"
	"github.com/jhinpan/cc-boss/internal/orchestrator"
	"github.com/jhinpan/cc-boss/internal/plan"
	"github.com/jhinpan/cc-boss/internal/runner"
	"github.com/jhinpan/cc-boss/internal/store"
	"github.com/jhinpan/cc-boss/internal/streaming"
)

func main() {
	cfg, err := config.Load(config.CLIOverrides{
		Port:       envInt("CCBOSS_PORT"),
		MaxWorkers: envInt("CCBOSS_MAX_WORKERS"),
		RepoPath:   os.Getenv("CCBOSS_REPO_PATH"),
		DBPath:     os.Getenv("CCBOSS_DB_PATH"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logging.SetDefault(log)

	log.Info("starting ccboss fleet service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	taskStore, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("failed to open task store", zap.Error(err))
	}
	defer taskStore.Close()
	log.Info("opened task store", zap.String("path", cfg.DBPath))

	eventBus := bus.New()
	agentRunner := runner.New(cfg.AgentCommand, log)
	planner := plan.New(taskStore, agentRunner)

	fleet := orchestrator.New(orchestrator.Config{
		MaxWorkers:   cfg.MaxWorkers,
		RepoPath:     cfg.RepoPath,
		ProgressFile: cfg.ProgressFile,
	}, taskStore, agentRunner, eventBus, log)

	if err := fleet.Start(ctx); err != nil {
		log.Fatal("failed to start fleet", zap.Error(err))
	}
	log.Info("fleet started", zap.Int("workers", cfg.MaxWorkers))

	hub := streaming.NewHub(eventBus, log)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, taskStore, fleet, planner, log)
	streaming.SetupWebSocketRoute(router, hub, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down ccboss fleet service")
	cancel()
	fleet.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", zap.Error(err))
	}

	log.Info("ccboss fleet service stopped")
}

func envInt(key string) int {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	var n int
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
		return 0
	}
	return n
}
