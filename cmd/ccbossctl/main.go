// Package main is the ccbossctl CLI: start the fleet service, enqueue
// tasks, and inspect the queue from the command line.
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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
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
	root := &cobra.Command{
		Use:   "ccbossctl",
		Short: "Orchestrate multiple coding-agent workers against one repo",
	}

	root.AddCommand(newStartCmd(), newAddCmd(), newStatusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newStartCmd() *cobra.Command {
	var port, workers int
	var repo, dbPath, configPath string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the fleet service and its workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(config.CLIOverrides{
				Port:       port,
				MaxWorkers: workers,
				RepoPath:   repo,
				DBPath:     dbPath,
				ConfigPath: configPath,
			})
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "web/API port")
	cmd.Flags().IntVar(&workers, "workers", 0, "number of parallel agent workers")
	cmd.Flags().StringVar(&repo, "repo", "", "path to the git repo to work on")
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database path")
	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file")

	return cmd
}

func runStart(overrides config.CLIOverrides) error {
	cfg, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()
	logging.SetDefault(log)

	fmt.Printf("Starting ccboss on port %d with %d workers\n", cfg.Server.Port, cfg.MaxWorkers)
	fmt.Printf("Repo: %s\n", cfg.RepoPath)
	fmt.Printf("DB: %s\n", cfg.DBPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	taskStore, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open task store: %w", err)
	}
	defer taskStore.Close()

	eventBus := bus.New()
	agentRunner := runner.New(cfg.AgentCommand, log)
	planner := plan.New(taskStore, agentRunner)

	fleet := orchestrator.New(orchestrator.Config{
		MaxWorkers:   cfg.MaxWorkers,
		RepoPath:     cfg.RepoPath,
		ProgressFile: cfg.ProgressFile,
	}, taskStore, agentRunner, eventBus, log)

	if err := fleet.Start(ctx); err != nil {
		return fmt.Errorf("failed to start fleet: %w", err)
	}

	hub := streaming.NewHub(eventBus, log)

	gin.SetMode(gin.ReleaseMode)
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
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	fleet.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

func newAddCmd() *cobra.Command {
	var dbPath string
	var priority int

	cmd := &cobra.Command{
		Use:   "add [prompt]",
		Short: "Add a task to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open task store: %w", err)
			}
			defer s.Close()

			id, err := s.Enqueue(args[0], priority)
			if err != nil {
				return fmt.Errorf("failed to enqueue task: %w", err)
			}

			prompt := args[0]
			if len(prompt) > 60 {
				prompt = prompt[:60]
			}
			fmt.Printf("Enqueued task #%d: %s\n", id, prompt)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "ccboss.db", "sqlite database path")
	cmd.Flags().IntVar(&priority, "priority", 0, "task priority (higher runs first)")

	return cmd
}

func newStatusCmd() *cobra.Command {
	var dbPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the task queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open task store: %w", err)
			}
			defer s.Close()

			tasks, err := s.List(limit)
			if err != nil {
				return fmt.Errorf("failed to list tasks: %w", err)
			}
			if len(tasks) == 0 {
				fmt.Println("No tasks.")
				return nil
			}

			fmt.Printf("%4s  %-10s  %6s  %8s  Prompt\n", "ID", "Status", "Worker", "Cost")
			fmt.Println(strings.Repeat("-", 80))
			for _, t := range tasks {
				cost := "-"
				if t.CostUSD != nil {
					cost = fmt.Sprintf("$%.3f", *t.CostUSD)
				}
				worker := "-"
				if t.WorkerID != nil {
					worker = fmt.Sprintf("%d", *t.WorkerID)
				}
				prompt := t.Prompt
				if len(prompt) > 40 {
					prompt = prompt[:40]
				}
				fmt.Printf("%4d  %-10s  %6s  %8s  %s\n", t.ID, t.Status, worker, cost, prompt)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "ccboss.db", "sqlite database path")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum tasks to show")

	return cmd
}
