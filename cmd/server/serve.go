package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/probelab/uitester/browser"
	"github.com/probelab/uitester/cmd/server/handlers"
	"github.com/probelab/uitester/database"
	"github.com/probelab/uitester/engine"
	"github.com/probelab/uitester/executor"
	"github.com/probelab/uitester/jobs"
	"github.com/probelab/uitester/logger"
	"github.com/probelab/uitester/plan"
	"github.com/probelab/uitester/report"
	"github.com/probelab/uitester/storage"
	"github.com/spf13/cobra"
)

var configFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and job workers",
	RunE:  runServer,
}

func init() {
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.AddCommand(serveCmd)
}

// mirroringExecutor wraps the engine so finalized artifacts are uploaded
// to blob storage after each job. Upload failures are logged, never
// surfaced into the job result.
type mirroringExecutor struct {
	engine *engine.Engine
	mirror *storage.Mirror
}

func (m *mirroringExecutor) Execute(ctx context.Context, req plan.Request, p plan.Plan) report.Result {
	result := m.engine.Execute(ctx, req, p)
	m.mirror.MirrorResult(ctx, result)
	return result
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Load configuration
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log := logger.NewLogrusLogger(cfg.Log.Level)
	log.Info(ctx, "starting server", map[string]interface{}{
		"version": Version,
		"commit":  Commit,
		"date":    BuildDate,
	})

	// Connect to database
	dbCfg := database.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	}

	db, err := database.Connect(dbCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	defer sqlDB.Close()

	log.Info(ctx, "database connected", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Database,
	})

	jobStore := jobs.NewMySQLStore(db, log)

	// Set up the browser runtime
	if cfg.Browser.AutoInstall {
		if err := browser.Install(); err != nil {
			return fmt.Errorf("failed to install browser runtime: %w", err)
		}
	}

	policy := browser.DefaultPolicy()
	policy.Headless = cfg.Browser.Headless
	if cfg.Browser.UserAgent != "" {
		policy.UserAgent = cfg.Browser.UserAgent
	}
	if cfg.Browser.Locale != "" {
		policy.Locale = cfg.Browser.Locale
	}
	if cfg.Browser.Timezone != "" {
		policy.TimezoneID = cfg.Browser.Timezone
	}
	if cfg.Browser.ViewportWidth > 0 {
		policy.ViewportWidth = cfg.Browser.ViewportWidth
	}
	if cfg.Browser.ViewportHeight > 0 {
		policy.ViewportHeight = cfg.Browser.ViewportHeight
	}

	launcher, err := browser.NewLauncher(policy, log)
	if err != nil {
		return fmt.Errorf("failed to start browser driver: %w", err)
	}
	defer launcher.Stop()

	// Assemble the execution engine
	exec := executor.New(executor.DefaultTiming(), log)
	eng := engine.New(engine.BrowserLauncher{Launcher: launcher}, exec, cfg.Engine.ArtifactsDir, log)

	var runner jobs.Executor = eng
	if cfg.Storage.Mirror {
		blob, err := storage.New(storage.Config{
			Type:          cfg.Storage.Type,
			BaseDir:       cfg.Storage.BaseDir,
			Bucket:        cfg.Storage.S3Bucket,
			Region:        cfg.Storage.S3Region,
			PresignExpiry: cfg.Storage.S3PresignExpiry,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize blob storage: %w", err)
		}
		runner = &mirroringExecutor{engine: eng, mirror: storage.NewMirror(blob, log)}
		log.Info(ctx, "artifact mirroring enabled", map[string]interface{}{
			"type": cfg.Storage.Type,
		})
	}

	// Start the job dispatcher
	dispatcher := jobs.NewDispatcher(cfg.Engine.MaxWorkers, jobStore, runner, log)
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	dispatcher.Start(workerCtx)

	log.Info(ctx, "dispatcher started", map[string]interface{}{
		"max_workers": cfg.Engine.MaxWorkers,
	})

	// Setup router
	router := mux.NewRouter()

	router.HandleFunc("/health", handlers.HealthHandler).Methods("GET")

	jobHandler := handlers.NewJobHandler(jobStore, dispatcher, log)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.HandleFunc("/jobs", jobHandler.Create).Methods("POST")
	apiRouter.HandleFunc("/jobs", jobHandler.List).Methods("GET")
	apiRouter.HandleFunc("/jobs/{id}", jobHandler.GetByID).Methods("GET")
	apiRouter.HandleFunc("/jobs/{id}/result", jobHandler.GetResult).Methods("GET")
	apiRouter.HandleFunc("/jobs/{id}", jobHandler.Stop).Methods("DELETE")
	apiRouter.HandleFunc("/stats", jobHandler.Stats).Methods("GET")

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info(ctx, "server listening", map[string]interface{}{
			"address": addr,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(ctx, "shutting down server", nil)

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Let in-flight jobs finish before tearing down the browser driver
	drainCtx, drainCancel := context.WithTimeout(ctx, 2*time.Minute)
	defer drainCancel()
	if err := dispatcher.Drain(drainCtx); err != nil {
		log.Warn(ctx, "jobs still running at shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info(ctx, "server stopped", nil)
	return nil
}
