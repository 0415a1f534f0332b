package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/inkwell/internal/api/handlers"
	"github.com/cloo-solutions/inkwell/internal/jobs"
	"github.com/cloo-solutions/inkwell/internal/server"
	"github.com/cloo-solutions/inkwell/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the inkwell API server and the background index worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides INKWELL_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not run the index worker in this process")
	cmd.Flags().String("migrations", "", "Migrations source URL (default file://migrations)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, log, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}
	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	}, log)
	if err != nil {
		log.Warn("telemetry init failed, continuing without tracing", "error", err)
	} else {
		defer shutdownTelemetry()
	}

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	noWorker, _ := cmd.Flags().GetBool("no-worker")
	migrations, _ := cmd.Flags().GetString("migrations")

	a, err := newApp(ctx, cfg, log, appOptions{migrate: !noMigrate, migrationsSource: migrations})
	if err != nil {
		return err
	}
	defer a.Close()

	var worker *jobs.Worker
	if !noWorker {
		worker = jobs.NewWorker(jobs.NewIndexWorker(a.indexJobs, a.indexing, log), cfg.IndexPollInterval, log)
		go worker.Start(ctx)
	}

	router := server.NewRouter(server.RouterConfig{
		APIToken:          cfg.APIToken,
		Logger:            log,
		ManuscriptHandler: handlers.NewManuscriptHandler(a.manuscripts, a.versions),
		EditHandler:       handlers.NewEditHandler(a.suggestions, a.versions),
		PreviewHandler:    handlers.NewPreviewHandler(a.diff, a.counter, a.chunking),
	})
	if !cfg.HasAuth() {
		log.Warn("INKWELL_API_TOKEN not set, API is unauthenticated")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case <-quit:
		log.Info("shutting down")
	case err := <-serverErr:
		runErr = fmt.Errorf("server failed: %w", err)
	}

	// The worker must be done with the pool before the deferred a.Close.
	if worker != nil {
		worker.Stop()
	}
	if runErr != nil {
		return runErr
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}
