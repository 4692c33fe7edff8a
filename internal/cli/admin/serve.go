package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carepath-labs/skillverify/internal/api/handlers"
	"github.com/carepath-labs/skillverify/internal/config"
	"github.com/carepath-labs/skillverify/internal/domain"
	"github.com/carepath-labs/skillverify/internal/jobs"
	"github.com/carepath-labs/skillverify/internal/openai"
	"github.com/carepath-labs/skillverify/internal/server"
	"github.com/carepath-labs/skillverify/internal/service"
	"github.com/carepath-labs/skillverify/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the verification API server",
		Long:  "Start the skill verification API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.close()
	log.Println("connected to database, vector index ready")

	combiner := service.NewRetrievalCombiner(app.embedder, app.index, app.corpus, service.RetrievalConfig{
		TopK:     cfg.RetrievalTopK,
		MinScore: cfg.RetrievalMinScore,
	}, app.metrics)

	var verdictModel service.VerdictModel
	if cfg.HasOpenAI() {
		verdictModel = openai.NewVerdictClient(cfg.OpenAIAPIKey, cfg.VerdictModel)
	} else {
		log.Println("no OpenAI API key configured: all verdicts will use the deterministic fallback")
		verdictModel = &unconfiguredVerdictModel{}
	}

	enricher := service.NewPerformanceEnricher()
	engine := service.NewVerificationEngine(combiner, verdictModel, enricher, cfg.VerificationTimeout, app.metrics)

	refreshWorker := jobs.NewWorker("embedding-refresh", jobs.NewRefreshWorker(app.repo, app.pipeline), cfg.RefreshPollInterval)
	go refreshWorker.Start(ctx)

	routerCfg := server.RouterConfig{
		APIKey:          cfg.APIKey,
		DocumentHandler: handlers.NewDocumentHandler(app.docs),
		VerifyHandler:   handlers.NewVerifyHandler(engine, combiner),
		StatsHandler:    handlers.NewStatsHandler(app.docs, app.index, app.corpus),
		Registry:        app.registry,
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.NewRouter(routerCfg),
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	refreshWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// unconfiguredVerdictModel stands in when no provider key is configured. The
// engine absorbs its error into the fallback verdict.
type unconfiguredVerdictModel struct{}

func (m *unconfiguredVerdictModel) Complete(ctx context.Context, prompt string) (string, error) {
	return "", domain.NewConfigurationError("no verdict model configured", nil)
}

func runMigrations(databaseURL string) error {
	// golang-migrate needs a database/sql handle
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else {
		log.Printf("migrations: database at version %d", version)
	}

	return nil
}
