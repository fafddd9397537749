package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowforge/workflow/internal/api/handlers"
	apiMiddleware "github.com/flowforge/workflow/internal/api/middleware"
	"github.com/flowforge/workflow/internal/config"
	"github.com/flowforge/workflow/internal/credential"
	"github.com/flowforge/workflow/internal/executor"
	"github.com/flowforge/workflow/internal/executor/javascript"
	"github.com/flowforge/workflow/internal/metrics"
	"github.com/flowforge/workflow/internal/node"
	"github.com/flowforge/workflow/internal/node/builtin"
	"github.com/flowforge/workflow/internal/rbac"
	"github.com/flowforge/workflow/internal/workflow"
)

// App holds the wired dependencies for one running process: a database
// pool, the node registry and JS sandbox, the workflow engine, and the
// HTTP surface in front of it.
type App struct {
	config *config.Config
	logger *slog.Logger
	db     *sqlx.DB
	router *chi.Mux

	metricsRegistry *prometheus.Registry
	metrics         *metrics.Collector

	nodeRegistry *node.Registry
	jsEngine     *javascript.Engine

	credentialService credential.Service
	workflowService   *workflow.Service
	rbacService       *rbac.Service

	healthHandler  *handlers.HealthHandler
	webhookHandler *handlers.WebhookHandler
}

// NewApp wires every component the engine needs and builds the HTTP router.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	app := &App{config: cfg, logger: logger}

	db, err := sqlx.Connect("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	app.db = db

	app.metricsRegistry = prometheus.NewRegistry()
	app.metrics = metrics.New(app.metricsRegistry)

	jsEngine, err := javascript.NewEngine(nil)
	if err != nil {
		return nil, fmt.Errorf("starting javascript engine: %w", err)
	}
	app.jsEngine = jsEngine

	app.nodeRegistry = node.NewRegistry(logger)
	if err := builtin.RegisterAll(app.nodeRegistry, jsEngine); err != nil {
		return nil, fmt.Errorf("registering builtin nodes: %w", err)
	}

	credentialRepo := credential.NewRepository(db)
	encryptor, err := newCredentialEncryptor(cfg.Credential)
	if err != nil {
		return nil, fmt.Errorf("configuring credential encryption: %w", err)
	}
	app.credentialService = credential.NewService(credentialRepo, encryptor)

	workflowRepo := workflow.NewRepository(db)

	workflowExecutor := executor.New(workflowRepo, app.nodeRegistry, app.credentialService, logger)
	workflowExecutor.WithMetrics(app.metrics)

	app.workflowService = workflow.NewService(workflowRepo, app.nodeRegistry, workflowExecutor, logger)

	app.rbacService = rbac.NewService(rbac.NewRepository(db))
	if cfg.RBAC.Enforce {
		app.workflowService.WithAuthorizer(rbac.NewAuthorizer(app.rbacService))
	}

	app.healthHandler = handlers.NewHealthHandler(db)
	app.webhookHandler = handlers.NewWebhookHandler(
		app.workflowService,
		logger,
		cfg.Server.WebhookWait,
		time.Duration(cfg.Server.WebhookWaitMax)*time.Second,
	)

	app.setupRouter()
	return app, nil
}

// newCredentialEncryptor picks the configured Encryptor backend. KMS
// requires network access at startup; the master-key backend only needs a
// 32-byte secret, which is the default for local and test deployments.
func newCredentialEncryptor(cfg config.CredentialConfig) (credential.Encryptor, error) {
	if !cfg.UseKMS {
		key, err := base64.StdEncoding.DecodeString(cfg.MasterKey)
		if err != nil {
			return nil, fmt.Errorf("decoding credential master key: %w", err)
		}
		return credential.NewSimpleEncryptionService(key)
	}
	kmsClient, err := credential.NewKMSClient(context.Background(), cfg.KMSKeyID)
	if err != nil {
		return nil, fmt.Errorf("creating KMS client: %w", err)
	}
	return credential.NewKMSEncryptor(kmsClient, cfg.KMSKeyID), nil
}

// Router returns the app's HTTP handler.
func (a *App) Router() http.Handler {
	return a.router
}

// Close releases the database pool and JS VM pool.
func (a *App) Close() error {
	if a.jsEngine != nil {
		if err := a.jsEngine.Close(); err != nil {
			a.logger.Warn("error shutting down javascript engine", "error", err)
		}
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *App) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.StructuredLoggerWithConfig(a.logger, apiMiddleware.HTTPLoggerConfig{
		LogLevel: slog.LevelInfo,
	}))
	r.Use(apiMiddleware.SecurityHeaders(apiMiddleware.SecurityHeadersConfig{
		EnableHSTS:    a.config.SecurityHeader.EnableHSTS,
		HSTSMaxAge:    a.config.SecurityHeader.HSTSMaxAge,
		CSPDirectives: a.config.SecurityHeader.CSPDirectives,
		FrameOptions:  a.config.SecurityHeader.FrameOptions,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	corsMiddleware, err := apiMiddleware.NewCORSMiddleware(a.config.CORS, a.config.Server.Env)
	if err != nil {
		a.logger.Error("failed to create CORS middleware, proceeding without it", "error", err)
	} else {
		r.Use(corsMiddleware)
	}

	r.Get("/health", a.healthHandler.Health)
	r.Get("/ready", a.healthHandler.Ready)

	if a.config.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(a.metricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhook/{workflow_id}/trigger/{trigger_node_id}", a.webhookHandler.Trigger)
	})

	a.router = r
}
