package app

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"covidcli/internal/config"
	"covidcli/internal/errors"
	"covidcli/internal/infrastructure"
	customMiddleware "covidcli/internal/middleware"
	"covidcli/internal/operations"
	"covidcli/internal/scheduler"
	"covidcli/internal/services"
	handlers "covidcli/internal/transport/http"
	ws "covidcli/internal/websocket"
	"covidcli/pkg/contracts"
	"covidcli/pkg/contracts/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
)

const (
	VERSION  = contracts.Version
	REPO_URL = "https://github.com/covidcli/covidcli"
	AppName  = "COVID-19 Data Pulse"
)

var (
	// BuildTime is set at compile time
	BuildTime = time.Now().Format(time.RFC3339)
	// BuildID is a unique identifier for this build
	BuildID = generateBuildID()
)

func generateBuildID() string {
	h := sha256.New()
	h.Write([]byte(VERSION))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application represents the main application container
type Application struct {
	Config           *config.Config
	Paths            *config.Paths
	Router           *chi.Mux
	Server           *http.Server
	WebSocketHub     *ws.Hub
	OperationService *services.OperationService
	DataService      *services.DataService
	HealthService    *services.HealthService
	Scheduler        *scheduler.Scheduler
	MetricsCollector *infrastructure.SystemMetricsCollector
	BusinessMetrics  *infrastructure.BusinessMetrics
	Logger           *slog.Logger
	OTelProviders    *infrastructure.OTelProviders
	FrontendFS       fs.FS
}

// NewApplication creates and initializes a new application instance.
// frontendFS holds the embedded dashboard assets; pass nil to serve
// them from ./web on disk instead.
func NewApplication(frontendFS fs.FS) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	slog.SetDefault(logger)

	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create data directories: %w", err)
	}
	paths.LogPathResolution()

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	if err := operations.InitGlobalOperationTracer(otelProviders); err != nil {
		logger.Warn("pipeline tracer initialization failed", slog.String("error", err.Error()))
	}
	if err := ws.InitOTelMetrics(); err != nil {
		logger.Warn("websocket metrics initialization failed", slog.String("error", err.Error()))
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		FrontendFS:    frontendFS,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.setupRouter(); err != nil {
		return nil, fmt.Errorf("failed to setup router: %w", err)
	}

	app.createServer()

	logger.Info("application initialized",
		slog.String("version", VERSION),
		slog.String("build_id", BuildID),
		slog.Int("port", cfg.Server.Port),
	)

	return app, nil
}

// initializeServices wires the websocket hub, pipeline, data and health
// services together.
func (a *Application) initializeServices() error {
	a.WebSocketHub = ws.NewHub(a.Logger)
	a.WebSocketHub.Start()

	businessMetrics, err := infrastructure.CreateBusinessMetrics(a.OTelProviders.Meter)
	if err != nil {
		a.Logger.Warn("business metrics unavailable", slog.String("error", err.Error()))
	}
	a.BusinessMetrics = businessMetrics

	operationService, err := services.NewOperationService(a.Config, a.Paths, a.Logger, a.WebSocketHub, businessMetrics)
	if err != nil {
		return fmt.Errorf("operation service: %w", err)
	}
	a.OperationService = operationService

	a.DataService = services.NewDataService(a.Config, a.Paths, a.Logger)

	// Artifacts on disk change after every run, so the read-side cache
	// must be dropped before the next query.
	a.OperationService.OnRunComplete(func(summary domain.OperationSummary) {
		a.DataService.InvalidateCache()
		a.Logger.Info("pipeline run finished",
			slog.String("operation_id", summary.ID),
			slog.String("status", string(summary.Status)),
			slog.String("trigger", summary.Trigger),
		)
	})

	collector, err := infrastructure.NewSystemMetricsCollector(a.OTelProviders.Meter, 30*time.Second)
	if err != nil {
		a.Logger.Warn("system metrics collector unavailable", slog.String("error", err.Error()))
	}
	a.MetricsCollector = collector

	a.HealthService = services.NewHealthService(a.Paths, a.Config.Dataset, a.OperationService, a.WebSocketHub, collector, a.Logger)

	if a.Config.Scheduler.Enabled {
		sched, err := scheduler.New(a.Config.Scheduler, a.OperationService, a.Logger)
		if err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		a.Scheduler = sched
	}

	return nil
}

// setupRouter configures the chi router with all middleware and routes
func (a *Application) setupRouter() error {
	r := chi.NewRouter()

	// Request identity and client IP come first so every later
	// middleware sees them.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// WebSocket endpoint stays outside the heavy middleware chain; the
	// upgrade handshake does not survive response wrapping.
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).HandleFunc("/ws", a.handleWebSocket)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		return fmt.Errorf("otel middleware: %w", err)
	}

	errorHandler := errors.NewErrorHandler(a.Logger, a.Config.Logging.Development)
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	r.Group(func(r chi.Router) {
		r.Use(otelMiddleware.Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.Compress(5))

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			limiter := customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			)
			r.Use(limiter.Handler)
		}

		a.setupAPIRoutes(r)
		a.setupHTMLRoutes(r)
	})

	// Prometheus scrape endpoint bypasses the middleware chain so a
	// slow exporter never counts against the rate limiter.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
	return nil
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	errorHandler := errors.NewErrorHandler(a.Logger, a.Config.Logging.Development)
	validation := customMiddleware.NewValidationMiddleware(a.Logger, errorHandler)

	dataHandler := handlers.NewDataHandler(a.DataService, a.Logger, errorHandler)
	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
	operationsHandler := handlers.NewOperationsHandler(a.OperationService, a.Logger)
	if a.BusinessMetrics != nil {
		operationsHandler.SetMetrics(a.BusinessMetrics)
	}
	metricsHandler := handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP)
	logHandler := handlers.NewClientLogHandler(a.Logger, validation)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		// Read-side endpoints answer from artifacts on disk and share
		// the server read timeout.
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

			r.Mount("/health", healthHandler.Routes())
			r.Get("/version", healthHandler.Version)
			r.Mount("/metrics", metricsHandler.Routes())

			// The data routes own the rest of the /api surface:
			// snapshot, trends, rankings, correlations, insights,
			// chart index and artifact downloads.
			r.Mount("/", dataHandler.Routes())
		})

		// Pipeline control endpoints can run much longer than a read.
		// They are also the only ones accepting JSON bodies, so body
		// validation lives here.
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.OperationTimeout, a.Logger))
			r.Use(customMiddleware.ContentTypeValidator("application/json"))
			r.Use(validation.ValidateRequest)

			r.Mount("/operations", operationsHandler.Routes())
			if omh, err := handlers.NewOperationsMetricsHandler(a.OperationService, a.Logger); err == nil {
				r.Mount("/operations/metrics", omh.Routes())
			} else {
				a.Logger.Warn("operations metrics handler unavailable", slog.String("error", err.Error()))
			}
		})

		r.Post("/logs", logHandler.Handle)
	})
}

// setupHTMLRoutes serves the dashboard and generated chart documents.
func (a *Application) setupHTMLRoutes(r chi.Router) {
	r.Get("/charts/{name}", handlers.ServeChartPage(a.Paths.ChartsDir))
	r.Get("/test", handlers.ServeTestPage())

	if a.FrontendFS != nil {
		a.serveEmbeddedFrontend(r)
		return
	}

	webDir := filepath.Join(a.Paths.ExecutableDir, "web")
	r.Get("/", handlers.ServeDashboard(webDir))
	fileServer := http.StripPrefix("/static/", http.FileServer(http.Dir(filepath.Join(webDir, "static"))))
	r.Get("/static/*", func(w http.ResponseWriter, req *http.Request) {
		fileServer.ServeHTTP(w, req)
	})
}

// serveEmbeddedFrontend serves the dashboard from the binary's embedded
// filesystem.
func (a *Application) serveEmbeddedFrontend(r chi.Router) {
	fileServer := http.FileServer(http.FS(a.FrontendFS))

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		a.serveEmbeddedIndex(w, req)
	})
	r.Get("/static/*", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		fileServer.ServeHTTP(w, req)
	})
}

func (a *Application) serveEmbeddedIndex(w http.ResponseWriter, r *http.Request) {
	content, err := fs.ReadFile(a.FrontendFS, "index.html")
	if err != nil {
		a.Logger.Error("embedded index missing", slog.String("error", err.Error()))
		http.Error(w, "Dashboard not available", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	if _, err := w.Write(content); err != nil {
		a.Logger.Error("failed to write dashboard response", slog.String("error", err.Error()))
	}
}

// getCORSConfig returns CORS configuration based on environment
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	allowedOrigins := a.Config.Security.AllowedOrigins
	if a.isDevelopmentMode() {
		allowedOrigins = append(allowedOrigins,
			fmt.Sprintf("http://localhost:%d", a.Config.Server.Port),
			fmt.Sprintf("http://127.0.0.1:%d", a.Config.Server.Port),
		)
	}
	return customMiddleware.CORSConfig{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func (a *Application) isDevelopmentMode() bool {
	return a.Config.Logging.Development || os.Getenv("GO_ENV") == "development"
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the application server
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	go func() {
		a.Logger.Info("http server starting", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error("http server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(); err != nil {
		a.Logger.Warn("startup health check reported problems", slog.String("error", err.Error()))
	}

	if a.MetricsCollector != nil {
		go a.MetricsCollector.Start(ctx)
	}

	if a.Scheduler != nil {
		a.Scheduler.Start()
	}

	a.maybeRunStartupRefresh(ctx)

	go a.openBrowserWhenReady(ctx)

	return nil
}

// maybeRunStartupRefresh kicks off a full pipeline run at boot when no
// fresh dataset is on disk. A dashboard with no artifacts renders
// nothing useful, so the first run should not wait for the cron slot.
func (a *Application) maybeRunStartupRefresh(ctx context.Context) {
	if !a.Config.Scheduler.Enabled {
		return
	}

	info, err := os.Stat(a.Paths.RawDatasetCSV)
	if err == nil && time.Since(info.ModTime()) < a.Config.Dataset.MaxSnapshotAge {
		a.Logger.Info("dataset is fresh, skipping startup refresh",
			slog.Time("dataset_modified", info.ModTime()),
		)
		return
	}

	summary, err := a.OperationService.Start(ctx, services.RunOptions{
		Trigger:     "startup",
		Description: "automatic refresh at startup",
	})
	if err != nil {
		a.Logger.Warn("startup refresh not started", slog.String("error", err.Error()))
		return
	}
	a.Logger.Info("startup refresh running", slog.String("operation_id", summary.ID))
}

// openBrowserWhenReady polls the health endpoint and opens the default
// browser once the server answers.
func (a *Application) openBrowserWhenReady(ctx context.Context) {
	url := fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)
	healthURL := url + "/api/health"

	client := &http.Client{Timeout: 2 * time.Second}
	for attempt := 0; attempt < 10; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(500 * time.Millisecond):
		}

		resp, err := client.Get(healthURL)
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			if err := openBrowser(url); err != nil {
				a.Logger.Info("open the dashboard manually", slog.String("url", url))
				fmt.Printf("\n  %s\n  Dashboard: %s\n\n", AppName, url)
			}
			return
		}
	}
	a.Logger.Warn("server did not become healthy in time", slog.String("url", healthURL))
}

// performStartupHealthCheck verifies the data directories are writable
// before any pipeline stage needs them.
func (a *Application) performStartupHealthCheck() error {
	dirs := map[string]string{
		"data":      a.Paths.DataDir,
		"raw":       a.Paths.RawDir,
		"processed": a.Paths.ProcessedDir,
		"analytics": a.Paths.AnalyticsDir,
		"charts":    a.Paths.ChartsDir,
		"logs":      a.Paths.LogsDir,
	}

	var problems []string
	for name, dir := range dirs {
		probe := filepath.Join(dir, ".write_test")
		if err := os.WriteFile(probe, []byte("probe"), 0o644); err != nil {
			problems = append(problems, fmt.Sprintf("%s (%s): %v", name, dir, err))
			continue
		}
		os.Remove(probe)
	}

	if len(problems) > 0 {
		return fmt.Errorf("directories not writable: %s", strings.Join(problems, "; "))
	}

	a.Logger.Info("startup health check passed", slog.Int("directories_checked", len(dirs)))
	return nil
}

// Stop gracefully shuts down the application
func (a *Application) Stop() error {
	a.Logger.Info("shutting down")

	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("server shutdown failed", slog.String("error", err.Error()))
	}

	if id := a.OperationService.ActiveRunID(); id != "" {
		if err := a.OperationService.Cancel(shutdownCtx, id); err != nil {
			a.Logger.Warn("could not cancel active run",
				slog.String("operation_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	if a.MetricsCollector != nil {
		a.MetricsCollector.Stop()
	}

	a.WebSocketHub.Stop()

	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("observability shutdown failed", slog.String("error", err.Error()))
	}

	a.Logger.Info("shutdown complete")
	return nil
}

// Run starts the application and blocks until shutdown
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.Logger.Info("signal received", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.Info("context cancelled")
	}

	return a.Stop()
}

// handleWebSocket upgrades HTTP connections to WebSocket for live
// pipeline progress updates.
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = fmt.Sprintf("ws-%d", time.Now().UnixNano())
	}
	ctx := infrastructure.WithTraceID(r.Context(), reqID)
	r = r.WithContext(ctx)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if a.isDevelopmentMode() {
				return true
			}
			for _, allowed := range a.Config.Security.AllowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			a.Logger.Warn("websocket upgrade failed",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("remote_addr", r.RemoteAddr),
			)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := ws.NewClientWithTrace(a.WebSocketHub, conn, reqID, a.Logger)
	a.WebSocketHub.Register(client)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				a.Logger.Error("websocket write pump panicked", slog.Any("panic", rec))
			}
		}()
		client.WritePump()
	}()
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				a.Logger.Error("websocket read pump panicked", slog.Any("panic", rec))
			}
		}()
		client.ReadPump()
	}()
}

// openBrowser opens the given URL in the default browser.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
