// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/pressly/goose/v3"

	"github.com/adityaadi07/datasentinel/internal/access"
	"github.com/adityaadi07/datasentinel/internal/alerts"
	"github.com/adityaadi07/datasentinel/internal/audit"
	"github.com/adityaadi07/datasentinel/internal/auth"
	"github.com/adityaadi07/datasentinel/internal/config"
	"github.com/adityaadi07/datasentinel/internal/consent"
	"github.com/adityaadi07/datasentinel/internal/files"
	"github.com/adityaadi07/datasentinel/internal/health"
	"github.com/adityaadi07/datasentinel/internal/honeytoken"
	"github.com/adityaadi07/datasentinel/internal/idgen"
	"github.com/adityaadi07/datasentinel/internal/logging"
	"github.com/adityaadi07/datasentinel/internal/metrics"
	"github.com/adityaadi07/datasentinel/internal/notify"
	"github.com/adityaadi07/datasentinel/internal/partners"
	"github.com/adityaadi07/datasentinel/internal/ratelimit"
	"github.com/adityaadi07/datasentinel/internal/realtime"
	"github.com/adityaadi07/datasentinel/internal/risk"
	"github.com/adityaadi07/datasentinel/internal/security"
	"github.com/adityaadi07/datasentinel/internal/traces"
	"github.com/adityaadi07/datasentinel/internal/validation"
	"github.com/adityaadi07/datasentinel/internal/watermark"
	"github.com/adityaadi07/datasentinel/internal/webhooks"
	"github.com/adityaadi07/datasentinel/migrations"
)

// Version is reported by /health and the root info handler.
const Version = "1.0.0"

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg         *config.Config
	apiSecret   *auth.Secret
	adminSecret *auth.Secret

	engine      *risk.Engine
	realtimeHub *realtime.Hub
	auditStore  audit.Store
	recorder    *audit.Recorder
	webhookSubs webhooks.Store
	webhooks    *webhooks.Dispatcher
	inbox       *notify.Inbox
	alerts      *alerts.Service
	consents    *consent.Service
	fileStore   *files.MemoryStore
	accessLog   *files.MemoryAccessLog
	tokens      *honeytoken.Controller
	access      *access.Service
	watermarks  *watermark.Service
	partners    *partners.Service
	health      *health.Registry

	rateLimiter     *ratelimit.Limiter
	db              *sql.DB // nil when the audit mirror is in memory
	router          *gin.Engine
	httpSrv         *http.Server
	logger          *slog.Logger
	shutdownTracing func(context.Context) error
	cancelRunCtx    context.CancelFunc // cancels background goroutines started in Run
	drainDelay      time.Duration

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAuditStore replaces the audit mirror store (for testing)
func WithAuditStore(store audit.Store) Option {
	return func(s *Server) {
		s.auditStore = store
	}
}

// WithClock overrides the risk engine's time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.engine.WithClock(now)
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:         cfg,
		apiSecret:   auth.NewSecret(cfg.APIKey),
		adminSecret: auth.NewSecret(cfg.AdminSecret),
		logger:      logging.New(cfg.LogLevel, cfg.LogFormat),
		engine:      risk.NewEngine(),
		drainDelay:  5 * time.Second,
	}

	// Apply options first (may set logger/stores)
	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	shutdown, err := traces.Init(ctx, "datasentinel", cfg.OTLPEndpoint, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	s.shutdownTracing = shutdown

	// Audit mirror: Postgres if DATABASE_URL set, otherwise in-memory
	if s.auditStore == nil {
		if cfg.DatabaseURL != "" {
			db, err := openDB(ctx, cfg.DatabaseURL)
			if err != nil {
				return nil, err
			}
			if cfg.AutoMigrate {
				if err := migrate(ctx, db); err != nil {
					_ = db.Close()
					return nil, err
				}
			}
			s.db = db
			s.auditStore = audit.NewPostgresStore(db)
			s.logger.Info("using PostgreSQL audit mirror", "url", maskDSN(cfg.DatabaseURL))
		} else {
			s.auditStore = audit.NewMemoryStore()
			s.logger.Info("using in-memory audit mirror")
		}
	}

	s.wire()

	s.health = health.NewRegistry()
	s.registerHealthChecks()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// wire builds the domain services and connects every risk observer and
// alert sink. Observers must be attached before the engine is first used.
func (s *Server) wire() {
	s.realtimeHub = realtime.NewHub(s.logger)
	s.recorder = audit.NewRecorder(s.auditStore, s.logger)

	s.webhookSubs = webhooks.NewMemoryStore()
	s.webhooks = webhooks.NewDispatcher(s.webhookSubs)
	emitter := webhooks.NewEmitter(s.webhooks, s.logger)

	s.engine.
		WithObserver(s.realtimeHub).
		WithObserver(s.recorder).
		WithObserver(emitter)

	hub := s.realtimeHub
	s.inbox = notify.NewInbox().WithSink(func(_ context.Context, n notify.Notification) {
		hub.Publish(realtime.EventNotification, n.UserID, n)
	})
	s.alerts = alerts.NewService(s.inbox).
		WithSink(func(_ context.Context, a alerts.FileAlert) {
			hub.Publish(realtime.EventFileAlert, a.OwnerID, a)
		}).
		WithSink(s.recorder.RecordFileAlert).
		WithSink(emitter.RecordFileAlert)

	consentStore := consent.NewMemoryStore()
	s.fileStore = files.NewMemoryStore()
	s.accessLog = files.NewMemoryAccessLog()
	if s.cfg.SeedDemoData {
		consentStore.SeedDemoUsers(s.cfg.DefaultRegion)
		s.fileStore.SeedDemoFiles(idgen.Code)
		s.logger.Info("demo users and files seeded", "region", s.cfg.DefaultRegion)
	}
	s.consents = consent.NewService(consentStore, s.cfg.DefaultRegion)

	s.tokens = honeytoken.NewController(s.consents, s.fileStore, s.accessLog, s.alerts, s.engine)
	s.access = access.NewService(access.NewMemoryStore(), s.fileStore, s.accessLog,
		s.inbox, s.alerts, s.engine, s.tokens)
	s.watermarks = watermark.NewService(s.consents)
	s.partners = partners.NewService(s.consents, s.engine, s.tokens)
}

func (s *Server) registerHealthChecks() {
	s.health.Register("risk_engine", func(_ context.Context) health.Status {
		return health.Status{
			Name:    "risk_engine",
			Healthy: true,
			Detail:  strconv.Itoa(len(s.engine.Scores())) + " partners tracked",
		}
	})
	if s.db != nil {
		s.health.Register("database", func(ctx context.Context) health.Status {
			if err := s.db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	}
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// migrate applies the embedded goose migrations.
func migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.router.Use(security.HeadersMiddleware())
	s.router.Use(security.CORSMiddleware(s.cfg.AllowedOrigins))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Request ID before auth so partner tagging lands on the request logger
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(auth.Middleware(s.apiSecret))

	// Rate limiting keyed by partner, else client IP
	rl := ratelimit.DefaultConfig()
	rl.RequestsPerMinute = s.cfg.RateLimitRPM
	rl.BurstSize = max(rl.BurstSize, s.cfg.RateLimitRPM/6)
	s.rateLimiter = ratelimit.New(rl)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = idgen.New()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/", s.infoHandler)
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	consentHandler := consent.NewHandler(s.consents, s.apiSecret)
	consentHandler.RegisterPublicRoutes(s.router.Group(""))

	// Everything else presents the shared secret
	protected := s.router.Group("")
	protected.Use(auth.RequireAuth())
	consentHandler.RegisterProtectedRoutes(protected)

	alertsHandler := alerts.NewHandler(s.alerts)
	partnersHandler := partners.NewHandler(s.partners)

	if s.cfg.ServesPartner() {
		honeytoken.NewHandler(s.tokens, s.engine).RegisterProtectedRoutes(protected)
		watermark.NewHandler(s.watermarks).RegisterProtectedRoutes(protected)
		partnersHandler.RegisterProtectedRoutes(protected)
		alertsHandler.RegisterEscalationRoutes(protected)
	}

	if s.cfg.ServesFiles() {
		files.NewHandler(s.fileStore, s.accessLog).RegisterProtectedRoutes(protected)
		access.NewHandler(s.access).RegisterProtectedRoutes(protected)
		alertsHandler.RegisterFileRoutes(protected)
		notify.NewHandler(s.inbox).RegisterProtectedRoutes(protected)
	}

	// Admin snapshots, audit and webhook subscriptions
	admin := s.router.Group("/admin")
	admin.Use(auth.RequireAuth(), auth.RequireAdmin(s.adminSecret))
	risk.NewHandler(s.engine).RegisterAdminRoutes(admin)
	consentHandler.RegisterAdminRoutes(admin)
	alertsHandler.RegisterAdminRoutes(admin)
	partnersHandler.RegisterAdminRoutes(admin)
	audit.NewHandler(s.auditStore).RegisterAdminRoutes(admin)
	webhooks.NewHandler(s.webhookSubs).RegisterAdminRoutes(admin)
	admin.GET("/realtime", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"realtime": s.realtimeHub.Stats()})
	})

	// WebSocket stream of risk events, file alerts and notifications
	s.router.GET("/ws", auth.RequireAuth(), auth.RequireAdmin(s.adminSecret), func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Profile   config.Profile  `json:"profile"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, checks := s.health.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   Version,
		Profile:   s.cfg.Profile,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	health.LiveHandler(c)
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	s.health.ReadyHandler(c)
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "DataSentinel",
		"description": "Consent-aware data sharing with deception-based partner risk scoring",
		"version":     Version,
		"profile":     s.cfg.Profile,
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Start launches the background workers (realtime hub, audit writer, DB
// stats) and marks the server ready. Run calls it; tests may call it
// directly against Router().
func (s *Server) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	go s.realtimeHub.Run(runCtx)
	go s.recorder.Start(runCtx)
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}
	s.ready.Store(true)
}

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"profile", s.cfg.Profile,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	s.Start(ctx)
	s.logger.Info("server ready")

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Give load balancers time to stop sending traffic
	time.Sleep(s.drainDelay)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var shutdownErr error
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			shutdownErr = err
		}
	}

	// Cancel background goroutines (hub, db stats), then flush queued
	// audit records before the database goes away
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
		s.recorder.Stop()
		s.logger.Info("audit recorder stopped")
	}

	// Let in-flight webhook deliveries finish
	s.webhooks.Wait()

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	if s.shutdownTracing != nil {
		if err := s.shutdownTracing(ctx); err != nil {
			s.logger.Error("tracing shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return shutdownErr
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
