// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/mbd888/splitpay/internal/amount"
	"github.com/mbd888/splitpay/internal/auth"
	"github.com/mbd888/splitpay/internal/config"
	"github.com/mbd888/splitpay/internal/health"
	"github.com/mbd888/splitpay/internal/idgen"
	"github.com/mbd888/splitpay/internal/ledger"
	"github.com/mbd888/splitpay/internal/logging"
	"github.com/mbd888/splitpay/internal/metrics"
	"github.com/mbd888/splitpay/internal/paylink"
	"github.com/mbd888/splitpay/internal/ratelimit"
	"github.com/mbd888/splitpay/internal/realtime"
	"github.com/mbd888/splitpay/internal/validation"
	"github.com/mbd888/splitpay/internal/webhooks"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	paylinks     *paylink.Service
	ledger       *ledger.Ledger
	authMgr      *auth.Manager
	webhookStore webhooks.Store
	emitter      *webhooks.Emitter
	realtimeHub  *realtime.Hub
	rateLimiter  *ratelimit.Limiter
	healthReg    *health.Registry
	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc

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

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	var (
		linkStore    paylink.Store
		ledgerStore  ledger.Store
		webhookStore webhooks.Store
		keyStore     auth.Store
	)

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		linkStore = paylink.NewPostgresStore(db)
		ledgerStore = ledger.NewPostgresStore(db)
		webhookStore = webhooks.NewPostgresStore(db)
		keyStore = auth.NewPostgresStore(db)
		s.logger.Info("storage initialized", "backend", "postgres")
	} else {
		linkStore = paylink.NewMemoryStore()
		ledgerStore = ledger.NewMemoryStore()
		webhookStore = webhooks.NewMemoryStore()
		keyStore = auth.NewMemoryStore()
		s.logger.Info("storage initialized", "backend", "memory")
	}

	s.ledger = ledger.New(ledgerStore)
	s.authMgr = auth.NewManager(keyStore)
	s.webhookStore = webhookStore
	s.emitter = webhooks.NewEmitter(webhooks.NewDispatcher(webhookStore), s.logger)
	s.realtimeHub = realtime.NewHub(s.logger)
	s.rateLimiter = ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitRPS / 4,
		CleanupInterval:   time.Minute,
	})

	s.paylinks = paylink.NewService(linkStore, &settleAdapter{s.ledger}, s.logger).
		WithEvents(&eventFanout{emitter: s.emitter, hub: s.realtimeHub})

	// One-time contract bootstrap: the configured owner is the init caller.
	// A no-op when settings already exist from a previous run.
	if err := s.paylinks.Initialize(ctx, cfg.OwnerAddress); err != nil {
		return nil, fmt.Errorf("failed to initialize contract settings: %w", err)
	}

	s.healthReg = health.NewRegistry()
	s.healthReg.Register("storage", func(ctx context.Context) health.Status {
		if s.db != nil {
			if err := s.db.PingContext(ctx); err != nil {
				return health.Status{Name: "storage", Healthy: false, Detail: err.Error()}
			}
		}
		return health.Status{Name: "storage", Healthy: true}
	})
	s.healthReg.Register("contract", func(ctx context.Context) health.Status {
		if _, err := s.paylinks.ContractState(ctx); err != nil {
			return health.Status{Name: "contract", Healthy: false, Detail: err.Error()}
		}
		return health.Status{Name: "contract", Healthy: true}
	})

	s.setupRouter()
	s.healthy.Store(true)

	return s, nil
}

func (s *Server) setupRouter() {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())
	router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))
	router.Use(metrics.Middleware())
	router.Use(s.rateLimiter.Middleware())

	router.GET("/health", s.handleHealth)
	router.GET("/ready", s.handleReady)
	router.GET("/metrics", metrics.Handler())

	paylinkHandler := paylink.NewHandler(s.paylinks)
	ledgerHandler := ledger.NewHandler(s.ledger)
	webhookHandler := webhooks.NewHandler(s.webhookStore)
	authHandler := auth.NewHandler(s.authMgr)

	v1 := router.Group("/v1")
	v1.Use(auth.Middleware(s.authMgr))

	// Public surface: registration, reads, the event feed
	authHandler.RegisterRoutes(v1)
	paylinkHandler.RegisterRoutes(v1)
	ledgerHandler.RegisterRoutes(v1)
	v1.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.ServeWS(c.Writer, c.Request)
	})

	// Protected surface: anything that moves state or money
	protected := v1.Group("")
	protected.Use(auth.RequireAuth())
	paylinkHandler.RegisterProtectedRoutes(protected)
	paylinkHandler.RegisterAdminRoutes(protected)
	ledgerHandler.RegisterProtectedRoutes(protected)
	webhookHandler.RegisterRoutes(protected)

	s.router = router
}

// requestLogger tags each request with an ID and logs its outcome.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := idgen.WithPrefix("req_")
		ctx := logging.WithRequestID(c.Request.Context(), reqID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", reqID)

		start := time.Now()
		c.Next()

		logging.L(ctx).Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	healthy, statuses := s.healthReg.CheckAll(c.Request.Context())
	s.healthy.Store(healthy)

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"healthy":    healthy,
		"subsystems": statuses,
	})
}

func (s *Server) handleReady(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the server and blocks until shutdown
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel
	defer cancel()

	go s.realtimeHub.Run(runCtx)

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "port", s.cfg.Port)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.ready.Store(true)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("run context cancelled")
	}

	s.ready.Store(false)
	s.rateLimiter.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("database close failed", "error", err)
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// -----------------------------------------------------------------------------
// Collaborator adapters
// -----------------------------------------------------------------------------

// settleAdapter adapts ledger.Ledger to paylink.LedgerService.
type settleAdapter struct {
	ledger *ledger.Ledger
}

func (a *settleAdapter) Settle(ctx context.Context, payer string, callValue *big.Int, legs []paylink.Leg, commissionTo string, commission, refund *big.Int, reference string) error {
	credits := make([]ledger.Credit, 0, len(legs)+2)
	for _, leg := range legs {
		credits = append(credits, ledger.Credit{
			Address: leg.Destination,
			Amount:  amount.Format(leg.Amount),
			Type:    ledger.EntryPayoutIn,
		})
	}
	if commission != nil && commission.Sign() > 0 {
		credits = append(credits, ledger.Credit{
			Address: commissionTo,
			Amount:  amount.Format(commission),
			Type:    ledger.EntryCommissionIn,
		})
	}
	if refund != nil && refund.Sign() > 0 {
		credits = append(credits, ledger.Credit{
			Address: payer,
			Amount:  amount.Format(refund),
			Type:    ledger.EntryRefundIn,
		})
	}

	err := a.ledger.Settle(ctx, payer, callValue, credits, reference)
	if errors.Is(err, ledger.ErrInsufficientBalance) {
		return paylink.ErrInsufficientFunds
	}
	return err
}

// eventFanout implements paylink.Events, feeding both the webhook emitter
// and the realtime hub.
type eventFanout struct {
	emitter *webhooks.Emitter
	hub     *realtime.Hub
}

func (f *eventFanout) CreatedPaymentLink(paymentID, creator string) {
	f.emitter.EmitCreatedPaymentLink(paymentID, creator)
	f.hub.Publish(string(webhooks.EventCreatedPaymentLink), gin.H{
		"paymentId": paymentID,
		"creator":   creator,
	})
}

func (f *eventFanout) IndividualPaymentCompleted(paymentID, from, destination, amt string) {
	f.emitter.EmitIndividualPaymentCompleted(paymentID, from, destination, amt)
	f.hub.Publish(string(webhooks.EventIndividualPaymentCompleted), gin.H{
		"paymentId":   paymentID,
		"from":        from,
		"destination": destination,
		"amount":      amt,
	})
}

func (f *eventFanout) CompletedPayment(paymentID string) {
	f.emitter.EmitCompletedPayment(paymentID)
	f.hub.Publish(string(webhooks.EventCompletedPayment), gin.H{"paymentId": paymentID})
}

func (f *eventFanout) CancelledPayment(paymentID string) {
	f.emitter.EmitCancelledPayment(paymentID)
	f.hub.Publish(string(webhooks.EventCancelledPayment), gin.H{"paymentId": paymentID})
}
