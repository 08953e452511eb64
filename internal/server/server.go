package server

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pookie-sol/presale-api/internal/adminauth"
	"github.com/pookie-sol/presale-api/internal/config"
	"github.com/pookie-sol/presale-api/internal/models"
	"github.com/pookie-sol/presale-api/internal/presale"
	"github.com/pookie-sol/presale-api/internal/ratelimit"
	"github.com/pookie-sol/presale-api/internal/rpc"
	"github.com/pookie-sol/presale-api/internal/storage"
	"go.uber.org/zap"
)

// Server represents the API server
type Server struct {
	cfg          *config.Config
	logger       *zap.Logger
	router       *gin.Engine
	loginLimiter *ratelimit.Limiter
	rpcLimiter   *ratelimit.Limiter
	verifier     *adminauth.Verifier
	rpcClient    *rpc.Client
	store        *storage.ContributionStore
	scanner      *presale.Scanner
	startedAt    time.Time

	// Cached public stats snapshot so landing-page traffic does not fan
	// out into provider RPC calls.
	statsMu       sync.Mutex
	statsSnapshot *models.PresaleStats
	statsTakenAt  time.Time
}

// New creates a new server instance. Background tasks (limiter sweep,
// contribution scan loop) run until ctx is canceled.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	gin.SetMode(cfg.Server.Mode)

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    gin.New(),
		startedAt: time.Now(),
	}

	// Separate limiters so wallet RPC traffic cannot exhaust the much
	// stricter login budget, and a login lockout never blocks the proxy.
	s.loginLimiter = ratelimit.New(cfg.RateLimit.Window, cfg.RateLimit.MaxRequests)
	s.loginLimiter.StartSweeper(ctx, cfg.RateLimit.SweepInterval)

	s.rpcLimiter = ratelimit.New(cfg.RPCRateLimit.Window, cfg.RPCRateLimit.MaxRequests)
	s.rpcLimiter.StartSweeper(ctx, cfg.RPCRateLimit.SweepInterval)

	s.verifier = adminauth.New(cfg.Security.AdminPassword, cfg.Security.TokenTTL)
	if !s.verifier.SecretConfigured() {
		// Boot anyway so public routes stay up, but make the deployment
		// mistake impossible to miss.
		logger.Error("Admin password is not configured; all admin operations will be denied")
	}

	s.store = storage.NewContributionStore(cfg.Storage.ContributionsDir)
	s.rpcClient = rpc.New(cfg.RPC.Endpoints, cfg.RPC.Timeout, logger)

	s.scanner = presale.NewScanner(s.rpcClient, s.store, cfg.Presale, logger)
	if cfg.Presale.TreasuryWallet != "" {
		s.scanner.Run(ctx)
	} else {
		logger.Warn("No treasury wallet configured, contribution scanning disabled")
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// Router returns the gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())

	s.router.Use(s.loggerMiddleware())

	if s.cfg.Security.EnableCORS {
		s.router.Use(s.corsMiddleware())
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/", func(c *gin.Context) {
		c.String(200, "ok")
	})

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/ping", s.ping)

	// Public presale endpoints for the landing page.
	s.router.GET("/presale/stats", s.presaleStats)

	// JSON-RPC pass-through for the wallet frontend, quota'd per client.
	s.router.POST("/rpc", s.rateLimitMiddleware(s.rpcLimiter), s.rpcProxy)

	admin := s.router.Group("/admin")
	{
		// Login has its own strict limiter so credential guessing is
		// throttled without touching the RPC budget.
		admin.POST("/login", s.rateLimitMiddleware(s.loginLimiter), s.adminLogin)
		admin.POST("/logout", s.adminLogout)
		admin.GET("/verify", s.adminVerify)

		auth := admin.Group("/")
		auth.Use(s.adminAuthMiddleware())
		{
			auth.GET("/contributions", s.listContributions)
			auth.POST("/contributions/scan", s.scanContributions)
			auth.GET("/stats", s.adminStats)

			auth.GET("/logs", s.getLogs)
			auth.DELETE("/logs", s.clearLogs)

			auth.GET("/status", s.getSystemStatus)
			auth.GET("/settings", s.getSettings)
		}
	}
}

// Basic handlers
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}

func (s *Server) ping(c *gin.Context) {
	c.JSON(200, gin.H{"message": "pong"})
}
