package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emibook/emibook-backend/internal/config"
	"github.com/emibook/emibook-backend/internal/domain"
	"github.com/emibook/emibook-backend/internal/handler"
	"github.com/emibook/emibook-backend/internal/middleware"
	"github.com/emibook/emibook-backend/internal/repository/postgres"
	"github.com/emibook/emibook-backend/internal/service"
	"github.com/emibook/emibook-backend/internal/ws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Connect to database
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	// Verify database connection
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Connected to database")

	// Initialize repositories
	txManager := postgres.NewTxManager(pool)
	loanRepo := postgres.NewLoanRepository(pool)
	shareRepo := postgres.NewLoanShareRepository(pool)
	installmentRepo := postgres.NewInstallmentRepository(pool)
	repaymentRepo := postgres.NewRepaymentRepository(pool)
	penaltyRepo := postgres.NewPenaltyRepository(pool)

	// Initialize services
	penaltyEngine := service.NewPenaltyEngine(txManager, installmentRepo, repaymentRepo, penaltyRepo, cfg.PenaltyDailyRate)
	ledgerService := service.NewLedgerService(txManager, loanRepo, shareRepo, installmentRepo, repaymentRepo, penaltyRepo, penaltyEngine, service.LedgerDefaults{
		Periodicity:   domain.Periodicity(cfg.Defaults.Periodicity),
		Interest:      cfg.Defaults.Interest,
		ProcessingFee: cfg.Defaults.ProcessingFee,
	})

	// WebSocket hub for loan event streams
	hub := ws.NewHub()
	ledgerService.SetEventPublisher(hub)

	// Initialize handlers
	loanHandler := handler.NewLoanHandler(ledgerService)
	wsHandler := handler.NewWebSocketHandler(hub, cfg.CORSOrigins)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// CORS middleware
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Security headers middleware (helmet-like)
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// Request logging middleware with zerolog
	e.Use(zerologMiddleware())

	// Recovery middleware
	e.Use(echomiddleware.Recover())

	// Rate limiting middleware keyed by client IP
	rateLimiter := middleware.NewRateLimiterWithConfig(cfg.RateLimitPerMinute, middleware.DefaultBurstSize)
	defer rateLimiter.Stop()
	e.Use(middleware.RateLimitMiddleware(rateLimiter))

	// Register API routes
	handler.RegisterRoutes(e, loanHandler, wsHandler)

	// Daily penalty accrual sweep
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go runAccrualSweep(sweepCtx, ledgerService)

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// runAccrualSweep runs the penalty accrual sweep once at startup and then
// every 24 hours until the context is cancelled.
func runAccrualSweep(ctx context.Context, ledger *service.LedgerService) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		processed, failed := ledger.RunDailyAccrual(ctx, time.Now().UTC())
		log.Info().
			Int("processed", processed).
			Int("failed", failed).
			Msg("Penalty accrual sweep finished")

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// zerologMiddleware returns a middleware that logs requests using zerolog
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			log.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")

			return nil
		}
	}
}
