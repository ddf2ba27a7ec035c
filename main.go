package main

import (
	"context"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/teranga-booking/escrow-service/config"
	"github.com/teranga-booking/escrow-service/internal/handler"
	"github.com/teranga-booking/escrow-service/internal/middleware"
	"github.com/teranga-booking/escrow-service/internal/repository"
	"github.com/teranga-booking/escrow-service/internal/service"
	"github.com/teranga-booking/escrow-service/pkg/database"
	"github.com/teranga-booking/escrow-service/pkg/rabbitmq"
)

func main() {
	cfg := config.Load()

	db := database.NewPostgresDB(cfg.DSN())

	// RabbitMQ publisher: settlement events for the notification service.
	// Optional; the escrow core works without it.
	var publisher service.EventPublisher
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL)
		if err != nil {
			log.Fatalf("failed to connect to RabbitMQ: %v", err)
		}
		defer pub.Close()
		publisher = pub
	}

	// Repositories
	bookingRepo := repository.NewBookingRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	walletRepo := repository.NewWalletRepository(db)

	// Services
	ledger := service.NewLedgerService(walletRepo)
	tokens := service.NewTokenService(tokenRepo, cfg.TokenGrace)
	commission := service.NewFlatRatePolicy(cfg.CommissionBps)

	reconcilerCfg := service.DefaultReconcilerConfig()
	reconcilerCfg.MaxAttempts = cfg.ReconcileMaxAttempts
	reconcilerCfg.ReleaseFinalizesBooking = cfg.ReleaseFinalizesBooking

	reconciler := service.NewReconciler(
		bookingRepo, paymentRepo, walletRepo,
		ledger, tokens, commission, publisher,
		service.NewGormTxRunner(db), reconcilerCfg,
	)

	// Expired-token sweeper: hygiene only, expiry is enforced at scan time.
	go sweepExpiredTokens(tokenRepo, cfg.TokenRetention)

	// Echo
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Use(echoMw.RequestLoggerWithConfig(echoMw.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echoMw.RequestLoggerValues) error {
			log.Printf("%s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(echoMw.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok", "service": "escrow-service"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	handler.NewBookingHandler(reconciler, bookingRepo, paymentRepo).RegisterRoutes(e)
	handler.NewEscrowHandler(reconciler, paymentRepo).RegisterRoutes(e)
	handler.NewWalletHandler(walletRepo, ledger).RegisterRoutes(e)

	log.Printf("Escrow Service starting on :%s", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}

func sweepExpiredTokens(tokens repository.TokenRepository, retention time.Duration) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		n, err := tokens.DeleteExpiredBefore(context.Background(), time.Now().Add(-retention))
		if err != nil {
			log.Printf("[TokenSweeper] sweep failed: %v", err)
			continue
		}
		if n > 0 {
			log.Printf("[TokenSweeper] archived %d tokens past retention", n)
		}
	}
}
