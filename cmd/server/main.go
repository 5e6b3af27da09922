package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	billingapp "github.com/skyfare/backend/internal/application/billing"
	orderingapp "github.com/skyfare/backend/internal/application/ordering"
	partnerapp "github.com/skyfare/backend/internal/application/partner"
	"github.com/skyfare/backend/internal/domain/shared"
	"github.com/skyfare/backend/internal/infrastructure/cache"
	"github.com/skyfare/backend/internal/infrastructure/config"
	"github.com/skyfare/backend/internal/infrastructure/email"
	"github.com/skyfare/backend/internal/infrastructure/gateway/square"
	"github.com/skyfare/backend/internal/infrastructure/logger"
	"github.com/skyfare/backend/internal/infrastructure/persistence"
	"github.com/skyfare/backend/internal/infrastructure/scheduler"
	"github.com/skyfare/backend/internal/interfaces/http/handler"
	"github.com/skyfare/backend/internal/interfaces/http/middleware"
	"github.com/skyfare/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting catering backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection with a zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Initialize repositories
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	txRepo := persistence.NewGormPaymentTransactionRepository(db.DB)
	cardRepo := persistence.NewGormStoredCardRepository(db.DB)
	clientRepo := persistence.NewGormClientRepository(db.DB)

	// Initialize the Square gateway adapter
	squareAdapter, err := square.NewAdapter(&square.Config{
		BaseURL:     cfg.Square.BaseURL,
		AccessToken: cfg.Square.AccessToken,
		LocationID:  cfg.Square.LocationID,
		Timeout:     cfg.Square.Timeout,
	})
	if err != nil {
		log.Fatal("Failed to configure Square gateway", zap.Error(err))
	}

	// Webhook event dedup is best effort either way; the payment ledger's
	// unique column remains the hard redelivery guard
	var dedupStore shared.EventDedupStore
	if cfg.Redis.Enabled {
		redisStore, err := cache.NewRedisEventDedupStore(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		dedupStore = redisStore
		log.Info("Redis webhook dedup enabled")
	} else {
		memStore := cache.NewInMemoryEventDedupStore()
		defer func() {
			_ = memStore.Close()
		}()
		dedupStore = memStore
		log.Info("In-memory webhook dedup enabled")
	}

	// Additional-recipient invoice mail goes out over SMTP when configured
	var emailSender billingapp.InvoiceEmailSender
	if cfg.Email.Host != "" {
		emailSender = email.NewSMTPInvoiceSender(email.Config{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		}, log)
		log.Info("SMTP invoice email sender enabled", zap.String("host", cfg.Email.Host))
	}

	// Initialize application services
	orderService := orderingapp.NewOrderService(orderRepo, log,
		orderingapp.WithAdvanceWindow(cfg.Scheduler.AdvanceWindow))
	clientService := partnerapp.NewClientService(clientRepo, log)
	resolver := billingapp.NewCustomerResolver(clientRepo, squareAdapter, log)
	orchestrator := billingapp.NewInvoiceOrchestrator(
		billingapp.InvoiceOrchestratorConfig{
			DueDays:        cfg.Square.InvoiceDueDays,
			ScheduleOffset: cfg.Square.ScheduleOffset,
		},
		orderRepo, invoiceRepo, clientRepo, resolver, squareAdapter, emailSender, log)
	paymentService := billingapp.NewPaymentService(
		orderRepo, invoiceRepo, txRepo, cardRepo, resolver, squareAdapter, log)
	webhookService := billingapp.NewWebhookService(
		cfg.Square.WebhookSignatureKey, invoiceRepo, paymentService, dedupStore, log)

	// Start the order auto-transition scheduler
	transitionScheduler := scheduler.NewOrderTransitionScheduler(
		scheduler.OrderTransitionSchedulerConfig{
			Enabled:       cfg.Scheduler.Enabled,
			CheckInterval: cfg.Scheduler.CheckInterval,
		},
		orderService, log)
	transitionScheduler.Start()
	defer transitionScheduler.Stop()

	// Initialize handlers
	orderHandler := handler.NewOrderHandler(orderService)
	invoiceHandler := handler.NewInvoiceHandler(orchestrator)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	clientHandler := handler.NewClientHandler(clientService)
	webhookHandler := handler.NewWebhookHandler(webhookService)
	systemHandler := handler.NewSystemHandler(db)

	// Initialize gin engine
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.Recovery(log),
	)

	engine.GET("/healthz", systemHandler.Health)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	orderRoutes := router.NewDomainGroup("/orders")
	orderRoutes.POST("", orderHandler.Create)
	orderRoutes.GET("", orderHandler.List)
	orderRoutes.GET("/:id", orderHandler.GetByID)
	orderRoutes.DELETE("/:id", orderHandler.Delete)
	orderRoutes.PUT("/:id/items", orderHandler.UpdateItems)
	orderRoutes.PUT("/:id/fees", orderHandler.UpdateFees)
	orderRoutes.POST("/:id/status", orderHandler.TransitionStatus)
	orderRoutes.POST("/:id/invoices", invoiceHandler.Create)
	orderRoutes.GET("/:id/invoices", invoiceHandler.ListByOrder)
	orderRoutes.POST("/:id/invoices/send", invoiceHandler.SendEmail)
	orderRoutes.POST("/:id/payments", paymentHandler.Charge)
	orderRoutes.GET("/:id/payments", paymentHandler.ListByOrder)
	r.Register(orderRoutes)

	invoiceRoutes := router.NewDomainGroup("/invoices")
	invoiceRoutes.POST("/:id/publish", invoiceHandler.Publish)
	invoiceRoutes.POST("/:id/cancel", invoiceHandler.Cancel)
	r.Register(invoiceRoutes)

	clientRoutes := router.NewDomainGroup("/clients")
	clientRoutes.POST("", clientHandler.Create)
	clientRoutes.GET("", clientHandler.List)
	clientRoutes.GET("/:id", clientHandler.GetByID)
	clientRoutes.PUT("/:id", clientHandler.Update)
	clientRoutes.DELETE("/:id", clientHandler.Delete)
	clientRoutes.GET("/:id/cards", paymentHandler.ListCards)
	clientRoutes.POST("/:id/cards/:cardId/default", paymentHandler.SetDefaultCard)
	clientRoutes.DELETE("/:id/cards/:cardId", paymentHandler.DeleteCard)
	r.Register(clientRoutes)

	webhookRoutes := router.NewDomainGroup("/webhooks")
	webhookRoutes.POST("/square", webhookHandler.HandleSquareEvent)
	// Deprecated alias kept for gateways still configured with the old path
	webhookRoutes.POST("/square/invoices", webhookHandler.HandleSquareEvent)
	r.Register(webhookRoutes)

	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
