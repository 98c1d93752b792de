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

	casesapp "github.com/carebridge/backend/internal/application/cases"
	fulfillmentapp "github.com/carebridge/backend/internal/application/fulfillment"
	ordersapp "github.com/carebridge/backend/internal/application/orders"
	paymentsapp "github.com/carebridge/backend/internal/application/payments"
	"github.com/carebridge/backend/internal/domain/fulfillment"
	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/carebridge/backend/internal/infrastructure/cache"
	"github.com/carebridge/backend/internal/infrastructure/config"
	"github.com/carebridge/backend/internal/infrastructure/event"
	"github.com/carebridge/backend/internal/infrastructure/logger"
	"github.com/carebridge/backend/internal/infrastructure/payments"
	"github.com/carebridge/backend/internal/infrastructure/persistence"
	"github.com/carebridge/backend/internal/infrastructure/pharmacy"
	"github.com/carebridge/backend/internal/infrastructure/realtime"
	"github.com/carebridge/backend/internal/infrastructure/storage"
	"github.com/carebridge/backend/internal/infrastructure/telemed"
	"github.com/carebridge/backend/internal/infrastructure/telemetry"
	"github.com/carebridge/backend/internal/infrastructure/webhook"
	"github.com/carebridge/backend/internal/interfaces/http/handler"
	"github.com/carebridge/backend/internal/interfaces/http/middleware"
	"github.com/carebridge/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting CareBridge Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	patientRepo := persistence.NewGormPatientRepository(db.DB)
	treatmentRepo := persistence.NewGormTreatmentRepository(db.DB)
	shippingOrderRepo := persistence.NewGormShippingOrderRepository(db.DB)
	webhookAuditor := persistence.NewGormWebhookAuditRepository(db.DB, log)

	// Webhook event ledger: Redis-backed when running multiple instances,
	// in-process otherwise
	var ledger shared.EventLedger
	if cfg.Redis.Enabled {
		redisLedger, err := cache.NewRedisEventLedger(cache.RedisLedgerConfig{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Ledger.TTL,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		ledger = redisLedger
		log.Info("Redis event ledger initialized", zap.String("addr", cfg.Redis.Addr()))
	} else {
		ledger = cache.NewBoundedEventLedger(cfg.Ledger.Capacity)
		log.Info("In-memory event ledger initialized", zap.Int("capacity", cfg.Ledger.Capacity))
	}

	// Initialize metrics
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	orderMetrics, err := telemetry.NewOrderMetrics(meterProvider.Meter("carebridge.orders"), log)
	if err != nil {
		log.Fatal("Failed to initialize order metrics", zap.Error(err))
	}

	// Initialize event bus and subscribe the metrics handler
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(telemetry.NewOrderMetricsHandler(orderMetrics))
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Realtime hub for order event streaming
	hub := realtime.NewHub(log, realtime.WithHeartbeat(30*time.Second))
	hub.Start()
	defer hub.Stop()

	// Order transition service: every status change flows through here
	transitions := ordersapp.NewTransitionService(orderRepo, eventBus, hub, log)

	// Stripe gateway and capture coordinator
	gateway, err := payments.NewStripeGateway(payments.StripeGatewayConfig{
		SecretKey: cfg.Stripe.SecretKey,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize Stripe gateway", zap.Error(err))
	}
	captureCoordinator := paymentsapp.NewCaptureCoordinator(paymentsapp.CaptureCoordinatorConfig{
		Transitions: transitions,
		Orders:      orderRepo,
		Payments:    paymentRepo,
		Gateway:     gateway,
		Logger:      log,
	})

	// Order document storage for the manual fulfillment path
	var documentStorage fulfillmentapp.DocumentStorage
	if cfg.Storage.Provider == "s3" {
		s3Storage, err := storage.NewS3DocumentStorage(cfg.Storage, log)
		if err != nil {
			log.Fatal("Failed to initialize S3 document storage", zap.Error(err))
		}
		documentStorage = s3Storage
		log.Info("S3 document storage initialized", zap.String("bucket", cfg.Storage.Bucket))
	} else {
		documentStorage = storage.NewStubDocumentStorage()
		log.Warn("Using stub document storage; order documents are not persisted")
	}

	// Pharmacy partner integrations
	var integrations []fulfillment.Integration
	if cfg.Pharmacy.PharmaDirect.BaseURL != "" {
		pharmaDirect, err := pharmacy.NewPharmaDirectIntegration(pharmacy.PharmaDirectConfig{
			BaseURL: cfg.Pharmacy.PharmaDirect.BaseURL,
			APIKey:  cfg.Pharmacy.PharmaDirect.APIKey,
			Timeout: cfg.Pharmacy.SubmitTimeout,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize PharmaDirect integration", zap.Error(err))
		}
		integrations = append(integrations, pharmaDirect)
	} else {
		log.Warn("PharmaDirect integration not configured")
	}
	compoundCare, err := pharmacy.NewCompoundCareIntegration(documentStorage, log)
	if err != nil {
		log.Fatal("Failed to initialize CompoundCare integration", zap.Error(err))
	}
	integrations = append(integrations, compoundCare)

	dispatcher := fulfillmentapp.NewDispatcher(fulfillmentapp.DispatcherConfig{
		ShippingOrders: shippingOrderRepo,
		Treatments:     treatmentRepo,
		Patients:       patientRepo,
		Integrations:   integrations,
		SubmitTimeout:  cfg.Pharmacy.SubmitTimeout,
		Logger:         log,
	})

	// Approval service: human and autonomous approvals share this path
	approvalService := ordersapp.NewApprovalService(transitions, orderRepo, captureCoordinator, dispatcher, log)

	// Telemedicine case bridge
	var caseClient casesapp.CasePartnerClient
	if cfg.Telemed.BaseURL != "" {
		client, err := telemed.NewClient(telemed.ClientConfig{
			BaseURL: cfg.Telemed.BaseURL,
			APIKey:  cfg.Telemed.APIKey,
			Timeout: cfg.Telemed.Timeout,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize telemedicine client", zap.Error(err))
		}
		caseClient = client
	} else {
		log.Warn("Telemedicine partner not configured; cases will not be opened")
	}
	caseBridge := casesapp.NewCaseBridgeService(casesapp.CaseBridgeServiceConfig{
		Client:      caseClient,
		Verifier:    webhook.NewHMACVerifier(cfg.Telemed.WebhookSecret),
		Ledger:      ledger,
		Orders:      orderRepo,
		Patients:    patientRepo,
		Transitions: transitions,
		Approver:    approvalService,
		Logger:      log,
	})

	// Payment webhook processing
	var caseStarter paymentsapp.CaseStarter
	if caseClient != nil {
		caseStarter = caseBridge
	}
	paymentWebhookService := paymentsapp.NewPaymentWebhookService(paymentsapp.PaymentWebhookServiceConfig{
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Orders:        orderRepo,
		Payments:      paymentRepo,
		Transitions:   transitions,
		Ledger:        ledger,
		CaseStarter:   caseStarter,
		Logger:        log,
	})

	// Pharmacy webhook processing: PharmaDirect signs the raw body,
	// CompoundCare presents a bearer shared secret
	pharmacyWebhookService := fulfillmentapp.NewPharmacyWebhookService(fulfillmentapp.PharmacyWebhookServiceConfig{
		Verifiers: map[fulfillment.PharmacyPartner]fulfillmentapp.SignatureVerifier{
			fulfillment.PartnerPharmaDirect: webhook.NewHMACVerifier(cfg.Pharmacy.PharmaDirect.WebhookSecret),
			fulfillment.PartnerCompoundCare: webhook.NewBearerVerifier(cfg.Pharmacy.CompoundCare.WebhookSecret),
		},
		Ledger:         ledger,
		ShippingOrders: shippingOrderRepo,
		Transitions:    transitions,
		Logger:         log,
	})

	// Autonomous approval engine
	approvalEngine := ordersapp.NewAutoApprovalEngine(
		orderRepo, patientRepo, treatmentRepo, transitions, approvalService,
		ordersapp.EngineConfig{
			Enabled:     cfg.Engine.Enabled,
			MinInterval: cfg.Engine.MinInterval,
			MaxInterval: cfg.Engine.MaxInterval,
			BatchSize:   cfg.Engine.BatchSize,
			Policy: ordersapp.EligibilityPolicy{
				MinAge: cfg.Eligibility.MinAge,
				MaxAge: cfg.Eligibility.MaxAge,
			},
		}, log)
	if cfg.Engine.Enabled {
		approvalEngine.Start(context.Background())
		defer approvalEngine.Stop()
		log.Info("Auto-approval engine started",
			zap.Duration("min_interval", cfg.Engine.MinInterval),
			zap.Duration("max_interval", cfg.Engine.MaxInterval),
			zap.Int("batch_size", cfg.Engine.BatchSize),
		)
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(log))
	engine.Use(middleware.CORS(cfg.HTTP.CORSAllowOrigins))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Operator endpoints require the shared internal token. Partner
	// webhooks and the SSE stream authenticate on their own terms.
	if cfg.HTTP.InternalAPIToken != "" {
		engine.Use(middleware.InternalAuth(middleware.InternalAuthConfig{
			Token: cfg.HTTP.InternalAPIToken,
			SkipPathPrefixes: []string{
				"/health",
				"/api/v1/webhooks/",
				"/api/v1/realtime/",
			},
			Logger: log,
		}))
	} else {
		log.Warn("Internal API token not configured, operator endpoints are unauthenticated")
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(handler.NewOrderHandler(orderRepo, shippingOrderRepo, approvalService, orderMetrics))
	r.Register(handler.NewPaymentWebhookHandler(paymentWebhookService, orderMetrics, webhookAuditor))
	r.Register(handler.NewCaseWebhookHandler(caseBridge, orderMetrics, webhookAuditor))
	r.Register(handler.NewPharmacyWebhookHandler(pharmacyWebhookService, orderMetrics, webhookAuditor))
	r.Register(handler.NewRealtimeHandler(hub, log))
	r.Setup()

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

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
