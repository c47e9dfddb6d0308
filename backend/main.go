package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coursemarket/backend/config"
	"coursemarket/backend/middleware"
	"coursemarket/backend/payment"
	"coursemarket/backend/routes"
	"coursemarket/backend/services"
	"coursemarket/backend/storage"
	"coursemarket/backend/utils"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Initialize logger
	logger := utils.InitLogger(utils.LoggerConfig{
		Format:      cfg.LogFormat,
		Development: !cfg.IsProduction(),
	})
	defer func() { _ = logger.Sync() }()

	if err := config.VerifyAcademySetup(cfg); err != nil {
		logger.Fatalw("academy is not configured", "error", err)
	}

	// Initialize database
	db, err := utils.InitDB(cfg)
	if err != nil {
		logger.Fatalw("error initializing database", "error", err)
	}

	ctx := context.Background()
	svc := services.NewContainer(db, cfg, cartStore(ctx, cfg, logger), paymentGateway(cfg, db, logger), nil, logger)
	if err := svc.Admins.VerifyAcademySetup(ctx); err != nil {
		logger.Fatalw("academy setup failed", "error", err)
	}

	blobs := blobStore(ctx, cfg, logger)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "course-market",
		JSONEncoder:  sonic.Marshal,
		JSONDecoder:  sonic.Unmarshal,
		BodyLimit:    12 << 20,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(compress.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORSOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Cart-Session",
		ExposeHeaders: "X-Cart-Session",
	}))
	app.Use(middleware.LoggingMiddleware(logger))

	if cfg.StorageDriver != "gcs" {
		app.Static("/uploads", cfg.StorageLocalDir)
	}

	// Setup routes
	routes.SetupRoutes(app, svc, blobs, cfg, logger)

	go purgeTokens(svc.Auth, logger)
	go sweepCarts(svc.Carts, time.Duration(cfg.CartIdleMinutes)*time.Minute, logger)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Infow("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Errorw("shutdown failed", "error", err)
		}
	}()

	// Start server
	logger.Infow("server starting", "port", cfg.ServerPort, "payments", cfg.PaymentsEnabled())
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		logger.Fatalw("server stopped", "error", err)
	}
}

func cartStore(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) services.CartStore {
	if cfg.RedisAddr == "" {
		logger.Infow("REDIS_ADDR not set, carts are kept in memory")
		return services.NewMemoryCartStore()
	}
	rdb, err := services.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warnw("redis unavailable, carts are kept in memory", "error", err)
		return services.NewMemoryCartStore()
	}
	return services.NewRedisCartStore(rdb, time.Duration(cfg.CartTTLHours)*time.Hour, logger)
}

// paymentGateway returns nil when no Midtrans key is configured; checkout then
// leaves orders pending for admin approval.
func paymentGateway(cfg *config.Config, db *gorm.DB, logger *zap.SugaredLogger) payment.Gateway {
	if !cfg.PaymentsEnabled() {
		logger.Infow("MIDTRANS_SERVER_KEY not set, hosted checkout disabled")
		return nil
	}
	return payment.NewMidtransGateway(db, cfg.MidtransServerKey, cfg.MidtransProduction, logger)
}

func blobStore(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) storage.BlobStore {
	if cfg.StorageDriver == "gcs" {
		store, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile, cfg.StoragePublicBaseURL, logger)
		if err != nil {
			logger.Fatalw("gcs storage", "error", err)
		}
		return store
	}
	store, err := storage.NewLocalStore(cfg.StorageLocalDir, cfg.StoragePublicBaseURL)
	if err != nil {
		logger.Fatalw("local storage", "error", err)
	}
	return store
}

func purgeTokens(auth *services.AuthService, logger *zap.SugaredLogger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		n, err := auth.PurgeExpiredTokens(context.Background())
		if err != nil {
			logger.Warnw("purge expired tokens", "error", err)
			continue
		}
		if n > 0 {
			logger.Infow("purged expired tokens", "count", n)
		}
	}
}

func sweepCarts(carts *services.CartService, idle time.Duration, logger *zap.SugaredLogger) {
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		if n := carts.EvictIdle(idle); n > 0 {
			logger.Debugw("evicted idle carts", "count", n)
		}
	}
}
