package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	pkgvalidator "github.com/vatbq/lia/pkg/validator"

	"github.com/vatbq/lia/internal/adapter/handler"
	"github.com/vatbq/lia/internal/adapter/repository"
	"github.com/vatbq/lia/internal/infrastructure/cache"
	"github.com/vatbq/lia/internal/infrastructure/database"
	"github.com/vatbq/lia/internal/infrastructure/storage"
	"github.com/vatbq/lia/internal/realtime"
	"github.com/vatbq/lia/internal/session"
	pkgai "github.com/vatbq/lia/pkg/ai"
	"github.com/vatbq/lia/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Echo instance
	e := echo.New()

	// Register validator for request validation
	e.Validator = pkgvalidator.New()

	// Configure Echo
	e.HideBanner = true
	e.HidePort = false

	// Custom logger format
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))

	// Recover from panics
	e.Use(middleware.Recover())

	// CORS middleware
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	// Initialize dependencies
	log.Println("🔧 Initializing dependencies...")

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Database
	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	// Run AutoMigrate only when explicitly enabled in config.
	// Production deployments should manage schema via sql-migrate.
	if cfg.Database.AutoMigrate {
		if cfg.Server.Environment == "production" {
			log.Fatalf("AutoMigrate is enabled in production. Disable DB_AUTO_MIGRATE or manage schema with sql-migrate.")
		}
		log.Println("🔄 Running migrations (development only) ...")
		if err := database.AutoMigrate(db); err != nil {
			log.Fatalf("Failed to run AutoMigrate: %v", err)
		}
	} else {
		log.Println("🔄 Skipping AutoMigrate; use sql-migrate for schema migrations in CI/CD/production")
	}

	// Initialize Redis (optional, falls back to in-memory credential cache)
	var credentialCache cache.Store
	if cfg.Redis.Enabled {
		log.Println("📦 Connecting to Redis...")
		redisClient, err := cache.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		credentialCache = redisClient
	} else {
		log.Println("⚠️  Redis disabled, using in-memory credential cache")
		credentialCache = cache.NewMemoryStore()
	}

	// Initialize object storage for session recordings (optional)
	var recordings session.RecordingStore
	if cfg.Storage.Enabled {
		log.Println("🗄️  Connecting to object storage...")
		minioClient, err := storage.NewMinIOClient(&cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to connect to object storage: %v", err)
		}
		recordings = minioClient
	} else {
		log.Println("⚠️  Object storage disabled, session recordings will not be kept")
	}

	// Initialize repositories
	log.Println("⚙️  Initializing repositories...")
	callRepo := repository.NewCallRepository(db)

	// Initialize AI components
	log.Println("🤖 Initializing AI components...")
	openaiClient := pkgai.NewOpenAIClient(&cfg.OpenAI)
	broker := realtime.NewBroker(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.Session.CredentialTTL, credentialCache, logger)

	// Initialize session manager
	log.Println("🎙️  Initializing session manager...")
	sessionManager := session.NewManager(cfg, broker, openaiClient, recordings, callRepo, logger)

	// Initialize handlers
	log.Println("🚀 Initializing handlers...")
	callHandler := handler.NewCallHandler(callRepo, openaiClient, logger)
	sessionHandler := handler.NewSessionHandler(sessionManager, callRepo, logger)
	log.Println("✅ Handlers initialized successfully")

	// Setup router with handlers
	log.Println("🛣️  Setting up routes...")
	router := handler.NewRouter(cfg, callHandler, sessionHandler)
	router.Setup(e)

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Printf("🚀 Starting server on %s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)
		log.Printf("🔗 Health check: http://%s/health", addr)

		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	// End live sessions first so their final state is archived
	sessionManager.StopAll(ctx)

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}
