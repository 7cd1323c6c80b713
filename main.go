package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ricky22407-lang/Buyer-1/config"
	"github.com/ricky22407-lang/Buyer-1/handler"
	"github.com/ricky22407-lang/Buyer-1/middleware"
	"github.com/ricky22407-lang/Buyer-1/pkg/logger"
	"github.com/ricky22407-lang/Buyer-1/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	// Pick the ledger backend. A reachable redis means the session joins the
	// shared ledger; otherwise this instance keeps a local sqlite snapshot.
	// The choice is made once at startup and never revisited mid-session.
	var (
		backend service.Backend
		remote  *service.RemoteBackend
		store   *service.LedgerStore
	)
	if cfg.Remote.Addr != "" {
		remote, err = service.NewRemoteBackend(context.Background(), &cfg.Remote)
		if err != nil {
			slog.Warn("remote ledger unreachable, falling back to local mode", "addr", cfg.Remote.Addr, "error", err)
			remote = nil
		} else if store, err = service.OpenRemoteLedger(context.Background(), remote); err != nil {
			// Reachable redis but replay or the change feed failed. A remote
			// session that never syncs is worse than a local one, so this
			// falls back the same way an unreachable redis does.
			slog.Warn("remote ledger unusable, falling back to local mode", "addr", cfg.Remote.Addr, "error", err)
			remote.Close()
			remote = nil
			store = nil
		} else {
			backend = remote
		}
	}
	if store == nil {
		local, err := service.NewLocalBackend(cfg.Snapshot.DBPath)
		if err != nil {
			slog.Error("failed to open local snapshot store", "path", cfg.Snapshot.DBPath, "error", err)
			os.Exit(1)
		}
		backend = local
		store = service.NewLedgerStore(backend)
		if err := store.LoadInitial(context.Background()); err != nil {
			slog.Error("failed to load ledger state", "error", err)
			os.Exit(1)
		}
	}
	slog.Info("ledger backend selected", "mode", backend.Mode())

	reconciler := service.NewReconciler(store, &cfg.Ledger)
	extractor := service.NewExtractorService(&cfg.Extractor)

	archive, err := service.NewArchiveService(&cfg.Archive)
	if err != nil {
		slog.Error("failed to initialize frame archive", "error", err)
		os.Exit(1)
	}
	if archive != nil {
		if err := archive.EnsureBucket(context.Background()); err != nil {
			slog.Error("failed to ensure archive bucket", "error", err)
			os.Exit(1)
		}
	}

	provider := service.NewSnapshotProvider(cfg.Monitor.SnapshotURL)
	monitor := service.NewMonitor(&cfg.Monitor, provider, extractor, reconciler.Ingest, archive, store.ProductContext)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg)
	orderHandler := handler.NewOrderHandler(store)
	productHandler := handler.NewProductHandler(store)
	interactionHandler := handler.NewInteractionHandler(store)
	analyzeHandler := handler.NewAnalyzeHandler(extractor, reconciler, store)
	monitorHandler := handler.NewMonitorHandler(monitor)
	exportHandler := handler.NewExportHandler(store)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New() // Use New() instead of Default() to avoid default middleware

	// Add custom middleware
	router.Use(middleware.RequestID())                 // Request ID for tracing
	router.Use(middleware.Recovery())                  // Panic recovery
	router.Use(middleware.RequestLogger())             // Access logging
	router.Use(corsMiddleware())                       // CORS
	router.Use(cacheMiddleware())                      // Cache control
	router.Use(middleware.RateLimit(100, time.Minute)) // Rate limiting: 100 requests per minute

	// Determine static files directory
	staticDir := "./"
	if _, err := os.Stat("./index.html"); os.IsNotExist(err) {
		staticDir = "../"
	}
	slog.Info("serving static files", "directory", staticDir)

	// Serve static files
	router.Static("/static", staticDir)
	router.StaticFile("/", staticDir+"index.html")
	router.StaticFile("/login.html", staticDir+"login.html")
	router.StaticFile("/index.html", staticDir+"index.html")

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"mode":      backend.Mode(),
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)

		protected.GET("/orders", orderHandler.List)
		protected.POST("/orders", orderHandler.Create)
		protected.PUT("/orders/:id/status", orderHandler.UpdateStatus)
		protected.PUT("/orders/:id", orderHandler.Correct)
		protected.DELETE("/orders/:id", orderHandler.Delete)
		protected.GET("/orders/summary", orderHandler.Summary)
		protected.GET("/orders/export", exportHandler.Orders)

		protected.GET("/products", productHandler.List)
		protected.GET("/products/context", productHandler.Context)
		protected.POST("/products", productHandler.Create)
		protected.PUT("/products/:id", productHandler.Update)
		protected.DELETE("/products/:id", productHandler.Delete)

		protected.GET("/interactions", interactionHandler.List)
		protected.DELETE("/interactions", interactionHandler.Clear)

		protected.POST("/analyze/text", analyzeHandler.Text)
		protected.POST("/analyze/images", analyzeHandler.Images)

		protected.POST("/monitor/start", monitorHandler.Start)
		protected.POST("/monitor/stop", monitorHandler.Stop)
		protected.GET("/monitor/status", monitorHandler.Status)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port, "mode", backend.Mode())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	monitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if remote != nil {
		if err := remote.Close(); err != nil {
			slog.Warn("failed to close remote ledger connection", "error", err)
		}
	}

	slog.Info("server exited gracefully")
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// cacheMiddleware sets cache control headers for static files
func cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		// Skip caching for API routes
		if strings.HasPrefix(path, "/api") {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
			return
		}

		// Set cache headers for static files (1 hour)
		if strings.HasSuffix(path, ".js") ||
			strings.HasSuffix(path, ".css") ||
			strings.HasSuffix(path, ".html") ||
			path == "/" {
			c.Header("Cache-Control", "public, max-age=3600, must-revalidate")
		}

		c.Next()
	}
}
