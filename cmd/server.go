package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"scdl/config"
	"scdl/handlers"
	"scdl/middleware"
	"scdl/services"
	"scdl/websocket"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gocloud.dev/blob/fileblob"
	"golang.org/x/sync/errgroup"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Dependencies are the services the HTTP routes are built on
type Dependencies struct {
	Manager          services.DownloadManager
	Files            services.FileService
	Hub              websocket.Hub
	DownloadLocation string
	CORSOrigins      []string
}

// NewRouter builds the gin engine with middleware and all routes
func NewRouter(deps Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logging())
	r.Use(middleware.CORS(deps.CORSOrigins))
	r.Use(middleware.Security())

	downloadHandler := handlers.NewDownloadHandler(deps.Manager, deps.Hub, deps.CORSOrigins)
	fileHandler := handlers.NewFileHandler(deps.Files)
	infoHandler := handlers.NewInfoHandler(deps.Manager)
	healthHandler := handlers.NewHealthHandler(Version)
	settingsHandler := handlers.NewSettingsHandler(deps.DownloadLocation, deps.Manager)

	setupRoutes(r, downloadHandler, fileHandler, infoHandler, healthHandler, settingsHandler)
	return r
}

// StartWebServer runs the download service until SIGINT/SIGTERM
func StartWebServer(port int) error {
	gin.SetMode(config.GetGinMode())

	root := config.GetDownloadLocation()
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	bucket, err := fileblob.OpenBucket(root, nil)
	if err != nil {
		return fmt.Errorf("failed to open download directory: %w", err)
	}
	defer bucket.Close()

	hub := websocket.NewHub()
	go hub.Run()

	fileService := services.NewFileService(bucket)
	fetcher := services.NewYtdlpFetcher(config.GetYtdlpPath())
	manager := services.NewDownloadManager(services.ManagerConfig{
		Root:          root,
		MaxConcurrent: config.GetMaxConcurrent(),
	}, fetcher, fileService, hub)
	defer manager.Shutdown()

	router := NewRouter(Dependencies{
		Manager:          manager,
		Files:            fileService,
		Hub:              hub,
		DownloadLocation: root,
		CORSOrigins:      config.GetCORSOrigins(),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("scdl download service starting on port %d (downloads in %s)", port, root)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Printf("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// setupRoutes configures all the HTTP routes
func setupRoutes(r *gin.Engine, downloadHandler *handlers.DownloadHandler, fileHandler *handlers.FileHandler, infoHandler *handlers.InfoHandler, healthHandler *handlers.HealthHandler, settingsHandler *handlers.SettingsHandler) {
	r.GET("/health", healthHandler.HealthCheck)

	// Result files and housekeeping
	r.GET("/download/*filepath", fileHandler.ServeFile)
	r.POST("/cleanup", downloadHandler.Cleanup)

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/download", downloadHandler.StartDownload)
		apiGroup.GET("/status/:id", downloadHandler.GetStatus)
		apiGroup.GET("/files/:id", downloadHandler.GetFiles)
		apiGroup.GET("/downloads", downloadHandler.ListDownloads)
		apiGroup.GET("/info", infoHandler.GetInfo)
		apiGroup.GET("/settings", settingsHandler.GetSettings)

		// WebSocket endpoints for real-time progress
		wsGroup := apiGroup.Group("/ws")
		{
			wsGroup.GET("/downloads/:id", downloadHandler.HandleWebSocketConnection)
			wsGroup.GET("/downloads", downloadHandler.HandleWebSocketAllConnection)
		}
	}
}
