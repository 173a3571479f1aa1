package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/datapeek/backend/internal/config"
	"github.com/datapeek/backend/internal/handlers"
	"github.com/datapeek/backend/internal/logger"
	"github.com/datapeek/backend/internal/middleware"
	"github.com/datapeek/backend/internal/repository"
	"github.com/datapeek/backend/internal/service"
	"github.com/datapeek/backend/pkg/openai"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long:  `Start the HTTP API server and listen for requests.`,
	RunE:  runServe,
}

var (
	port string
)

func init() {
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Override port from flag if provided
	if port != "" {
		cfg.Server.Port = port
	}

	log := logger.NewSlogLogger(logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})
	logger.SetDefault(log)

	log.Info("starting datapeek api",
		logger.String("env", cfg.Server.Env),
		logger.Bool("llm_fallback", cfg.OpenAI.APIKey != ""),
	)

	// Initialize repositories
	datasetRepo := repository.NewMemoryDatasetRepository()
	jobRepo := repository.NewMemoryJobRepository()

	// Initialize services
	datasetService := service.NewDatasetService(context.Background(), datasetRepo, jobRepo, log)
	pivotService := service.NewPivotService(datasetRepo)

	var model service.LanguageModel
	if cfg.OpenAI.APIKey != "" {
		model = openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	}
	chatService := service.NewChatService(datasetRepo, model)

	// Initialize handlers
	datasetHandler := handlers.NewDatasetHandler(datasetService, log)
	pivotHandler := handlers.NewPivotHandler(pivotService, log)
	chatHandler := handlers.NewChatHandler(chatService, log)

	// Set Gin mode based on environment
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())

	// Middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(log))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"env":    cfg.Server.Env,
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/datasets", datasetHandler.Upload)
		v1.GET("/datasets", datasetHandler.List)
		v1.GET("/datasets/:id", datasetHandler.Get)
		v1.GET("/datasets/:id/status", datasetHandler.Status)
		v1.POST("/datasets/:id/pivot", pivotHandler.Pivot)
		v1.POST("/datasets/:id/explain", pivotHandler.Explain)
		v1.POST("/datasets/:id/chat", chatHandler.Ask)
	}

	log.Info("server listening", logger.String("port", cfg.Server.Port))
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
