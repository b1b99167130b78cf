package main

import (
	"context"
	"os"

	"github.com/ammiranda/nestedset_service/cache"
	"github.com/ammiranda/nestedset_service/config"
	"github.com/ammiranda/nestedset_service/handlers"
	"github.com/ammiranda/nestedset_service/repository"
	"github.com/ammiranda/nestedset_service/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Default to development unless the environment says otherwise
	if os.Getenv("APP_ENV") == "" {
		os.Setenv("APP_ENV", "development")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Create context
	ctx := context.Background()

	// Initialize config provider
	cfgProvider := config.NewEnvProvider("")

	dbConfig, err := config.GetDatabaseConfig(ctx, cfgProvider)
	if err != nil {
		logger.Fatal("Failed to load database config", zap.Error(err))
	}
	treeConfig, err := config.GetTreeConfig(ctx, cfgProvider)
	if err != nil {
		logger.Fatal("Failed to load tree config", zap.Error(err))
	}

	// Initialize store
	store := repository.NewStore(dbConfig)
	if err := store.Initialize(ctx); err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}
	defer store.Cleanup(ctx)

	svc, err := service.InitRepository(store, treeConfig.Table, treeConfig.IDField, logger)
	if err != nil {
		logger.Fatal("Failed to initialize repository", zap.Error(err))
	}

	// Initialize cache
	cache.SetLogger(logger)
	if err := cache.Initialize(); err != nil {
		logger.Fatal("Failed to initialize cache", zap.Error(err))
	}

	// Initialize router
	r := gin.Default()
	handlers.NewTreeHandler(svc).RegisterRoutes(r)

	logger.Info("Starting server",
		zap.String("driver", dbConfig.Driver),
		zap.String("table", treeConfig.Table),
	)

	// Start server
	if err := r.Run(":8080"); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
