package main

import (
	"context"
	"os"

	"github.com/ammiranda/nestedset_service/cache"
	"github.com/ammiranda/nestedset_service/config"
	"github.com/ammiranda/nestedset_service/internal/lambda"
	"github.com/ammiranda/nestedset_service/repository"
	"github.com/ammiranda/nestedset_service/service"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Secrets Manager holds the database settings, the environment the rest
	cfgProvider, err := config.NewAWSConfigProvider()
	if err != nil {
		logger.Fatal("Failed to create config provider", zap.Error(err))
	}

	// Initialize store
	store, err := repository.NewPostgresStore(cfgProvider)
	if err != nil {
		logger.Fatal("Failed to create store", zap.Error(err))
	}
	if err := store.Initialize(ctx); err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}

	treeConfig, err := config.GetTreeConfig(ctx, cfgProvider)
	if err != nil {
		logger.Fatal("Failed to load tree config", zap.Error(err))
	}
	svc, err := service.InitRepository(store, treeConfig.Table, treeConfig.IDField, logger)
	if err != nil {
		logger.Fatal("Failed to initialize repository", zap.Error(err))
	}

	// Lambdas share the DynamoDB cache unless told otherwise
	if os.Getenv("CACHE_PROVIDER") == "" {
		os.Setenv("CACHE_PROVIDER", "dynamodb")
	}
	cache.SetLogger(logger)
	if err := cache.Initialize(); err != nil {
		logger.Fatal("Failed to initialize cache", zap.Error(err))
	}

	// Create handler with the tree service
	handler := lambda.NewHandler(svc)

	// Start Lambda
	awslambda.Start(handler.Handle)
}
