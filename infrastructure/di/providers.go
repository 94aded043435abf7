package di

import (
	"context"
	"fmt"

	"recipes-backend/application/commands"
	"recipes-backend/application/commands/bus"
	commandhandlers "recipes-backend/application/commands/handlers"
	"recipes-backend/application/ports"
	"recipes-backend/application/queries"
	querybus "recipes-backend/application/queries/bus"
	queryhandlers "recipes-backend/application/queries/handlers"
	"recipes-backend/infrastructure/config"
	"recipes-backend/infrastructure/messaging/eventbridge"
	"recipes-backend/infrastructure/persistence/dynamodb"
	"recipes-backend/infrastructure/persistence/memory"
	"recipes-backend/infrastructure/storage/s3"
	"recipes-backend/interfaces/http/rest"
	"recipes-backend/interfaces/http/rest/middleware"
	"recipes-backend/pkg/auth"
	pkgerrors "recipes-backend/pkg/errors"
	"recipes-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}

	return zc.Build(zap.Fields(zap.String("environment", cfg.Environment)))
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return aws.Config{}, err
	}
	if cfg.EnableTracing {
		observability.InstrumentAWS(&awsCfg)
	}
	return awsCfg, nil
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideS3Client creates an S3 client
func ProvideS3Client(awsCfg aws.Config) *awss3.Client {
	return awss3.NewFromConfig(awsCfg)
}

// Storage bundles the table and lock implementations chosen by STORAGE_BACKEND
type Storage struct {
	Table  ports.RecipeTable
	Locker ports.RecipeLocker
}

// ProvideStorage selects the DynamoDB or in-memory store
func ProvideStorage(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) Storage {
	if cfg.StorageBackend == config.BackendMemory {
		logger.Warn("Using in-memory storage; data is lost on restart")
		return Storage{
			Table:  memory.NewRecipeTable(),
			Locker: memory.NewRecipeLocker(cfg.LockTTL),
		}
	}

	return Storage{
		Table: dynamodb.NewRecipeTable(client, dynamodb.TableConfig{
			TableName:           cfg.TableName,
			UserIndexName:       cfg.UserIndexName,
			EntityTypeIndexName: cfg.EntityTypeIndexName,
		}, logger),
		Locker: dynamodb.NewRecipeLocker(client, cfg.TableName, cfg.LockTTL, logger),
	}
}

// ProvideRecipeTable exposes the selected table
func ProvideRecipeTable(storage Storage) ports.RecipeTable {
	return storage.Table
}

// ProvideRecipeLocker exposes the selected locker
func ProvideRecipeLocker(storage Storage) ports.RecipeLocker {
	return storage.Locker
}

// ProvideEventBus creates an event bus
func ProvideEventBus(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventBus {
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideImageSigner creates the presigner for image uploads
func ProvideImageSigner(client *awss3.Client, cfg *config.Config, logger *zap.Logger) ports.ImageSigner {
	return s3.NewImageSigner(client, cfg.ImageBucket, cfg.PresignTTL, logger)
}

// ProvideMetrics creates the Prometheus collector, or nil when metrics are off
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector("recipes")
}

// HandlerOptions carries the settings command handlers read
type HandlerOptions struct {
	CompactOnDelete bool
	Metrics         commandhandlers.OrderingMetrics
}

// ProvideHandlerOptions derives handler settings from configuration
func ProvideHandlerOptions(cfg *config.Config, metrics *observability.Collector) HandlerOptions {
	opts := HandlerOptions{CompactOnDelete: cfg.CompactOnDelete}
	if metrics != nil {
		opts.Metrics = metrics
	}
	return opts
}

// commandHandler adapts a typed handler to the bus
func commandHandler[C bus.Command](handle func(context.Context, C) error) bus.CommandHandler {
	return bus.CommandHandlerFunc(func(ctx context.Context, cmd bus.Command) error {
		typed, ok := cmd.(C)
		if !ok {
			return pkgerrors.NewInternalError(fmt.Sprintf("invalid command type %T", cmd))
		}
		return handle(ctx, typed)
	})
}

// queryHandler adapts a typed handler to the bus
func queryHandler[Q querybus.Query, R any](handle func(context.Context, Q) (R, error)) querybus.QueryHandler {
	return querybus.QueryHandlerFunc(func(ctx context.Context, query querybus.Query) (interface{}, error) {
		typed, ok := query.(Q)
		if !ok {
			return nil, pkgerrors.NewInternalError(fmt.Sprintf("invalid query type %T", query))
		}
		return handle(ctx, typed)
	})
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	table ports.RecipeTable,
	locker ports.RecipeLocker,
	eventBus ports.EventBus,
	opts HandlerOptions,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus()
	commandBus.Use(bus.LoggingMiddleware(logger))

	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandler
	}{
		{commands.CreateRecipeCommand{}, commandHandler(commandhandlers.NewCreateRecipeHandler(table, eventBus, logger).Handle)},
		{commands.UpdateRecipeCommand{}, commandHandler(commandhandlers.NewUpdateRecipeHandler(table, eventBus, logger).Handle)},
		{commands.DeleteRecipeCommand{}, commandHandler(commandhandlers.NewDeleteRecipeHandler(table, locker, eventBus, logger).Handle)},
		{commands.AttachRecipeImagesCommand{}, commandHandler(commandhandlers.NewAttachRecipeImagesHandler(table, eventBus, logger).Handle)},

		{commands.CreateIngredientCommand{}, commandHandler(commandhandlers.NewCreateIngredientHandler(table, eventBus, logger).Handle)},
		{commands.UpdateIngredientCommand{}, commandHandler(commandhandlers.NewUpdateIngredientHandler(table, eventBus, logger).Handle)},
		{commands.DeleteIngredientCommand{}, commandHandler(commandhandlers.NewDeleteIngredientHandler(table, eventBus, logger).Handle)},

		{commands.InsertInstructionCommand{}, commandHandler(
			commandhandlers.NewInsertInstructionHandler(table, locker, eventBus, opts.Metrics, logger).Handle)},
		{commands.UpdateInstructionCommand{}, commandHandler(
			commandhandlers.NewUpdateInstructionHandler(table, locker, eventBus, logger).Handle)},
		{commands.DeleteInstructionCommand{}, commandHandler(
			commandhandlers.NewDeleteInstructionHandler(table, locker, eventBus, opts.Metrics, opts.CompactOnDelete, logger).Handle)},
		{commands.ReorderInstructionsCommand{}, commandHandler(
			commandhandlers.NewReorderInstructionsHandler(table, locker, eventBus, opts.Metrics, logger).Handle)},
	}

	for _, r := range registrations {
		if err := commandBus.Register(r.cmd, r.handler); err != nil {
			return nil, err
		}
	}
	return commandBus, nil
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(table ports.RecipeTable, signer ports.ImageSigner, logger *zap.Logger) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus()
	queryBus.Use(querybus.LoggingMiddleware(logger))

	lists := queryhandlers.NewListRecipesHandler(table, logger)

	registrations := []struct {
		query   querybus.Query
		handler querybus.QueryHandler
	}{
		{queries.GetRecipeQuery{}, queryHandler(queryhandlers.NewGetRecipeHandler(table, logger).Handle)},
		{queries.GetIngredientQuery{}, queryHandler(queryhandlers.NewGetIngredientHandler(table).Handle)},
		{queries.GetInstructionQuery{}, queryHandler(queryhandlers.NewGetInstructionHandler(table).Handle)},
		{queries.ListRecipesQuery{}, queryHandler(lists.Handle)},
		{queries.ListUserRecipesQuery{}, queryHandler(lists.HandleUser)},
		{queries.GetImageUploadURLQuery{}, queryHandler(queryhandlers.NewGetImageUploadURLHandler(table, signer, logger).Handle)},
	}

	for _, r := range registrations {
		if err := queryBus.Register(r.query, r.handler); err != nil {
			return nil, err
		}
	}
	return queryBus, nil
}

// ProvideRouterConfig assembles the HTTP router options
func ProvideRouterConfig(cfg *config.Config, table ports.RecipeTable, metrics *observability.Collector) (rest.Config, error) {
	authConfig := middleware.AuthConfig{
		// Behind API Gateway the Lambda entry point sets the user header from
		// authorizer claims; locally it stands in for a login.
		TrustUserHeader: cfg.IsLambda || cfg.IsDevelopment(),
	}
	if cfg.JWTSecret != "" {
		validator, err := auth.NewJWTValidator(auth.JWTConfig{SecretKey: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
		if err != nil {
			return rest.Config{}, err
		}
		authConfig.Validator = validator
	}

	breaker := middleware.DefaultCircuitBreakerConfig("recipes-api")

	routerConfig := rest.Config{
		Auth:           authConfig,
		EnableCORS:     cfg.EnableCORS,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Debug:          cfg.IsDevelopment(),
		Metrics:        metrics,
		Breaker:        &breaker,
		Ready: func(ctx context.Context) error {
			_, err := table.QueryPartition(ctx, "__ready__", ports.RowFilter{})
			return err
		},
	}
	if cfg.EnableTracing && !cfg.IsLambda {
		routerConfig.TraceName = "recipes-api"
	}
	return routerConfig, nil
}
