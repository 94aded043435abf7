// Package main implements the Lambda handler that records uploaded recipe images.
// It is triggered by S3 ObjectCreated notifications on the image bucket.
package main

import (
	"context"
	"log"
	"time"

	"recipes-backend/infrastructure/config"
	"recipes-backend/infrastructure/di"
	"recipes-backend/interfaces/lambda/images"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

var (
	container *di.Container
	uploads   *images.UploadHandler
)

func init() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	uploads = images.NewUploadHandler(container.CommandBus, cfg.ImageBaseURL, container.Logger)
	container.Logger.Info("Image handler initialized", zap.String("baseUrl", cfg.ImageBaseURL))
}

// HandleRequest processes one batch of S3 notifications
func HandleRequest(ctx context.Context, event events.S3Event) error {
	container.Logger.Debug("Processing upload notifications", zap.Int("records", len(event.Records)))
	return uploads.Handle(ctx, event)
}

func main() {
	lambda.Start(HandleRequest)
}
