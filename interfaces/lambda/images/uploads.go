// Package images records uploaded recipe images from S3 object-created events.
package images

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"recipes-backend/application/commands"
	"recipes-backend/application/commands/bus"
	pkgerrors "recipes-backend/pkg/errors"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// UploadHandler turns uploaded objects into AttachRecipeImagesCommands.
// Object keys have the form <recipeId>/<filename>.
type UploadHandler struct {
	commandBus *bus.CommandBus
	baseURL    string
	logger     *zap.Logger
}

// NewUploadHandler creates a handler that publishes images under baseURL.
// An empty baseURL falls back to the bucket's virtual-hosted S3 address.
func NewUploadHandler(commandBus *bus.CommandBus, baseURL string, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		commandBus: commandBus,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// Handle attaches every uploaded image to its recipe. Records for recipes that
// no longer exist are skipped; any other failure fails the invocation so the
// event is retried.
func (h *UploadHandler) Handle(ctx context.Context, event events.S3Event) error {
	byRecipe := make(map[string][]string)
	for _, record := range event.Records {
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			h.logger.Warn("Skipping undecodable object key",
				zap.String("key", record.S3.Object.Key),
				zap.Error(err),
			)
			continue
		}

		recipeID, filename, ok := strings.Cut(key, "/")
		if !ok || recipeID == "" || filename == "" || strings.Contains(filename, "/") {
			h.logger.Warn("Skipping object outside the recipe layout", zap.String("key", key))
			continue
		}

		byRecipe[recipeID] = append(byRecipe[recipeID], h.objectURL(record, key))
	}

	recipeIDs := make([]string, 0, len(byRecipe))
	for id := range byRecipe {
		recipeIDs = append(recipeIDs, id)
	}
	sort.Strings(recipeIDs)

	for _, recipeID := range recipeIDs {
		err := h.commandBus.Send(ctx, commands.AttachRecipeImagesCommand{
			RecipeID: recipeID,
			URLs:     byRecipe[recipeID],
		})
		if pkgerrors.IsNotFound(err) {
			h.logger.Warn("Image uploaded for missing recipe", zap.String("recipeId", recipeID))
			continue
		}
		if err != nil {
			return fmt.Errorf("attach images to %s: %w", recipeID, err)
		}
		h.logger.Info("Recipe images attached",
			zap.String("recipeId", recipeID),
			zap.Int("count", len(byRecipe[recipeID])),
		)
	}
	return nil
}

func (h *UploadHandler) objectURL(record events.S3EventRecord, key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if h.baseURL != "" {
		return h.baseURL + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", record.S3.Bucket.Name, record.AWSRegion, escaped)
}
