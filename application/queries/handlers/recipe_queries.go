package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recipes-backend/application/ports"
	"recipes-backend/application/queries"
	"recipes-backend/domain/core/aggregates"
	"recipes-backend/domain/core/entities"
	pkgerrors "recipes-backend/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func readError(op, resource string, err error) error {
	switch {
	case err == nil:
		return nil
	case pkgerrors.IsAppError(err):
		return err
	case errors.Is(err, ports.ErrNotFound):
		return pkgerrors.NewNotFoundError(resource)
	default:
		return pkgerrors.NewStorageError(op, err)
	}
}

// GetRecipeHandler reads a recipe aggregate
type GetRecipeHandler struct {
	table  ports.RecipeTable
	logger *zap.Logger
}

// NewGetRecipeHandler creates a new handler instance
func NewGetRecipeHandler(table ports.RecipeTable, logger *zap.Logger) *GetRecipeHandler {
	return &GetRecipeHandler{table: table, logger: logger}
}

// Handle queries the recipe partition and assembles the nested view
func (h *GetRecipeHandler) Handle(ctx context.Context, q queries.GetRecipeQuery) (*aggregates.RecipeAggregate, error) {
	rows, err := h.table.QueryPartition(ctx, q.RecipeID, ports.RowFilter{})
	if err != nil {
		return nil, readError("query", "recipe", err)
	}

	recipe, err := aggregates.Assemble(rows)
	if err != nil {
		if pkgerrors.IsNotFound(err) && len(rows) > 0 {
			h.logger.Warn("Recipe partition has rows but no header",
				zap.String("recipeId", q.RecipeID),
				zap.Int("rows", len(rows)),
			)
		}
		return nil, err
	}
	return recipe, nil
}

// GetIngredientHandler reads one ingredient
type GetIngredientHandler struct {
	table ports.RecipeTable
}

// NewGetIngredientHandler creates a new handler instance
func NewGetIngredientHandler(table ports.RecipeTable) *GetIngredientHandler {
	return &GetIngredientHandler{table: table}
}

// Handle fetches the row and checks it is an ingredient
func (h *GetIngredientHandler) Handle(ctx context.Context, q queries.GetIngredientQuery) (*entities.Ingredient, error) {
	row, err := h.table.Get(ctx, entities.Key{RecipeID: q.RecipeID, ItemID: q.IngredientID})
	if err != nil {
		return nil, readError("get", "ingredient", err)
	}
	ingredient, ok := row.(*entities.Ingredient)
	if !ok {
		return nil, pkgerrors.NewNotFoundError("ingredient")
	}
	return ingredient, nil
}

// GetInstructionHandler reads one instruction
type GetInstructionHandler struct {
	table ports.RecipeTable
}

// NewGetInstructionHandler creates a new handler instance
func NewGetInstructionHandler(table ports.RecipeTable) *GetInstructionHandler {
	return &GetInstructionHandler{table: table}
}

// Handle fetches the row and checks it is an instruction
func (h *GetInstructionHandler) Handle(ctx context.Context, q queries.GetInstructionQuery) (*entities.Instruction, error) {
	row, err := h.table.Get(ctx, entities.Key{RecipeID: q.RecipeID, ItemID: q.InstructionID})
	if err != nil {
		return nil, readError("get", "instruction", err)
	}
	instruction, ok := row.(*entities.Instruction)
	if !ok {
		return nil, pkgerrors.NewNotFoundError("instruction")
	}
	return instruction, nil
}

// ListRecipesHandler pages through recipe headers
type ListRecipesHandler struct {
	table  ports.RecipeTable
	logger *zap.Logger
}

// NewListRecipesHandler creates a new handler instance
func NewListRecipesHandler(table ports.RecipeTable, logger *zap.Logger) *ListRecipesHandler {
	return &ListRecipesHandler{table: table, logger: logger}
}

// Handle lists every recipe, optionally filtered by title substring
func (h *ListRecipesHandler) Handle(ctx context.Context, q queries.ListRecipesQuery) (*queries.RecipeList, error) {
	page, err := h.table.ListRecipes(ctx, ports.ListQuery{
		Search: strings.TrimSpace(q.Search),
		Limit:  queries.EffectiveLimit(q.Limit),
		Cursor: q.Cursor,
	})
	if err != nil {
		return nil, readError("list_recipes", "recipes", err)
	}
	return toList(page), nil
}

// HandleUser lists the recipes owned by one user
func (h *ListRecipesHandler) HandleUser(ctx context.Context, q queries.ListUserRecipesQuery) (*queries.RecipeList, error) {
	page, err := h.table.ListUserRecipes(ctx, ports.ListQuery{
		UserID: q.UserID,
		Limit:  queries.EffectiveLimit(q.Limit),
		Cursor: q.Cursor,
	})
	if err != nil {
		return nil, readError("list_user_recipes", "recipes", err)
	}
	return toList(page), nil
}

func toList(page *ports.RecipePage) *queries.RecipeList {
	recipes := page.Recipes
	if recipes == nil {
		recipes = []entities.Recipe{}
	}
	return &queries.RecipeList{
		Recipes:    recipes,
		Count:      len(recipes),
		NextCursor: page.NextCursor,
	}
}

var imageContentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"gif":  "image/gif",
}

// GetImageUploadURLHandler issues presigned image upload URLs
type GetImageUploadURLHandler struct {
	table  ports.RecipeTable
	signer ports.ImageSigner
	logger *zap.Logger
}

// NewGetImageUploadURLHandler creates a new handler instance
func NewGetImageUploadURLHandler(table ports.RecipeTable, signer ports.ImageSigner, logger *zap.Logger) *GetImageUploadURLHandler {
	return &GetImageUploadURLHandler{table: table, signer: signer, logger: logger}
}

// Handle checks the caller owns the recipe and signs a PUT for
// <recipeId>/<random>.<ext>
func (h *GetImageUploadURLHandler) Handle(ctx context.Context, q queries.GetImageUploadURLQuery) (*queries.ImageUploadURL, error) {
	ext := strings.ToLower(q.ImageExt)
	contentType, ok := imageContentTypes[ext]
	if !ok {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("unsupported image extension %q", q.ImageExt))
	}

	row, err := h.table.Get(ctx, entities.Key{RecipeID: q.RecipeID, ItemID: q.RecipeID})
	if err != nil {
		return nil, readError("get", "recipe", err)
	}
	if row.Kind() != entities.EntityTypeRecipe {
		return nil, pkgerrors.NewNotFoundError("recipe")
	}
	if row.Owner() != q.UserID {
		return nil, pkgerrors.NewForbiddenError("recipe belongs to another user")
	}

	filename := strings.ReplaceAll(uuid.New().String(), "-", "") + "." + ext
	key := q.RecipeID + "/" + filename

	upload, err := h.signer.PresignUpload(ctx, key, contentType)
	if err != nil {
		return nil, pkgerrors.NewExternalError("s3", err)
	}

	h.logger.Debug("Image upload URL issued",
		zap.String("recipeId", q.RecipeID),
		zap.String("key", key),
		zap.Duration("validFor", time.Until(upload.ExpiresAt)),
	)

	return &queries.ImageUploadURL{
		SignedURL: upload.URL,
		Filename:  filename,
		ExpiresAt: upload.ExpiresAt,
	}, nil
}
