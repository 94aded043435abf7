// Package queries defines the read operations on recipes. Handlers live in the
// handlers subpackage and are registered on bus.QueryBus.
package queries

import (
	"time"

	"recipes-backend/domain/core/entities"
	pkgerrors "recipes-backend/pkg/errors"
	"recipes-backend/pkg/utils"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 100
)

func validateQuery(q interface{}) error {
	if err := utils.ValidateStruct(q); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	return nil
}

// GetRecipeQuery reads a recipe with its ingredients and instructions
type GetRecipeQuery struct {
	RecipeID string `validate:"required"`
}

func (q GetRecipeQuery) Validate() error { return validateQuery(q) }

// GetIngredientQuery reads one ingredient
type GetIngredientQuery struct {
	RecipeID     string `validate:"required"`
	IngredientID string `validate:"required"`
}

func (q GetIngredientQuery) Validate() error { return validateQuery(q) }

// GetInstructionQuery reads one instruction
type GetInstructionQuery struct {
	RecipeID      string `validate:"required"`
	InstructionID string `validate:"required"`
}

func (q GetInstructionQuery) Validate() error { return validateQuery(q) }

// ListRecipesQuery pages through every recipe, optionally filtered by a
// case-insensitive title substring
type ListRecipesQuery struct {
	Search string `validate:"max=200"`
	Limit  int    `validate:"gte=0,lte=100"`
	Cursor string
}

func (q ListRecipesQuery) Validate() error { return validateQuery(q) }

// ListUserRecipesQuery pages through the recipes of one user
type ListUserRecipesQuery struct {
	UserID string `validate:"required"`
	Limit  int    `validate:"gte=0,lte=100"`
	Cursor string
}

func (q ListUserRecipesQuery) Validate() error { return validateQuery(q) }

// RecipeList is one page of recipe headers
type RecipeList struct {
	Recipes    []entities.Recipe `json:"items"`
	Count      int               `json:"count"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

// GetImageUploadURLQuery asks for a presigned URL to upload one recipe image
type GetImageUploadURLQuery struct {
	RecipeID string `validate:"required"`
	UserID   string `validate:"required"`
	ImageExt string `validate:"required,oneof=jpg jpeg png webp gif"`
}

func (q GetImageUploadURLQuery) Validate() error { return validateQuery(q) }

// ImageUploadURL is where the client PUTs the image bytes
type ImageUploadURL struct {
	SignedURL string    `json:"signedUrl"`
	Filename  string    `json:"filename"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// EffectiveLimit returns the page size used for a requested limit
func EffectiveLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
