package entities

import (
	"strings"

	pkgerrors "recipes-backend/pkg/errors"

	"github.com/google/uuid"
)

// MaxUnitsLength bounds the free-text units of an ingredient
const MaxUnitsLength = 32

// IngredientFields are the caller-editable fields of an ingredient
type IngredientFields struct {
	Title    string
	Quantity float64
	Units    string
}

// Ingredient is a child row of a recipe. UserID is copied from the recipe owner.
type Ingredient struct {
	RecipeID string  `json:"recipeId"`
	ItemID   string  `json:"itemId"`
	UserID   string  `json:"userId"`
	Title    string  `json:"title"`
	Quantity float64 `json:"quantity"`
	Units    string  `json:"units"`
}

// NewIngredient creates an ingredient with a fresh identifier
func NewIngredient(recipeID, userID string, fields IngredientFields) (*Ingredient, error) {
	return RestoreIngredient(recipeID, uuid.New().String(), userID, fields)
}

// RestoreIngredient builds an ingredient around an existing identifier
func RestoreIngredient(recipeID, itemID, userID string, fields IngredientFields) (*Ingredient, error) {
	if err := validateChildIdentity(recipeID, itemID, userID); err != nil {
		return nil, err
	}

	i := &Ingredient{RecipeID: recipeID, ItemID: itemID, UserID: userID}
	if err := i.Update(fields); err != nil {
		return nil, err
	}
	return i, nil
}

// Update replaces the editable fields
func (i *Ingredient) Update(fields IngredientFields) error {
	title := strings.TrimSpace(fields.Title)
	units := strings.TrimSpace(fields.Units)

	switch {
	case title == "":
		return pkgerrors.NewValidationError("title cannot be empty")
	case len(title) > MaxTitleLength:
		return pkgerrors.NewValidationError("title is too long")
	case len(units) > MaxUnitsLength:
		return pkgerrors.NewValidationError("units is too long")
	case fields.Quantity < 0:
		return pkgerrors.NewValidationError("quantity cannot be negative")
	}

	i.Title = title
	i.Units = units
	i.Quantity = fields.Quantity
	return nil
}

func (i *Ingredient) Key() Key         { return Key{RecipeID: i.RecipeID, ItemID: i.ItemID} }
func (i *Ingredient) Kind() EntityType { return EntityTypeIngredient }
func (i *Ingredient) Owner() string    { return i.UserID }
func (i *Ingredient) isRow()           {}

func validateChildIdentity(recipeID, itemID, userID string) error {
	switch {
	case recipeID == "":
		return pkgerrors.NewValidationError("recipeId cannot be empty")
	case itemID == "":
		return pkgerrors.NewValidationError("itemId cannot be empty")
	case itemID == recipeID:
		return pkgerrors.NewValidationError("itemId cannot equal recipeId")
	case userID == "":
		return pkgerrors.NewValidationError("userId cannot be empty")
	}
	return nil
}
