package entities

import (
	"strings"
	"time"

	pkgerrors "recipes-backend/pkg/errors"

	"github.com/google/uuid"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 4000
)

// RecipeFields are the caller-editable fields of a recipe header
type RecipeFields struct {
	Title       string
	Description string
	CookTime    int
	PrepTime    int
}

// Recipe is the header row of a recipe aggregate. Its item id equals its recipe id.
type Recipe struct {
	RecipeID    string    `json:"recipeId"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	SearchName  string    `json:"searchName"`
	CookTime    int       `json:"cookTime"`
	PrepTime    int       `json:"prepTime"`
	ImageURLs   []string  `json:"imageUrls"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewRecipe creates a recipe header with a fresh identifier
func NewRecipe(userID string, fields RecipeFields, now time.Time) (*Recipe, error) {
	return RestoreRecipe(uuid.New().String(), userID, fields, nil, now, now)
}

// RestoreRecipe builds a recipe header around an existing identifier
func RestoreRecipe(recipeID, userID string, fields RecipeFields, imageURLs []string, createdAt, updatedAt time.Time) (*Recipe, error) {
	if recipeID == "" {
		return nil, pkgerrors.NewValidationError("recipeId cannot be empty")
	}
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userId cannot be empty")
	}

	r := &Recipe{
		RecipeID:  recipeID,
		UserID:    userID,
		ImageURLs: normalizeURLs(imageURLs),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	if err := r.apply(fields); err != nil {
		return nil, err
	}
	return r, nil
}

// Update replaces the editable fields. Identity, ownership and images are preserved.
func (r *Recipe) Update(fields RecipeFields, now time.Time) error {
	if err := r.apply(fields); err != nil {
		return err
	}
	r.UpdatedAt = now
	return nil
}

func (r *Recipe) apply(fields RecipeFields) error {
	title := strings.TrimSpace(fields.Title)
	description := strings.TrimSpace(fields.Description)

	switch {
	case title == "":
		return pkgerrors.NewValidationError("title cannot be empty")
	case len(title) > MaxTitleLength:
		return pkgerrors.NewValidationError("title is too long")
	case len(description) > MaxDescriptionLength:
		return pkgerrors.NewValidationError("description is too long")
	case fields.CookTime < 0:
		return pkgerrors.NewValidationError("cookTime cannot be negative")
	case fields.PrepTime < 0:
		return pkgerrors.NewValidationError("prepTime cannot be negative")
	}

	r.Title = title
	r.Description = description
	r.SearchName = SearchKey(title)
	r.CookTime = fields.CookTime
	r.PrepTime = fields.PrepTime
	return nil
}

// AddImageURLs appends urls not already present, keeping first-seen order
func (r *Recipe) AddImageURLs(urls ...string) {
	r.ImageURLs = normalizeURLs(append(r.ImageURLs, urls...))
}

// SearchKey is the case-insensitive search form of a title
func SearchKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (r *Recipe) Key() Key         { return Key{RecipeID: r.RecipeID, ItemID: r.RecipeID} }
func (r *Recipe) Kind() EntityType { return EntityTypeRecipe }
func (r *Recipe) Owner() string    { return r.UserID }
func (r *Recipe) isRow()           {}

func normalizeURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
