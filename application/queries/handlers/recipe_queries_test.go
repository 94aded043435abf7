package handlers

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"recipes-backend/application/ports"
	"recipes-backend/application/queries"
	"recipes-backend/domain/core/entities"
	"recipes-backend/infrastructure/persistence/memory"
	pkgerrors "recipes-backend/pkg/errors"
	"recipes-backend/tests/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seededTable() *memory.RecipeTable {
	table := memory.NewRecipeTable()
	table.Seed(
		&entities.Recipe{RecipeID: "r-1", UserID: "alice", Title: "Leek Soup", SearchName: "leek soup", ImageURLs: []string{}},
		&entities.Ingredient{RecipeID: "r-1", ItemID: "i-1", UserID: "alice", Title: "Leek", Quantity: 2},
		&entities.Ingredient{RecipeID: "r-1", ItemID: "i-2", UserID: "alice", Title: "Stock", Quantity: 1, Units: "l"},
		&entities.Instruction{RecipeID: "r-1", ItemID: "s-1", UserID: "alice", Step: "Simmer", Order: 1},
		&entities.Recipe{RecipeID: "r-2", UserID: "bob", Title: "Green Salad", SearchName: "green salad", ImageURLs: []string{}},
	)
	return table
}

func TestGetRecipe_AssemblesPartition(t *testing.T) {
	// Arrange
	handler := NewGetRecipeHandler(seededTable(), zap.NewNop())

	// Act
	recipe, err := handler.Handle(context.Background(), queries.GetRecipeQuery{RecipeID: "r-1"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Leek Soup", recipe.Title)
	assert.Len(t, recipe.Ingredients, 2)
	require.Len(t, recipe.Instructions, 1)
	assert.Equal(t, "Simmer", recipe.Instructions[0].Step)
}

func TestGetRecipe_Errors(t *testing.T) {
	t.Run("missing recipe", func(t *testing.T) {
		handler := NewGetRecipeHandler(seededTable(), zap.NewNop())

		_, err := handler.Handle(context.Background(), queries.GetRecipeQuery{RecipeID: "nope"})

		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("orphaned children", func(t *testing.T) {
		table := memory.NewRecipeTable()
		table.Seed(&entities.Ingredient{RecipeID: "r-9", ItemID: "i-1", UserID: "alice", Title: "Salt"})
		handler := NewGetRecipeHandler(table, zap.NewNop())

		_, err := handler.Handle(context.Background(), queries.GetRecipeQuery{RecipeID: "r-9"})

		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("store failure", func(t *testing.T) {
		table := seededTable()
		table.FailOn("query", errors.New("throttled"))
		handler := NewGetRecipeHandler(table, zap.NewNop())

		_, err := handler.Handle(context.Background(), queries.GetRecipeQuery{RecipeID: "r-1"})

		assert.True(t, pkgerrors.IsStorageFailure(err))
	})
}

func TestGetChildRows(t *testing.T) {
	ctx := context.Background()
	table := seededTable()
	ingredients := NewGetIngredientHandler(table)
	instructions := NewGetInstructionHandler(table)

	ingredient, err := ingredients.Handle(ctx, queries.GetIngredientQuery{RecipeID: "r-1", IngredientID: "i-2"})
	require.NoError(t, err)
	assert.Equal(t, "l", ingredient.Units)

	instruction, err := instructions.Handle(ctx, queries.GetInstructionQuery{RecipeID: "r-1", InstructionID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, instruction.Order)

	tests := []struct {
		name string
		run  func() error
	}{
		{"ingredient id names an instruction", func() error {
			_, err := ingredients.Handle(ctx, queries.GetIngredientQuery{RecipeID: "r-1", IngredientID: "s-1"})
			return err
		}},
		{"instruction id names the header", func() error {
			_, err := instructions.Handle(ctx, queries.GetInstructionQuery{RecipeID: "r-1", InstructionID: "r-1"})
			return err
		}},
		{"missing ingredient", func() error {
			_, err := ingredients.Handle(ctx, queries.GetIngredientQuery{RecipeID: "r-1", IngredientID: "i-9"})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, pkgerrors.IsNotFound(tt.run()))
		})
	}
}

func TestListRecipes(t *testing.T) {
	ctx := context.Background()
	handler := NewListRecipesHandler(seededTable(), zap.NewNop())

	all, err := handler.Handle(ctx, queries.ListRecipesQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Count)
	assert.Empty(t, all.NextCursor)

	soups, err := handler.Handle(ctx, queries.ListRecipesQuery{Search: "  SOUP "})
	require.NoError(t, err)
	require.Equal(t, 1, soups.Count)
	assert.Equal(t, "r-1", soups.Recipes[0].RecipeID)

	first, err := handler.Handle(ctx, queries.ListRecipesQuery{Limit: 1})
	require.NoError(t, err)
	require.Equal(t, 1, first.Count)
	require.NotEmpty(t, first.NextCursor)

	second, err := handler.Handle(ctx, queries.ListRecipesQuery{Limit: 1, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Equal(t, 1, second.Count)
	assert.NotEqual(t, first.Recipes[0].RecipeID, second.Recipes[0].RecipeID)

	none, err := handler.HandleUser(ctx, queries.ListUserRecipesQuery{UserID: "carol"})
	require.NoError(t, err)
	assert.NotNil(t, none.Recipes)
	assert.Zero(t, none.Count)

	bobs, err := handler.HandleUser(ctx, queries.ListUserRecipesQuery{UserID: "bob"})
	require.NoError(t, err)
	require.Equal(t, 1, bobs.Count)
	assert.Equal(t, "r-2", bobs.Recipes[0].RecipeID)
}

func TestEffectiveLimit(t *testing.T) {
	assert.Equal(t, queries.DefaultListLimit, queries.EffectiveLimit(0))
	assert.Equal(t, 5, queries.EffectiveLimit(5))
	assert.Equal(t, queries.MaxListLimit, queries.EffectiveLimit(5000))
}

func TestGetImageUploadURL(t *testing.T) {
	ctx := context.Background()
	expires := time.Now().Add(2 * time.Minute)

	t.Run("owner gets a signed url", func(t *testing.T) {
		// Arrange
		signer := &mocks.ImageSigner{}
		signer.On("PresignUpload", mock.Anything, mock.MatchedBy(func(key string) bool {
			return regexp.MustCompile(`^r-1/[0-9a-f]{32}\.png$`).MatchString(key)
		}), "image/png").Return(&ports.PresignedUpload{URL: "https://bucket/signed", ExpiresAt: expires}, nil)
		handler := NewGetImageUploadURLHandler(seededTable(), signer, zap.NewNop())

		// Act
		out, err := handler.Handle(ctx, queries.GetImageUploadURLQuery{RecipeID: "r-1", UserID: "alice", ImageExt: "PNG"})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "https://bucket/signed", out.SignedURL)
		assert.Regexp(t, `^[0-9a-f]{32}\.png$`, out.Filename)
		assert.Equal(t, expires, out.ExpiresAt)
		signer.AssertExpectations(t)
	})

	t.Run("jpg uses the jpeg content type", func(t *testing.T) {
		signer := &mocks.ImageSigner{}
		signer.On("PresignUpload", mock.Anything, mock.Anything, "image/jpeg").
			Return(&ports.PresignedUpload{URL: "u", ExpiresAt: expires}, nil)
		handler := NewGetImageUploadURLHandler(seededTable(), signer, zap.NewNop())

		_, err := handler.Handle(ctx, queries.GetImageUploadURLQuery{RecipeID: "r-1", UserID: "alice", ImageExt: "jpg"})

		require.NoError(t, err)
		signer.AssertExpectations(t)
	})

	tests := []struct {
		name  string
		query queries.GetImageUploadURLQuery
		check func(error) bool
	}{
		{"other owner", queries.GetImageUploadURLQuery{RecipeID: "r-1", UserID: "bob", ImageExt: "png"}, pkgerrors.IsForbidden},
		{"missing recipe", queries.GetImageUploadURLQuery{RecipeID: "r-9", UserID: "alice", ImageExt: "png"}, pkgerrors.IsNotFound},
		{"unsupported extension", queries.GetImageUploadURLQuery{RecipeID: "r-1", UserID: "alice", ImageExt: "bmp"}, pkgerrors.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer := &mocks.ImageSigner{}
			handler := NewGetImageUploadURLHandler(seededTable(), signer, zap.NewNop())

			_, err := handler.Handle(ctx, tt.query)

			assert.True(t, tt.check(err), "unexpected error %v", err)
			signer.AssertNotCalled(t, "PresignUpload", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("signer failure", func(t *testing.T) {
		signer := &mocks.ImageSigner{}
		signer.On("PresignUpload", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("no credentials"))
		handler := NewGetImageUploadURLHandler(seededTable(), signer, zap.NewNop())

		_, err := handler.Handle(ctx, queries.GetImageUploadURLQuery{RecipeID: "r-1", UserID: "alice", ImageExt: "gif"})

		assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))
	})
}
