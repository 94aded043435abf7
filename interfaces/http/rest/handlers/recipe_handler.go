package handlers

import (
	"net/http"

	"recipes-backend/application/commands"
	"recipes-backend/application/commands/bus"
	"recipes-backend/application/queries"
	querybus "recipes-backend/application/queries/bus"
	"recipes-backend/domain/core/aggregates"
	"recipes-backend/pkg/common"
	pkgerrors "recipes-backend/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecipeHandler handles recipe-related HTTP requests
type RecipeHandler struct {
	base
}

// NewRecipeHandler creates a new recipe handler
func NewRecipeHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *RecipeHandler {
	return &RecipeHandler{base: newBase(commandBus, queryBus, errs, logger)}
}

// CreateRecipeRequest represents the request body for creating a recipe
type CreateRecipeRequest struct {
	Title        string                      `json:"title"`
	Description  string                      `json:"description"`
	CookTime     int                         `json:"cookTime"`
	PrepTime     int                         `json:"prepTime"`
	Ingredients  []commands.IngredientInput  `json:"ingredients,omitempty"`
	Instructions []commands.InstructionInput `json:"instructions,omitempty"`
}

// UpdateRecipeRequest represents the request body for updating a recipe
type UpdateRecipeRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CookTime    int    `json:"cookTime"`
	PrepTime    int    `json:"prepTime"`
}

// CreateRecipe handles POST /recipe
func (h *RecipeHandler) CreateRecipe(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req CreateRecipeRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	cmd := commands.CreateRecipeCommand{
		RecipeID:     uuid.New().String(),
		UserID:       userID,
		Title:        req.Title,
		Description:  req.Description,
		CookTime:     req.CookTime,
		PrepTime:     req.PrepTime,
		Ingredients:  req.Ingredients,
		Instructions: req.Instructions,
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.fail(w, r, err)
		return
	}

	h.respondRecipe(w, r, cmd.RecipeID, http.StatusCreated)
}

// GetRecipe handles GET /recipe/{recipeId}
func (h *RecipeHandler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	recipeID, err := pathParam(r, "recipeId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondRecipe(w, r, recipeID, http.StatusOK)
}

// UpdateRecipe handles PUT /recipe/{recipeId}
func (h *RecipeHandler) UpdateRecipe(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	recipeID, err := pathParam(r, "recipeId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req UpdateRecipeRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	err = h.commandBus.Send(r.Context(), commands.UpdateRecipeCommand{
		RecipeID:    recipeID,
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		CookTime:    req.CookTime,
		PrepTime:    req.PrepTime,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.respondRecipe(w, r, recipeID, http.StatusOK)
}

// DeleteRecipe handles DELETE /recipe/{recipeId}
func (h *RecipeHandler) DeleteRecipe(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	recipeID, err := pathParam(r, "recipeId")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.commandBus.Send(r.Context(), commands.DeleteRecipeCommand{RecipeID: recipeID, UserID: userID}); err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"recipeId": recipeID})
}

// ListRecipes handles GET /recipes
func (h *RecipeHandler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	list, err := ask[*queries.RecipeList](r.Context(), &h.base, queries.ListRecipesQuery{
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, list)
}

// ListUserRecipes handles GET /user/recipes
func (h *RecipeHandler) ListUserRecipes(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	list, err := ask[*queries.RecipeList](r.Context(), &h.base, queries.ListUserRecipesQuery{
		UserID: userID,
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, list)
}

func (h *RecipeHandler) respondRecipe(w http.ResponseWriter, r *http.Request, recipeID string, status int) {
	recipe, err := ask[*aggregates.RecipeAggregate](r.Context(), &h.base, queries.GetRecipeQuery{RecipeID: recipeID})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, status, recipe)
}
