package handlers

import (
	"net/http"

	"recipes-backend/application/commands"
	"recipes-backend/application/commands/bus"
	"recipes-backend/application/queries"
	querybus "recipes-backend/application/queries/bus"
	"recipes-backend/domain/core/entities"
	"recipes-backend/pkg/common"
	pkgerrors "recipes-backend/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IngredientHandler handles ingredient HTTP requests
type IngredientHandler struct {
	base
}

// NewIngredientHandler creates a new ingredient handler
func NewIngredientHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *IngredientHandler {
	return &IngredientHandler{base: newBase(commandBus, queryBus, errs, logger)}
}

// IngredientRequest is the body of ingredient create and update requests
type IngredientRequest struct {
	Title    string  `json:"title"`
	Quantity float64 `json:"quantity"`
	Units    string  `json:"units"`
}

// CreateIngredient handles POST /recipe/{recipeId}/ingredient
func (h *IngredientHandler) CreateIngredient(w http.ResponseWriter, r *http.Request) {
	userID, recipeID, ok := h.target(w, r)
	if !ok {
		return
	}
	var req IngredientRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	cmd := commands.CreateIngredientCommand{
		IngredientID: uuid.New().String(),
		RecipeID:     recipeID,
		UserID:       userID,
		Title:        req.Title,
		Quantity:     req.Quantity,
		Units:        req.Units,
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondIngredient(w, r, recipeID, cmd.IngredientID, http.StatusCreated)
}

// GetIngredient handles GET /recipe/{recipeId}/ingredient/{ingredientId}
func (h *IngredientHandler) GetIngredient(w http.ResponseWriter, r *http.Request) {
	recipeID, err := pathParam(r, "recipeId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ingredientID, err := pathParam(r, "ingredientId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondIngredient(w, r, recipeID, ingredientID, http.StatusOK)
}

// UpdateIngredient handles PUT /recipe/{recipeId}/ingredient/{ingredientId}
func (h *IngredientHandler) UpdateIngredient(w http.ResponseWriter, r *http.Request) {
	userID, recipeID, ok := h.target(w, r)
	if !ok {
		return
	}
	ingredientID, err := pathParam(r, "ingredientId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req IngredientRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	err = h.commandBus.Send(r.Context(), commands.UpdateIngredientCommand{
		IngredientID: ingredientID,
		RecipeID:     recipeID,
		UserID:       userID,
		Title:        req.Title,
		Quantity:     req.Quantity,
		Units:        req.Units,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondIngredient(w, r, recipeID, ingredientID, http.StatusOK)
}

// DeleteIngredient handles DELETE /recipe/{recipeId}/ingredient/{ingredientId}
func (h *IngredientHandler) DeleteIngredient(w http.ResponseWriter, r *http.Request) {
	userID, recipeID, ok := h.target(w, r)
	if !ok {
		return
	}
	ingredientID, err := pathParam(r, "ingredientId")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	err = h.commandBus.Send(r.Context(), commands.DeleteIngredientCommand{
		IngredientID: ingredientID,
		RecipeID:     recipeID,
		UserID:       userID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"recipeId": recipeID, "itemId": ingredientID})
}

func (h *IngredientHandler) target(w http.ResponseWriter, r *http.Request) (userID, recipeID string, ok bool) {
	userID, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return "", "", false
	}
	recipeID, err = pathParam(r, "recipeId")
	if err != nil {
		h.fail(w, r, err)
		return "", "", false
	}
	return userID, recipeID, true
}

func (h *IngredientHandler) respondIngredient(w http.ResponseWriter, r *http.Request, recipeID, ingredientID string, status int) {
	ingredient, err := ask[*entities.Ingredient](r.Context(), &h.base, queries.GetIngredientQuery{
		RecipeID:     recipeID,
		IngredientID: ingredientID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, status, ingredient)
}
