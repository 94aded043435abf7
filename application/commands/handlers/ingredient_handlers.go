package handlers

import (
	"context"
	"time"

	"recipes-backend/application/commands"
	"recipes-backend/application/ports"
	"recipes-backend/domain/core/entities"
	"recipes-backend/domain/events"

	"go.uber.org/zap"
)

// CreateIngredientHandler handles ingredient creation
type CreateIngredientHandler struct {
	table    ports.RecipeTable
	eventBus ports.EventBus
	logger   *zap.Logger
}

// NewCreateIngredientHandler creates a new handler instance
func NewCreateIngredientHandler(table ports.RecipeTable, eventBus ports.EventBus, logger *zap.Logger) *CreateIngredientHandler {
	return &CreateIngredientHandler{table: table, eventBus: eventBus, logger: logger}
}

// Handle creates the ingredient under an existing recipe owned by the caller
func (h *CreateIngredientHandler) Handle(ctx context.Context, cmd commands.CreateIngredientCommand) error {
	ingredient, err := entities.RestoreIngredient(cmd.RecipeID, cmd.IngredientID, cmd.UserID, entities.IngredientFields{
		Title:    cmd.Title,
		Quantity: cmd.Quantity,
		Units:    cmd.Units,
	})
	if err != nil {
		return err
	}

	if err := requireParent(ctx, h.table, cmd.RecipeID, cmd.UserID); err != nil {
		return err
	}
	if err := h.table.PutChild(ctx, ingredient); err != nil {
		return storeError("put_child", "recipe", err)
	}

	publish(ctx, h.eventBus, h.logger, events.NewIngredientChanged(cmd.RecipeID, ingredient.ItemID, cmd.UserID, "created", time.Now().UTC()))
	return nil
}

// UpdateIngredientHandler handles ingredient updates
type UpdateIngredientHandler struct {
	table    ports.RecipeTable
	eventBus ports.EventBus
	logger   *zap.Logger
}

// NewUpdateIngredientHandler creates a new handler instance
func NewUpdateIngredientHandler(table ports.RecipeTable, eventBus ports.EventBus, logger *zap.Logger) *UpdateIngredientHandler {
	return &UpdateIngredientHandler{table: table, eventBus: eventBus, logger: logger}
}

// Handle replaces the fields of an ingredient the caller owns
func (h *UpdateIngredientHandler) Handle(ctx context.Context, cmd commands.UpdateIngredientCommand) error {
	key := entities.Key{RecipeID: cmd.RecipeID, ItemID: cmd.IngredientID}
	row, err := loadOwned(ctx, h.table, key, entities.EntityTypeIngredient, cmd.UserID)
	if err != nil {
		return err
	}
	ingredient := row.(*entities.Ingredient)

	if err := ingredient.Update(entities.IngredientFields{
		Title:    cmd.Title,
		Quantity: cmd.Quantity,
		Units:    cmd.Units,
	}); err != nil {
		return err
	}

	if err := h.table.Put(ctx, ingredient, ports.MustBeOwnedBy(cmd.UserID, entities.EntityTypeIngredient)); err != nil {
		return storeError("put", "ingredient", err)
	}

	publish(ctx, h.eventBus, h.logger, events.NewIngredientChanged(cmd.RecipeID, cmd.IngredientID, cmd.UserID, "updated", time.Now().UTC()))
	return nil
}

// DeleteIngredientHandler handles ingredient deletion
type DeleteIngredientHandler struct {
	table    ports.RecipeTable
	eventBus ports.EventBus
	logger   *zap.Logger
}

// NewDeleteIngredientHandler creates a new handler instance
func NewDeleteIngredientHandler(table ports.RecipeTable, eventBus ports.EventBus, logger *zap.Logger) *DeleteIngredientHandler {
	return &DeleteIngredientHandler{table: table, eventBus: eventBus, logger: logger}
}

// Handle removes an ingredient the caller owns. Nothing is written when the
// ownership check fails.
func (h *DeleteIngredientHandler) Handle(ctx context.Context, cmd commands.DeleteIngredientCommand) error {
	key := entities.Key{RecipeID: cmd.RecipeID, ItemID: cmd.IngredientID}
	if _, err := loadOwned(ctx, h.table, key, entities.EntityTypeIngredient, cmd.UserID); err != nil {
		return err
	}

	if err := h.table.Delete(ctx, key, ports.MustBeOwnedBy(cmd.UserID, entities.EntityTypeIngredient)); err != nil {
		return storeError("delete", "ingredient", err)
	}

	publish(ctx, h.eventBus, h.logger, events.NewIngredientChanged(cmd.RecipeID, cmd.IngredientID, cmd.UserID, "deleted", time.Now().UTC()))
	return nil
}
