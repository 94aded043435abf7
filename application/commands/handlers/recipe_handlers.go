package handlers

import (
	"context"
	"time"

	"recipes-backend/application/commands"
	"recipes-backend/application/ports"
	"recipes-backend/domain/core/entities"
	"recipes-backend/domain/events"
	"recipes-backend/domain/services"

	"go.uber.org/zap"
)

// CreateRecipeHandler handles recipe creation
type CreateRecipeHandler struct {
	table    ports.RecipeTable
	eventBus ports.EventBus
	logger   *zap.Logger
	now      func() time.Time
}

// NewCreateRecipeHandler creates a new handler instance
func NewCreateRecipeHandler(table ports.RecipeTable, eventBus ports.EventBus, logger *zap.Logger) *CreateRecipeHandler {
	return &CreateRecipeHandler{table: table, eventBus: eventBus, logger: logger, now: time.Now}
}

// Handle writes the header with a create-only condition, then every nested
// ingredient and instruction in one batch write.
func (h *CreateRecipeHandler) Handle(ctx context.Context, cmd commands.CreateRecipeCommand) error {
	now := h.now().UTC()

	recipe, err := entities.RestoreRecipe(cmd.RecipeID, cmd.UserID, entities.RecipeFields{
		Title:       cmd.Title,
		Description: cmd.Description,
		CookTime:    cmd.CookTime,
		PrepTime:    cmd.PrepTime,
	}, nil, now, now)
	if err != nil {
		return err
	}

	children := make([]entities.Row, 0, len(cmd.Ingredients)+len(cmd.Instructions))
	for _, in := range cmd.Ingredients {
		ingredient, err := entities.NewIngredient(recipe.RecipeID, cmd.UserID, entities.IngredientFields{
			Title:    in.Title,
			Quantity: in.Quantity,
			Units:    in.Units,
		})
		if err != nil {
			return err
		}
		children = append(children, ingredient)
	}

	steps := make([]entities.Instruction, 0, len(cmd.Instructions))
	for _, in := range cmd.Instructions {
		instruction, err := entities.NewInstruction(recipe.RecipeID, cmd.UserID, in.Step, in.Order)
		if err != nil {
			return err
		}
		steps = append(steps, *instruction)
	}
	children = append(children, entities.InstructionRows(services.Normalize(steps))...)

	if err := h.table.Put(ctx, recipe, ports.MustNotExist()); err != nil {
		return storeError("put", "recipe", err)
	}
	if len(children) > 0 {
		if err := h.table.BatchWrite(ctx, children, nil); err != nil {
			return storeError("batch_write", "recipe rows", err)
		}
	}

	h.logger.Info("Recipe created",
		zap.String("recipeId", recipe.RecipeID),
		zap.String("userId", recipe.UserID),
		zap.Int("ingredients", len(cmd.Ingredients)),
		zap.Int("instructions", len(steps)),
	)

	publish(ctx, h.eventBus, h.logger, events.NewRecipeCreated(recipe.RecipeID, recipe.UserID, recipe.Title, 1+len(children), now))
	return nil
}

// UpdateRecipeHandler handles header updates
type UpdateRecipeHandler struct {
	table    ports.RecipeTable
	eventBus ports.EventBus
	logger   *zap.Logger
	now      func() time.Time
}

// NewUpdateRecipeHandler creates a new handler instance
func NewUpdateRecipeHandler(table ports.RecipeTable, eventBus ports.EventBus, logger *zap.Logger) *UpdateRecipeHandler {
	return &UpdateRecipeHandler{table: table, eventBus: eventBus, logger: logger, now: time.Now}
}

// Handle replaces the editable header fields of a recipe the caller owns
func (h *UpdateRecipeHandler) Handle(ctx context.Context, cmd commands.UpdateRecipeCommand) error {
	row, err := loadOwned(ctx, h.table, entities.Key{RecipeID: cmd.RecipeID, ItemID: cmd.RecipeID}, entities.EntityTypeRecipe, cmd.UserID)
	if err != nil {
		return err
	}
	recipe := row.(*entities.Recipe)

	now := h.now().UTC()
	if err := recipe.Update(entities.RecipeFields{
		Title:       cmd.Title,
		Description: cmd.Description,
		CookTime:    cmd.CookTime,
		PrepTime:    cmd.PrepTime,
	}, now); err != nil {
		return err
	}

	if err := h.table.Put(ctx, recipe, ports.MustBeOwnedBy(cmd.UserID, entities.EntityTypeRecipe)); err != nil {
		return storeError("put", "recipe", err)
	}

	publish(ctx, h.eventBus, h.logger, events.NewRecipeUpdated(recipe.RecipeID, recipe.UserID, recipe.Title, now))
	return nil
}

// DeleteRecipeHandler handles cascade deletion
type DeleteRecipeHandler struct {
	table    ports.RecipeTable
	locker   ports.RecipeLocker
	eventBus ports.EventBus
	logger   *zap.Logger
}

// NewDeleteRecipeHandler creates a new handler instance
func NewDeleteRecipeHandler(table ports.RecipeTable, locker ports.RecipeLocker, eventBus ports.EventBus, logger *zap.Logger) *DeleteRecipeHandler {
	return &DeleteRecipeHandler{table: table, locker: locker, eventBus: eventBus, logger: logger}
}

// Handle removes every row of the recipe partition in one batched delete. The
// cascade is not atomic; a partial failure surfaces as a storage failure.
func (h *DeleteRecipeHandler) Handle(ctx context.Context, cmd commands.DeleteRecipeCommand) error {
	var removed int
	err := withRecipeLock(ctx, h.locker, h.logger, cmd.RecipeID, func() error {
		if _, err := loadOwned(ctx, h.table, entities.Key{RecipeID: cmd.RecipeID, ItemID: cmd.RecipeID}, entities.EntityTypeRecipe, cmd.UserID); err != nil {
			return err
		}

		rows, err := h.table.QueryPartition(ctx, cmd.RecipeID, ports.RowFilter{})
		if err != nil {
			return storeError("query", "recipe", err)
		}

		keys := make([]entities.Key, 0, len(rows))
		for _, row := range rows {
			keys = append(keys, row.Key())
		}
		if err := h.table.BatchWrite(ctx, nil, keys); err != nil {
			return storeError("batch_write", "recipe rows", err)
		}
		removed = len(keys)
		return nil
	})
	if err != nil {
		return err
	}

	h.logger.Info("Recipe deleted",
		zap.String("recipeId", cmd.RecipeID),
		zap.Int("rows", removed),
	)

	publish(ctx, h.eventBus, h.logger, events.NewRecipeDeleted(cmd.RecipeID, cmd.UserID, removed, time.Now().UTC()))
	return nil
}

// AttachRecipeImagesHandler records uploaded images on a recipe header
type AttachRecipeImagesHandler struct {
	table    ports.RecipeTable
	eventBus ports.EventBus
	logger   *zap.Logger
}

// NewAttachRecipeImagesHandler creates a new handler instance
func NewAttachRecipeImagesHandler(table ports.RecipeTable, eventBus ports.EventBus, logger *zap.Logger) *AttachRecipeImagesHandler {
	return &AttachRecipeImagesHandler{table: table, eventBus: eventBus, logger: logger}
}

// Handle appends the URLs the header does not already list
func (h *AttachRecipeImagesHandler) Handle(ctx context.Context, cmd commands.AttachRecipeImagesCommand) error {
	if err := h.table.AppendImageURLs(ctx, cmd.RecipeID, cmd.URLs); err != nil {
		return storeError("append_images", "recipe", err)
	}

	h.logger.Info("Recipe images attached",
		zap.String("recipeId", cmd.RecipeID),
		zap.Int("count", len(cmd.URLs)),
	)

	publish(ctx, h.eventBus, h.logger, events.NewRecipeImagesAttached(cmd.RecipeID, cmd.URLs, time.Now().UTC()))
	return nil
}
