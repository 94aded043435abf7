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

// InsertInstructionHandler inserts a step and keeps the orders of the recipe dense
type InsertInstructionHandler struct {
	table    ports.RecipeTable
	locker   ports.RecipeLocker
	eventBus ports.EventBus
	metrics  OrderingMetrics
	logger   *zap.Logger
}

// NewInsertInstructionHandler creates a new handler instance
func NewInsertInstructionHandler(
	table ports.RecipeTable,
	locker ports.RecipeLocker,
	eventBus ports.EventBus,
	metrics OrderingMetrics,
	logger *zap.Logger,
) *InsertInstructionHandler {
	if metrics == nil {
		metrics = nopOrderingMetrics{}
	}
	return &InsertInstructionHandler{
		table:    table,
		locker:   locker,
		eventBus: eventBus,
		metrics:  metrics,
		logger:   logger,
	}
}

// Handle places the step at its clamped order. An append is a single
// conditional write; an insert before existing steps shifts them up by one and
// persists the shifted rows and the new row in one batch.
func (h *InsertInstructionHandler) Handle(ctx context.Context, cmd commands.InsertInstructionCommand) error {
	instruction, err := entities.RestoreInstruction(cmd.RecipeID, cmd.InstructionID, cmd.UserID, cmd.Step, 0)
	if err != nil {
		return err
	}

	var plan services.InsertPlan
	err = withRecipeLock(ctx, h.locker, h.logger, cmd.RecipeID, func() error {
		if err := requireParent(ctx, h.table, cmd.RecipeID, cmd.UserID); err != nil {
			return err
		}

		existing, err := loadInstructions(ctx, h.table, cmd.RecipeID, cmd.UserID)
		if err != nil {
			return err
		}

		plan = services.PlanInsert(existing, *instruction, cmd.Order)
		if plan.IsAppend() {
			if err := h.table.PutChild(ctx, &plan.Instruction); err != nil {
				return storeError("put_child", "recipe", err)
			}
			return nil
		}

		if err := h.table.BatchWrite(ctx, entities.InstructionRows(plan.Writes()), nil); err != nil {
			return storeError("batch_write", "instructions", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	h.metrics.ObserveOrdering("insert", len(plan.Shifted)+1)
	h.logger.Debug("Instruction inserted",
		zap.String("recipeId", cmd.RecipeID),
		zap.String("instructionId", cmd.InstructionID),
		zap.Int("order", plan.Instruction.Order),
		zap.Int("shifted", len(plan.Shifted)),
	)

	publish(ctx, h.eventBus, h.logger, events.NewInstructionInserted(
		cmd.RecipeID, cmd.InstructionID, cmd.UserID, plan.Instruction.Order, len(plan.Shifted), time.Now().UTC(),
	))
	return nil
}

// UpdateInstructionHandler changes the text of a step
type UpdateInstructionHandler struct {
	table    ports.RecipeTable
	locker   ports.RecipeLocker
	eventBus ports.EventBus
	logger   *zap.Logger
}

// NewUpdateInstructionHandler creates a new handler instance
func NewUpdateInstructionHandler(table ports.RecipeTable, locker ports.RecipeLocker, eventBus ports.EventBus, logger *zap.Logger) *UpdateInstructionHandler {
	return &UpdateInstructionHandler{table: table, locker: locker, eventBus: eventBus, logger: logger}
}

// Handle rewrites the step under the recipe lock so a concurrent shift cannot
// be overwritten with a stale order.
func (h *UpdateInstructionHandler) Handle(ctx context.Context, cmd commands.UpdateInstructionCommand) error {
	key := entities.Key{RecipeID: cmd.RecipeID, ItemID: cmd.InstructionID}

	var order int
	err := withRecipeLock(ctx, h.locker, h.logger, cmd.RecipeID, func() error {
		row, err := loadOwned(ctx, h.table, key, entities.EntityTypeInstruction, cmd.UserID)
		if err != nil {
			return err
		}
		instruction := row.(*entities.Instruction)
		if err := instruction.SetStep(cmd.Step); err != nil {
			return err
		}

		if err := h.table.Put(ctx, instruction, ports.MustBeOwnedBy(cmd.UserID, entities.EntityTypeInstruction)); err != nil {
			return storeError("put", "instruction", err)
		}
		order = instruction.Order
		return nil
	})
	if err != nil {
		return err
	}

	publish(ctx, h.eventBus, h.logger, events.NewInstructionUpdated(cmd.RecipeID, cmd.InstructionID, cmd.UserID, order, time.Now().UTC()))
	return nil
}

// DeleteInstructionHandler removes a step
type DeleteInstructionHandler struct {
	table    ports.RecipeTable
	locker   ports.RecipeLocker
	eventBus ports.EventBus
	metrics  OrderingMetrics
	compact  bool
	logger   *zap.Logger
}

// NewDeleteInstructionHandler creates a new handler instance. With compact set
// the steps after the removed one move down by one.
func NewDeleteInstructionHandler(
	table ports.RecipeTable,
	locker ports.RecipeLocker,
	eventBus ports.EventBus,
	metrics OrderingMetrics,
	compact bool,
	logger *zap.Logger,
) *DeleteInstructionHandler {
	if metrics == nil {
		metrics = nopOrderingMetrics{}
	}
	return &DeleteInstructionHandler{
		table:    table,
		locker:   locker,
		eventBus: eventBus,
		metrics:  metrics,
		compact:  compact,
		logger:   logger,
	}
}

// Handle deletes the step with an ownership condition, then closes the gap
func (h *DeleteInstructionHandler) Handle(ctx context.Context, cmd commands.DeleteInstructionCommand) error {
	key := entities.Key{RecipeID: cmd.RecipeID, ItemID: cmd.InstructionID}

	var shifted int
	err := withRecipeLock(ctx, h.locker, h.logger, cmd.RecipeID, func() error {
		if _, err := loadOwned(ctx, h.table, key, entities.EntityTypeInstruction, cmd.UserID); err != nil {
			return err
		}

		var plan services.DeletePlan
		if h.compact {
			existing, err := loadInstructions(ctx, h.table, cmd.RecipeID, cmd.UserID)
			if err != nil {
				return err
			}
			if plan, err = services.PlanDelete(existing, cmd.InstructionID); err != nil {
				return err
			}
		}

		if err := h.table.Delete(ctx, key, ports.MustBeOwnedBy(cmd.UserID, entities.EntityTypeInstruction)); err != nil {
			return storeError("delete", "instruction", err)
		}

		if len(plan.Shifted) > 0 {
			if err := h.table.BatchWrite(ctx, entities.InstructionRows(plan.Shifted), nil); err != nil {
				return storeError("batch_write", "instructions", err)
			}
		}
		shifted = len(plan.Shifted)
		return nil
	})
	if err != nil {
		return err
	}

	h.metrics.ObserveOrdering("delete", shifted)
	publish(ctx, h.eventBus, h.logger, events.NewInstructionDeleted(cmd.RecipeID, cmd.InstructionID, cmd.UserID, shifted, time.Now().UTC()))
	return nil
}

// ReorderInstructionsHandler applies a caller-supplied set of orders
type ReorderInstructionsHandler struct {
	table    ports.RecipeTable
	locker   ports.RecipeLocker
	eventBus ports.EventBus
	metrics  OrderingMetrics
	logger   *zap.Logger
}

// NewReorderInstructionsHandler creates a new handler instance
func NewReorderInstructionsHandler(
	table ports.RecipeTable,
	locker ports.RecipeLocker,
	eventBus ports.EventBus,
	metrics OrderingMetrics,
	logger *zap.Logger,
) *ReorderInstructionsHandler {
	if metrics == nil {
		metrics = nopOrderingMetrics{}
	}
	return &ReorderInstructionsHandler{
		table:    table,
		locker:   locker,
		eventBus: eventBus,
		metrics:  metrics,
		logger:   logger,
	}
}

// Handle writes each changed step with its own conditional put. The caller is
// trusted to send a permutation; the first failed write stops the run and
// earlier writes stay in place.
func (h *ReorderInstructionsHandler) Handle(ctx context.Context, cmd commands.ReorderInstructionsCommand) error {
	moves := make([]services.Move, 0, len(cmd.Moves))
	for _, m := range cmd.Moves {
		moves = append(moves, services.Move{ItemID: m.ItemID, Order: m.Order})
	}

	var written int
	err := withRecipeLock(ctx, h.locker, h.logger, cmd.RecipeID, func() error {
		header := entities.Key{RecipeID: cmd.RecipeID, ItemID: cmd.RecipeID}
		if _, err := loadOwned(ctx, h.table, header, entities.EntityTypeRecipe, cmd.UserID); err != nil {
			return err
		}

		existing, err := loadInstructions(ctx, h.table, cmd.RecipeID, cmd.UserID)
		if err != nil {
			return err
		}

		plan, err := services.PlanReorder(existing, moves)
		if err != nil {
			return err
		}

		for i := range plan.Updated {
			row := plan.Updated[i]
			if err := h.table.Put(ctx, &row, ports.MustBeOwnedBy(cmd.UserID, entities.EntityTypeInstruction)); err != nil {
				return storeError("put", "instruction", err)
			}
			written++
		}

		if ce := h.logger.Check(zap.DebugLevel, "Instructions reordered"); ce != nil {
			ce.Write(
				zap.String("recipeId", cmd.RecipeID),
				zap.Int("written", written),
				zap.Bool("dense", services.IsDense(applyMoves(existing, plan.Updated))),
			)
		}
		return nil
	})
	if err != nil {
		return err
	}

	h.metrics.ObserveOrdering("reorder", written)
	publish(ctx, h.eventBus, h.logger, events.NewInstructionsReordered(cmd.RecipeID, cmd.UserID, written, time.Now().UTC()))
	return nil
}

func applyMoves(existing, updated []entities.Instruction) []entities.Instruction {
	byID := make(map[string]int, len(updated))
	for _, u := range updated {
		byID[u.ItemID] = u.Order
	}
	out := make([]entities.Instruction, len(existing))
	for i, row := range existing {
		if order, ok := byID[row.ItemID]; ok {
			row.Order = order
		}
		out[i] = row
	}
	return out
}
