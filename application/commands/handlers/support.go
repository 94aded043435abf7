package handlers

import (
	"context"
	"errors"
	"fmt"

	"recipes-backend/application/ports"
	"recipes-backend/domain/core/entities"
	"recipes-backend/domain/events"
	"recipes-backend/pkg/common"
	pkgerrors "recipes-backend/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderingMetrics observes instruction order maintenance
type OrderingMetrics interface {
	ObserveOrdering(operation string, rowsWritten int)
}

type nopOrderingMetrics struct{}

func (nopOrderingMetrics) ObserveOrdering(string, int) {}

// storeError translates port errors into application errors
func storeError(op, resource string, err error) error {
	var batchErr *ports.BatchWriteError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &batchErr):
		return pkgerrors.NewStorageError(op, err).WithDetails(map[string]interface{}{
			"attempted":   batchErr.Attempted,
			"unprocessed": len(batchErr.Unprocessed),
		})
	case pkgerrors.IsAppError(err):
		return err
	case errors.Is(err, ports.ErrNotFound):
		return pkgerrors.NewNotFoundError(resource)
	case errors.Is(err, ports.ErrConditionFailed):
		return pkgerrors.NewPreconditionFailedError(fmt.Sprintf("%s was changed or removed by another request", resource)).WithCause(err)
	case errors.Is(err, ports.ErrLockHeld):
		return pkgerrors.NewConflictError("recipe is being modified by another request").WithCause(err)
	default:
		return pkgerrors.NewStorageError(op, err)
	}
}

// loadOwned fetches a row and checks it is of the expected kind and owned by
// userID. A missing row or one of another kind is NotFound; another owner is
// Forbidden.
func loadOwned(ctx context.Context, table ports.RecipeTable, key entities.Key, kind entities.EntityType, userID string) (entities.Row, error) {
	resource := resourceName(kind)

	row, err := table.Get(ctx, key)
	if err != nil {
		return nil, storeError("get", resource, err)
	}
	if row.Kind() != kind {
		return nil, pkgerrors.NewNotFoundError(resource)
	}
	if row.Owner() != userID {
		return nil, pkgerrors.NewForbiddenError(fmt.Sprintf("%s belongs to another user", resource))
	}
	return row, nil
}

// requireParent checks that the recipe header exists and is owned by userID
// before a child row is created. A missing header is PreconditionFailed.
func requireParent(ctx context.Context, table ports.RecipeTable, recipeID, userID string) error {
	_, err := loadOwned(ctx, table, entities.Key{RecipeID: recipeID, ItemID: recipeID}, entities.EntityTypeRecipe, userID)
	if pkgerrors.IsNotFound(err) {
		return pkgerrors.NewPreconditionFailedError(fmt.Sprintf("recipe %s does not exist", recipeID))
	}
	return err
}

// loadInstructions returns the instructions of a recipe owned by userID
func loadInstructions(ctx context.Context, table ports.RecipeTable, recipeID, userID string) ([]entities.Instruction, error) {
	rows, err := table.QueryPartition(ctx, recipeID, ports.RowFilter{
		EntityType: entities.EntityTypeInstruction,
		UserID:     userID,
	})
	if err != nil {
		return nil, storeError("query", "instructions", err)
	}

	out := make([]entities.Instruction, 0, len(rows))
	for _, row := range rows {
		err := entities.MatchRow(row,
			func(r *entities.Recipe) error {
				return pkgerrors.NewInternalError(fmt.Sprintf("instruction query for %s returned a recipe header", recipeID))
			},
			func(i *entities.Ingredient) error {
				return pkgerrors.NewInternalError(fmt.Sprintf("instruction query for %s returned ingredient %s", recipeID, i.ItemID))
			},
			func(i *entities.Instruction) error {
				out = append(out, *i)
				return nil
			},
		)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// withRecipeLock runs fn while holding the write lock of recipeID
func withRecipeLock(ctx context.Context, locker ports.RecipeLocker, logger *zap.Logger, recipeID string, fn func() error) error {
	owner, ok := common.GetRequestID(ctx)
	if !ok || owner == "" {
		owner = uuid.New().String()
	}

	lease, err := locker.Acquire(ctx, recipeID, owner)
	if err != nil {
		return storeError("lock", "recipe", err)
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to release recipe lock",
				zap.String("recipeId", recipeID),
				zap.Error(err),
			)
		}
	}()

	return fn()
}

// publish sends events without failing the request; the write already happened
func publish(ctx context.Context, bus ports.EventBus, logger *zap.Logger, evts ...events.DomainEvent) {
	if bus == nil || len(evts) == 0 {
		return
	}
	if err := bus.PublishBatch(ctx, evts); err != nil {
		logger.Warn("Failed to publish domain events",
			zap.Int("count", len(evts)),
			zap.String("recipeId", evts[0].GetAggregateID()),
			zap.Error(err),
		)
	}
}

func resourceName(kind entities.EntityType) string {
	switch kind {
	case entities.EntityTypeRecipe:
		return "recipe"
	case entities.EntityTypeIngredient:
		return "ingredient"
	default:
		return "instruction"
	}
}
