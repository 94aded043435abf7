package handlers

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"recipes-backend/application/commands"
	"recipes-backend/application/ports"
	"recipes-backend/domain/core/entities"
	"recipes-backend/domain/services"
	"recipes-backend/infrastructure/persistence/memory"
	pkgerrors "recipes-backend/pkg/errors"
	"recipes-backend/tests/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	alice  = "alice"
	bob    = "bob"
	recipe = "r-1"
)

type fixture struct {
	table  *memory.RecipeTable
	locker *memory.RecipeLocker
	bus    *mocks.EventBus
	logger *zap.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bus := &mocks.EventBus{}
	bus.On("PublishBatch", mock.Anything, mock.Anything).Return(nil).Maybe()

	f := &fixture{
		table:  memory.NewRecipeTable(),
		locker: memory.NewRecipeLocker(10 * time.Second),
		bus:    bus,
		logger: zap.NewNop(),
	}
	f.table.Seed(&entities.Recipe{RecipeID: recipe, UserID: alice, Title: "Soup", SearchName: "soup", ImageURLs: []string{}})
	return f
}

func (f *fixture) seedSteps(orders ...int) []*entities.Instruction {
	var out []*entities.Instruction
	for _, o := range orders {
		instr := &entities.Instruction{RecipeID: recipe, ItemID: uuid.New().String(), UserID: alice, Step: "step", Order: o}
		f.table.Seed(instr)
		out = append(out, instr)
	}
	return out
}

func (f *fixture) orders(t *testing.T) map[string]int {
	t.Helper()
	rows, err := f.table.QueryPartition(context.Background(), recipe, ports.RowFilter{EntityType: entities.EntityTypeInstruction})
	require.NoError(t, err)
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Key().ItemID] = row.(*entities.Instruction).Order
	}
	return out
}

func (f *fixture) instructions(t *testing.T) []entities.Instruction {
	t.Helper()
	rows, err := f.table.QueryPartition(context.Background(), recipe, ports.RowFilter{EntityType: entities.EntityTypeInstruction})
	require.NoError(t, err)
	out := make([]entities.Instruction, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.(*entities.Instruction))
	}
	return out
}

func (f *fixture) insertHandler() *InsertInstructionHandler {
	return NewInsertInstructionHandler(f.table, f.locker, f.bus, nil, f.logger)
}

func intPtr(v int) *int { return &v }

func TestInsertInstruction_AppendToEmptyRecipe(t *testing.T) {
	// Arrange
	f := newFixture(t)
	cmd := commands.InsertInstructionCommand{InstructionID: "new", RecipeID: recipe, UserID: alice, Step: "Preheat oven"}

	// Act
	err := f.insertHandler().Handle(context.Background(), cmd)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"new": 1}, f.orders(t))
	assert.Equal(t, []memory.Mutation{{Op: "put_child", Keys: []entities.Key{{RecipeID: recipe, ItemID: "new"}}}}, f.table.Mutations())
	assert.False(t, f.locker.Held(recipe))
}

func TestInsertInstruction_CollisionShiftsExistingSteps(t *testing.T) {
	// Arrange
	f := newFixture(t)
	steps := f.seedSteps(1, 2)
	cmd := commands.InsertInstructionCommand{InstructionID: "new", RecipeID: recipe, UserID: alice, Step: "New step", Order: intPtr(1)}

	// Act
	err := f.insertHandler().Handle(context.Background(), cmd)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"new": 1, steps[0].ItemID: 2, steps[1].ItemID: 3}, f.orders(t))

	mutations := f.table.Mutations()
	require.Len(t, mutations, 1)
	assert.Equal(t, "batch_write", mutations[0].Op)
	assert.Len(t, mutations[0].Keys, 3)
}

func TestInsertInstruction_OrderBeyondEndIsClampedToAppend(t *testing.T) {
	f := newFixture(t)
	steps := f.seedSteps(1, 2, 3)
	cmd := commands.InsertInstructionCommand{InstructionID: "new", RecipeID: recipe, UserID: alice, Step: "Serve", Order: intPtr(10)}

	require.NoError(t, f.insertHandler().Handle(context.Background(), cmd))

	assert.Equal(t, map[string]int{steps[0].ItemID: 1, steps[1].ItemID: 2, steps[2].ItemID: 3, "new": 4}, f.orders(t))
	mutations := f.table.Mutations()
	require.Len(t, mutations, 1)
	assert.Equal(t, "put_child", mutations[0].Op)
}

func TestInsertInstruction_RandomInsertsStayDense(t *testing.T) {
	f := newFixture(t)
	handler := f.insertHandler()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 25; i++ {
		var order *int
		if rng.Intn(4) > 0 {
			order = intPtr(rng.Intn(i+4) - 1)
		}
		cmd := commands.InsertInstructionCommand{InstructionID: uuid.New().String(), RecipeID: recipe, UserID: alice, Step: "step", Order: order}
		require.NoError(t, handler.Handle(context.Background(), cmd))

		current := f.instructions(t)
		require.Len(t, current, i+1)
		require.True(t, services.IsDense(current), "orders not dense after insert %d", i+1)
	}
}

func TestInsertInstruction_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		recipeID string
		userID   string
		check    func(error) bool
	}{
		{name: "missing recipe", recipeID: "nope", userID: alice, check: pkgerrors.IsPreconditionFailed},
		{name: "recipe of another user", recipeID: recipe, userID: bob, check: pkgerrors.IsForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seedSteps(1)

			err := f.insertHandler().Handle(context.Background(), commands.InsertInstructionCommand{
				InstructionID: "new", RecipeID: tt.recipeID, UserID: tt.userID, Step: "x", Order: intPtr(1),
			})

			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error %v", err)
			assert.Empty(t, f.table.Mutations())
		})
	}
}

func TestInsertInstruction_PartialBatchIsStorageFailure(t *testing.T) {
	f := newFixture(t)
	f.seedSteps(1, 2)
	f.table.LimitBatch(1)

	err := f.insertHandler().Handle(context.Background(), commands.InsertInstructionCommand{
		InstructionID: "new", RecipeID: recipe, UserID: alice, Step: "x", Order: intPtr(1),
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsStorageFailure(err))
	assert.Equal(t, 2, pkgerrors.GetAppError(err).Details["unprocessed"])
	assert.False(t, f.locker.Held(recipe))
}

func TestInsertInstruction_LockHeldIsConflict(t *testing.T) {
	// Arrange
	f := newFixture(t)
	locker := &mocks.RecipeLocker{}
	locker.On("Acquire", mock.Anything, recipe, mock.Anything).Return(nil, ports.ErrLockHeld)
	handler := NewInsertInstructionHandler(f.table, locker, f.bus, nil, f.logger)

	// Act
	err := handler.Handle(context.Background(), commands.InsertInstructionCommand{
		InstructionID: "new", RecipeID: recipe, UserID: alice, Step: "x",
	})

	// Assert
	assert.True(t, pkgerrors.IsConflict(err))
	assert.Empty(t, f.table.Mutations())
	locker.AssertExpectations(t)
}

func TestInsertInstruction_ReleasesLeaseOnFailure(t *testing.T) {
	f := newFixture(t)
	lease := &mocks.Lease{}
	lease.On("Release", mock.Anything).Return(nil).Once()
	locker := &mocks.RecipeLocker{}
	locker.On("Acquire", mock.Anything, "nope", mock.Anything).Return(lease, nil)

	err := NewInsertInstructionHandler(f.table, locker, f.bus, nil, f.logger).Handle(context.Background(),
		commands.InsertInstructionCommand{InstructionID: "new", RecipeID: "nope", UserID: alice, Step: "x"})

	assert.Error(t, err)
	lease.AssertExpectations(t)
}

func TestInsertInstruction_PublishFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	bus := &mocks.EventBus{}
	bus.On("PublishBatch", mock.Anything, mock.Anything).Return(errors.New("bus down"))
	handler := NewInsertInstructionHandler(f.table, f.locker, bus, nil, f.logger)

	err := handler.Handle(context.Background(), commands.InsertInstructionCommand{
		InstructionID: "new", RecipeID: recipe, UserID: alice, Step: "x",
	})

	assert.NoError(t, err)
	bus.AssertNumberOfCalls(t, "PublishBatch", 1)
}

type recordingMetrics struct {
	ops []string
}

func (r *recordingMetrics) ObserveOrdering(op string, rows int) { r.ops = append(r.ops, op) }

func TestDeleteInstruction(t *testing.T) {
	t.Run("compacts later steps", func(t *testing.T) {
		f := newFixture(t)
		steps := f.seedSteps(1, 2, 3)
		metrics := &recordingMetrics{}
		handler := NewDeleteInstructionHandler(f.table, f.locker, f.bus, metrics, true, f.logger)

		err := handler.Handle(context.Background(), commands.DeleteInstructionCommand{
			InstructionID: steps[0].ItemID, RecipeID: recipe, UserID: alice,
		})

		require.NoError(t, err)
		assert.Equal(t, map[string]int{steps[1].ItemID: 1, steps[2].ItemID: 2}, f.orders(t))
		assert.Equal(t, []string{"delete"}, metrics.ops)
	})

	t.Run("leaves a gap without compaction", func(t *testing.T) {
		f := newFixture(t)
		steps := f.seedSteps(1, 2, 3)
		handler := NewDeleteInstructionHandler(f.table, f.locker, f.bus, nil, false, f.logger)

		err := handler.Handle(context.Background(), commands.DeleteInstructionCommand{
			InstructionID: steps[1].ItemID, RecipeID: recipe, UserID: alice,
		})

		require.NoError(t, err)
		assert.Equal(t, map[string]int{steps[0].ItemID: 1, steps[2].ItemID: 3}, f.orders(t))
		assert.Len(t, f.table.Mutations(), 1)
	})

	t.Run("append after an uncompacted delete takes the next free order", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		steps := f.seedSteps(1, 2, 3)
		deleter := NewDeleteInstructionHandler(f.table, f.locker, f.bus, nil, false, f.logger)
		require.NoError(t, deleter.Handle(context.Background(), commands.DeleteInstructionCommand{
			InstructionID: steps[1].ItemID, RecipeID: recipe, UserID: alice,
		}))
		f.table.ResetMutations()

		// Act
		err := f.insertHandler().Handle(context.Background(), commands.InsertInstructionCommand{
			InstructionID: "new", RecipeID: recipe, UserID: alice, Step: "Serve",
		})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, map[string]int{steps[0].ItemID: 1, steps[2].ItemID: 3, "new": 4}, f.orders(t))
		mutations := f.table.Mutations()
		require.Len(t, mutations, 1)
		assert.Equal(t, "put_child", mutations[0].Op)
	})

	t.Run("another user's step", func(t *testing.T) {
		f := newFixture(t)
		steps := f.seedSteps(1, 2)
		handler := NewDeleteInstructionHandler(f.table, f.locker, f.bus, nil, true, f.logger)

		err := handler.Handle(context.Background(), commands.DeleteInstructionCommand{
			InstructionID: steps[0].ItemID, RecipeID: recipe, UserID: bob,
		})

		assert.True(t, pkgerrors.IsForbidden(err))
		assert.Empty(t, f.table.Mutations())
	})

	t.Run("unknown step", func(t *testing.T) {
		f := newFixture(t)
		handler := NewDeleteInstructionHandler(f.table, f.locker, f.bus, nil, true, f.logger)

		err := handler.Handle(context.Background(), commands.DeleteInstructionCommand{
			InstructionID: "missing", RecipeID: recipe, UserID: alice,
		})

		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestUpdateInstruction_KeepsOrder(t *testing.T) {
	f := newFixture(t)
	steps := f.seedSteps(1, 2)
	handler := NewUpdateInstructionHandler(f.table, f.locker, f.bus, f.logger)

	err := handler.Handle(context.Background(), commands.UpdateInstructionCommand{
		InstructionID: steps[1].ItemID, RecipeID: recipe, UserID: alice, Step: "  Stir well  ",
	})
	require.NoError(t, err)

	row, err := f.table.Get(context.Background(), steps[1].Key())
	require.NoError(t, err)
	assert.Equal(t, "Stir well", row.(*entities.Instruction).Step)
	assert.Equal(t, 2, row.(*entities.Instruction).Order)

	err = handler.Handle(context.Background(), commands.UpdateInstructionCommand{
		InstructionID: recipe, RecipeID: recipe, UserID: alice, Step: "header is not a step",
	})
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestReorderInstructions(t *testing.T) {
	t.Run("applies moves", func(t *testing.T) {
		f := newFixture(t)
		steps := f.seedSteps(1, 2, 3)
		handler := NewReorderInstructionsHandler(f.table, f.locker, f.bus, nil, f.logger)

		err := handler.Handle(context.Background(), commands.ReorderInstructionsCommand{
			RecipeID: recipe,
			UserID:   alice,
			Moves: []commands.InstructionMove{
				{ItemID: steps[0].ItemID, Order: 3},
				{ItemID: steps[1].ItemID, Order: 2},
				{ItemID: steps[2].ItemID, Order: 1},
			},
		})

		require.NoError(t, err)
		assert.Equal(t, map[string]int{steps[0].ItemID: 3, steps[1].ItemID: 2, steps[2].ItemID: 1}, f.orders(t))
		assert.Len(t, f.table.Mutations(), 2, "unchanged steps are not rewritten")
	})

	t.Run("unknown step", func(t *testing.T) {
		f := newFixture(t)
		f.seedSteps(1)
		handler := NewReorderInstructionsHandler(f.table, f.locker, f.bus, nil, f.logger)

		err := handler.Handle(context.Background(), commands.ReorderInstructionsCommand{
			RecipeID: recipe, UserID: alice,
			Moves: []commands.InstructionMove{{ItemID: "ghost", Order: 1}},
		})

		assert.True(t, pkgerrors.IsNotFound(err))
		assert.Empty(t, f.table.Mutations())
	})

	t.Run("another user's recipe", func(t *testing.T) {
		f := newFixture(t)
		steps := f.seedSteps(1, 2)
		handler := NewReorderInstructionsHandler(f.table, f.locker, f.bus, nil, f.logger)

		err := handler.Handle(context.Background(), commands.ReorderInstructionsCommand{
			RecipeID: recipe, UserID: bob,
			Moves: []commands.InstructionMove{{ItemID: steps[0].ItemID, Order: 2}},
		})

		assert.True(t, pkgerrors.IsForbidden(err))
		assert.Empty(t, f.table.Mutations())
	})
}

func TestDeleteIngredient_OtherUserIsForbiddenWithoutWrites(t *testing.T) {
	// Arrange
	f := newFixture(t)
	ingredient := &entities.Ingredient{RecipeID: recipe, ItemID: "i-1", UserID: alice, Title: "Leek", Quantity: 2}
	f.table.Seed(ingredient)
	handler := NewDeleteIngredientHandler(f.table, f.bus, f.logger)

	// Act
	err := handler.Handle(context.Background(), commands.DeleteIngredientCommand{
		IngredientID: "i-1", RecipeID: recipe, UserID: bob,
	})

	// Assert
	assert.True(t, pkgerrors.IsForbidden(err))
	assert.Empty(t, f.table.Mutations())
	_, err = f.table.Get(context.Background(), ingredient.Key())
	assert.NoError(t, err)
}

func TestIngredientLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	create := NewCreateIngredientHandler(f.table, f.bus, f.logger)
	require.NoError(t, create.Handle(ctx, commands.CreateIngredientCommand{
		IngredientID: "i-1", RecipeID: recipe, UserID: alice, Title: " Leek ", Quantity: 1.5, Units: "pcs",
	}))

	err := create.Handle(ctx, commands.CreateIngredientCommand{
		IngredientID: "i-2", RecipeID: "nope", UserID: alice, Title: "Salt",
	})
	assert.True(t, pkgerrors.IsPreconditionFailed(err))

	update := NewUpdateIngredientHandler(f.table, f.bus, f.logger)
	require.NoError(t, update.Handle(ctx, commands.UpdateIngredientCommand{
		IngredientID: "i-1", RecipeID: recipe, UserID: alice, Title: "Leeks", Quantity: 2, Units: "pcs",
	}))
	err = update.Handle(ctx, commands.UpdateIngredientCommand{
		IngredientID: "i-1", RecipeID: recipe, UserID: bob, Title: "Mine", Quantity: 1,
	})
	assert.True(t, pkgerrors.IsForbidden(err))

	row, err := f.table.Get(ctx, entities.Key{RecipeID: recipe, ItemID: "i-1"})
	require.NoError(t, err)
	assert.Equal(t, "Leeks", row.(*entities.Ingredient).Title)

	require.NoError(t, NewDeleteIngredientHandler(f.table, f.bus, f.logger).Handle(ctx, commands.DeleteIngredientCommand{
		IngredientID: "i-1", RecipeID: recipe, UserID: alice,
	}))
	_, err = f.table.Get(ctx, entities.Key{RecipeID: recipe, ItemID: "i-1"})
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestCreateRecipe_WithNestedRows(t *testing.T) {
	f := newFixture(t)
	handler := NewCreateRecipeHandler(f.table, f.bus, f.logger)

	err := handler.Handle(context.Background(), commands.CreateRecipeCommand{
		RecipeID: "r-2",
		UserID:   alice,
		Title:    "  Pancakes ",
		CookTime: 10,
		Ingredients: []commands.IngredientInput{
			{Title: "Flour", Quantity: 200, Units: "g"},
			{Title: "Milk", Quantity: 0.3, Units: "l"},
		},
		Instructions: []commands.InstructionInput{
			{Step: "Fry", Order: 0},
			{Step: "Mix", Order: 1},
		},
	})
	require.NoError(t, err)

	rows, err := f.table.QueryPartition(context.Background(), "r-2", ports.RowFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 5)

	header, err := f.table.Get(context.Background(), entities.Key{RecipeID: "r-2", ItemID: "r-2"})
	require.NoError(t, err)
	assert.Equal(t, "Pancakes", header.(*entities.Recipe).Title)
	assert.Equal(t, "pancakes", header.(*entities.Recipe).SearchName)

	steps := map[string]int{}
	for _, row := range rows {
		if instr, ok := row.(*entities.Instruction); ok {
			steps[instr.Step] = instr.Order
		}
	}
	assert.Equal(t, map[string]int{"Mix": 1, "Fry": 2}, steps)

	err = handler.Handle(context.Background(), commands.CreateRecipeCommand{RecipeID: "r-2", UserID: bob, Title: "Dup"})
	assert.True(t, pkgerrors.IsPreconditionFailed(err))
}

func TestUpdateRecipe(t *testing.T) {
	f := newFixture(t)
	handler := NewUpdateRecipeHandler(f.table, f.bus, f.logger)

	err := handler.Handle(context.Background(), commands.UpdateRecipeCommand{RecipeID: recipe, UserID: bob, Title: "Stolen"})
	assert.True(t, pkgerrors.IsForbidden(err))
	assert.Empty(t, f.table.Mutations())

	require.NoError(t, handler.Handle(context.Background(), commands.UpdateRecipeCommand{
		RecipeID: recipe, UserID: alice, Title: "Leek Soup", PrepTime: 5,
	}))
	row, err := f.table.Get(context.Background(), entities.Key{RecipeID: recipe, ItemID: recipe})
	require.NoError(t, err)
	assert.Equal(t, "leek soup", row.(*entities.Recipe).SearchName)
	assert.Equal(t, 5, row.(*entities.Recipe).PrepTime)
}

func TestDeleteRecipe_Cascades(t *testing.T) {
	f := newFixture(t)
	f.seedSteps(1, 2)
	f.table.Seed(&entities.Ingredient{RecipeID: recipe, ItemID: "i-1", UserID: alice, Title: "Leek"})
	handler := NewDeleteRecipeHandler(f.table, f.locker, f.bus, f.logger)

	err := handler.Handle(context.Background(), commands.DeleteRecipeCommand{RecipeID: recipe, UserID: bob})
	assert.True(t, pkgerrors.IsForbidden(err))
	assert.Empty(t, f.table.Mutations())

	require.NoError(t, handler.Handle(context.Background(), commands.DeleteRecipeCommand{RecipeID: recipe, UserID: alice}))
	rows, err := f.table.QueryPartition(context.Background(), recipe, ports.RowFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)

	mutations := f.table.Mutations()
	require.Len(t, mutations, 1)
	assert.Len(t, mutations[0].Keys, 4)
}

func TestAttachRecipeImages(t *testing.T) {
	f := newFixture(t)
	handler := NewAttachRecipeImagesHandler(f.table, f.bus, f.logger)

	require.NoError(t, handler.Handle(context.Background(), commands.AttachRecipeImagesCommand{
		RecipeID: recipe, URLs: []string{"https://img.example.com/r-1/a.png"},
	}))
	err := handler.Handle(context.Background(), commands.AttachRecipeImagesCommand{
		RecipeID: "gone", URLs: []string{"https://img.example.com/gone/a.png"},
	})
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestStoreError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want pkgerrors.ErrorType
	}{
		{name: "not found", err: ports.ErrNotFound, want: pkgerrors.ErrorTypeNotFound},
		{name: "condition", err: ports.ErrConditionFailed, want: pkgerrors.ErrorTypePreconditionFailed},
		{name: "lock", err: ports.ErrLockHeld, want: pkgerrors.ErrorTypeConflict},
		{name: "batch", err: &ports.BatchWriteError{Attempted: 2, Unprocessed: []entities.Key{{RecipeID: "r", ItemID: "i"}}}, want: pkgerrors.ErrorTypeStorageFailure},
		{name: "opaque", err: errors.New("timeout"), want: pkgerrors.ErrorTypeStorageFailure},
		{name: "already translated", err: pkgerrors.NewForbiddenError(""), want: pkgerrors.ErrorTypeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, pkgerrors.IsType(storeError("op", "thing", tt.err), tt.want))
		})
	}
}
