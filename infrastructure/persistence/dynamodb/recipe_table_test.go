package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"recipes-backend/application/ports"
	"recipes-backend/domain/core/entities"
	pkgerrors "recipes-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestTable(client *fakeClient) *RecipeTable {
	return NewRecipeTable(client, TableConfig{TableName: "recipes"}, zap.NewNop())
}

func TestItems_RoundTrip(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		row  entities.Row
	}{
		{
			name: "recipe header",
			row: &entities.Recipe{
				RecipeID: "r-1", UserID: "alice", Title: "Soup", Description: "Warm",
				SearchName: "soup", CookTime: 30, PrepTime: 10,
				ImageURLs: []string{"https://cdn/r-1/a.png"}, CreatedAt: created, UpdatedAt: created,
			},
		},
		{
			name: "ingredient",
			row:  &entities.Ingredient{RecipeID: "r-1", ItemID: "i-1", UserID: "alice", Title: "Leek", Quantity: 1.5, Units: "pcs"},
		},
		{
			name: "instruction",
			row:  &entities.Instruction{RecipeID: "r-1", ItemID: "s-1", UserID: "alice", Step: "Chop", Order: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			av, err := marshalRow(tt.row)
			require.NoError(t, err)
			assert.Equal(t, &types.AttributeValueMemberS{Value: string(tt.row.Kind())}, av[attrEntityType])

			back, err := unmarshalRow(av)
			require.NoError(t, err)
			assert.Equal(t, tt.row, back)
		})
	}
}

func TestItems_OnlyInstructionsStoreOrder(t *testing.T) {
	tests := []struct {
		name     string
		row      entities.Row
		hasOrder bool
	}{
		{"recipe header", &entities.Recipe{RecipeID: "r-1", UserID: "alice", Title: "Soup"}, false},
		{"ingredient", &entities.Ingredient{RecipeID: "r-1", ItemID: "i-1", UserID: "alice", Title: "Leek"}, false},
		{"instruction", &entities.Instruction{RecipeID: "r-1", ItemID: "s-1", UserID: "alice", Step: "Chop", Order: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			av, err := marshalRow(tt.row)
			require.NoError(t, err)

			order, ok := av["order"]
			assert.Equal(t, tt.hasOrder, ok)
			if tt.hasOrder {
				assert.Equal(t, &types.AttributeValueMemberN{Value: "1"}, order)
			}
			assert.Equal(t, &types.AttributeValueMemberS{Value: tt.row.Key().ItemID}, av[attrItemID])
		})
	}
}

func TestItems_UnknownEntityType(t *testing.T) {
	_, err := unmarshalRow(map[string]types.AttributeValue{
		attrRecipeID:   &types.AttributeValueMemberS{Value: "r-1"},
		attrItemID:     &types.AttributeValueMemberS{Value: "x"},
		attrEntityType: &types.AttributeValueMemberS{Value: "COMMENT"},
	})
	assert.Error(t, err)
}

func TestRecipeTable_PutConditionFailed(t *testing.T) {
	// Arrange
	client := &fakeClient{putItem: func(*dynamodb.PutItemInput) error {
		return &types.ConditionalCheckFailedException{Message: aws.String("exists")}
	}}
	table := newTestTable(client)

	// Act
	err := table.Put(context.Background(), &entities.Recipe{RecipeID: "r-1", UserID: "alice", Title: "Soup"}, ports.MustNotExist())

	// Assert
	assert.ErrorIs(t, err, ports.ErrConditionFailed)
	require.Len(t, client.puts, 1)
	assert.Contains(t, aws.ToString(client.puts[0].ConditionExpression), "attribute_not_exists")
	assert.Equal(t, "recipes", aws.ToString(client.puts[0].TableName))
}

func TestRecipeTable_PutUnconditional(t *testing.T) {
	client := &fakeClient{}
	table := newTestTable(client)

	require.NoError(t, table.Put(context.Background(), &entities.Instruction{RecipeID: "r-1", ItemID: "s-1", UserID: "u", Step: "A", Order: 1}, ports.Condition{}))
	require.Len(t, client.puts, 1)
	assert.Nil(t, client.puts[0].ConditionExpression)
}

func TestRecipeTable_PutChildTransaction(t *testing.T) {
	client := &fakeClient{}
	table := newTestTable(client)
	child := &entities.Ingredient{RecipeID: "r-1", ItemID: "i-1", UserID: "alice", Title: "Salt"}

	require.NoError(t, table.PutChild(context.Background(), child))

	require.Len(t, client.transact, 1)
	items := client.transact[0].TransactItems
	require.Len(t, items, 2)
	require.NotNil(t, items[0].ConditionCheck)
	assert.Equal(t, keyAttributes(entities.Key{RecipeID: "r-1", ItemID: "r-1"}), items[0].ConditionCheck.Key)
	assert.Contains(t, aws.ToString(items[0].ConditionCheck.ConditionExpression), "attribute_exists")
	require.NotNil(t, items[1].Put)
	assert.Contains(t, aws.ToString(items[1].Put.ConditionExpression), "attribute_not_exists")
}

func TestRecipeTable_PutChildCanceled(t *testing.T) {
	client := &fakeClient{transactErr: &types.TransactionCanceledException{
		Message: aws.String("canceled"),
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("ConditionalCheckFailed")},
			{Code: aws.String("None")},
		},
	}}
	table := newTestTable(client)

	err := table.PutChild(context.Background(), &entities.Ingredient{RecipeID: "r-1", ItemID: "i-1", UserID: "bob", Title: "Salt"})
	assert.ErrorIs(t, err, ports.ErrConditionFailed)
}

func TestRecipeTable_PutChildRejectsHeader(t *testing.T) {
	table := newTestTable(&fakeClient{})
	err := table.PutChild(context.Background(), &entities.Recipe{RecipeID: "r-1", UserID: "alice"})
	assert.Error(t, err)
}

func TestRecipeTable_Get(t *testing.T) {
	t.Run("missing row", func(t *testing.T) {
		table := newTestTable(&fakeClient{})
		_, err := table.Get(context.Background(), entities.Key{RecipeID: "r-1", ItemID: "r-1"})
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("consistent read", func(t *testing.T) {
		var seen *dynamodb.GetItemInput
		stored, err := marshalRow(&entities.Instruction{RecipeID: "r-1", ItemID: "s-1", UserID: "u", Step: "A", Order: 1})
		require.NoError(t, err)
		client := &fakeClient{getItem: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			seen = in
			return &dynamodb.GetItemOutput{Item: stored}, nil
		}}

		row, err := newTestTable(client).Get(context.Background(), entities.Key{RecipeID: "r-1", ItemID: "s-1"})
		require.NoError(t, err)
		assert.Equal(t, entities.EntityTypeInstruction, row.Kind())
		assert.True(t, aws.ToBool(seen.ConsistentRead))
	})

	t.Run("service failure", func(t *testing.T) {
		client := &fakeClient{getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			return nil, &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")}
		}}
		_, err := newTestTable(client).Get(context.Background(), entities.Key{RecipeID: "r-1", ItemID: "r-1"})
		assert.True(t, pkgerrors.IsStorageFailure(err))
	})
}

func TestRecipeTable_QueryPartitionFollowsPages(t *testing.T) {
	first, _ := marshalRow(&entities.Ingredient{RecipeID: "r-1", ItemID: "a", UserID: "u", Title: "Leek"})
	second, _ := marshalRow(&entities.Instruction{RecipeID: "r-1", ItemID: "b", UserID: "u", Step: "Chop", Order: 1})

	client := &fakeClient{query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
		if in.ExclusiveStartKey == nil {
			return &dynamodb.QueryOutput{
				Items:            []map[string]types.AttributeValue{first},
				LastEvaluatedKey: keyAttributes(entities.Key{RecipeID: "r-1", ItemID: "a"}),
			}, nil
		}
		return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{second}}, nil
	}}

	rows, err := newTestTable(client).QueryPartition(context.Background(), "r-1", ports.RowFilter{EntityType: entities.EntityTypeInstruction})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].Key().ItemID)
	assert.Equal(t, "b", rows[1].Key().ItemID)

	require.Len(t, client.queries, 2)
	assert.NotNil(t, client.queries[0].FilterExpression)
	assert.True(t, aws.ToBool(client.queries[0].ConsistentRead))
}

func TestRecipeTable_DeleteConditionFailed(t *testing.T) {
	client := &fakeClient{deleteItem: func(*dynamodb.DeleteItemInput) error {
		return &types.ConditionalCheckFailedException{Message: aws.String("owner")}
	}}
	err := newTestTable(client).Delete(context.Background(),
		entities.Key{RecipeID: "r-1", ItemID: "i-1"},
		ports.MustBeOwnedBy("bob", entities.EntityTypeIngredient))

	assert.ErrorIs(t, err, ports.ErrConditionFailed)
	require.Len(t, client.deletes, 1)
	assert.Len(t, client.deletes[0].ExpressionAttributeValues, 2)
}

func instructions(n int) []entities.Row {
	rows := make([]entities.Row, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, &entities.Instruction{
			RecipeID: "r-1", ItemID: fmt.Sprintf("s-%02d", i), UserID: "u", Step: "step", Order: i + 1,
		})
	}
	return rows
}

func TestRecipeTable_BatchWriteChunks(t *testing.T) {
	client := &fakeClient{}
	table := newTestTable(client)

	err := table.BatchWrite(context.Background(), instructions(30), []entities.Key{{RecipeID: "r-1", ItemID: "old"}})
	require.NoError(t, err)

	require.Len(t, client.batches, 2)
	sizes := []int{len(client.batches[0].RequestItems["recipes"]), len(client.batches[1].RequestItems["recipes"])}
	assert.ElementsMatch(t, []int{25, 6}, sizes)
}

func TestRecipeTable_BatchWriteEmpty(t *testing.T) {
	client := &fakeClient{}
	require.NoError(t, newTestTable(client).BatchWrite(context.Background(), nil, nil))
	assert.Empty(t, client.batches)
}

func TestRecipeTable_BatchWriteUnprocessed(t *testing.T) {
	rows := instructions(3)
	client := &fakeClient{batchWrite: func(in *dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error) {
		reqs := in.RequestItems["recipes"]
		return &dynamodb.BatchWriteItemOutput{
			UnprocessedItems: map[string][]types.WriteRequest{"recipes": reqs[1:2]},
		}, nil
	}}

	err := newTestTable(client).BatchWrite(context.Background(), rows, nil)

	var batchErr *ports.BatchWriteError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, 3, batchErr.Attempted)
	assert.Equal(t, []entities.Key{rows[1].Key()}, batchErr.Unprocessed)
	assert.Len(t, client.batches, 1, "unprocessed items are not retried")
}

func TestRecipeTable_BatchWriteRequestFailure(t *testing.T) {
	rows := instructions(27)
	client := &fakeClient{batchWrite: func(in *dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error) {
		if len(in.RequestItems["recipes"]) == 2 {
			return nil, errors.New("connection reset")
		}
		return &dynamodb.BatchWriteItemOutput{}, nil
	}}

	err := newTestTable(client).BatchWrite(context.Background(), rows, nil)

	var batchErr *ports.BatchWriteError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, []entities.Key{rows[25].Key(), rows[26].Key()}, batchErr.Unprocessed)
	assert.Error(t, batchErr.Cause)
}

func TestRecipeTable_ListRecipesPaging(t *testing.T) {
	soup, _ := marshalRow(&entities.Recipe{RecipeID: "a", UserID: "alice", Title: "Tomato Soup", SearchName: "tomato soup"})
	stew, _ := marshalRow(&entities.Recipe{RecipeID: "b", UserID: "bob", Title: "Soup Stew", SearchName: "soup stew"})
	lastKey := map[string]types.AttributeValue{
		attrRecipeID:   &types.AttributeValueMemberS{Value: "a"},
		attrItemID:     &types.AttributeValueMemberS{Value: "a"},
		attrEntityType: &types.AttributeValueMemberS{Value: "RECIPE"},
	}

	client := &fakeClient{query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
		if in.ExclusiveStartKey == nil {
			return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{soup}, LastEvaluatedKey: lastKey}, nil
		}
		return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{stew}}, nil
	}}
	table := newTestTable(client)

	page, err := table.ListRecipes(context.Background(), ports.ListQuery{Search: "SOUP", Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Recipes, 1)
	assert.Equal(t, "a", page.Recipes[0].RecipeID)
	require.NotEmpty(t, page.NextCursor)
	assert.Equal(t, "EntityTypeItemIndex", aws.ToString(client.queries[0].IndexName))
	assert.Equal(t, int32(1), aws.ToInt32(client.queries[0].Limit))
	assert.NotNil(t, client.queries[0].FilterExpression)

	page, err = table.ListRecipes(context.Background(), ports.ListQuery{Search: "soup", Limit: 1, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Recipes, 1)
	assert.Equal(t, "b", page.Recipes[0].RecipeID)
	assert.Empty(t, page.NextCursor)
	assert.Equal(t, lastKey, client.queries[1].ExclusiveStartKey)
}

func TestRecipeTable_ListRecipesBadCursor(t *testing.T) {
	_, err := newTestTable(&fakeClient{}).ListRecipes(context.Background(), ports.ListQuery{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestRecipeTable_ListUserRecipesUsesUserIndex(t *testing.T) {
	client := &fakeClient{}
	page, err := newTestTable(client).ListUserRecipes(context.Background(), ports.ListQuery{UserID: "alice"})
	require.NoError(t, err)
	assert.Empty(t, page.Recipes)
	require.Len(t, client.queries, 1)
	assert.Equal(t, "UserItemIndex", aws.ToString(client.queries[0].IndexName))
	assert.NotNil(t, client.queries[0].FilterExpression)
}

func TestRecipeTable_AppendImageURLs(t *testing.T) {
	header, _ := marshalRow(&entities.Recipe{RecipeID: "r-1", UserID: "alice", Title: "Soup", ImageURLs: []string{"https://cdn/a.png"}})

	t.Run("appends only new urls", func(t *testing.T) {
		client := &fakeClient{getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: header}, nil
		}}
		err := newTestTable(client).AppendImageURLs(context.Background(), "r-1", []string{"https://cdn/a.png", "https://cdn/b.png"})
		require.NoError(t, err)
		require.Len(t, client.updates, 1)
		assert.Contains(t, aws.ToString(client.updates[0].UpdateExpression), "list_append")
	})

	t.Run("nothing new", func(t *testing.T) {
		client := &fakeClient{getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: header}, nil
		}}
		require.NoError(t, newTestTable(client).AppendImageURLs(context.Background(), "r-1", []string{"https://cdn/a.png"}))
		assert.Empty(t, client.updates)
	})

	t.Run("missing header", func(t *testing.T) {
		err := newTestTable(&fakeClient{}).AppendImageURLs(context.Background(), "r-1", []string{"x"})
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})
}

func TestCursor_RoundTrip(t *testing.T) {
	key := map[string]types.AttributeValue{
		attrUserID: &types.AttributeValueMemberS{Value: "alice"},
		attrItemID: &types.AttributeValueMemberS{Value: "r-9"},
	}
	cursor, err := encodeCursor(key)
	require.NoError(t, err)

	back, err := decodeCursor(cursor)
	require.NoError(t, err)
	assert.Equal(t, key, back)

	_, err = encodeCursor(map[string]types.AttributeValue{"n": &types.AttributeValueMemberN{Value: "1"}})
	assert.Error(t, err)
}

func TestRecipeLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("acquire and release", func(t *testing.T) {
		client := &fakeClient{}
		locker := NewRecipeLocker(client, "recipes", time.Minute, zap.NewNop())

		lease, err := locker.Acquire(ctx, "r-1", "req-1")
		require.NoError(t, err)
		require.Len(t, client.puts, 1)
		assert.Equal(t, &types.AttributeValueMemberS{Value: "LOCK#r-1"}, client.puts[0].Item[attrRecipeID])
		_, hasKind := client.puts[0].Item[attrEntityType]
		assert.False(t, hasKind)

		require.NoError(t, lease.Release(ctx))
		require.Len(t, client.deletes, 1)
		assert.Equal(t, lockKey("r-1"), client.deletes[0].Key)
	})

	t.Run("held by another writer", func(t *testing.T) {
		client := &fakeClient{putItem: func(*dynamodb.PutItemInput) error {
			return &types.ConditionalCheckFailedException{Message: aws.String("held")}
		}}
		_, err := NewRecipeLocker(client, "recipes", time.Minute, zap.NewNop()).Acquire(ctx, "r-1", "req-2")
		assert.ErrorIs(t, err, ports.ErrLockHeld)
	})

	t.Run("release after takeover", func(t *testing.T) {
		client := &fakeClient{deleteItem: func(*dynamodb.DeleteItemInput) error {
			return &types.ConditionalCheckFailedException{Message: aws.String("gone")}
		}}
		lease, err := NewRecipeLocker(client, "recipes", time.Minute, zap.NewNop()).Acquire(ctx, "r-1", "req-1")
		require.NoError(t, err)
		assert.NoError(t, lease.Release(ctx))
	})
}
