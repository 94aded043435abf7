package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"recipes-backend/application/ports"
	"recipes-backend/domain/core/entities"
	pkgerrors "recipes-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// maxBatchSize is the BatchWriteItem request limit
	maxBatchSize = 25
	// maxConcurrentBatches bounds the chunks in flight for one BatchWrite
	maxConcurrentBatches = 4
)

// RecipeTable implements ports.RecipeTable on DynamoDB
type RecipeTable struct {
	client Client
	config TableConfig
	logger *zap.Logger
}

// NewRecipeTable creates a table accessor
func NewRecipeTable(client Client, config TableConfig, logger *zap.Logger) *RecipeTable {
	if config.UserIndexName == "" {
		config.UserIndexName = "UserItemIndex"
	}
	if config.EntityTypeIndexName == "" {
		config.EntityTypeIndexName = "EntityTypeItemIndex"
	}
	return &RecipeTable{
		client: client,
		config: config,
		logger: logger,
	}
}

// Put writes a row if cond holds
func (t *RecipeTable) Put(ctx context.Context, row entities.Row, cond ports.Condition) error {
	item, err := marshalRow(row)
	if err != nil {
		return err
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(t.config.TableName),
		Item:      item,
	}
	if c, ok := conditionFor(cond); ok {
		expr, err := expression.NewBuilder().WithCondition(c).Build()
		if err != nil {
			return fmt.Errorf("failed to build put condition: %w", err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	if _, err := t.client.PutItem(ctx, input); err != nil {
		return t.translate("PutItem", err)
	}

	t.logger.Debug("row written",
		zap.String("key", row.Key().String()),
		zap.String("entityType", string(row.Kind())),
	)
	return nil
}

// PutChild checks the parent header and creates the child in one transaction
func (t *RecipeTable) PutChild(ctx context.Context, row entities.Row) error {
	if row.Kind() == entities.EntityTypeRecipe {
		return fmt.Errorf("PutChild called with a recipe header")
	}

	item, err := marshalRow(row)
	if err != nil {
		return err
	}

	parent, err := expression.NewBuilder().
		WithCondition(ownedHeader(row.Owner())).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build parent condition: %w", err)
	}
	fresh, err := expression.NewBuilder().
		WithCondition(expression.Name(attrRecipeID).AttributeNotExists()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build child condition: %w", err)
	}

	recipeID := row.Key().RecipeID
	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				ConditionCheck: &types.ConditionCheck{
					TableName:                 aws.String(t.config.TableName),
					Key:                       keyAttributes(entities.Key{RecipeID: recipeID, ItemID: recipeID}),
					ConditionExpression:       parent.Condition(),
					ExpressionAttributeNames:  parent.Names(),
					ExpressionAttributeValues: parent.Values(),
				},
			},
			{
				Put: &types.Put{
					TableName:                aws.String(t.config.TableName),
					Item:                     item,
					ConditionExpression:      fresh.Condition(),
					ExpressionAttributeNames: fresh.Names(),
				},
			},
		},
	}

	if _, err := t.client.TransactWriteItems(ctx, input); err != nil {
		return t.translate("TransactWriteItems", err)
	}

	t.logger.Debug("child row created",
		zap.String("key", row.Key().String()),
		zap.String("entityType", string(row.Kind())),
	)
	return nil
}

// Get fetches one row with a strongly consistent read
func (t *RecipeTable) Get(ctx context.Context, key entities.Key) (entities.Row, error) {
	result, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.config.TableName),
		Key:            keyAttributes(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, t.translate("GetItem", err)
	}
	if len(result.Item) == 0 {
		return nil, ports.ErrNotFound
	}
	return unmarshalRow(result.Item)
}

// QueryPartition reads every row of one recipe, following pagination
func (t *RecipeTable) QueryPartition(ctx context.Context, recipeID string, filter ports.RowFilter) ([]entities.Row, error) {
	builder := expression.NewBuilder().
		WithKeyCondition(expression.Key(attrRecipeID).Equal(expression.Value(recipeID)))
	if f, ok := rowFilter(filter); ok {
		builder = builder.WithFilter(f)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build partition query: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(t.config.TableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	}

	var rows []entities.Row
	paginator := dynamodb.NewQueryPaginator(t.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, t.translate("Query", err)
		}
		for _, av := range page.Items {
			row, err := unmarshalRow(av)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
	}

	t.logger.Debug("partition queried",
		zap.String("recipeId", recipeID),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

// Delete removes a row if cond holds
func (t *RecipeTable) Delete(ctx context.Context, key entities.Key, cond ports.Condition) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(t.config.TableName),
		Key:       keyAttributes(key),
	}
	if c, ok := conditionFor(cond); ok {
		expr, err := expression.NewBuilder().WithCondition(c).Build()
		if err != nil {
			return fmt.Errorf("failed to build delete condition: %w", err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	if _, err := t.client.DeleteItem(ctx, input); err != nil {
		return t.translate("DeleteItem", err)
	}

	t.logger.Debug("row deleted", zap.String("key", key.String()))
	return nil
}

// BatchWrite sends the puts and deletes in chunks of 25. Each chunk is
// attempted exactly once; anything DynamoDB leaves unprocessed, or any chunk
// whose request fails, is reported through *ports.BatchWriteError.
func (t *RecipeTable) BatchWrite(ctx context.Context, puts []entities.Row, deletes []entities.Key) error {
	total := len(puts) + len(deletes)
	if total == 0 {
		return nil
	}

	requests := make([]types.WriteRequest, 0, total)
	keys := make([]entities.Key, 0, total)
	for _, row := range puts {
		item, err := marshalRow(row)
		if err != nil {
			return err
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
		keys = append(keys, row.Key())
	}
	for _, key := range deletes {
		requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: keyAttributes(key)}})
		keys = append(keys, key)
	}

	chunks := (total + maxBatchSize - 1) / maxBatchSize
	unprocessed := make([][]entities.Key, chunks)

	var (
		mu    sync.Mutex
		cause error
	)

	var g errgroup.Group
	g.SetLimit(maxConcurrentBatches)
	for c := 0; c < chunks; c++ {
		start := c * maxBatchSize
		end := start + maxBatchSize
		if end > total {
			end = total
		}
		chunk := c
		g.Go(func() error {
			left, err := t.writeChunk(ctx, requests[start:end], keys[start:end])
			unprocessed[chunk] = left
			if err != nil {
				mu.Lock()
				if cause == nil {
					cause = err
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	var failed []entities.Key
	for _, left := range unprocessed {
		failed = append(failed, left...)
	}
	if len(failed) > 0 {
		t.logger.Warn("batch write incomplete",
			zap.Int("attempted", total),
			zap.Int("unprocessed", len(failed)),
			zap.Error(cause),
		)
		return &ports.BatchWriteError{Attempted: total, Unprocessed: failed, Cause: cause}
	}

	t.logger.Debug("batch write complete",
		zap.Int("rows", total),
		zap.Int("chunks", chunks),
	)
	return nil
}

func (t *RecipeTable) writeChunk(ctx context.Context, requests []types.WriteRequest, keys []entities.Key) ([]entities.Key, error) {
	result, err := t.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			t.config.TableName: requests,
		},
	})
	if err != nil {
		return append([]entities.Key(nil), keys...), t.translate("BatchWriteItem", err)
	}

	left := result.UnprocessedItems[t.config.TableName]
	if len(left) == 0 {
		return nil, nil
	}

	missing := make(map[entities.Key]bool, len(left))
	for _, req := range left {
		switch {
		case req.PutRequest != nil:
			missing[keyFromAttributes(req.PutRequest.Item)] = true
		case req.DeleteRequest != nil:
			missing[keyFromAttributes(req.DeleteRequest.Key)] = true
		}
	}

	out := make([]entities.Key, 0, len(missing))
	for _, key := range keys {
		if missing[key] {
			out = append(out, key)
		}
	}
	return out, nil
}

// ListRecipes pages through every recipe header via the entity type index
func (t *RecipeTable) ListRecipes(ctx context.Context, query ports.ListQuery) (*ports.RecipePage, error) {
	key := expression.Key(attrEntityType).Equal(expression.Value(string(entities.EntityTypeRecipe)))

	var filter *expression.ConditionBuilder
	if search := entities.SearchKey(query.Search); search != "" {
		f := expression.Name(attrSearchName).Contains(search)
		filter = &f
	}
	return t.listHeaders(ctx, t.config.EntityTypeIndexName, key, filter, query)
}

// ListUserRecipes pages through the headers owned by one user via the user index
func (t *RecipeTable) ListUserRecipes(ctx context.Context, query ports.ListQuery) (*ports.RecipePage, error) {
	key := expression.Key(attrUserID).Equal(expression.Value(query.UserID))

	f := expression.Name(attrEntityType).Equal(expression.Value(string(entities.EntityTypeRecipe)))
	if search := entities.SearchKey(query.Search); search != "" {
		f = f.And(expression.Name(attrSearchName).Contains(search))
	}
	return t.listHeaders(ctx, t.config.UserIndexName, key, &f, query)
}

// listHeaders reads an index page by page until limit matches are collected.
// Each request evaluates at most the remaining number of items so the
// LastEvaluatedKey always sits exactly after the last returned header.
func (t *RecipeTable) listHeaders(ctx context.Context, index string, key expression.KeyConditionBuilder, filter *expression.ConditionBuilder, query ports.ListQuery) (*ports.RecipePage, error) {
	builder := expression.NewBuilder().WithKeyCondition(key)
	if filter != nil {
		builder = builder.WithFilter(*filter)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	startKey, err := decodeCursor(query.Cursor)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid cursor").WithCause(err)
	}

	page := &ports.RecipePage{Recipes: []entities.Recipe{}}
	for {
		input := &dynamodb.QueryInput{
			TableName:                 aws.String(t.config.TableName),
			IndexName:                 aws.String(index),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		}
		if query.Limit > 0 {
			input.Limit = aws.Int32(int32(query.Limit - len(page.Recipes)))
		}

		result, err := t.client.Query(ctx, input)
		if err != nil {
			return nil, t.translate("Query", err)
		}

		for _, av := range result.Items {
			row, err := unmarshalRow(av)
			if err != nil {
				return nil, err
			}
			if recipe, ok := row.(*entities.Recipe); ok {
				page.Recipes = append(page.Recipes, *recipe)
			}
		}

		startKey = result.LastEvaluatedKey
		if len(startKey) == 0 {
			break
		}
		if query.Limit > 0 && len(page.Recipes) >= query.Limit {
			page.NextCursor, err = encodeCursor(startKey)
			if err != nil {
				return nil, err
			}
			break
		}
	}

	t.logger.Debug("recipe headers listed",
		zap.String("index", index),
		zap.Int("count", len(page.Recipes)),
		zap.Bool("more", page.NextCursor != ""),
	)
	return page, nil
}

// AppendImageURLs adds the urls the header does not already carry
func (t *RecipeTable) AppendImageURLs(ctx context.Context, recipeID string, urls []string) error {
	key := entities.Key{RecipeID: recipeID, ItemID: recipeID}
	row, err := t.Get(ctx, key)
	if err != nil {
		return err
	}
	header, ok := row.(*entities.Recipe)
	if !ok {
		return ports.ErrNotFound
	}

	known := make(map[string]bool, len(header.ImageURLs))
	for _, u := range header.ImageURLs {
		known[u] = true
	}
	var fresh []string
	for _, u := range urls {
		if u != "" && !known[u] {
			known[u] = true
			fresh = append(fresh, u)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	update := expression.Set(
		expression.Name(attrImageURLs),
		expression.ListAppend(
			expression.IfNotExists(expression.Name(attrImageURLs), expression.Value(&types.AttributeValueMemberL{Value: []types.AttributeValue{}})),
			expression.Value(fresh),
		),
	)
	cond := expression.Name(attrRecipeID).AttributeExists().
		And(expression.Name(attrEntityType).Equal(expression.Value(string(entities.EntityTypeRecipe))))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build image update: %w", err)
	}

	_, err = t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.config.TableName),
		Key:                       keyAttributes(key),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		err = t.translate("UpdateItem", err)
		if errors.Is(err, ports.ErrConditionFailed) {
			return ports.ErrNotFound
		}
		return err
	}

	t.logger.Debug("image urls appended",
		zap.String("recipeId", recipeID),
		zap.Int("added", len(fresh)),
	)
	return nil
}

// translate maps SDK errors onto the port errors
func (t *RecipeTable) translate(op string, err error) error {
	var conditionalCheckFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionalCheckFailed) {
		return ports.ErrConditionFailed
	}

	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, reason := range canceled.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return ports.ErrConditionFailed
			}
		}
	}

	code := "unknown"
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.ErrorCode()
	}
	t.logger.Error("dynamodb request failed",
		zap.String("operation", op),
		zap.String("table", t.config.TableName),
		zap.String("code", code),
		zap.Error(err),
	)
	return pkgerrors.NewStorageError(op, err)
}

func conditionFor(cond ports.Condition) (expression.ConditionBuilder, bool) {
	var parts []expression.ConditionBuilder
	if cond.MustNotExist {
		parts = append(parts, expression.Name(attrRecipeID).AttributeNotExists())
	}
	if cond.OwnerID != "" {
		parts = append(parts, expression.Name(attrUserID).Equal(expression.Value(cond.OwnerID)))
	}
	if cond.EntityType != "" {
		parts = append(parts, expression.Name(attrEntityType).Equal(expression.Value(string(cond.EntityType))))
	}
	return combine(parts)
}

func rowFilter(filter ports.RowFilter) (expression.ConditionBuilder, bool) {
	var parts []expression.ConditionBuilder
	if filter.EntityType != "" {
		parts = append(parts, expression.Name(attrEntityType).Equal(expression.Value(string(filter.EntityType))))
	}
	if filter.UserID != "" {
		parts = append(parts, expression.Name(attrUserID).Equal(expression.Value(filter.UserID)))
	}
	return combine(parts)
}

func ownedHeader(userID string) expression.ConditionBuilder {
	return expression.And(
		expression.Name(attrRecipeID).AttributeExists(),
		expression.Name(attrEntityType).Equal(expression.Value(string(entities.EntityTypeRecipe))),
		expression.Name(attrUserID).Equal(expression.Value(userID)),
	)
}

func combine(parts []expression.ConditionBuilder) (expression.ConditionBuilder, bool) {
	switch len(parts) {
	case 0:
		return expression.ConditionBuilder{}, false
	case 1:
		return parts[0], true
	default:
		return expression.And(parts[0], parts[1], parts[2:]...), true
	}
}
