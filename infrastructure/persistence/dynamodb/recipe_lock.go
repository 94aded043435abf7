package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recipes-backend/application/ports"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// lockRecord is stored in its own partition so it never shows up in a recipe
// query. It carries no entityType or userId and stays off both indexes.
type lockRecord struct {
	RecipeID   string `dynamodbav:"recipeId"` // LOCK#<recipeId>
	ItemID     string `dynamodbav:"itemId"`   // LOCK
	LockID     string `dynamodbav:"lockId"`
	Owner      string `dynamodbav:"owner"`
	AcquiredAt string `dynamodbav:"acquiredAt"`
	ExpiresAt  int64  `dynamodbav:"expiresAt"` // unix millis, compared on acquire
	TTL        int64  `dynamodbav:"ttl"`       // unix seconds for DynamoDB TTL
}

// RecipeLocker implements ports.RecipeLocker with conditional writes
type RecipeLocker struct {
	client    Client
	tableName string
	ttl       time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewRecipeLocker creates a locker whose leases expire after ttl
func NewRecipeLocker(client Client, tableName string, ttl time.Duration, logger *zap.Logger) *RecipeLocker {
	return &RecipeLocker{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		now:       time.Now,
		logger:    logger,
	}
}

func lockKey(recipeID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrRecipeID: &types.AttributeValueMemberS{Value: "LOCK#" + recipeID},
		attrItemID:   &types.AttributeValueMemberS{Value: "LOCK"},
	}
}

// Acquire takes the lock for recipeID. An expired lease is taken over.
func (l *RecipeLocker) Acquire(ctx context.Context, recipeID, owner string) (ports.Lease, error) {
	now := l.now()
	expiresAt := now.Add(l.ttl)

	record := lockRecord{
		RecipeID:   "LOCK#" + recipeID,
		ItemID:     "LOCK",
		LockID:     uuid.New().String(),
		Owner:      owner,
		AcquiredAt: now.UTC().Format(time.RFC3339),
		ExpiresAt:  expiresAt.UnixMilli(),
		TTL:        expiresAt.Unix(),
	}
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock record: %w", err)
	}

	cond := expression.Name(attrRecipeID).AttributeNotExists().
		Or(expression.Name("expiresAt").LessThan(expression.Value(now.UnixMilli())))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build lock condition: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(l.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			l.logger.Debug("recipe lock already held",
				zap.String("recipeId", recipeID),
				zap.String("owner", owner),
			)
			return nil, ports.ErrLockHeld
		}
		return nil, fmt.Errorf("failed to acquire recipe lock: %w", err)
	}

	l.logger.Debug("recipe lock acquired",
		zap.String("recipeId", recipeID),
		zap.String("lockId", record.LockID),
		zap.String("owner", owner),
		zap.Duration("ttl", l.ttl),
	)
	return &recipeLease{locker: l, recipeID: recipeID, lockID: record.LockID, owner: owner}, nil
}

type recipeLease struct {
	locker   *RecipeLocker
	recipeID string
	lockID   string
	owner    string
}

// Release deletes the lock row if this lease still holds it
func (r *recipeLease) Release(ctx context.Context) error {
	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("lockId").Equal(expression.Value(r.lockID))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build release condition: %w", err)
	}

	_, err = r.locker.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(r.locker.tableName),
		Key:                       lockKey(r.recipeID),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			r.locker.logger.Warn("recipe lock already released or taken over",
				zap.String("recipeId", r.recipeID),
				zap.String("lockId", r.lockID),
				zap.String("owner", r.owner),
			)
			return nil
		}
		return fmt.Errorf("failed to release recipe lock: %w", err)
	}

	r.locker.logger.Debug("recipe lock released",
		zap.String("recipeId", r.recipeID),
		zap.String("lockId", r.lockID),
	)
	return nil
}
