package dynamodb

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// fakeClient records every request and answers through optional hooks
type fakeClient struct {
	mu sync.Mutex

	puts     []*dynamodb.PutItemInput
	deletes  []*dynamodb.DeleteItemInput
	updates  []*dynamodb.UpdateItemInput
	queries  []*dynamodb.QueryInput
	batches  []*dynamodb.BatchWriteItemInput
	transact []*dynamodb.TransactWriteItemsInput

	getItem     func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	putItem     func(*dynamodb.PutItemInput) error
	deleteItem  func(*dynamodb.DeleteItemInput) error
	updateItem  func(*dynamodb.UpdateItemInput) error
	query       func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	batchWrite  func(*dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error)
	transactErr error
}

func (f *fakeClient) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getItem != nil {
		return f.getItem(in)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (f *fakeClient) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	f.puts = append(f.puts, in)
	f.mu.Unlock()
	if f.putItem != nil {
		return &dynamodb.PutItemOutput{}, f.putItem(in)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeClient) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	f.deletes = append(f.deletes, in)
	f.mu.Unlock()
	if f.deleteItem != nil {
		return &dynamodb.DeleteItemOutput{}, f.deleteItem(in)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeClient) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	f.updates = append(f.updates, in)
	f.mu.Unlock()
	if f.updateItem != nil {
		return &dynamodb.UpdateItemOutput{}, f.updateItem(in)
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeClient) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	f.queries = append(f.queries, in)
	f.mu.Unlock()
	if f.query != nil {
		return f.query(in)
	}
	return &dynamodb.QueryOutput{}, nil
}

func (f *fakeClient) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	f.batches = append(f.batches, in)
	f.mu.Unlock()
	if f.batchWrite != nil {
		return f.batchWrite(in)
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (f *fakeClient) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	f.transact = append(f.transact, in)
	f.mu.Unlock()
	return &dynamodb.TransactWriteItemsOutput{}, f.transactErr
}
