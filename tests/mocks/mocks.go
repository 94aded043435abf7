// Package mocks provides testify mocks of the application ports.
package mocks

import (
	"context"

	"recipes-backend/application/ports"
	"recipes-backend/domain/core/entities"
	"recipes-backend/domain/events"

	"github.com/stretchr/testify/mock"
)

// RecipeTable mocks ports.RecipeTable
type RecipeTable struct {
	mock.Mock
}

func (m *RecipeTable) Put(ctx context.Context, row entities.Row, cond ports.Condition) error {
	args := m.Called(ctx, row, cond)
	return args.Error(0)
}

func (m *RecipeTable) PutChild(ctx context.Context, row entities.Row) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

func (m *RecipeTable) Get(ctx context.Context, key entities.Key) (entities.Row, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(entities.Row), args.Error(1)
}

func (m *RecipeTable) QueryPartition(ctx context.Context, recipeID string, filter ports.RowFilter) ([]entities.Row, error) {
	args := m.Called(ctx, recipeID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Row), args.Error(1)
}

func (m *RecipeTable) Delete(ctx context.Context, key entities.Key, cond ports.Condition) error {
	args := m.Called(ctx, key, cond)
	return args.Error(0)
}

func (m *RecipeTable) BatchWrite(ctx context.Context, puts []entities.Row, deletes []entities.Key) error {
	args := m.Called(ctx, puts, deletes)
	return args.Error(0)
}

func (m *RecipeTable) ListRecipes(ctx context.Context, query ports.ListQuery) (*ports.RecipePage, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.RecipePage), args.Error(1)
}

func (m *RecipeTable) ListUserRecipes(ctx context.Context, query ports.ListQuery) (*ports.RecipePage, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.RecipePage), args.Error(1)
}

func (m *RecipeTable) AppendImageURLs(ctx context.Context, recipeID string, urls []string) error {
	args := m.Called(ctx, recipeID, urls)
	return args.Error(0)
}

// RecipeLocker mocks ports.RecipeLocker
type RecipeLocker struct {
	mock.Mock
}

func (m *RecipeLocker) Acquire(ctx context.Context, recipeID, owner string) (ports.Lease, error) {
	args := m.Called(ctx, recipeID, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.Lease), args.Error(1)
}

// Lease mocks ports.Lease
type Lease struct {
	mock.Mock
}

func (m *Lease) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// EventBus mocks ports.EventBus
type EventBus struct {
	mock.Mock
}

func (m *EventBus) Publish(ctx context.Context, event events.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *EventBus) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	args := m.Called(ctx, evts)
	return args.Error(0)
}

// ImageSigner mocks ports.ImageSigner
type ImageSigner struct {
	mock.Mock
}

func (m *ImageSigner) PresignUpload(ctx context.Context, key, contentType string) (*ports.PresignedUpload, error) {
	args := m.Called(ctx, key, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PresignedUpload), args.Error(1)
}
