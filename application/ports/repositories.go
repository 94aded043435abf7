package ports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"recipes-backend/domain/core/entities"
)

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("row not found")
	// ErrConditionFailed is returned when the store rejects a conditional write
	ErrConditionFailed = errors.New("conditional write rejected")
	// ErrLockHeld is returned when another writer holds the recipe lock
	ErrLockHeld = errors.New("recipe lock is held by another writer")
)

// BatchWriteError reports the rows a batch write could not process
type BatchWriteError struct {
	Attempted   int
	Unprocessed []entities.Key
	Cause       error
}

func (e *BatchWriteError) Error() string {
	keys := make([]string, 0, len(e.Unprocessed))
	for _, k := range e.Unprocessed {
		keys = append(keys, k.String())
	}
	msg := fmt.Sprintf("batch write left %d of %d rows unprocessed", len(e.Unprocessed), e.Attempted)
	if len(keys) > 0 {
		msg += " [" + strings.Join(keys, ", ") + "]"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *BatchWriteError) Unwrap() error {
	return e.Cause
}

// Condition guards a single-row write
type Condition struct {
	// MustNotExist rejects the write if the key is already present
	MustNotExist bool
	// OwnerID, when set, requires the existing row to belong to this user
	OwnerID string
	// EntityType, when set, requires the existing row to be of this kind
	EntityType entities.EntityType
}

// MustNotExist guards a create
func MustNotExist() Condition {
	return Condition{MustNotExist: true}
}

// MustBeOwnedBy guards an update or delete of an existing row
func MustBeOwnedBy(userID string, kind entities.EntityType) Condition {
	return Condition{OwnerID: userID, EntityType: kind}
}

// RowFilter narrows a partition query
type RowFilter struct {
	EntityType entities.EntityType
	UserID     string
}

// ListQuery pages through recipe headers
type ListQuery struct {
	UserID string
	// Search is a case-insensitive substring of the title
	Search string
	Limit  int
	Cursor string
}

// RecipePage is one page of recipe headers
type RecipePage struct {
	Recipes    []entities.Recipe
	NextCursor string
}

// RecipeTable is the single-table store holding recipes, ingredients and instructions.
// Every write is atomic for one row only, except where noted.
type RecipeTable interface {
	// Put writes a row if cond holds
	Put(ctx context.Context, row entities.Row, cond Condition) error
	// PutChild creates an ingredient or instruction if its recipe header exists and
	// belongs to the row's user, and the child key is free
	PutChild(ctx context.Context, row entities.Row) error
	Get(ctx context.Context, key entities.Key) (entities.Row, error)
	QueryPartition(ctx context.Context, recipeID string, filter RowFilter) ([]entities.Row, error)
	Delete(ctx context.Context, key entities.Key, cond Condition) error
	// BatchWrite attempts every put and delete without conditions and returns a
	// *BatchWriteError naming any rows left unprocessed. It is not atomic.
	BatchWrite(ctx context.Context, puts []entities.Row, deletes []entities.Key) error
	ListRecipes(ctx context.Context, query ListQuery) (*RecipePage, error)
	ListUserRecipes(ctx context.Context, query ListQuery) (*RecipePage, error)
	// AppendImageURLs adds urls to a recipe header's image list
	AppendImageURLs(ctx context.Context, recipeID string, urls []string) error
}

// Lease is a held recipe lock
type Lease interface {
	Release(ctx context.Context) error
}

// RecipeLocker serializes writers that reorder the instructions of one recipe
type RecipeLocker interface {
	// Acquire returns ErrLockHeld without waiting when another writer holds the lock
	Acquire(ctx context.Context, recipeID, owner string) (Lease, error)
}
