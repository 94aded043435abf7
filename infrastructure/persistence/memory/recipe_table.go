// Package memory provides in-process implementations of the persistence ports.
// They honour the same conditions and errors as the DynamoDB implementations and
// back local development (STORAGE_BACKEND=memory) and tests.
package memory

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"

	"recipes-backend/application/ports"
	"recipes-backend/domain/core/entities"
	pkgerrors "recipes-backend/pkg/errors"
)

// Mutation records one write call against the table
type Mutation struct {
	Op   string
	Keys []entities.Key
}

// RecipeTable is an in-memory ports.RecipeTable
type RecipeTable struct {
	mu         sync.RWMutex
	partitions map[string]map[string]entities.Row
	mutations  []Mutation

	failOn         map[string]error
	batchProcessed int
}

// NewRecipeTable creates an empty table
func NewRecipeTable() *RecipeTable {
	return &RecipeTable{
		partitions:     make(map[string]map[string]entities.Row),
		failOn:         make(map[string]error),
		batchProcessed: -1,
	}
}

// Seed stores rows without recording mutations
func (t *RecipeTable) Seed(rows ...entities.Row) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, row := range rows {
		t.store(row)
	}
}

// Mutations returns the write calls made since creation or the last Reset
func (t *RecipeTable) Mutations() []Mutation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Mutation, len(t.mutations))
	copy(out, t.mutations)
	return out
}

// ResetMutations clears the mutation log
func (t *RecipeTable) ResetMutations() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mutations = nil
}

// FailOn makes every call to op return err until cleared with a nil error
func (t *RecipeTable) FailOn(op string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.failOn, op)
		return
	}
	t.failOn[op] = err
}

// LimitBatch makes batch writes process only the first n rows and report the rest
// as unprocessed. A negative n removes the limit.
func (t *RecipeTable) LimitBatch(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.batchProcessed = n
}

// Put writes a row if cond holds
func (t *RecipeTable) Put(ctx context.Context, row entities.Row, cond ports.Condition) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.failure("put"); err != nil {
		return err
	}
	if err := check(t.load(row.Key()), cond); err != nil {
		return err
	}

	t.store(row)
	t.record("put", row.Key())
	return nil
}

// PutChild creates a child row under an existing, owned recipe header
func (t *RecipeTable) PutChild(ctx context.Context, row entities.Row) error {
	if row.Kind() == entities.EntityTypeRecipe {
		return fmt.Errorf("PutChild called with a recipe header")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.failure("put_child"); err != nil {
		return err
	}
	header := t.load(entities.Key{RecipeID: row.Key().RecipeID, ItemID: row.Key().RecipeID})
	if err := check(header, ports.MustBeOwnedBy(row.Owner(), entities.EntityTypeRecipe)); err != nil {
		return err
	}
	if err := check(t.load(row.Key()), ports.MustNotExist()); err != nil {
		return err
	}

	t.store(row)
	t.record("put_child", row.Key())
	return nil
}

// Get fetches one row
func (t *RecipeTable) Get(ctx context.Context, key entities.Key) (entities.Row, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if err := t.failure("get"); err != nil {
		return nil, err
	}
	row := t.load(key)
	if row == nil {
		return nil, ports.ErrNotFound
	}
	return clone(row), nil
}

// QueryPartition returns the rows of one recipe ordered by item id
func (t *RecipeTable) QueryPartition(ctx context.Context, recipeID string, filter ports.RowFilter) ([]entities.Row, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if err := t.failure("query"); err != nil {
		return nil, err
	}

	partition := t.partitions[recipeID]
	ids := make([]string, 0, len(partition))
	for id := range partition {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]entities.Row, 0, len(ids))
	for _, id := range ids {
		row := partition[id]
		if filter.EntityType != "" && row.Kind() != filter.EntityType {
			continue
		}
		if filter.UserID != "" && row.Owner() != filter.UserID {
			continue
		}
		rows = append(rows, clone(row))
	}
	return rows, nil
}

// Delete removes a row if cond holds
func (t *RecipeTable) Delete(ctx context.Context, key entities.Key, cond ports.Condition) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.failure("delete"); err != nil {
		return err
	}
	if err := check(t.load(key), cond); err != nil {
		return err
	}

	delete(t.partitions[key.RecipeID], key.ItemID)
	t.record("delete", key)
	return nil
}

// BatchWrite applies puts then deletes, honouring LimitBatch
func (t *RecipeTable) BatchWrite(ctx context.Context, puts []entities.Row, deletes []entities.Key) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(puts) == 0 && len(deletes) == 0 {
		return nil
	}
	if err := t.failure("batch_write"); err != nil {
		return err
	}

	keys := make([]entities.Key, 0, len(puts)+len(deletes))
	for _, row := range puts {
		keys = append(keys, row.Key())
	}
	keys = append(keys, deletes...)

	limit := len(keys)
	if t.batchProcessed >= 0 && t.batchProcessed < limit {
		limit = t.batchProcessed
	}

	for i := 0; i < limit; i++ {
		if i < len(puts) {
			t.store(puts[i])
		} else {
			k := deletes[i-len(puts)]
			delete(t.partitions[k.RecipeID], k.ItemID)
		}
	}
	t.record("batch_write", keys...)

	if limit < len(keys) {
		return &ports.BatchWriteError{Attempted: len(keys), Unprocessed: keys[limit:]}
	}
	return nil
}

// ListRecipes pages through every recipe header, optionally filtered by title
func (t *RecipeTable) ListRecipes(ctx context.Context, query ports.ListQuery) (*ports.RecipePage, error) {
	return t.list("list_recipes", query, func(r *entities.Recipe) bool {
		return query.Search == "" || strings.Contains(r.SearchName, entities.SearchKey(query.Search))
	})
}

// ListUserRecipes pages through the headers owned by query.UserID
func (t *RecipeTable) ListUserRecipes(ctx context.Context, query ports.ListQuery) (*ports.RecipePage, error) {
	return t.list("list_user_recipes", query, func(r *entities.Recipe) bool {
		return r.UserID == query.UserID
	})
}

// AppendImageURLs adds urls to a recipe header
func (t *RecipeTable) AppendImageURLs(ctx context.Context, recipeID string, urls []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.failure("append_images"); err != nil {
		return err
	}
	key := entities.Key{RecipeID: recipeID, ItemID: recipeID}
	header, ok := t.load(key).(*entities.Recipe)
	if !ok {
		return ports.ErrNotFound
	}

	updated := *header
	updated.AddImageURLs(urls...)
	t.store(&updated)
	t.record("append_images", key)
	return nil
}

func (t *RecipeTable) list(op string, query ports.ListQuery, match func(*entities.Recipe) bool) (*ports.RecipePage, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if err := t.failure(op); err != nil {
		return nil, err
	}

	after := ""
	if query.Cursor != "" {
		raw, err := base64.RawURLEncoding.DecodeString(query.Cursor)
		if err != nil {
			return nil, pkgerrors.NewValidationError("invalid cursor").WithCause(err)
		}
		after = string(raw)
	}

	var headers []*entities.Recipe
	for recipeID, partition := range t.partitions {
		if r, ok := partition[recipeID].(*entities.Recipe); ok && recipeID > after && match(r) {
			headers = append(headers, r)
		}
	}
	sort.Slice(headers, func(a, b int) bool { return headers[a].RecipeID < headers[b].RecipeID })

	page := &ports.RecipePage{Recipes: make([]entities.Recipe, 0, len(headers))}
	for _, r := range headers {
		if query.Limit > 0 && len(page.Recipes) == query.Limit {
			last := page.Recipes[len(page.Recipes)-1].RecipeID
			page.NextCursor = base64.RawURLEncoding.EncodeToString([]byte(last))
			break
		}
		page.Recipes = append(page.Recipes, *clone(r).(*entities.Recipe))
	}
	return page, nil
}

func (t *RecipeTable) failure(op string) error {
	if err, ok := t.failOn[op]; ok {
		return err
	}
	return nil
}

func (t *RecipeTable) load(key entities.Key) entities.Row {
	return t.partitions[key.RecipeID][key.ItemID]
}

func (t *RecipeTable) store(row entities.Row) {
	key := row.Key()
	partition, ok := t.partitions[key.RecipeID]
	if !ok {
		partition = make(map[string]entities.Row)
		t.partitions[key.RecipeID] = partition
	}
	partition[key.ItemID] = clone(row)
}

func (t *RecipeTable) record(op string, keys ...entities.Key) {
	t.mutations = append(t.mutations, Mutation{Op: op, Keys: keys})
}

func check(existing entities.Row, cond ports.Condition) error {
	if cond.MustNotExist && existing != nil {
		return ports.ErrConditionFailed
	}
	if cond.OwnerID != "" && (existing == nil || existing.Owner() != cond.OwnerID) {
		return ports.ErrConditionFailed
	}
	if cond.EntityType != "" && (existing == nil || existing.Kind() != cond.EntityType) {
		return ports.ErrConditionFailed
	}
	return nil
}

func clone(row entities.Row) entities.Row {
	var out entities.Row
	_ = entities.MatchRow(row,
		func(r *entities.Recipe) error {
			c := *r
			c.ImageURLs = append([]string(nil), r.ImageURLs...)
			if c.ImageURLs == nil {
				c.ImageURLs = []string{}
			}
			out = &c
			return nil
		},
		func(i *entities.Ingredient) error {
			c := *i
			out = &c
			return nil
		},
		func(i *entities.Instruction) error {
			c := *i
			out = &c
			return nil
		},
	)
	return out
}
