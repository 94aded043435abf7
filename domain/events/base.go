package events

import (
	"time"
)

// SourceRecipes is the event source name used on the bus
const SourceRecipes = "recipes.backend"

// Event types
const (
	TypeRecipeCreated         = "recipe.created"
	TypeRecipeUpdated         = "recipe.updated"
	TypeRecipeDeleted         = "recipe.deleted"
	TypeRecipeImagesAttached  = "recipe.images_attached"
	TypeIngredientChanged     = "ingredient.changed"
	TypeInstructionInserted   = "instruction.inserted"
	TypeInstructionUpdated    = "instruction.updated"
	TypeInstructionDeleted    = "instruction.deleted"
	TypeInstructionsReordered = "instruction.reordered"
)

// DomainEvent is the base interface for all domain events
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
}

// BaseEvent provides common event fields. The aggregate id is the recipe id.
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	UserID      string    `json:"user_id"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

func newBase(eventType, recipeID, userID string, at time.Time) BaseEvent {
	return BaseEvent{AggregateID: recipeID, EventType: eventType, Timestamp: at, UserID: userID}
}

// RecipeChanged is raised when a recipe header is created, updated or deleted
type RecipeChanged struct {
	BaseEvent
	Title string `json:"title,omitempty"`
	// Rows is the number of rows written or removed
	Rows int `json:"rows"`
}

// NewRecipeCreated creates a recipe.created event
func NewRecipeCreated(recipeID, userID, title string, rows int, at time.Time) RecipeChanged {
	return RecipeChanged{BaseEvent: newBase(TypeRecipeCreated, recipeID, userID, at), Title: title, Rows: rows}
}

// NewRecipeUpdated creates a recipe.updated event
func NewRecipeUpdated(recipeID, userID, title string, at time.Time) RecipeChanged {
	return RecipeChanged{BaseEvent: newBase(TypeRecipeUpdated, recipeID, userID, at), Title: title, Rows: 1}
}

// NewRecipeDeleted creates a recipe.deleted event
func NewRecipeDeleted(recipeID, userID string, rows int, at time.Time) RecipeChanged {
	return RecipeChanged{BaseEvent: newBase(TypeRecipeDeleted, recipeID, userID, at), Rows: rows}
}

// RecipeImagesAttached is raised after uploaded images are linked to a recipe
type RecipeImagesAttached struct {
	BaseEvent
	URLs []string `json:"urls"`
}

// NewRecipeImagesAttached creates a recipe.images_attached event
func NewRecipeImagesAttached(recipeID string, urls []string, at time.Time) RecipeImagesAttached {
	return RecipeImagesAttached{BaseEvent: newBase(TypeRecipeImagesAttached, recipeID, "", at), URLs: urls}
}

// IngredientChanged is raised when an ingredient is created, updated or deleted
type IngredientChanged struct {
	BaseEvent
	ItemID string `json:"item_id"`
	Action string `json:"action"`
}

// NewIngredientChanged creates an ingredient.changed event
func NewIngredientChanged(recipeID, itemID, userID, action string, at time.Time) IngredientChanged {
	return IngredientChanged{BaseEvent: newBase(TypeIngredientChanged, recipeID, userID, at), ItemID: itemID, Action: action}
}

// InstructionsMoved is raised when instruction orders change
type InstructionsMoved struct {
	BaseEvent
	ItemID  string `json:"item_id,omitempty"`
	Order   int    `json:"order,omitempty"`
	Shifted int    `json:"shifted"`
}

// NewInstructionInserted creates an instruction.inserted event
func NewInstructionInserted(recipeID, itemID, userID string, order, shifted int, at time.Time) InstructionsMoved {
	return InstructionsMoved{BaseEvent: newBase(TypeInstructionInserted, recipeID, userID, at), ItemID: itemID, Order: order, Shifted: shifted}
}

// NewInstructionUpdated creates an instruction.updated event. The order is unchanged.
func NewInstructionUpdated(recipeID, itemID, userID string, order int, at time.Time) InstructionsMoved {
	return InstructionsMoved{BaseEvent: newBase(TypeInstructionUpdated, recipeID, userID, at), ItemID: itemID, Order: order}
}

// NewInstructionDeleted creates an instruction.deleted event
func NewInstructionDeleted(recipeID, itemID, userID string, shifted int, at time.Time) InstructionsMoved {
	return InstructionsMoved{BaseEvent: newBase(TypeInstructionDeleted, recipeID, userID, at), ItemID: itemID, Shifted: shifted}
}

// NewInstructionsReordered creates an instruction.reordered event
func NewInstructionsReordered(recipeID, userID string, moved int, at time.Time) InstructionsMoved {
	return InstructionsMoved{BaseEvent: newBase(TypeInstructionsReordered, recipeID, userID, at), Shifted: moved}
}
