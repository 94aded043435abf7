package entities

import (
	"sort"
	"strings"

	pkgerrors "recipes-backend/pkg/errors"

	"github.com/google/uuid"
)

// MaxStepLength bounds the text of one instruction step
const MaxStepLength = 2000

// Instruction is an ordered step of a recipe. Order is 1-based once persisted;
// zero means the position has not been decided yet.
type Instruction struct {
	RecipeID string `json:"recipeId"`
	ItemID   string `json:"itemId"`
	UserID   string `json:"userId"`
	Step     string `json:"step"`
	Order    int    `json:"order"`
}

// NewInstruction creates an instruction with a fresh identifier
func NewInstruction(recipeID, userID, step string, order int) (*Instruction, error) {
	return RestoreInstruction(recipeID, uuid.New().String(), userID, step, order)
}

// RestoreInstruction builds an instruction around an existing identifier
func RestoreInstruction(recipeID, itemID, userID, step string, order int) (*Instruction, error) {
	if err := validateChildIdentity(recipeID, itemID, userID); err != nil {
		return nil, err
	}
	if order < 0 {
		return nil, pkgerrors.NewValidationError("order cannot be negative")
	}

	i := &Instruction{RecipeID: recipeID, ItemID: itemID, UserID: userID, Order: order}
	if err := i.SetStep(step); err != nil {
		return nil, err
	}
	return i, nil
}

// SetStep replaces the step text
func (i *Instruction) SetStep(step string) error {
	step = strings.TrimSpace(step)
	switch {
	case step == "":
		return pkgerrors.NewValidationError("step cannot be empty")
	case len(step) > MaxStepLength:
		return pkgerrors.NewValidationError("step is too long")
	}
	i.Step = step
	return nil
}

// WithOrder returns a copy placed at the given position
func (i Instruction) WithOrder(order int) Instruction {
	i.Order = order
	return i
}

func (i *Instruction) Key() Key         { return Key{RecipeID: i.RecipeID, ItemID: i.ItemID} }
func (i *Instruction) Kind() EntityType { return EntityTypeInstruction }
func (i *Instruction) Owner() string    { return i.UserID }
func (i *Instruction) isRow()           {}

// SortInstructions orders instructions by position, breaking ties by item id
func SortInstructions(instructions []Instruction) {
	sort.SliceStable(instructions, func(a, b int) bool {
		if instructions[a].Order != instructions[b].Order {
			return instructions[a].Order < instructions[b].Order
		}
		return instructions[a].ItemID < instructions[b].ItemID
	})
}
