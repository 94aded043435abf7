package entities

import (
	"fmt"
)

// EntityType discriminates the record shapes stored in the recipe table
type EntityType string

const (
	EntityTypeRecipe      EntityType = "RECIPE"
	EntityTypeIngredient  EntityType = "INGREDIENT"
	EntityTypeInstruction EntityType = "INSTRUCTION"
)

// ParseEntityType converts a stored discriminator into an EntityType
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(s) {
	case EntityTypeRecipe, EntityTypeIngredient, EntityTypeInstruction:
		return EntityType(s), nil
	default:
		return "", fmt.Errorf("unknown entity type %q", s)
	}
}

// Key identifies a row: recipeId is the partition, itemId the sort key
type Key struct {
	RecipeID string `json:"recipeId"`
	ItemID   string `json:"itemId"`
}

func (k Key) String() string {
	return k.RecipeID + "/" + k.ItemID
}

// Row is one record of the recipe table. The set of implementations is closed:
// *Recipe, *Ingredient and *Instruction.
type Row interface {
	Key() Key
	Kind() EntityType
	Owner() string
	isRow()
}

// MatchRow dispatches a row to the callback for its kind. Every caller names all
// three kinds, so adding a kind breaks each interpretation site at compile time.
func MatchRow(
	row Row,
	onRecipe func(*Recipe) error,
	onIngredient func(*Ingredient) error,
	onInstruction func(*Instruction) error,
) error {
	switch r := row.(type) {
	case *Recipe:
		return onRecipe(r)
	case *Ingredient:
		return onIngredient(r)
	case *Instruction:
		return onInstruction(r)
	default:
		return fmt.Errorf("unsupported row type %T", row)
	}
}

// InstructionRows converts instructions into rows
func InstructionRows(instructions []Instruction) []Row {
	rows := make([]Row, 0, len(instructions))
	for i := range instructions {
		instr := instructions[i]
		rows = append(rows, &instr)
	}
	return rows
}
