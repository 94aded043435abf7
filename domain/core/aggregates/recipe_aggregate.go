package aggregates

import (
	"fmt"

	"recipes-backend/domain/core/entities"
	pkgerrors "recipes-backend/pkg/errors"
)

// RecipeAggregate is a recipe header with its ingredients and instructions nested
type RecipeAggregate struct {
	entities.Recipe
	Ingredients  []entities.Ingredient  `json:"ingredients"`
	Instructions []entities.Instruction `json:"instructions"`
}

// Assemble rebuilds the nested recipe view from the flat rows of one partition.
//
// Child rows without a header are treated as a missing recipe. Ingredients keep
// the order they were given in; instructions are sorted by order. The input is
// never modified, so assembling the same rows twice yields equal values.
func Assemble(rows []entities.Row) (*RecipeAggregate, error) {
	var header *entities.Recipe
	ingredients := make([]entities.Ingredient, 0)
	instructions := make([]entities.Instruction, 0)

	for _, row := range rows {
		err := entities.MatchRow(row,
			func(r *entities.Recipe) error {
				if header != nil {
					return pkgerrors.NewInternalError(fmt.Sprintf("recipe %s has more than one header row", r.RecipeID))
				}
				header = r
				return nil
			},
			func(i *entities.Ingredient) error {
				ingredients = append(ingredients, *i)
				return nil
			},
			func(i *entities.Instruction) error {
				instructions = append(instructions, *i)
				return nil
			},
		)
		if err != nil {
			return nil, err
		}
	}

	if header == nil {
		return nil, pkgerrors.NewNotFoundError("recipe")
	}

	recipe := *header
	recipe.ImageURLs = append(make([]string, 0, len(header.ImageURLs)), header.ImageURLs...)
	entities.SortInstructions(instructions)

	return &RecipeAggregate{
		Recipe:       recipe,
		Ingredients:  ingredients,
		Instructions: instructions,
	}, nil
}

// Rows flattens the aggregate back into table rows, header first
func (a *RecipeAggregate) Rows() []entities.Row {
	rows := make([]entities.Row, 0, 1+len(a.Ingredients)+len(a.Instructions))
	header := a.Recipe
	rows = append(rows, &header)
	for i := range a.Ingredients {
		ingredient := a.Ingredients[i]
		rows = append(rows, &ingredient)
	}
	return append(rows, entities.InstructionRows(a.Instructions)...)
}
