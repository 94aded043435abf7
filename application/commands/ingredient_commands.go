package commands

// CreateIngredientCommand adds an ingredient to a recipe
type CreateIngredientCommand struct {
	IngredientID string  `validate:"required"`
	RecipeID     string  `validate:"required"`
	UserID       string  `validate:"required"`
	Title        string  `validate:"required,max=200"`
	Quantity     float64 `validate:"gte=0"`
	Units        string  `validate:"max=32"`
}

func (c CreateIngredientCommand) Validate() error { return validateCommand(c) }

// UpdateIngredientCommand replaces an ingredient's fields
type UpdateIngredientCommand struct {
	IngredientID string  `validate:"required"`
	RecipeID     string  `validate:"required"`
	UserID       string  `validate:"required"`
	Title        string  `validate:"required,max=200"`
	Quantity     float64 `validate:"gte=0"`
	Units        string  `validate:"max=32"`
}

func (c UpdateIngredientCommand) Validate() error { return validateCommand(c) }

// DeleteIngredientCommand removes an ingredient
type DeleteIngredientCommand struct {
	IngredientID string `validate:"required"`
	RecipeID     string `validate:"required"`
	UserID       string `validate:"required"`
}

func (c DeleteIngredientCommand) Validate() error { return validateCommand(c) }
